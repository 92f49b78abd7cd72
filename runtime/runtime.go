package runtime

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/libc"
)

// Option configures a Runtime.
type Option func(*settings)

type settings struct {
	memoryLimitPages uint32
	libc             libc.Options
}

// WithMemoryLimitPages caps every guest memory at n pages. 0 keeps the
// wazero default of 65536 pages.
func WithMemoryLimitPages(n uint32) Option {
	return func(s *settings) {
		s.memoryLimitPages = n
	}
}

// WithLibc configures the C runtime shim shared by all guests.
func WithLibc(opts libc.Options) Option {
	return func(s *settings) {
		s.libc = opts
	}
}

// Runtime hosts guest modules that import the env C runtime.
type Runtime struct {
	rt   wazero.Runtime
	env  *libc.Env
	seq  atomic.Uint64
	opts settings
}

// New creates a runtime and registers the env host module.
func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if s.memoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(s.memoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	env := libc.NewEnv(s.libc)
	if _, err := env.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	Logger().Debug("runtime created", zap.Uint32("memory_limit_pages", s.memoryLimitPages),
		zap.Bool("sanitize", s.libc.Sanitize))
	return &Runtime{rt: rt, env: env, opts: s}, nil
}

// Close releases all runtime resources, including every instance and its
// heap.
func (r *Runtime) Close(ctx context.Context) error {
	err := r.rt.Close(ctx)
	r.env.ReleaseAll()
	return err
}

// Env returns the C runtime host module state.
func (r *Runtime) Env() *libc.Env {
	return r.env
}

// Load compiles a core wasm module.
func (r *Runtime) Load(ctx context.Context, wasm []byte) (*Module, error) {
	compiled, err := r.rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load(err, "compile module")
	}
	return &Module{runtime: r, compiled: compiled}, nil
}

func (r *Runtime) nextName() string {
	return fmt.Sprintf("guest-%d", r.seq.Add(1))
}
