package libc

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/internal/memory"
	"github.com/wippyai/zbox-host/metrics"
	"github.com/wippyai/zbox-host/random"
)

// ModuleName is the import module guests resolve the C runtime from.
const ModuleName = "env"

var (
	i32 = api.ValueTypeI32
)

// Symbol is one exported host function and its wasm32 signature.
type Symbol struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
	call    func(s *Shim, stack []uint64)
}

var symbols = []Symbol{
	{Name: "malloc", Params: []api.ValueType{i32}, Results: []api.ValueType{i32},
		call: func(s *Shim, stack []uint64) {
			stack[0] = api.EncodeU32(s.Malloc(api.DecodeU32(stack[0])))
		}},
	{Name: "calloc", Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32},
		call: func(s *Shim, stack []uint64) {
			stack[0] = api.EncodeU32(s.Calloc(api.DecodeU32(stack[0]), api.DecodeU32(stack[1])))
		}},
	{Name: "free", Params: []api.ValueType{i32},
		call: func(s *Shim, stack []uint64) {
			s.Free(api.DecodeU32(stack[0]))
		}},
	{Name: "posix_memalign", Params: []api.ValueType{i32, i32, i32}, Results: []api.ValueType{i32},
		call: func(s *Shim, stack []uint64) {
			stack[0] = api.EncodeI32(s.PosixMemalign(api.DecodeU32(stack[0]), api.DecodeU32(stack[1]), api.DecodeU32(stack[2])))
		}},
	{Name: "sysconf", Params: []api.ValueType{i32}, Results: []api.ValueType{i32},
		call: func(s *Shim, stack []uint64) {
			stack[0] = api.EncodeI32(s.Sysconf(api.DecodeI32(stack[0])))
		}},
	{Name: "raise", Params: []api.ValueType{i32}, Results: []api.ValueType{i32},
		call: func(s *Shim, stack []uint64) {
			stack[0] = api.EncodeI32(s.Raise(api.DecodeI32(stack[0])))
		}},
	{Name: "abort",
		call: func(s *Shim, _ []uint64) {
			s.Abort()
		}},
	{Name: "__assert_fail", Params: []api.ValueType{i32, i32, i32, i32},
		call: func(s *Shim, stack []uint64) {
			s.AssertFail(api.DecodeU32(stack[0]), api.DecodeU32(stack[1]), api.DecodeU32(stack[2]), api.DecodeU32(stack[3]))
		}},
	{Name: "__errno_location", Results: []api.ValueType{i32},
		call: func(s *Shim, stack []uint64) {
			stack[0] = api.EncodeU32(s.ErrnoLocation())
		}},
	{Name: "strlen", Params: []api.ValueType{i32}, Results: []api.ValueType{i32},
		call: func(s *Shim, stack []uint64) {
			stack[0] = api.EncodeU32(s.Strlen(api.DecodeU32(stack[0])))
		}},
	{Name: "strchr", Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32},
		call: func(s *Shim, stack []uint64) {
			stack[0] = api.EncodeU32(s.Strchr(api.DecodeU32(stack[0]), api.DecodeI32(stack[1])))
		}},
	{Name: "strncmp", Params: []api.ValueType{i32, i32, i32}, Results: []api.ValueType{i32},
		call: func(s *Shim, stack []uint64) {
			stack[0] = api.EncodeI32(s.Strncmp(api.DecodeU32(stack[0]), api.DecodeU32(stack[1]), api.DecodeU32(stack[2])))
		}},
	{Name: "emscripten_asm_const_int", Params: []api.ValueType{i32, i32, i32}, Results: []api.ValueType{i32},
		call: func(s *Shim, stack []uint64) {
			stack[0] = api.EncodeI32(s.AsmConstInt(api.DecodeU32(stack[0]), api.DecodeU32(stack[1]), api.DecodeU32(stack[2])))
		}},
	{Name: random.ExportName, Results: []api.ValueType{i32},
		call: func(s *Shim, stack []uint64) {
			stack[0] = api.EncodeU32(s.RandomUint32())
		}},
}

// Symbols lists the functions exported by the env module.
func Symbols() []Symbol {
	out := make([]Symbol, len(symbols))
	copy(out, symbols)
	return out
}

// Env is the env host module. Each guest memory that calls into it gets its
// own Shim and heap, created on first use.
type Env struct {
	opts Options

	mu    sync.Mutex
	shims map[api.Memory]*Shim
}

// NewEnv creates an env module using opts for every heap it creates.
func NewEnv(opts Options) *Env {
	return &Env{
		opts:  opts.withDefaults(),
		shims: make(map[api.Memory]*Shim),
	}
}

// Instantiate registers the env module in rt.
func (e *Env) Instantiate(ctx context.Context, rt wazero.Runtime) (api.Module, error) {
	builder := rt.NewHostModuleBuilder(ModuleName)
	for _, sym := range symbols {
		builder.NewFunctionBuilder().
			WithName(sym.Name).
			WithGoModuleFunction(e.hostFunc(sym), sym.Params, sym.Results).
			Export(sym.Name)
	}
	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Registration(err, "instantiate env module")
	}
	return mod, nil
}

// Shim returns the shim bound to mem, creating it if needed.
func (e *Env) Shim(mem api.Memory) *Shim {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.shims[mem]
	if !ok {
		s = NewShim(memory.Wrap(mem), e.opts)
		e.shims[mem] = s
	}
	return s
}

// Release forgets the shim bound to mem. Call it once the guest instance
// owning mem is closed.
func (e *Env) Release(mem api.Memory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.shims[mem]; ok {
		s.drop()
		delete(e.shims, mem)
	}
}

// ReleaseAll forgets every shim. Call it when the runtime hosting the
// guests is closed.
func (e *Env) ReleaseAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for mem, s := range e.shims {
		s.drop()
		delete(e.shims, mem)
	}
}

// Len returns the number of guest memories with a live shim.
func (e *Env) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.shims)
}

// drop removes the heap's bytes from the gauges.
func (s *Shim) drop() {
	st := s.heap.Stats()
	metrics.HeapBytes.Sub(float64(st.HeapBytes))
	metrics.HeapInUseBytes.Sub(float64(st.InUseBytes))
}

func (e *Env) hostFunc(sym Symbol) api.GoModuleFunc {
	return func(_ context.Context, mod api.Module, stack []uint64) {
		defer func() {
			if r := recover(); r != nil {
				if f, ok := r.(*errors.Fault); ok {
					metrics.Faults.WithLabelValues(string(f.Reason)).Inc()
					Logger().Error("guest fault",
						zap.String("symbol", sym.Name),
						zap.String("module", mod.Name()),
						zap.Error(f))
				}
				panic(r)
			}
		}()
		mem := mod.Memory()
		if mem == nil {
			errors.Trap(errors.FaultMemory, "%s: caller has no linear memory", sym.Name)
		}
		sym.call(e.Shim(mem), stack)
	}
}
