package zbox

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/metrics"
	"github.com/wippyai/zbox-host/random"
	"github.com/wippyai/zbox-host/storage"
)

// LevelOff disables diagnostics in InitEnv.
const LevelOff = "off"

// LoggerSetter is implemented by engines that accept the façade logger.
type LoggerSetter interface {
	SetLogger(*zap.Logger)
}

// Option configures a Zbox.
type Option func(*Zbox)

// WithRandomSource replaces the secure random source behind RandomUint32.
func WithRandomSource(src random.Source) Option {
	return func(z *Zbox) {
		z.random = random.New(src)
	}
}

// WithLoggerSink registers a function that receives the logger built by
// InitEnv, for packages the façade does not import.
func WithLoggerSink(fn func(*zap.Logger)) Option {
	return func(z *Zbox) {
		z.sinks = append(z.sinks, fn)
	}
}

// Zbox holds the module-level entry points.
type Zbox struct {
	engine storage.Engine
	random *random.Bridge
	sinks  []func(*zap.Logger)
}

// New creates a Zbox over engine.
func New(engine storage.Engine, opts ...Option) *Zbox {
	z := &Zbox{
		engine: engine,
		random: random.New(random.NewSecureSource()),
	}
	for _, opt := range opts {
		opt(z)
	}
	return z
}

// Engine returns the underlying storage engine.
func (z *Zbox) Engine() storage.Engine {
	return z.engine
}

// ParseLevel maps a host level name to a zap level. Unknown names fall back
// to warn. ok is false for "off".
func ParseLevel(level string) (lvl zapcore.Level, ok bool) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == LevelOff {
		return zapcore.InvalidLevel, false
	}
	switch level {
	case "":
		return zapcore.WarnLevel, true
	case "trace":
		return zapcore.DebugLevel, true
	}
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.WarnLevel, true
	}
	return parsed, true
}

// NewLogger builds the console logger used for a host level, or a no-op
// logger for "off".
func NewLogger(level string) (*zap.Logger, error) {
	lvl, ok := ParseLevel(level)
	if !ok {
		return zap.NewNop(), nil
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	return cfg.Build()
}

// InitEnv configures diagnostics for level and initialises the engine.
func (z *Zbox) InitEnv(level string) error {
	l, err := NewLogger(level)
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "build logger")
	}
	SetLogger(l)
	if ls, ok := z.engine.(LoggerSetter); ok {
		ls.SetLogger(l)
	}
	for _, sink := range z.sinks {
		sink(l)
	}
	if err := z.engine.Init(); err != nil {
		return observe(kindZbox, "initEnv", err)
	}
	l.Info("environment initialised", zap.String("level", level), zap.String("engine", z.engine.Version()),
		zap.Int("pid", os.Getpid()))
	return observe(kindZbox, "initEnv", nil)
}

// ZboxVersion reports the engine version.
func (z *Zbox) ZboxVersion() string {
	metrics.HandleOps.WithLabelValues(kindZbox, "version").Inc()
	return z.engine.Version()
}

// RandomUint32 returns one value from the secure random source. A missing
// or failing source is a fatal fault.
func (z *Zbox) RandomUint32() uint32 {
	metrics.RandomDraws.Inc()
	return z.random.Uint32()
}

// Exists reports whether a repository exists at uri.
func (z *Zbox) Exists(uri string) (bool, error) {
	ok, err := z.engine.Exists(uri)
	return ok, observe(kindZbox, "exists", err)
}

// RepairSuperBlock repairs the repository super block at uri.
func (z *Zbox) RepairSuperBlock(uri, pwd string) error {
	return observe(kindZbox, "repairSuperBlock", z.engine.RepairSuperBlock(uri, pwd))
}

// Destroy permanently removes the repository at uri.
func (z *Zbox) Destroy(uri string) error {
	return observe(kindZbox, "destroy", z.engine.Destroy(uri))
}

// NewRepoOpener starts a repository opener with the engine defaults.
func (z *Zbox) NewRepoOpener() *RepoOpener {
	return &RepoOpener{engine: z.engine, opts: storage.DefaultRepoOptions()}
}

// NewOpenOptions starts file open options that read an existing file.
func NewOpenOptions() *OpenOptions {
	return &OpenOptions{opts: storage.DefaultFileOptions()}
}
