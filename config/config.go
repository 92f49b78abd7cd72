package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/libc"
	"github.com/wippyai/zbox-host/runtime"
)

// EnvPath names the environment variable consulted when no path is given.
const EnvPath = "ZBOX_CONFIG"

var validate = validator.New()

// Config is the host configuration.
type Config struct {
	// LogLevel is passed to InitEnv: off, error, warn, info, debug or trace.
	LogLevel string  `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=off error warn info debug trace"`
	Runtime  Runtime `yaml:"runtime" json:"runtime"`
	Heap     Heap    `yaml:"heap" json:"heap"`
	Metrics  Metrics `yaml:"metrics" json:"metrics"`
}

// Runtime bounds the wasm runtime.
type Runtime struct {
	// MemoryLimitPages caps every guest memory. 0 keeps the engine default.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages" json:"memory_limit_pages" validate:"max=65536"`
}

// Heap configures the C runtime allocator.
type Heap struct {
	InitialPages uint32 `yaml:"initial_pages" json:"initial_pages" validate:"max=65536"`
	GrowPages    uint32 `yaml:"grow_pages" json:"grow_pages" validate:"max=65536"`
	Sanitize     bool   `yaml:"sanitize" json:"sanitize"`
	// LegacyCalloc makes calloc skip zero filling.
	LegacyCalloc bool `yaml:"legacy_calloc" json:"legacy_calloc"`
}

// Metrics configures the Prometheus endpoint. An empty Addr disables it.
type Metrics struct {
	Addr string `yaml:"addr" json:"addr" validate:"omitempty,hostname_port"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "warn",
		Heap: Heap{
			InitialPages: 16,
			GrowPages:    16,
		},
	}
}

// Load reads the file at path over the defaults. JSON is used for .json
// files and YAML otherwise. An empty path falls back to $ZBOX_CONFIG and
// then to the defaults alone.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindNotFound).
			Path(path).
			Cause(err).
			Detail("read config").
			Build()
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(data)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, decodeError(err)
	}
	return cfg, cfg.Validate()
}

// ParseJSON decodes JSON over the defaults and validates the result.
func ParseJSON(data []byte) (*Config, error) {
	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, decodeError(err)
	}
	return cfg, cfg.Validate()
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "validate config")
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s=%s)", fe.Namespace(), fe.Tag(), fe.Param()))
	}
	first := verrs[0]
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Code(errors.CodeInvalidArgument).
		Path(first.Namespace()).
		Value(first.Value()).
		Cause(err).
		Detail("invalid %s", strings.Join(fields, ", ")).
		Build()
}

// LibcOptions converts the heap section.
func (c *Config) LibcOptions() libc.Options {
	return libc.Options{
		InitialPages: c.Heap.InitialPages,
		GrowPages:    c.Heap.GrowPages,
		Sanitize:     c.Heap.Sanitize,
		LegacyCalloc: c.Heap.LegacyCalloc,
	}
}

// RuntimeOptions returns the options for runtime.New.
func (c *Config) RuntimeOptions() []runtime.Option {
	return []runtime.Option{
		runtime.WithMemoryLimitPages(c.Runtime.MemoryLimitPages),
		runtime.WithLibc(c.LibcOptions()),
	}
}

func decodeError(err error) error {
	return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode config")
}
