package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/zbox-host/config"
	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/libc"
	"github.com/wippyai/zbox-host/memstore"
	"github.com/wippyai/zbox-host/metrics"
	"github.com/wippyai/zbox-host/runtime"
	"github.com/wippyai/zbox-host/worker"
	"github.com/wippyai/zbox-host/zbox"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML/JSON config file (default $"+config.EnvPath+")")
		logLevel    = flag.String("log-level", "", "Override the configured log level")
		script      = flag.String("script", "", "File of JSON messages to dispatch (- for stdin)")
		schema      = flag.Bool("schema", false, "Print the message JSON Schema and exit")
		params      = flag.String("params", "", "Print the params JSON Schema of scope.type and exit")
		wasmFile    = flag.String("wasm", "", "Core wasm module importing the env C runtime")
		funcName    = flag.String("func", "", "Export to call on the -wasm module")
		args        = flag.String("args", "", "Comma separated integer arguments for -func")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *schema || *params != "" {
		if err := printSchema(os.Stdout, *params); err != nil {
			fail(err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
		if err := cfg.Validate(); err != nil {
			fail(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *wasmFile != "" {
		err = runGuest(ctx, cfg, *wasmFile, *funcName, *args)
	} else {
		err = runHost(ctx, cfg, *script, *interactive)
	}
	if err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printSchema(w io.Writer, params string) error {
	var (
		data []byte
		err  error
	)
	if params == "" {
		data, err = worker.Schema()
	} else {
		scope, typ, ok := splitOperation(params)
		if !ok {
			return fmt.Errorf("-params wants scope.type, got %q", params)
		}
		data, err = worker.ParamsSchema(scope, typ)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func splitOperation(s string) (scope, typ string, ok bool) {
	for i := len(s) - 1; i > 0; i-- {
		if s[i] == '.' {
			return s[:i], s[i+1:], i < len(s)-1
		}
	}
	return "", "", false
}

// newHost wires the storage engine, the façade and the dispatcher. Loggers
// for every package follow the level given to initEnv.
func newHost() (*worker.Dispatcher, *zbox.Zbox) {
	zb := zbox.New(memstore.New(),
		zbox.WithLoggerSink(libc.SetLogger),
		zbox.WithLoggerSink(memstore.SetLogger),
		zbox.WithLoggerSink(worker.SetLogger),
		zbox.WithLoggerSink(runtime.SetLogger),
	)
	return worker.New(zb), zb
}

func startMetrics(cfg *config.Config, logger *zap.Logger) (func(), error) {
	if cfg.Metrics.Addr == "" {
		return func() {}, nil
	}
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	srv := metrics.NewServer(cfg.Metrics.Addr, reg, logger)
	srv.Start()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics shutdown", zap.Error(err))
		}
	}, nil
}

func runHost(ctx context.Context, cfg *config.Config, script string, interactive bool) error {
	d, zb := newHost()
	defer d.Close()

	if err := zb.InitEnv(cfg.LogLevel); err != nil {
		return fmt.Errorf("init env: %w", err)
	}
	stopMetrics, err := startMetrics(cfg, zbox.Logger())
	if err != nil {
		return err
	}
	defer stopMetrics()

	if script == "" && (interactive || term.IsTerminal(int(os.Stdin.Fd()))) {
		return runInteractive(ctx, d, zb.ZboxVersion())
	}

	in := io.Reader(os.Stdin)
	if script != "" && script != "-" {
		f, err := os.Open(script)
		if err != nil {
			return fmt.Errorf("open script: %w", err)
		}
		defer f.Close()
		in = f
	}
	return serve(ctx, d, in, os.Stdout)
}

// serve runs a script. A fatal fault inside a host function ends the run
// with that fault instead of crashing the process.
func serve(ctx context.Context, d *worker.Dispatcher, r io.Reader, w io.Writer) (err error) {
	fault := errors.Catch(func() {
		err = d.Serve(ctx, r, w)
	})
	if fault != nil {
		return fault
	}
	return err
}
