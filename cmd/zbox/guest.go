package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wippyai/zbox-host/config"
	"github.com/wippyai/zbox-host/libc"
	"github.com/wippyai/zbox-host/runtime"
	"github.com/wippyai/zbox-host/zbox"
)

// runGuest loads a core module against the env host module. Without a
// function it lists the module's imports and exports.
func runGuest(ctx context.Context, cfg *config.Config, wasmFile, funcName, argStr string) error {
	if l, err := zbox.NewLogger(cfg.LogLevel); err == nil {
		runtime.SetLogger(l)
		libc.SetLogger(l)
	}

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	args, err := parseArgs(argStr)
	if err != nil {
		return err
	}

	rt, err := runtime.New(ctx, cfg.RuntimeOptions()...)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(ctx)

	mod, err := rt.Load(ctx, data)
	if err != nil {
		return err
	}
	defer mod.Close(ctx)

	if funcName == "" {
		fmt.Printf("Module: %s\n", wasmFile)
		fmt.Printf("\nImports:\n")
		for _, imp := range mod.Imports() {
			fmt.Printf("  %s.%s\n", imp.Module, imp.Name)
		}
		fmt.Printf("\nExports:\n")
		for _, name := range mod.Exports() {
			fmt.Printf("  %s\n", name)
		}
		return nil
	}

	inst, err := mod.Instantiate(ctx)
	if err != nil {
		return err
	}
	defer inst.Close(ctx)

	results, err := inst.Call(ctx, funcName, args...)
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}
	fmt.Printf("Result: %v\n", results)
	if shim := inst.Shim(); shim != nil {
		st := shim.Heap().Stats()
		fmt.Printf("Heap: %d live records, %d grows\n", st.LiveRecords, st.Grows)
	}
	return nil
}

func parseArgs(s string) ([]uint64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	args := make([]uint64, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "-") {
			v, err := strconv.ParseInt(p, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			args[i] = uint64(v)
			continue
		}
		v, err := strconv.ParseUint(p, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}
