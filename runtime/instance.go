package runtime

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	zboxhost "github.com/wippyai/zbox-host"
	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/internal/memory"
	"github.com/wippyai/zbox-host/libc"
)

// faultExitCode is the exit code an instance closes with after a fault.
const faultExitCode = 134

// Instance is a running guest. A call that ends in a fatal fault terminates
// the instance; every later call fails.
type Instance struct {
	module *Module
	mod    api.Module
	mu     sync.Mutex
	fault  *errors.Fault
	closed bool
}

// Call invokes an exported function with raw wasm values.
func (i *Instance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.fault != nil {
		return nil, errors.New(errors.PhaseRuntime, errors.KindPoisoned).
			Detail("instance terminated by %s fault", i.fault.Reason).
			Cause(i.fault).
			Build()
	}
	if i.closed {
		return nil, errors.New(errors.PhaseRuntime, errors.KindClosed).Detail("instance is closed").Build()
	}

	fn := i.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.New(errors.PhaseRuntime, errors.KindNotFound).Path(name).Detail("export %s", name).Build()
	}

	results, err := fn.Call(ctx, args...)
	if err == nil {
		return results, nil
	}
	if fault, ok := errors.AsFault(err); ok {
		i.terminate(ctx, fault)
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindPoisoned, fault, "guest terminated")
	}
	return nil, errors.Wrap(errors.PhaseRuntime, errors.KindEngine, err, "call "+name)
}

// terminate closes the module after a fault. Callers hold i.mu.
func (i *Instance) terminate(ctx context.Context, fault *errors.Fault) {
	i.fault = fault
	Logger().Error("guest terminated", zap.String("reason", string(fault.Reason)), zap.String("detail", fault.Detail))
	i.release(ctx, faultExitCode)
}

func (i *Instance) release(ctx context.Context, exitCode uint32) {
	if i.closed {
		return
	}
	i.closed = true
	if mem := i.mod.Memory(); mem != nil {
		i.module.runtime.env.Release(mem)
	}
	if err := i.mod.CloseWithExitCode(ctx, exitCode); err != nil {
		Logger().Warn("close guest", zap.Error(err))
	}
}

// Fault returns the fault that terminated the instance, or nil.
func (i *Instance) Fault() *errors.Fault {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.fault
}

// Memory returns the instance's linear memory, or nil if it has none.
func (i *Instance) Memory() zboxhost.LinearMemory {
	return memory.Wrap(i.mod.Memory())
}

// Shim returns the C runtime state bound to the instance's memory.
func (i *Instance) Shim() *libc.Shim {
	mem := i.mod.Memory()
	if mem == nil {
		return nil
	}
	return i.module.runtime.env.Shim(mem)
}

// Close releases the instance and its heap. Later calls do nothing.
func (i *Instance) Close(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.release(ctx, 0)
	return nil
}
