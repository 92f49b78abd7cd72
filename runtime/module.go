package runtime

import (
	"context"
	"sort"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/zbox-host/errors"
)

// Module is a compiled guest module.
type Module struct {
	runtime  *Runtime
	compiled wazero.CompiledModule
}

// Import is a function the module imports.
type Import struct {
	Module string
	Name   string
}

// Imports lists the functions the module imports.
func (m *Module) Imports() []Import {
	defs := m.compiled.ImportedFunctions()
	out := make([]Import, 0, len(defs))
	for _, d := range defs {
		mod, name, _ := d.Import()
		out = append(out, Import{Module: mod, Name: name})
	}
	return out
}

// Exports lists exported function names in sorted order.
func (m *Module) Exports() []string {
	defs := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instantiate creates a new instance with its own memory and heap.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	cfg := wazero.NewModuleConfig().WithName(m.runtime.nextName())
	mod, err := m.runtime.rt.InstantiateModule(ctx, m.compiled, cfg)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindInstantiation, err, "instantiate module")
	}
	return &Instance{module: m, mod: mod}, nil
}

// Close releases the compiled code.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
