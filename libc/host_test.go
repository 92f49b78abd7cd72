package libc

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/internal/guest"
)

func guestImports() []guest.Import {
	var imports []guest.Import
	for _, sym := range Symbols() {
		imports = append(imports, guest.Import{
			Module:  ModuleName,
			Name:    sym.Name,
			Params:  sym.Params,
			Results: sym.Results,
		})
	}
	return imports
}

func instantiateGuest(t *testing.T, opts Options) (context.Context, api.Module, *Env) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	env := NewEnv(opts)
	if _, err := env.Instantiate(ctx, rt); err != nil {
		t.Fatalf("Instantiate env: %v", err)
	}
	mod, err := rt.Instantiate(ctx, guest.Build(guest.Spec{Imports: guestImports(), MinPages: 1, MaxPages: 256}))
	if err != nil {
		t.Fatalf("Instantiate guest: %v", err)
	}
	return ctx, mod, env
}

func call(t *testing.T, ctx context.Context, mod api.Module, name string, args ...uint64) []uint64 {
	t.Helper()
	res, err := mod.ExportedFunction(guest.ForwarderName(name)).Call(ctx, args...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return res
}

func TestEnv_Symbols(t *testing.T) {
	want := []string{
		"malloc", "calloc", "free", "posix_memalign", "sysconf", "raise",
		"__errno_location", "strlen", "strchr", "strncmp",
		"emscripten_asm_const_int", "__assert_fail", "abort", "random_uint32",
	}
	have := make(map[string]bool)
	for _, s := range Symbols() {
		have[s.Name] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("env does not export %s", name)
		}
	}
}

func TestEnv_MallocThroughGuest(t *testing.T) {
	ctx, mod, env := instantiateGuest(t, Options{Sanitize: true})

	p := uint32(call(t, ctx, mod, "malloc", 100)[0])
	if p == 0 {
		t.Fatal("malloc returned null")
	}
	capacity, ok := mod.Memory().ReadUint32Le(p - 4)
	if !ok || capacity != 108 {
		t.Errorf("capacity word = %d, %v", capacity, ok)
	}

	mod.Memory().Write(p, []byte("hello\x00"))
	if n := uint32(call(t, ctx, mod, "strlen", uint64(p))[0]); n != 5 {
		t.Errorf("strlen = %d", n)
	}
	if at := uint32(call(t, ctx, mod, "strchr", uint64(p), 'l')[0]); at != p+2 {
		t.Errorf("strchr = %#x, want %#x", at, p+2)
	}

	call(t, ctx, mod, "free", uint64(p))
	call(t, ctx, mod, "free", 0)

	st := env.Shim(mod.Memory()).Heap().Stats()
	if st.LiveRecords != 0 {
		t.Errorf("LiveRecords = %d", st.LiveRecords)
	}
}

func TestEnv_PosixMemalign(t *testing.T) {
	ctx, mod, _ := instantiateGuest(t, Options{})
	const out = 64
	if rc := api.DecodeI32(call(t, ctx, mod, "posix_memalign", out, 64, 128)[0]); rc != 0 {
		t.Fatalf("posix_memalign = %d", rc)
	}
	addr, _ := mod.Memory().ReadUint32Le(out)
	if addr == 0 || addr%64 != 0 {
		t.Errorf("aligned address %#x", addr)
	}
	if rc := api.DecodeI32(call(t, ctx, mod, "posix_memalign", out, 6, 128)[0]); rc != EINVAL {
		t.Errorf("posix_memalign(align=6) = %d, want EINVAL", rc)
	}
}

func TestEnv_Scalars(t *testing.T) {
	ctx, mod, _ := instantiateGuest(t, Options{})
	if v := api.DecodeI32(call(t, ctx, mod, "sysconf", 30)[0]); v != 4096 {
		t.Errorf("sysconf = %d", v)
	}
	if v := api.DecodeI32(call(t, ctx, mod, "sysconf", 1)[0]); v != -1 {
		t.Errorf("sysconf(1) = %d", v)
	}
	if v := call(t, ctx, mod, "__errno_location")[0]; v != 0 {
		t.Errorf("__errno_location = %d", v)
	}
	if v := call(t, ctx, mod, "emscripten_asm_const_int", 1, 2, 3)[0]; v != 0 {
		t.Errorf("emscripten_asm_const_int = %d", v)
	}
	a := call(t, ctx, mod, "random_uint32")[0]
	b := call(t, ctx, mod, "random_uint32")[0]
	c := call(t, ctx, mod, "random_uint32")[0]
	if a == b && b == c {
		t.Errorf("random_uint32 returned %d three times", a)
	}
}

func TestEnv_FaultsFailTheCall(t *testing.T) {
	tests := []struct {
		name   string
		args   []uint64
		reason errors.Reason
	}{
		{"abort", nil, errors.FaultAbort},
		{"raise", []uint64{11}, errors.FaultRaise},
		{"__assert_fail", []uint64{0, 0, 7, 0}, errors.FaultAssert},
		{"strlen", []uint64{0xfffffff0}, errors.FaultMemory},
		{"free", []uint64{24}, errors.FaultHeap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, mod, _ := instantiateGuest(t, Options{})
			_, err := mod.ExportedFunction(guest.ForwarderName(tt.name)).Call(ctx, tt.args...)
			if err == nil {
				t.Fatal("expected call failure")
			}
			f, ok := errors.AsFault(err)
			if !ok {
				t.Fatalf("error %v carries no fault", err)
			}
			if f.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", f.Reason, tt.reason)
			}
		})
	}
}

func TestEnv_HeapPerMemory(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	env := NewEnv(Options{})
	if _, err := env.Instantiate(ctx, rt); err != nil {
		t.Fatal(err)
	}
	bin := guest.Build(guest.Spec{Imports: guestImports(), MinPages: 1})
	cfg := wazero.NewModuleConfig()
	a, err := rt.InstantiateWithConfig(ctx, bin, cfg.WithName("a"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := rt.InstantiateWithConfig(ctx, bin, cfg.WithName("b"))
	if err != nil {
		t.Fatal(err)
	}

	pa := call(t, ctx, a, "malloc", 16)[0]
	pb := call(t, ctx, b, "malloc", 16)[0]
	if pa != pb {
		t.Errorf("independent heaps should hand out the same first address: %#x vs %#x", pa, pb)
	}
	if env.Shim(a.Memory()) == env.Shim(b.Memory()) {
		t.Error("memories share a shim")
	}

	env.Release(a.Memory())
	if len(env.shims) != 1 {
		t.Errorf("shims = %d after release", len(env.shims))
	}
}

func TestEnv_ReleaseAll(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	env := NewEnv(Options{})
	if _, err := env.Instantiate(ctx, rt); err != nil {
		t.Fatal(err)
	}
	bin := guest.Build(guest.Spec{Imports: guestImports(), MinPages: 1})
	cfg := wazero.NewModuleConfig()
	for _, name := range []string{"a", "b"} {
		mod, err := rt.InstantiateWithConfig(ctx, bin, cfg.WithName(name))
		if err != nil {
			t.Fatal(err)
		}
		call(t, ctx, mod, "malloc", 64)
	}
	if env.Len() != 2 {
		t.Fatalf("Len = %d, want 2", env.Len())
	}

	env.ReleaseAll()
	if env.Len() != 0 {
		t.Errorf("Len = %d after ReleaseAll", env.Len())
	}
	env.ReleaseAll()
}
