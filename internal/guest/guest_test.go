package guest

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

func TestWriteU32(t *testing.T) {
	tests := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{624485, []byte{0xe5, 0x8e, 0x26}},
	}
	for _, tt := range tests {
		var b bytes.Buffer
		writeU32(&b, tt.v)
		if !bytes.Equal(b.Bytes(), tt.want) {
			t.Errorf("writeU32(%d) = %x, want %x", tt.v, b.Bytes(), tt.want)
		}
	}
}

func TestBuild_MemoryOnly(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	mod, err := rt.Instantiate(ctx, Build(Spec{MinPages: 2, MaxPages: 4}))
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	mem := mod.ExportedMemory("memory")
	if mem == nil {
		t.Fatal("memory not exported")
	}
	if mem.Size() != 2*65536 {
		t.Errorf("size = %d", mem.Size())
	}
	if _, ok := mem.Grow(3); ok {
		t.Error("grow past max should fail")
	}
}

func TestBuild_Forwarders(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	_, err := rt.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(api.DecodeU32(stack[0]) + api.DecodeU32(stack[1]))
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("add").
		Instantiate(ctx)
	if err != nil {
		t.Fatalf("host module: %v", err)
	}

	bin := Build(Spec{
		MinPages: 1,
		Imports: []Import{{
			Module:  "env",
			Name:    "add",
			Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
			Results: []api.ValueType{api.ValueTypeI32},
		}},
	})
	mod, err := rt.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiate guest: %v", err)
	}

	fn := mod.ExportedFunction(ForwarderName("add"))
	if fn == nil {
		t.Fatal("forwarder not exported")
	}
	res, err := fn.Call(ctx, 40, 2)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if res[0] != 42 {
		t.Errorf("add = %d, want 42", res[0])
	}
}
