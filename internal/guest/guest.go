// Package guest assembles small wasm32 core modules that import host
// functions and re-export them as callable forwarders. They stand in for the
// compiled storage engine when exercising the host shim end to end.
package guest

import (
	"bytes"

	"github.com/tetratelabs/wazero/api"
)

// Import describes one function the guest imports from the host.
type Import struct {
	Module  string
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// Spec configures the generated module.
type Spec struct {
	Imports []Import
	// MinPages is the initial linear memory size.
	MinPages uint32
	// MaxPages bounds memory growth. Zero means unbounded.
	MaxPages uint32
}

// ForwarderName is the export name of the forwarder for an imported function.
func ForwarderName(name string) string {
	return "call_" + name
}

const (
	sectionType     = 0x01
	sectionImport   = 0x02
	sectionFunction = 0x03
	sectionMemory   = 0x05
	sectionExport   = 0x07
	sectionCode     = 0x0a

	kindFunc   = 0x00
	kindMemory = 0x02

	opLocalGet = 0x20
	opCall     = 0x10
	opEnd      = 0x0b
)

// Build encodes the module. Every import i gets a forwarder exported as
// ForwarderName(import.Name) that passes its parameters through unchanged.
// Linear memory is exported as "memory".
func Build(spec Spec) []byte {
	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	n := uint32(len(spec.Imports))

	writeSection(&out, sectionType, func(b *bytes.Buffer) {
		writeU32(b, n)
		for _, imp := range spec.Imports {
			b.WriteByte(0x60)
			writeU32(b, uint32(len(imp.Params)))
			b.Write(imp.Params)
			writeU32(b, uint32(len(imp.Results)))
			b.Write(imp.Results)
		}
	})

	writeSection(&out, sectionImport, func(b *bytes.Buffer) {
		writeU32(b, n)
		for i, imp := range spec.Imports {
			writeName(b, imp.Module)
			writeName(b, imp.Name)
			b.WriteByte(kindFunc)
			writeU32(b, uint32(i))
		}
	})

	writeSection(&out, sectionFunction, func(b *bytes.Buffer) {
		writeU32(b, n)
		for i := range spec.Imports {
			writeU32(b, uint32(i))
		}
	})

	writeSection(&out, sectionMemory, func(b *bytes.Buffer) {
		writeU32(b, 1)
		if spec.MaxPages > 0 {
			b.WriteByte(0x01)
			writeU32(b, spec.MinPages)
			writeU32(b, spec.MaxPages)
		} else {
			b.WriteByte(0x00)
			writeU32(b, spec.MinPages)
		}
	})

	writeSection(&out, sectionExport, func(b *bytes.Buffer) {
		writeU32(b, n+1)
		writeName(b, "memory")
		b.WriteByte(kindMemory)
		writeU32(b, 0)
		for i, imp := range spec.Imports {
			writeName(b, ForwarderName(imp.Name))
			b.WriteByte(kindFunc)
			writeU32(b, n+uint32(i))
		}
	})

	writeSection(&out, sectionCode, func(b *bytes.Buffer) {
		writeU32(b, n)
		for i, imp := range spec.Imports {
			var body bytes.Buffer
			writeU32(&body, 0) // no locals
			for p := range imp.Params {
				body.WriteByte(opLocalGet)
				writeU32(&body, uint32(p))
			}
			body.WriteByte(opCall)
			writeU32(&body, uint32(i))
			body.WriteByte(opEnd)

			writeU32(b, uint32(body.Len()))
			b.Write(body.Bytes())
		}
	})

	return out.Bytes()
}

func writeSection(out *bytes.Buffer, id byte, fill func(*bytes.Buffer)) {
	var content bytes.Buffer
	fill(&content)
	out.WriteByte(id)
	writeU32(out, uint32(content.Len()))
	out.Write(content.Bytes())
}

func writeName(b *bytes.Buffer, s string) {
	writeU32(b, uint32(len(s)))
	b.WriteString(s)
}

// writeU32 writes an unsigned LEB128 value.
func writeU32(w *bytes.Buffer, v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.WriteByte(b)
		if v == 0 {
			return
		}
	}
}
