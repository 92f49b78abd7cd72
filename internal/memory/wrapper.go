// Package memory adapts wazero linear memory to the host memory interfaces.
package memory

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	zboxhost "github.com/wippyai/zbox-host"
)

// Wrap wraps a wazero api.Memory to implement zboxhost.LinearMemory.
func Wrap(mem api.Memory) zboxhost.LinearMemory {
	if mem == nil {
		return nil
	}
	return &Wrapper{Mem: mem}
}

// Wrapper adapts wazero api.Memory to zboxhost.LinearMemory.
type Wrapper struct {
	Mem api.Memory
}

// Read returns a view of length bytes at offset.
func (m *Wrapper) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

// Write writes bytes to memory.
func (m *Wrapper) Write(offset uint32, data []byte) error {
	if !m.Mem.Write(offset, data) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

// ReadU8 reads one byte.
func (m *Wrapper) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.Mem.ReadByte(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// ReadU32 reads a little-endian uint32.
func (m *Wrapper) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.Mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// WriteU8 writes one byte.
func (m *Wrapper) WriteU8(offset uint32, value uint8) error {
	if !m.Mem.WriteByte(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// WriteU32 writes a little-endian uint32.
func (m *Wrapper) WriteU32(offset uint32, value uint32) error {
	if !m.Mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// Size returns the memory size in bytes.
func (m *Wrapper) Size() uint32 {
	return m.Mem.Size()
}

// Grow grows memory by deltaPages pages.
func (m *Wrapper) Grow(deltaPages uint32) (uint32, bool) {
	return m.Mem.Grow(deltaPages)
}

// Slice is an in-process LinearMemory backed by a byte slice. It mirrors
// wasm semantics: the size is a multiple of the page size and growth is
// bounded by MaxPages.
type Slice struct {
	Data     []byte
	MaxPages uint32
}

// NewSlice returns a Slice memory with the given initial and maximum pages.
func NewSlice(pages, maxPages uint32) *Slice {
	return &Slice{Data: make([]byte, int(pages)*zboxhost.PageSize), MaxPages: maxPages}
}

func (s *Slice) bounds(offset, length uint32) bool {
	return uint64(offset)+uint64(length) <= uint64(len(s.Data))
}

// Read returns a view of length bytes at offset.
func (s *Slice) Read(offset uint32, length uint32) ([]byte, error) {
	if !s.bounds(offset, length) {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	return s.Data[offset : offset+length], nil
}

// Write copies data to offset.
func (s *Slice) Write(offset uint32, data []byte) error {
	if uint64(len(data)) > uint64(^uint32(0)) || !s.bounds(offset, uint32(len(data))) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	copy(s.Data[offset:], data)
	return nil
}

// ReadU8 reads one byte.
func (s *Slice) ReadU8(offset uint32) (uint8, error) {
	if !s.bounds(offset, 1) {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return s.Data[offset], nil
}

// ReadU32 reads a little-endian uint32.
func (s *Slice) ReadU32(offset uint32) (uint32, error) {
	if !s.bounds(offset, 4) {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	b := s.Data[offset:]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// WriteU8 writes one byte.
func (s *Slice) WriteU8(offset uint32, value uint8) error {
	if !s.bounds(offset, 1) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	s.Data[offset] = value
	return nil
}

// WriteU32 writes a little-endian uint32.
func (s *Slice) WriteU32(offset uint32, value uint32) error {
	if !s.bounds(offset, 4) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	b := s.Data[offset:]
	b[0], b[1], b[2], b[3] = byte(value), byte(value>>8), byte(value>>16), byte(value>>24)
	return nil
}

// Size returns the memory size in bytes.
func (s *Slice) Size() uint32 {
	return uint32(len(s.Data))
}

// Grow adds deltaPages zeroed pages up to the page limit.
func (s *Slice) Grow(deltaPages uint32) (uint32, bool) {
	prev := uint32(len(s.Data) / zboxhost.PageSize)
	if uint64(prev)+uint64(deltaPages) > uint64(s.MaxPages) {
		return prev, false
	}
	s.Data = append(s.Data, make([]byte, int(deltaPages)*zboxhost.PageSize)...)
	return prev, true
}
