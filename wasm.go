package zboxhost

// PageSize is the size of one WebAssembly linear memory page.
const PageSize = 65536

// Memory is guest linear memory as seen from the host.
// Slices returned by Read may alias guest memory and must not be retained.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU32(offset uint32) (uint32, error)
	WriteU8(offset uint32, value uint8) error
	WriteU32(offset uint32, value uint32) error
}

// MemorySizer provides the current size of WASM linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// MemoryGrower extends linear memory by whole pages.
type MemoryGrower interface {
	// Grow adds deltaPages pages and returns the previous size in pages.
	// ok is false when the memory cannot grow (limit reached).
	Grow(deltaPages uint32) (previousPages uint32, ok bool)
}

// LinearMemory is the full view the host allocator needs: byte access,
// current size and growth.
type LinearMemory interface {
	Memory
	MemorySizer
	MemoryGrower
}
