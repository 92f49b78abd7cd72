package libc

import (
	"bytes"

	"github.com/wippyai/zbox-host/errors"
)

const (
	scanChunk     = 4096
	maxPeekString = 1024
)

// Strlen returns the length of the NUL-terminated string at addr. A string
// running off the end of memory faults.
func (s *Shim) Strlen(addr uint32) uint32 {
	end := s.scan(addr, "strlen", func(view []byte) int {
		return bytes.IndexByte(view, 0)
	})
	return end - addr
}

// Strchr returns the address of the first c in the string at addr, or 0.
// Searching for 0 finds the terminator.
func (s *Shim) Strchr(addr uint32, c int32) uint32 {
	ch := byte(c)
	at := s.scan(addr, "strchr", func(view []byte) int {
		for i, b := range view {
			if b == ch || b == 0 {
				return i
			}
		}
		return -1
	})
	if s.byteAt(at) == ch {
		return at
	}
	return 0
}

// Strncmp compares at most n bytes as unsigned chars, stopping at the first
// difference or terminator, and returns the byte difference.
func (s *Shim) Strncmp(s1, s2, n uint32) int32 {
	for i := uint32(0); i < n; i++ {
		a := s.byteAt(s1 + i)
		b := s.byteAt(s2 + i)
		if a != b {
			return int32(a) - int32(b)
		}
		if a == 0 {
			return 0
		}
	}
	return 0
}

// scan walks memory from addr in chunks until stop returns an index in the
// current chunk and returns that absolute address.
func (s *Shim) scan(addr uint32, op string, stop func([]byte) int) uint32 {
	size := uint64(s.mem.Size())
	for pos := uint64(addr); pos < size; {
		n := min(scanChunk, size-pos)
		view, err := s.mem.Read(uint32(pos), uint32(n))
		if err != nil {
			errors.TrapCause(errors.FaultMemory, err, "%s at %#x", op, addr)
		}
		if i := stop(view); i >= 0 {
			return uint32(pos) + uint32(i)
		}
		pos += n
	}
	errors.Trap(errors.FaultMemory, "%s: unterminated string at %#x", op, addr)
	return 0
}

func (s *Shim) byteAt(addr uint32) byte {
	b, err := s.mem.ReadU8(addr)
	if err != nil {
		errors.TrapCause(errors.FaultMemory, err, "read at %#x", addr)
	}
	return b
}

// peekString reads a string for diagnostics without faulting.
func (s *Shim) peekString(addr uint32) string {
	if addr == 0 || addr >= s.mem.Size() {
		return "?"
	}
	n := min(uint64(maxPeekString), uint64(s.mem.Size())-uint64(addr))
	view, err := s.mem.Read(addr, uint32(n))
	if err != nil {
		return "?"
	}
	if i := bytes.IndexByte(view, 0); i >= 0 {
		view = view[:i]
	}
	return string(view)
}
