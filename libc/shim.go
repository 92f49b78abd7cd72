package libc

import (
	"go.uber.org/zap"

	zboxhost "github.com/wippyai/zbox-host"
	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/metrics"
	"github.com/wippyai/zbox-host/random"
)

// errno values returned by posix_memalign.
const (
	ENOMEM int32 = 12
	EINVAL int32 = 22
)

const (
	// ScPageSize is the sysconf name for the page size query.
	ScPageSize int32 = 30
	// SysPageSize is the page size reported to the guest.
	SysPageSize int32 = 4096

	pointerWidth = 4
)

// Shim implements the C runtime symbols a guest imports, over one linear
// memory and its heap. Addresses are guest linear memory offsets.
type Shim struct {
	mem          zboxhost.LinearMemory
	heap         *Heap
	random       *random.Bridge
	legacyCalloc bool
}

// NewShim creates a shim with its own heap over mem.
func NewShim(mem zboxhost.LinearMemory, opts Options) *Shim {
	opts = opts.withDefaults()
	return &Shim{
		mem:          mem,
		heap:         NewHeap(mem, opts),
		random:       random.New(opts.Random),
		legacyCalloc: opts.LegacyCalloc,
	}
}

// Heap returns the shim's heap.
func (s *Shim) Heap() *Heap {
	return s.heap
}

// Malloc returns the payload address of a new record, or 0 when the heap
// cannot grow.
func (s *Shim) Malloc(size uint32) uint32 {
	rec, err := s.heap.Malloc(size)
	if err != nil {
		metrics.AllocationFailures.WithLabelValues(kindRecord).Inc()
		Logger().Warn("malloc failed", zap.Uint32("size", size), zap.Error(err))
		return 0
	}
	return rec.Payload
}

// Calloc allocates n*size bytes. The payload is zero-filled unless the
// shim was built with LegacyCalloc. Overflow of n*size returns 0.
func (s *Shim) Calloc(n, size uint32) uint32 {
	total := uint64(n) * uint64(size)
	if total > uint64(^uint32(0)) {
		metrics.AllocationFailures.WithLabelValues(kindRecord).Inc()
		Logger().Warn("calloc overflow", zap.Uint32("n", n), zap.Uint32("size", size))
		return 0
	}
	p := s.Malloc(uint32(total))
	if p == 0 || s.legacyCalloc || total == 0 {
		return p
	}
	if err := s.mem.Write(p, make([]byte, total)); err != nil {
		errors.TrapCause(errors.FaultMemory, err, "calloc: zeroing %#x", p)
	}
	return p
}

// Free releases a record. Zero is a no-op.
func (s *Shim) Free(ptr uint32) {
	s.heap.Free(ptr)
}

// PosixMemalign allocates an aligned block and stores its address at
// outPtr. alignment must be a power-of-two multiple of the pointer width.
// It returns 0, EINVAL or ENOMEM.
func (s *Shim) PosixMemalign(outPtr, alignment, size uint32) int32 {
	if alignment%pointerWidth != 0 || !isPowerOfTwo(alignment/pointerWidth) {
		return EINVAL
	}
	blk, err := s.heap.AllocAligned(size, alignment)
	if err != nil {
		metrics.AllocationFailures.WithLabelValues(kindAligned).Inc()
		Logger().Warn("posix_memalign failed",
			zap.Uint32("size", size), zap.Uint32("alignment", alignment), zap.Error(err))
		return ENOMEM
	}
	if err := s.mem.WriteU32(outPtr, blk.Addr); err != nil {
		s.heap.ReleaseAligned(blk)
		errors.TrapCause(errors.FaultMemory, err, "posix_memalign: out pointer %#x", outPtr)
	}
	return 0
}

// ReleaseAligned frees a block obtained through PosixMemalign.
func (s *Shim) ReleaseAligned(addr uint32) error {
	blk, ok := s.heap.LookupAligned(addr)
	if !ok {
		return errors.InvalidArgument("no aligned block at %#x", addr)
	}
	s.heap.ReleaseAligned(blk)
	return nil
}

// Sysconf answers the page size query and reports -1 for anything else.
func (s *Shim) Sysconf(name int32) int32 {
	if name == ScPageSize {
		return SysPageSize
	}
	return -1
}

// Raise terminates execution. It never returns.
func (s *Shim) Raise(sig int32) int32 {
	errors.Trap(errors.FaultRaise, "signal %d", sig)
	return 0
}

// Abort terminates execution. It never returns.
func (s *Shim) Abort() {
	errors.Trap(errors.FaultAbort, "abort called")
}

// AssertFail terminates execution with the failed assertion's text.
func (s *Shim) AssertFail(assertion, file, line, function uint32) {
	errors.Trap(errors.FaultAssert, "%s:%d: %s: assertion `%s' failed",
		s.peekString(file), line, s.peekString(function), s.peekString(assertion))
}

// ErrnoLocation returns the null address; errno is not modeled.
func (s *Shim) ErrnoLocation() uint32 {
	return 0
}

// AsmConstInt is a linkage stub.
func (s *Shim) AsmConstInt(code, sigPtr, argBuf uint32) int32 {
	return 0
}

// RandomUint32 draws from the shim's random bridge.
func (s *Shim) RandomUint32() uint32 {
	metrics.RandomDraws.Inc()
	return s.random.Uint32()
}
