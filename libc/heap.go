package libc

import (
	"math/bits"
	"sort"

	"go.uber.org/zap"

	zboxhost "github.com/wippyai/zbox-host"
	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/metrics"
)

// HeaderSize is the size of the bookkeeping header preceding every record
// payload: a length word followed by a capacity word.
const HeaderSize = 8

const (
	maxAddr   = uint64(1) << 32
	wordAlign = 8

	kindRecord  = "record"
	kindAligned = "aligned"
)

// Record is a header-based allocation. Payload is always Header+8.
// Capacity is the value stored in the header's capacity word.
type Record struct {
	Header   uint32
	Payload  uint32
	Capacity uint32
}

// AlignedBlock is a header-less allocation honoring a power-of-two
// alignment. Only ReleaseAligned accepts it; it has no header, so Free can
// never release it.
type AlignedBlock struct {
	Addr  uint32
	Size  uint32
	Align uint32
	span  span
}

// Stats describes heap usage.
type Stats struct {
	LiveRecords uint64
	LiveAligned uint64
	InUseBytes  uint64
	HeapBytes   uint64
	FreeBytes   uint64
	Grows       uint64
}

type span struct {
	addr uint64
	size uint64
}

func (s span) end() uint64 { return s.addr + s.size }

// Heap allocates from regions of a guest's linear memory that the heap
// obtains by growing that memory. Regions never overlap guest-owned data.
// A Heap is not safe for concurrent use.
type Heap struct {
	mem          zboxhost.LinearMemory
	initialPages uint32
	growPages    uint32
	sanitize     bool

	regions []span
	free    []span // address ordered, never adjacent
	aligned map[uint32]AlignedBlock
	live    map[uint32]span // payload to span, sanitizer only

	stats Stats
}

// NewHeap creates a heap over mem. No memory is reserved until the first
// allocation.
func NewHeap(mem zboxhost.LinearMemory, opts Options) *Heap {
	opts = opts.withDefaults()
	h := &Heap{
		mem:          mem,
		initialPages: opts.InitialPages,
		growPages:    opts.GrowPages,
		sanitize:     opts.Sanitize,
		aligned:      make(map[uint32]AlignedBlock),
	}
	if h.sanitize {
		h.live = make(map[uint32]span)
	}
	return h
}

// Memory returns the linear memory the heap manages.
func (h *Heap) Memory() zboxhost.LinearMemory {
	return h.mem
}

// Stats returns a snapshot of heap usage.
func (h *Heap) Stats() Stats {
	s := h.stats
	s.LiveAligned = uint64(len(h.aligned))
	for _, r := range h.regions {
		s.HeapBytes += r.size
	}
	for _, f := range h.free {
		s.FreeBytes += f.size
	}
	return s
}

// Malloc reserves size+8 bytes, writes the header {0, size+8} and returns
// the record. The reserved span is rounded up to 8 bytes.
func (h *Heap) Malloc(size uint32) (Record, error) {
	capacity := uint64(size) + HeaderSize
	need := alignUp(capacity, wordAlign)
	if need > maxAddr-1 || capacity > uint64(^uint32(0)) {
		return Record{}, errors.AllocationFailed(size, wordAlign)
	}

	addr, ok := h.take(need, wordAlign)
	if !ok {
		return Record{}, errors.AllocationFailed(size, wordAlign)
	}

	rec := Record{
		Header:   uint32(addr),
		Payload:  uint32(addr) + HeaderSize,
		Capacity: uint32(capacity),
	}
	h.writeHeader(rec)

	h.stats.LiveRecords++
	h.stats.InUseBytes += need
	metrics.Allocations.WithLabelValues(kindRecord).Inc()
	metrics.HeapInUseBytes.Add(float64(need))
	if h.sanitize {
		h.live[rec.Payload] = span{addr: addr, size: need}
	}
	return rec, nil
}

// Free releases the record whose payload address is payload. Zero is a
// no-op. Invalid or repeated releases are heap corruption and fault.
func (h *Heap) Free(payload uint32) {
	if payload == 0 {
		return
	}
	if blk, ok := h.aligned[payload]; ok {
		errors.Trap(errors.FaultHeap, "free of aligned block %#x (size %d, align %d)", payload, blk.Size, blk.Align)
	}

	rec := h.recordAt(payload)
	sp := span{addr: uint64(rec.Header), size: alignUp(uint64(rec.Capacity), wordAlign)}

	if h.sanitize {
		tracked, ok := h.live[payload]
		if !ok {
			errors.Trap(errors.FaultHeap, "free of unknown or already freed pointer %#x", payload)
		}
		if tracked != sp {
			errors.Trap(errors.FaultHeap, "header of %#x was overwritten (capacity %d)", payload, rec.Capacity)
		}
		delete(h.live, payload)
		h.poison(sp)
	}

	h.release(sp)
	h.stats.LiveRecords--
	h.stats.InUseBytes -= sp.size
	metrics.Frees.WithLabelValues(kindRecord).Inc()
	metrics.HeapInUseBytes.Sub(float64(sp.size))
}

// Lookup returns the record for a live payload address without releasing
// it. It faults where Free would.
func (h *Heap) Lookup(payload uint32) Record {
	return h.recordAt(payload)
}

// AllocAligned reserves size bytes at an address that is a multiple of
// align. align must be a power of two.
func (h *Heap) AllocAligned(size, align uint32) (AlignedBlock, error) {
	if align == 0 || align&(align-1) != 0 {
		return AlignedBlock{}, errors.InvalidArgument("alignment %d is not a power of two", align)
	}
	need := alignUp(max(uint64(size), 1), wordAlign)
	a := max(uint64(align), wordAlign)

	addr, ok := h.take(need, a)
	if !ok {
		return AlignedBlock{}, errors.AllocationFailed(size, align)
	}

	blk := AlignedBlock{Addr: uint32(addr), Size: size, Align: align, span: span{addr: addr, size: need}}
	h.aligned[blk.Addr] = blk
	h.stats.InUseBytes += need
	metrics.Allocations.WithLabelValues(kindAligned).Inc()
	metrics.HeapInUseBytes.Add(float64(need))
	return blk, nil
}

// LookupAligned finds a live aligned block by address.
func (h *Heap) LookupAligned(addr uint32) (AlignedBlock, bool) {
	blk, ok := h.aligned[addr]
	return blk, ok
}

// ReleaseAligned returns an aligned block to the heap. Releasing a block
// that is not live faults.
func (h *Heap) ReleaseAligned(blk AlignedBlock) {
	live, ok := h.aligned[blk.Addr]
	if !ok || live.span != blk.span {
		errors.Trap(errors.FaultHeap, "release of unknown or already released aligned block %#x", blk.Addr)
	}
	delete(h.aligned, blk.Addr)
	if h.sanitize {
		h.poison(blk.span)
	}
	h.release(blk.span)
	h.stats.InUseBytes -= blk.span.size
	metrics.Frees.WithLabelValues(kindAligned).Inc()
	metrics.HeapInUseBytes.Sub(float64(blk.span.size))
}

// recordAt is the only place a payload address is turned back into a
// record. It checks that the header lies in a heap region and that the
// recorded capacity stays inside that region.
func (h *Heap) recordAt(payload uint32) Record {
	if payload < HeaderSize || payload%wordAlign != 0 {
		errors.Trap(errors.FaultHeap, "invalid payload address %#x", payload)
	}
	header := payload - HeaderSize
	region, ok := h.regionOf(uint64(header))
	if !ok {
		errors.Trap(errors.FaultHeap, "pointer %#x is outside the heap", payload)
	}

	capacity, err := h.mem.ReadU32(header + 4)
	if err != nil {
		errors.TrapCause(errors.FaultMemory, err, "reading header of %#x", payload)
	}
	if capacity < HeaderSize || uint64(header)+alignUp(uint64(capacity), wordAlign) > region.end() {
		errors.Trap(errors.FaultHeap, "corrupt header at %#x: capacity %d", header, capacity)
	}
	return Record{Header: header, Payload: payload, Capacity: capacity}
}

func (h *Heap) writeHeader(rec Record) {
	if err := h.mem.WriteU32(rec.Header, 0); err != nil {
		errors.TrapCause(errors.FaultMemory, err, "writing header at %#x", rec.Header)
	}
	if err := h.mem.WriteU32(rec.Header+4, rec.Capacity); err != nil {
		errors.TrapCause(errors.FaultMemory, err, "writing header at %#x", rec.Header)
	}
}

func (h *Heap) regionOf(addr uint64) (span, bool) {
	i := sort.Search(len(h.regions), func(i int) bool { return h.regions[i].end() > addr })
	if i < len(h.regions) && h.regions[i].addr <= addr {
		return h.regions[i], true
	}
	return span{}, false
}

// take carves need bytes at an align-aligned address out of the free list,
// growing memory when no span fits.
func (h *Heap) take(need, align uint64) (uint64, bool) {
	if addr, ok := h.carve(need, align); ok {
		return addr, true
	}
	if !h.grow(need + align) {
		return 0, false
	}
	return h.carve(need, align)
}

func (h *Heap) carve(need, align uint64) (uint64, bool) {
	for i, f := range h.free {
		start := alignUp(f.addr, align)
		if start+need > f.end() {
			continue
		}
		var parts []span
		if start > f.addr {
			parts = append(parts, span{addr: f.addr, size: start - f.addr})
		}
		if rest := f.end() - (start + need); rest > 0 {
			parts = append(parts, span{addr: start + need, size: rest})
		}
		h.free = append(h.free[:i], append(parts, h.free[i+1:]...)...)
		return start, true
	}
	return 0, false
}

func (h *Heap) grow(minBytes uint64) bool {
	pages := h.growPages
	if len(h.regions) == 0 {
		pages = h.initialPages
	}
	if want := (minBytes + zboxhost.PageSize - 1) / zboxhost.PageSize; want > uint64(pages) {
		if want > maxAddr/zboxhost.PageSize {
			return false
		}
		pages = uint32(want)
	}

	prev, ok := h.mem.Grow(pages)
	if !ok {
		Logger().Warn("guest memory growth refused",
			zap.Uint32("pages", pages), zap.Uint32("current_pages", prev))
		return false
	}
	h.stats.Grows++

	r := span{addr: uint64(prev) * zboxhost.PageSize, size: uint64(pages) * zboxhost.PageSize}
	metrics.HeapBytes.Add(float64(r.size))
	if n := len(h.regions); n > 0 && h.regions[n-1].end() == r.addr {
		h.regions[n-1].size += r.size
	} else {
		h.regions = append(h.regions, r)
	}
	h.release(r)
	return true
}

// release inserts sp into the free list, coalescing with neighbours.
// Overlap with a free span means the range was released twice.
func (h *Heap) release(sp span) {
	i := sort.Search(len(h.free), func(i int) bool { return h.free[i].addr >= sp.addr })
	if i > 0 && h.free[i-1].end() > sp.addr {
		errors.Trap(errors.FaultHeap, "double free of %#x", sp.addr)
	}
	if i < len(h.free) && sp.end() > h.free[i].addr {
		errors.Trap(errors.FaultHeap, "double free of %#x", sp.addr)
	}

	mergePrev := i > 0 && h.free[i-1].end() == sp.addr
	mergeNext := i < len(h.free) && sp.end() == h.free[i].addr
	switch {
	case mergePrev && mergeNext:
		h.free[i-1].size += sp.size + h.free[i].size
		h.free = append(h.free[:i], h.free[i+1:]...)
	case mergePrev:
		h.free[i-1].size += sp.size
	case mergeNext:
		h.free[i].addr = sp.addr
		h.free[i].size += sp.size
	default:
		h.free = append(h.free, span{})
		copy(h.free[i+1:], h.free[i:])
		h.free[i] = sp
	}
}

// poison overwrites a released range so stale reads are recognizable.
func (h *Heap) poison(sp span) {
	buf := make([]byte, sp.size)
	for i := range buf {
		buf[i] = 0xdd
	}
	if err := h.mem.Write(uint32(sp.addr), buf); err != nil {
		errors.TrapCause(errors.FaultMemory, err, "poisoning %#x", sp.addr)
	}
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

func isPowerOfTwo(v uint32) bool {
	return v != 0 && bits.OnesCount32(v) == 1
}
