// Package libc provides the minimal C runtime a wasm32 guest built from C
// sources imports: heap allocation, aligned allocation, sysconf, fatal
// signal symbols and a few string routines, all operating on the guest's
// linear memory.
//
// # Allocation strategies
//
// Heap.Malloc hands out records: an 8-byte header {length, capacity}
// followed by the payload returned to the guest. Free reads the header back
// through a single validating boundary (Heap.Lookup) before releasing.
//
// Heap.AllocAligned hands out header-less blocks for posix_memalign. They
// are a distinct Go type and are released only with ReleaseAligned; passing
// an aligned address to free faults.
//
// # Host module
//
//	env := libc.NewEnv(libc.Options{Sanitize: true})
//	if _, err := env.Instantiate(ctx, rt); err != nil {
//	    return err
//	}
//
// Every guest memory calling into env gets its own heap. Heap regions are
// obtained by growing the guest memory, so they never overlap data placed
// by the guest itself.
//
// # Faults
//
// abort, raise, __assert_fail, out-of-bounds string scans and heap
// corruption panic with *errors.Fault. wazero turns the panic into a failed
// call; the execution context is not resumed.
package libc
