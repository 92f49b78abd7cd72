// Package zboxhost runs a sandboxed, WebAssembly-compiled storage engine
// from Go and exposes its repositories, files and version readers through a
// safe handle-based API.
//
// The guest is a wasm32 core module built from C and Rust sources that expect
// a small C runtime. The host supplies that runtime as a wazero host module
// named "env" and bridges engine errors and entropy across the boundary.
//
// # Architecture Overview
//
//	zboxhost/            Root package with the LinearMemory interfaces
//	├── libc/            malloc/free/posix_memalign/str* shim over guest memory
//	├── random/          secure 32-bit random values for the guest
//	├── errors/          engine error codes, the host error bridge, fatal faults
//	├── storage/         storage engine contract (repos, files, version readers)
//	├── memstore/        in-memory storage engine implementing the contract
//	├── zbox/            handle façade: Repo, File, VersionReader and builders
//	├── resource/        integer handle table for opened objects
//	├── worker/          JSON message dispatcher for scripting hosts
//	├── runtime/         wazero runtime wrapper for guest modules
//	├── config/          YAML configuration
//	├── metrics/         Prometheus collectors
//	└── cmd/zbox/        command line and interactive shell
//
// # Quick Start
//
//	zb := zbox.New(memstore.New())
//	if err := zb.InitEnv("warn"); err != nil {
//	    log.Fatal(err)
//	}
//
//	repo, err := zb.NewRepoOpener().Create(true).Open("mem://demo", "pwd")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
//	f, err := repo.CreateFile("/hello.txt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = f.WriteOnce([]byte("hello"))
//	_ = f.Close()
//
// # Failure Model
//
// Ordinary failures are returned as *errors.HostError values carrying a
// numeric code and the rendered message "ZboxFS(<code>): <description>".
// Fatal conditions (abort, raise, failed C assertions, missing entropy,
// heap corruption) panic with *errors.Fault. Inside a guest call wazero turns
// the panic into a call failure and the runtime closes the instance.
//
// # Thread Safety
//
// Execution is single-threaded and run-to-completion. Handles, heaps and
// guest instances must not be used from overlapping goroutines.
//
// # Memory Model
//
// WASM linear memory can only grow, never shrink. The libc heap grows the
// guest memory for its own regions and reuses freed spans.
package zboxhost
