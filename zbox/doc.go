// Package zbox is the host-facing façade over a storage engine.
//
// Every native handle (repository, file, version reader) is wrapped in a
// handle that is either Open or Closed. Operations on an open handle
// delegate to the engine and pass failures through errors.Bridge; operations
// on a closed handle fail with a Closed or RepoClosed error without touching
// the engine. Close is idempotent, and garbage collection of a wrapper
// converges on the same release path.
//
// # Quick Start
//
//	zb := zbox.New(memstore.New())
//	if err := zb.InitEnv("warn"); err != nil {
//		return err
//	}
//	repo, err := zb.NewRepoOpener().Create(true).Open("mem://demo", "pwd")
//	if err != nil {
//		return err
//	}
//	defer repo.Close()
//
//	f, err := repo.CreateFile("/hello.txt")
//	if err != nil {
//		return err
//	}
//	defer f.Close()
//	_ = f.WriteOnce([]byte("hello"))
//
// # Builders
//
// RepoOpener and OpenOptions collect settings through chained setters and
// are consumed by Open. A second Open on the same builder fails with an
// InvalidArgument error.
//
// # Seeking
//
// Seek takes the host numbering for whence (0 start, 1 end, 2 current) and
// a signed 32-bit offset. ParseSeek validates the pair before any engine
// call.
package zbox
