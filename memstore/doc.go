// Package memstore is an in-memory storage engine for the zbox host. It
// implements the storage contract with repositories addressed as
// mem://<name>, password checks, versioned files and directory trees.
//
// Content is kept in a blob store. With compression on, blobs are lz4
// framed; with chunk dedup on, identical version content is stored once,
// keyed by its xxhash digest. Nothing is persisted or encrypted.
//
//	store := memstore.New()
//	repo, err := store.Open("mem://notes", "pwd", storage.RepoOptions{Create: true, VersionLimit: 10})
package memstore
