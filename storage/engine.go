package storage

import "io"

// Engine is the storage engine behind the façade. Failures are returned as
// *errors.Error values carrying an engine code.
type Engine interface {
	// Version reports the engine version string.
	Version() string
	// Init prepares the engine. It may be called more than once.
	Init() error
	Exists(uri string) (bool, error)
	Open(uri, pwd string, opts RepoOptions) (Repo, error)
	RepairSuperBlock(uri, pwd string) error
	Destroy(uri string) error
}

// Repo is an open repository. Implementations may also implement
// io.Closer; the façade closes a handle exactly once.
type Repo interface {
	Info() (RepoInfo, error)
	ResetPassword(oldPwd, newPwd string, ops OpsLimit, mem MemLimit) error
	PathExists(path string) (bool, error)
	IsFile(path string) (bool, error)
	IsDir(path string) (bool, error)
	CreateFile(path string) (File, error)
	OpenFile(path string, opts FileOptions) (File, error)
	CreateDir(path string) error
	CreateDirAll(path string) error
	ReadDir(path string) ([]DirEntry, error)
	Metadata(path string) (Metadata, error)
	History(path string) ([]Version, error)
	Copy(from, to string) error
	CopyDirAll(from, to string) error
	RemoveFile(path string) error
	RemoveDir(path string) error
	RemoveDirAll(path string) error
	Rename(from, to string) error
}

// File is an open file. Writes are staged until Finish commits them as a
// new version.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	Finish() error
	WriteOnce(p []byte) error
	SetLen(n uint64) error
	CurrVersion() (uint64, error)
	VersionReader(num uint64) (VersionReader, error)
	Metadata() (Metadata, error)
	History() ([]Version, error)
}

// VersionReader reads one historical version of a file.
type VersionReader interface {
	io.Reader
	io.Seeker
	Version() (Version, error)
}
