package zbox

import (
	"runtime"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/storage"
)

// RepoOpener collects repository options and is consumed by Open.
type RepoOpener struct {
	engine   storage.Engine
	opts     storage.RepoOptions
	consumed bool
}

// Create opens the repository, creating it if missing.
func (o *RepoOpener) Create(v bool) *RepoOpener {
	o.opts.Create = v
	return o
}

// CreateNew creates a repository and fails if it exists.
func (o *RepoOpener) CreateNew(v bool) *RepoOpener {
	o.opts.CreateNew = v
	if v {
		o.opts.Create = true
	}
	return o
}

// Compress enables content compression for a new repository.
func (o *RepoOpener) Compress(v bool) *RepoOpener {
	o.opts.Compress = v
	return o
}

// VersionLimit sets how many versions each file keeps.
func (o *RepoOpener) VersionLimit(n uint8) *RepoOpener {
	o.opts.VersionLimit = n
	return o
}

// DedupChunk enables chunk deduplication for a new repository.
func (o *RepoOpener) DedupChunk(v bool) *RepoOpener {
	o.opts.DedupChunk = v
	return o
}

// ReadOnly opens the repository without write access.
func (o *RepoOpener) ReadOnly(v bool) *RepoOpener {
	o.opts.ReadOnly = v
	return o
}

// Force opens a repository even if another handle holds it.
func (o *RepoOpener) Force(v bool) *RepoOpener {
	o.opts.Force = v
	return o
}

// Cipher sets the cipher of a new repository.
func (o *RepoOpener) Cipher(c storage.Cipher) *RepoOpener {
	o.opts.Cipher = c
	return o
}

// OpsLimit sets the password hashing cost.
func (o *RepoOpener) OpsLimit(l storage.OpsLimit) *RepoOpener {
	o.opts.OpsLimit = l
	return o
}

// MemLimit sets the password hashing memory.
func (o *RepoOpener) MemLimit(l storage.MemLimit) *RepoOpener {
	o.opts.MemLimit = l
	return o
}

// Options returns the collected options.
func (o *RepoOpener) Options() storage.RepoOptions {
	return o.opts
}

// Open consumes the opener and opens the repository at uri.
func (o *RepoOpener) Open(uri, pwd string) (*Repo, error) {
	if o.consumed {
		return nil, observe(kindRepo, "open", errors.InvalidArgument("repo opener already used"))
	}
	o.consumed = true
	native, err := o.engine.Open(uri, pwd, o.opts)
	if err != nil {
		return nil, observe(kindRepo, "open", err)
	}
	observe(kindRepo, "open", nil)
	return newRepo(native, o.engine, uri), nil
}

// OpenOptions collects file open options and is consumed by Open.
type OpenOptions struct {
	opts     storage.FileOptions
	consumed bool
}

// Read allows reading.
func (o *OpenOptions) Read(v bool) *OpenOptions {
	o.opts.Read = v
	return o
}

// Write allows writing.
func (o *OpenOptions) Write(v bool) *OpenOptions {
	o.opts.Write = v
	return o
}

// Append positions every write at the end of the file.
func (o *OpenOptions) Append(v bool) *OpenOptions {
	o.opts.Append = v
	return o
}

// Truncate discards existing content on the first write.
func (o *OpenOptions) Truncate(v bool) *OpenOptions {
	o.opts.Truncate = v
	return o
}

// Create opens the file for writing, creating it if missing.
func (o *OpenOptions) Create(v bool) *OpenOptions {
	o.opts.Create = v
	if v {
		o.opts.Write = true
	}
	return o
}

// CreateNew creates the file for writing and fails if it exists.
func (o *OpenOptions) CreateNew(v bool) *OpenOptions {
	o.opts.CreateNew = v
	if v {
		o.opts.Create = true
		o.opts.Write = true
	}
	return o
}

// VersionLimit sets how many versions a new file keeps.
func (o *OpenOptions) VersionLimit(n uint8) *OpenOptions {
	o.opts.VersionLimit = &n
	return o
}

// DedupChunk enables deduplication for a new file.
func (o *OpenOptions) DedupChunk(v bool) *OpenOptions {
	o.opts.DedupChunk = &v
	return o
}

// Options returns the collected options.
func (o *OpenOptions) Options() storage.FileOptions {
	return o.opts
}

// Open consumes the options and opens path in repo.
func (o *OpenOptions) Open(repo *Repo, path string) (*File, error) {
	if o.consumed {
		return nil, observe(kindFile, "open", errors.InvalidArgument("open options already used"))
	}
	o.consumed = true
	return repo.openFile("openFile", path, o.opts)
}

func newRepo(native storage.Repo, engine storage.Engine, uri string) *Repo {
	r := &Repo{h: newHandle(native), engine: engine, uri: uri}
	trackOpen(kindRepo)
	runtime.SetFinalizer(r, (*Repo).finalize)
	return r
}
