package zbox

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/storage"
)

// Repo is an open repository handle.
type Repo struct {
	h      *handle[storage.Repo]
	engine storage.Engine
	uri    string
}

func repoClosed() error {
	return errors.RepoClosed()
}

func (r *Repo) call(op string, fn func(storage.Repo) error) error {
	return observe(kindRepo, op, r.h.do(repoClosed, fn))
}

// URI returns the uri the repository was opened with.
func (r *Repo) URI() string {
	return r.uri
}

// IsOpen reports whether Close has not been called yet.
func (r *Repo) IsOpen() bool {
	return r.h.isOpen()
}

// Close releases the repository. Later calls do nothing.
func (r *Repo) Close() error {
	runtime.SetFinalizer(r, nil)
	native, ok := r.h.close()
	if !ok {
		return nil
	}
	return release(kindRepo, native)
}

func (r *Repo) finalize() {
	if native, ok := r.h.close(); ok {
		Logger().Warn("repo collected without close", zap.String("uri", r.uri))
		_ = release(kindRepo, native)
	}
}

// Exists reports whether a repository exists at uri. It does not need the
// handle to be open.
func (r *Repo) Exists(uri string) (bool, error) {
	ok, err := r.engine.Exists(uri)
	return ok, observe(kindRepo, "exists", err)
}

// Info returns the repository summary.
func (r *Repo) Info() (RepoInfo, error) {
	var info storage.RepoInfo
	err := r.call("info", func(n storage.Repo) (err error) {
		info, err = n.Info()
		return err
	})
	if err != nil {
		return RepoInfo{}, err
	}
	return repoInfoOf(info), nil
}

// ResetPassword changes the repository password using interactive hashing
// limits.
func (r *Repo) ResetPassword(oldPwd, newPwd string) error {
	return r.call("resetPassword", func(n storage.Repo) error {
		return n.ResetPassword(oldPwd, newPwd, storage.OpsInteractive, storage.MemInteractive)
	})
}

// RepairSuperBlock repairs the super block of the repository at uri.
func (r *Repo) RepairSuperBlock(uri, pwd string) error {
	return observe(kindRepo, "repairSuperBlock", r.engine.RepairSuperBlock(uri, pwd))
}

// Destroy removes the repository at uri.
func (r *Repo) Destroy(uri string) error {
	return observe(kindRepo, "destroy", r.engine.Destroy(uri))
}

// PathExists reports whether path names a file or directory.
func (r *Repo) PathExists(path string) (bool, error) {
	var ok bool
	err := r.call("pathExists", func(n storage.Repo) (err error) {
		ok, err = n.PathExists(path)
		return err
	})
	return ok, err
}

// IsFile reports whether path is a regular file.
func (r *Repo) IsFile(path string) (bool, error) {
	var ok bool
	err := r.call("isFile", func(n storage.Repo) (err error) {
		ok, err = n.IsFile(path)
		return err
	})
	return ok, err
}

// IsDir reports whether path is a directory.
func (r *Repo) IsDir(path string) (bool, error) {
	var ok bool
	err := r.call("isDir", func(n storage.Repo) (err error) {
		ok, err = n.IsDir(path)
		return err
	})
	return ok, err
}

// CreateFile creates a new file for reading and writing.
func (r *Repo) CreateFile(path string) (*File, error) {
	var native storage.File
	err := r.call("createFile", func(n storage.Repo) (err error) {
		native, err = n.CreateFile(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return newFile(native, path), nil
}

// OpenFile opens an existing file for reading.
func (r *Repo) OpenFile(path string) (*File, error) {
	return r.openFile("openFile", path, storage.DefaultFileOptions())
}

func (r *Repo) openFile(op, path string, opts storage.FileOptions) (*File, error) {
	var native storage.File
	err := r.call(op, func(n storage.Repo) (err error) {
		native, err = n.OpenFile(path, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return newFile(native, path), nil
}

// CreateDir creates a directory whose parent must exist.
func (r *Repo) CreateDir(path string) error {
	return r.call("createDir", func(n storage.Repo) error {
		return n.CreateDir(path)
	})
}

// CreateDirAll creates a directory and any missing parents.
func (r *Repo) CreateDirAll(path string) error {
	return r.call("createDirAll", func(n storage.Repo) error {
		return n.CreateDirAll(path)
	})
}

// ReadDir lists the entries of a directory.
func (r *Repo) ReadDir(path string) ([]DirEntry, error) {
	var entries []storage.DirEntry
	err := r.call("readDir", func(n storage.Repo) (err error) {
		entries, err = n.ReadDir(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dirEntriesOf(entries), nil
}

// Metadata returns the metadata of path.
func (r *Repo) Metadata(path string) (Metadata, error) {
	var md storage.Metadata
	err := r.call("metadata", func(n storage.Repo) (err error) {
		md, err = n.Metadata(path)
		return err
	})
	if err != nil {
		return Metadata{}, err
	}
	return metadataOf(md), nil
}

// History returns the retained versions of the file at path.
func (r *Repo) History(path string) ([]Version, error) {
	var hist []storage.Version
	err := r.call("history", func(n storage.Repo) (err error) {
		hist, err = n.History(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return versionsOf(hist), nil
}

// Copy copies a file.
func (r *Repo) Copy(from, to string) error {
	return r.call("copy", func(n storage.Repo) error {
		return n.Copy(from, to)
	})
}

// CopyDirAll copies a directory tree.
func (r *Repo) CopyDirAll(from, to string) error {
	return r.call("copyDirAll", func(n storage.Repo) error {
		return n.CopyDirAll(from, to)
	})
}

// RemoveFile removes a file.
func (r *Repo) RemoveFile(path string) error {
	return r.call("removeFile", func(n storage.Repo) error {
		return n.RemoveFile(path)
	})
}

// RemoveDir removes an empty directory.
func (r *Repo) RemoveDir(path string) error {
	return r.call("removeDir", func(n storage.Repo) error {
		return n.RemoveDir(path)
	})
}

// RemoveDirAll removes a directory and everything below it.
func (r *Repo) RemoveDirAll(path string) error {
	return r.call("removeDirAll", func(n storage.Repo) error {
		return n.RemoveDirAll(path)
	})
}

// Rename moves a file or directory.
func (r *Repo) Rename(from, to string) error {
	return r.call("rename", func(n storage.Repo) error {
		return n.Rename(from, to)
	})
}
