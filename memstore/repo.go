package memstore

import (
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/storage"
)

type repo struct {
	vol      *volume
	readOnly bool
	closed   bool
	now      func() time.Time
}

var _ storage.Repo = (*repo)(nil)

// Close releases the repository so it can be opened again without force.
func (r *repo) Close() error {
	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.vol.openCount--
	Logger().Debug("repo closed", zap.String("uri", r.vol.uri))
	return nil
}

func (r *repo) writable() error {
	if r.readOnly {
		return errors.Engine(errors.CodeReadOnly, r.vol.uri)
	}
	return nil
}

func (r *repo) Info() (storage.RepoInfo, error) {
	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()
	return r.vol.info(r.readOnly), nil
}

func (r *repo) ResetPassword(oldPwd, newPwd string, _ storage.OpsLimit, _ storage.MemLimit) error {
	if err := r.writable(); err != nil {
		return err
	}
	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()
	if !r.vol.checkPassword(oldPwd) {
		return errors.Engine(errors.CodeDecrypt, "wrong password")
	}
	r.vol.setPassword(newPwd)
	return nil
}

func (r *repo) PathExists(p string) (bool, error) {
	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()
	if _, _, err := cleanPath(p); err != nil {
		return false, err
	}
	_, ok := r.vol.lookup(p)
	return ok, nil
}

func (r *repo) IsFile(p string) (bool, error) {
	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()
	if _, _, err := cleanPath(p); err != nil {
		return false, err
	}
	n, ok := r.vol.lookup(p)
	return ok && !n.dir, nil
}

func (r *repo) IsDir(p string) (bool, error) {
	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()
	if _, _, err := cleanPath(p); err != nil {
		return false, err
	}
	n, ok := r.vol.lookup(p)
	return ok && n.dir, nil
}

func (r *repo) CreateFile(p string) (storage.File, error) {
	return r.OpenFile(p, storage.FileOptions{Read: true, Write: true, CreateNew: true})
}

func (r *repo) OpenFile(p string, opts storage.FileOptions) (storage.File, error) {
	writing := opts.Write || opts.Append
	if (opts.Create || opts.CreateNew || opts.Truncate) && !writing {
		return nil, errors.InvalidArgument("create and truncate require write or append")
	}
	if !opts.Read && !writing {
		return nil, errors.InvalidArgument("file must be opened for read or write")
	}
	if writing {
		if err := r.writable(); err != nil {
			return nil, err
		}
	}

	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()

	parent, name, err := r.vol.resolveParent(p)
	if err != nil {
		return nil, err
	}
	clean := path.Clean(p)

	n, exists := parent.children[name]
	switch {
	case exists && opts.CreateNew:
		return nil, errors.AlreadyExists(clean)
	case exists && n.dir:
		return nil, errors.EngineAt(errors.CodeIsDir, clean)
	case !exists && !opts.Create && !opts.CreateNew:
		return nil, errors.NotFound(clean)
	case !exists:
		limit := r.vol.versionLimit
		if opts.VersionLimit != nil {
			if *opts.VersionLimit == 0 {
				return nil, errors.InvalidArgument("version limit must be at least 1")
			}
			limit = *opts.VersionLimit
		}
		dedup := r.vol.dedup
		if opts.DedupChunk != nil {
			dedup = *opts.DedupChunk
		}
		n, err = r.vol.newFile(name, r.now(), limit, dedup)
		if err != nil {
			return nil, err
		}
		parent.children[name] = n
		parent.modifiedAt = n.createdAt
	}

	return newFile(r.vol, n, clean, opts, r.now), nil
}

func (r *repo) CreateDir(p string) error {
	if err := r.writable(); err != nil {
		return err
	}
	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()

	if clean, parts, err := cleanPath(p); err != nil {
		return err
	} else if len(parts) == 0 {
		return errors.AlreadyExists(clean)
	}
	parent, name, err := r.vol.resolveParent(p)
	if err != nil {
		return err
	}
	if _, ok := parent.children[name]; ok {
		return errors.AlreadyExists(path.Clean(p))
	}
	now := r.now()
	parent.children[name] = newDir(name, now)
	parent.modifiedAt = now
	return nil
}

func (r *repo) CreateDirAll(p string) error {
	if err := r.writable(); err != nil {
		return err
	}
	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()
	_, err := r.vol.mkdirAll(p, r.now())
	return err
}

func (v *volume) mkdirAll(p string, now time.Time) (*node, error) {
	_, parts, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	cur := v.root
	for i, part := range parts {
		next, ok := cur.children[part]
		if !ok {
			next = newDir(part, now)
			cur.children[part] = next
			cur.modifiedAt = now
		} else if !next.dir {
			return nil, errors.EngineAt(errors.CodeNotDir, "/"+strings.Join(parts[:i+1], "/"))
		}
		cur = next
	}
	return cur, nil
}

func (r *repo) ReadDir(p string) ([]storage.DirEntry, error) {
	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()
	n, err := r.vol.resolve(p)
	if err != nil {
		return nil, err
	}
	if !n.dir {
		return nil, errors.EngineAt(errors.CodeNotDir, path.Clean(p))
	}
	out := make([]storage.DirEntry, 0, len(n.children))
	for _, c := range n.sortedChildren() {
		out = append(out, storage.DirEntry{
			Path:     path.Join(path.Clean(p), c.name),
			FileName: c.name,
			Metadata: c.metadata(),
		})
	}
	return out, nil
}

func (r *repo) Metadata(p string) (storage.Metadata, error) {
	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()
	n, err := r.vol.resolve(p)
	if err != nil {
		return storage.Metadata{}, err
	}
	return n.metadata(), nil
}

func (r *repo) History(p string) ([]storage.Version, error) {
	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()
	n, err := r.vol.resolve(p)
	if err != nil {
		return nil, err
	}
	if n.dir {
		return nil, errors.EngineAt(errors.CodeIsDir, path.Clean(p))
	}
	return n.history(), nil
}

// Copy copies a regular file. An existing destination file gets the
// source content as a new version.
func (r *repo) Copy(from, to string) error {
	if err := r.writable(); err != nil {
		return err
	}
	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()

	src, err := r.vol.resolve(from)
	if err != nil {
		return err
	}
	if src.dir {
		return errors.EngineAt(errors.CodeNotFile, path.Clean(from))
	}
	parent, name, err := r.vol.resolveParent(to)
	if err != nil {
		return err
	}
	now := r.now()
	if dst, ok := parent.children[name]; ok {
		if dst == src {
			return nil
		}
		if dst.dir {
			return errors.EngineAt(errors.CodeIsDir, path.Clean(to))
		}
		b := src.current().blob
		r.vol.blobs.retain(b)
		r.vol.commitBlob(dst, b, now)
		return nil
	}
	parent.children[name] = r.vol.copyNode(src, name, now)
	parent.modifiedAt = now
	return nil
}

// CopyDirAll copies a directory tree, creating the destination as needed.
func (r *repo) CopyDirAll(from, to string) error {
	if err := r.writable(); err != nil {
		return err
	}
	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()

	src, err := r.vol.resolve(from)
	if err != nil {
		return err
	}
	if !src.dir {
		return errors.EngineAt(errors.CodeNotDir, path.Clean(from))
	}
	if isWithin(path.Clean(to), path.Clean(from)) {
		return errors.InvalidArgument("cannot copy %s into itself", path.Clean(from))
	}
	now := r.now()
	dst, err := r.vol.mkdirAll(to, now)
	if err != nil {
		return err
	}
	return r.vol.mergeInto(dst, src, now)
}

func (v *volume) mergeInto(dst, src *node, now time.Time) error {
	for _, c := range src.sortedChildren() {
		existing, ok := dst.children[c.name]
		switch {
		case !ok:
			dst.children[c.name] = v.copyNode(c, c.name, now)
		case c.dir && existing.dir:
			if err := v.mergeInto(existing, c, now); err != nil {
				return err
			}
		case c.dir:
			return errors.EngineAt(errors.CodeNotDir, existing.name)
		case existing.dir:
			return errors.EngineAt(errors.CodeIsDir, existing.name)
		default:
			b := c.current().blob
			v.blobs.retain(b)
			v.commitBlob(existing, b, now)
		}
	}
	dst.modifiedAt = now
	return nil
}

func (r *repo) RemoveFile(p string) error {
	if err := r.writable(); err != nil {
		return err
	}
	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()
	parent, name, err := r.vol.resolveParent(p)
	if err != nil {
		return err
	}
	n, ok := parent.children[name]
	if !ok {
		return errors.NotFound(path.Clean(p))
	}
	if n.dir {
		return errors.EngineAt(errors.CodeNotFile, path.Clean(p))
	}
	r.vol.release(n)
	delete(parent.children, name)
	parent.modifiedAt = r.now()
	return nil
}

func (r *repo) RemoveDir(p string) error {
	if err := r.writable(); err != nil {
		return err
	}
	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()
	parent, name, err := r.vol.resolveParent(p)
	if err != nil {
		return err
	}
	n, ok := parent.children[name]
	if !ok {
		return errors.NotFound(path.Clean(p))
	}
	if !n.dir {
		return errors.EngineAt(errors.CodeNotDir, path.Clean(p))
	}
	if len(n.children) > 0 {
		return errors.EngineAt(errors.CodeNotEmpty, path.Clean(p))
	}
	delete(parent.children, name)
	parent.modifiedAt = r.now()
	return nil
}

// RemoveDirAll removes a directory and its contents. On the root it
// empties the repository.
func (r *repo) RemoveDirAll(p string) error {
	if err := r.writable(); err != nil {
		return err
	}
	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()
	n, err := r.vol.resolve(p)
	if err != nil {
		return err
	}
	if !n.dir {
		return errors.EngineAt(errors.CodeNotDir, path.Clean(p))
	}
	now := r.now()
	if n == r.vol.root {
		r.vol.release(n)
		n.children = make(map[string]*node)
		n.modifiedAt = now
		return nil
	}
	parent, name, err := r.vol.resolveParent(p)
	if err != nil {
		return err
	}
	r.vol.release(n)
	delete(parent.children, name)
	parent.modifiedAt = now
	return nil
}

// Rename moves a file or directory. A file replaces an existing file and a
// directory replaces an existing empty directory.
func (r *repo) Rename(from, to string) error {
	if err := r.writable(); err != nil {
		return err
	}
	r.vol.mu.Lock()
	defer r.vol.mu.Unlock()

	srcParent, srcName, err := r.vol.resolveParent(from)
	if err != nil {
		return err
	}
	src, ok := srcParent.children[srcName]
	if !ok {
		return errors.NotFound(path.Clean(from))
	}
	if src.dir && isWithin(path.Clean(to), path.Clean(from)) && path.Clean(to) != path.Clean(from) {
		return errors.InvalidArgument("cannot move %s into itself", path.Clean(from))
	}
	dstParent, dstName, err := r.vol.resolveParent(to)
	if err != nil {
		return err
	}
	if dst, ok := dstParent.children[dstName]; ok {
		if dst == src {
			return nil
		}
		switch {
		case src.dir && !dst.dir:
			return errors.EngineAt(errors.CodeNotDir, path.Clean(to))
		case !src.dir && dst.dir:
			return errors.EngineAt(errors.CodeIsDir, path.Clean(to))
		case dst.dir && len(dst.children) > 0:
			return errors.EngineAt(errors.CodeNotEmpty, path.Clean(to))
		}
		r.vol.release(dst)
	}

	now := r.now()
	delete(srcParent.children, srcName)
	src.name = dstName
	dstParent.children[dstName] = src
	srcParent.modifiedAt = now
	dstParent.modifiedAt = now
	return nil
}

func isWithin(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, strings.TrimSuffix(dir, "/")+"/")
}
