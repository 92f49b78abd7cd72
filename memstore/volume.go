package memstore

import (
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/storage"
)

type volume struct {
	mu sync.Mutex

	id           uuid.UUID
	uri          string
	salt         []byte
	pwdHash      [32]byte
	createdAt    time.Time
	compress     bool
	dedup        bool
	versionLimit uint8
	cipher       storage.Cipher

	blobs     *blobStore
	root      *node
	damaged   bool
	openCount int
}

type node struct {
	name     string
	dir      bool
	children map[string]*node

	versions     []fileVersion
	nextNum      uint64
	versionLimit uint8
	dedup        bool

	createdAt  time.Time
	modifiedAt time.Time
}

type fileVersion struct {
	num       uint64
	blob      *blob
	createdAt time.Time
}

func newDir(name string, now time.Time) *node {
	return &node{
		name:       name,
		dir:        true,
		children:   make(map[string]*node),
		createdAt:  now,
		modifiedAt: now,
	}
}

// newFile creates a file node holding an empty first version.
func (v *volume) newFile(name string, now time.Time, limit uint8, dedup bool) (*node, error) {
	n := &node{
		name:         name,
		nextNum:      1,
		versionLimit: limit,
		dedup:        dedup,
		createdAt:    now,
		modifiedAt:   now,
	}
	if err := v.commit(n, nil, now); err != nil {
		return nil, err
	}
	return n, nil
}

// commit stores content as the file's next version and drops versions
// beyond the file's limit.
func (v *volume) commit(n *node, content []byte, now time.Time) error {
	b, err := v.blobs.put(content, n.dedup)
	if err != nil {
		return errors.Wrap(errors.PhaseEngine, errors.KindEngine, err, "store content")
	}
	v.commitBlob(n, b, now)
	return nil
}

func (v *volume) commitBlob(n *node, b *blob, now time.Time) {
	n.versions = append(n.versions, fileVersion{num: n.nextNum, blob: b, createdAt: now})
	n.nextNum++
	n.modifiedAt = now
	for len(n.versions) > int(n.versionLimit) {
		v.blobs.release(n.versions[0].blob)
		n.versions = n.versions[1:]
	}
}

func (n *node) current() fileVersion {
	return n.versions[len(n.versions)-1]
}

func (n *node) version(num uint64) (fileVersion, bool) {
	for _, ver := range n.versions {
		if ver.num == num {
			return ver, true
		}
	}
	return fileVersion{}, false
}

func (v *volume) content(ver fileVersion) ([]byte, error) {
	data, err := v.blobs.get(ver.blob)
	if err != nil {
		return nil, errors.Engine(errors.CodeCorrupted, err.Error())
	}
	return data, nil
}

func (n *node) metadata() storage.Metadata {
	md := storage.Metadata{
		FileType:   storage.FileTypeFile,
		CreatedAt:  n.createdAt,
		ModifiedAt: n.modifiedAt,
	}
	if n.dir {
		md.FileType = storage.FileTypeDir
		return md
	}
	cur := n.current()
	md.ContentLen = cur.blob.size
	md.CurrVersion = cur.num
	return md
}

func (n *node) history() []storage.Version {
	out := make([]storage.Version, 0, len(n.versions))
	for _, ver := range n.versions {
		out = append(out, storage.Version{Num: ver.num, ContentLen: ver.blob.size, CreatedAt: ver.createdAt})
	}
	return out
}

// release drops every blob reference held by n and its descendants.
func (v *volume) release(n *node) {
	if n.dir {
		for _, c := range n.children {
			v.release(c)
		}
		return
	}
	for _, ver := range n.versions {
		v.blobs.release(ver.blob)
	}
}

// copyNode duplicates n, sharing content blobs.
func (v *volume) copyNode(n *node, name string, now time.Time) *node {
	if n.dir {
		d := newDir(name, now)
		for cname, c := range n.children {
			d.children[cname] = v.copyNode(c, cname, now)
		}
		return d
	}
	f := &node{
		name:         name,
		nextNum:      1,
		versionLimit: n.versionLimit,
		dedup:        n.dedup,
		createdAt:    now,
	}
	b := n.current().blob
	v.blobs.retain(b)
	v.commitBlob(f, b, now)
	return f
}

func (n *node) sortedChildren() []*node {
	out := make([]*node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// cleanPath validates an absolute path and returns its components.
func cleanPath(p string) (string, []string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", nil, errors.Engine(errors.CodeInvalidPath, p)
	}
	clean := path.Clean(p)
	if clean == "/" {
		return clean, nil, nil
	}
	return clean, strings.Split(clean[1:], "/"), nil
}

func (v *volume) resolve(p string) (*node, error) {
	clean, parts, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	cur := v.root
	for _, part := range parts {
		if !cur.dir {
			return nil, errors.EngineAt(errors.CodeNotDir, clean)
		}
		next, ok := cur.children[part]
		if !ok {
			return nil, errors.NotFound(clean)
		}
		cur = next
	}
	return cur, nil
}

// resolveParent returns the directory that holds p and p's last component.
func (v *volume) resolveParent(p string) (*node, string, error) {
	clean, parts, err := cleanPath(p)
	if err != nil {
		return nil, "", err
	}
	if len(parts) == 0 {
		return nil, "", errors.EngineAt(errors.CodeIsRoot, clean)
	}
	parent, err := v.resolve(path.Dir(clean))
	if err != nil {
		return nil, "", err
	}
	if !parent.dir {
		return nil, "", errors.EngineAt(errors.CodeNotDir, path.Dir(clean))
	}
	return parent, parts[len(parts)-1], nil
}

func (v *volume) lookup(p string) (*node, bool) {
	n, err := v.resolve(p)
	return n, err == nil
}

func (v *volume) info(readOnly bool) storage.RepoInfo {
	return storage.RepoInfo{
		VolumeID:     v.id.String(),
		Version:      EngineVersion,
		URI:          v.uri,
		Compress:     v.compress,
		VersionLimit: v.versionLimit,
		DedupChunk:   v.dedup,
		ReadOnly:     readOnly,
		CreatedAt:    v.createdAt,
	}
}
