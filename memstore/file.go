package memstore

import (
	"bytes"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/storage"
)

// file is an open file. Writes go to a pending buffer seeded from the
// current version and become a new version on Finish.
type file struct {
	vol  *volume
	n    *node
	path string
	opts storage.FileOptions
	now  func() time.Time

	pos      uint64
	truncate bool
	pending  []byte
	writing  bool

	cache    []byte
	cacheNum uint64
}

var _ storage.File = (*file)(nil)

func newFile(vol *volume, n *node, path string, opts storage.FileOptions, now func() time.Time) *file {
	return &file{vol: vol, n: n, path: path, opts: opts, now: now, truncate: opts.Truncate}
}

func (f *file) canWrite() bool {
	return f.opts.Write || f.opts.Append
}

// currentContent returns the current version's bytes. The caller holds
// the volume lock.
func (f *file) currentContent() ([]byte, error) {
	cur := f.n.current()
	if f.cache != nil && f.cacheNum == cur.num {
		return f.cache, nil
	}
	data, err := f.vol.content(cur)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	f.cache, f.cacheNum = data, cur.num
	return data, nil
}

func (f *file) Read(p []byte) (int, error) {
	if !f.opts.Read {
		return 0, errors.EngineAt(errors.CodeCannotRead, f.path)
	}
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if f.writing {
		return 0, errors.EngineAt(errors.CodeNotFinish, f.path)
	}
	data, err := f.currentContent()
	if err != nil {
		return 0, err
	}
	if f.pos >= uint64(len(data)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, data[f.pos:])
	f.pos += uint64(n)
	return n, nil
}

func (f *file) Write(p []byte) (int, error) {
	if !f.canWrite() {
		return 0, errors.EngineAt(errors.CodeCannotWrite, f.path)
	}
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()

	if !f.writing {
		base, err := f.baseContent()
		if err != nil {
			return 0, err
		}
		f.pending = base
		f.writing = true
	}
	f.pending = f.overwrite(f.pending, p)
	return len(p), nil
}

// baseContent is the content a new version starts from: empty when the
// file was opened for truncation, otherwise a copy of the current version.
func (f *file) baseContent() ([]byte, error) {
	if f.truncate {
		f.truncate = false
		return []byte{}, nil
	}
	data, err := f.currentContent()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(data), nil
}

// overwrite writes p into buf at the cursor, or at the end in append mode,
// and advances the cursor past it.
func (f *file) overwrite(buf, p []byte) []byte {
	if f.opts.Append {
		f.pos = uint64(len(buf))
	}
	end := f.pos + uint64(len(p))
	if end > uint64(len(buf)) {
		buf = append(buf, make([]byte, end-uint64(len(buf)))...)
	}
	copy(buf[f.pos:end], p)
	f.pos = end
	return buf
}

func (f *file) Finish() error {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if !f.writing {
		return errors.EngineAt(errors.CodeNotWrite, f.path)
	}
	if err := f.vol.commit(f.n, f.pending, f.now()); err != nil {
		return err
	}
	f.pending, f.writing = nil, false
	return nil
}

func (f *file) WriteOnce(p []byte) error {
	if !f.canWrite() {
		return errors.EngineAt(errors.CodeCannotWrite, f.path)
	}
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if f.writing {
		return errors.EngineAt(errors.CodeNotFinish, f.path)
	}
	pos, truncate := f.pos, f.truncate
	base, err := f.baseContent()
	if err != nil {
		return err
	}
	content := f.overwrite(base, p)
	if err := f.vol.commit(f.n, content, f.now()); err != nil {
		f.pos, f.truncate = pos, truncate
		return err
	}
	return nil
}

// Seek positions the cursor in the pending buffer while writing, otherwise
// in the current version.
func (f *file) Seek(offset int64, whence int) (int64, error) {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()

	var size int64
	if f.writing {
		size = int64(len(f.pending))
	} else {
		data, err := f.currentContent()
		if err != nil {
			return 0, err
		}
		size = int64(len(data))
	}

	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekEnd:
		next = size + offset
	case io.SeekCurrent:
		next = int64(f.pos) + offset
	default:
		return 0, errors.InvalidArgument("invalid whence %d", whence)
	}
	if next < 0 {
		return 0, errors.InvalidArgument("seek to negative position %d", next)
	}
	f.pos = uint64(next)
	return next, nil
}

// SetLen truncates or zero-extends the content and commits it as a new
// version.
func (f *file) SetLen(size uint64) error {
	if !f.canWrite() {
		return errors.EngineAt(errors.CodeCannotWrite, f.path)
	}
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if f.writing {
		return errors.EngineAt(errors.CodeNotFinish, f.path)
	}
	data, err := f.currentContent()
	if err != nil {
		return err
	}
	resized := make([]byte, size)
	copy(resized, data)
	return f.vol.commit(f.n, resized, f.now())
}

func (f *file) CurrVersion() (uint64, error) {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	return f.n.current().num, nil
}

func (f *file) VersionReader(num uint64) (storage.VersionReader, error) {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	ver, ok := f.n.version(num)
	if !ok {
		return nil, errors.New(errors.PhaseEngine, errors.KindEngine).
			Code(errors.CodeNoVersion).
			Path(f.path).
			Detail("version %d of %s", num, f.path).
			Build()
	}
	data, err := f.vol.content(ver)
	if err != nil {
		return nil, err
	}
	return &versionReader{
		Reader:  bytes.NewReader(data),
		version: storage.Version{Num: ver.num, ContentLen: ver.blob.size, CreatedAt: ver.createdAt},
	}, nil
}

func (f *file) Metadata() (storage.Metadata, error) {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	return f.n.metadata(), nil
}

func (f *file) History() ([]storage.Version, error) {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	return f.n.history(), nil
}

// Close discards uncommitted writes.
func (f *file) Close() error {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if f.writing {
		Logger().Warn("file closed with unfinished writes",
			zap.String("path", f.path), zap.Int("pending_bytes", len(f.pending)))
	}
	f.pending, f.writing, f.cache = nil, false, nil
	return nil
}

// versionReader reads an immutable snapshot of one version.
type versionReader struct {
	*bytes.Reader
	version storage.Version
}

var _ storage.VersionReader = (*versionReader)(nil)

func (r *versionReader) Version() (storage.Version, error) {
	return r.version, nil
}
