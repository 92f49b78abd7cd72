package zbox

import (
	"io"
	"runtime"

	"go.uber.org/zap"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/storage"
)

// File is an open file handle.
type File struct {
	h    *handle[storage.File]
	path string
}

var (
	_ io.Reader = (*File)(nil)
	_ io.Writer = (*File)(nil)
)

func newFile(native storage.File, path string) *File {
	f := &File{h: newHandle(native), path: path}
	trackOpen(kindFile)
	runtime.SetFinalizer(f, (*File).finalize)
	return f
}

func fileClosed() error {
	return errors.Closed("file")
}

func (f *File) call(op string, fn func(storage.File) error) error {
	return observe(kindFile, op, f.h.do(fileClosed, fn))
}

// Path returns the path the file was opened with.
func (f *File) Path() string {
	return f.path
}

// IsOpen reports whether the file has not been closed.
func (f *File) IsOpen() bool {
	return f.h.isOpen()
}

// Close releases the file, discarding unfinished writes. Later calls do
// nothing.
func (f *File) Close() error {
	runtime.SetFinalizer(f, nil)
	native, ok := f.h.close()
	if !ok {
		return nil
	}
	return release(kindFile, native)
}

func (f *File) finalize() {
	if native, ok := f.h.close(); ok {
		Logger().Warn("file collected without close", zap.String("path", f.path))
		_ = release(kindFile, native)
	}
}

// Read reads from the current position. It returns io.EOF at the end.
func (f *File) Read(p []byte) (int, error) {
	var n int
	err := f.call("read", func(nf storage.File) (err error) {
		n, err = nf.Read(p)
		return err
	})
	return n, err
}

// ReadAll reads from the current position to the end.
func (f *File) ReadAll() ([]byte, error) {
	var data []byte
	err := f.call("readAll", func(nf storage.File) (err error) {
		data, err = io.ReadAll(nf)
		return err
	})
	return data, err
}

// Write stages p at the current position. Finish commits staged writes.
func (f *File) Write(p []byte) (int, error) {
	var n int
	err := f.call("write", func(nf storage.File) (err error) {
		n, err = nf.Write(p)
		return err
	})
	return n, err
}

// Finish commits staged writes as a new version.
func (f *File) Finish() error {
	return f.call("finish", func(nf storage.File) error {
		return nf.Finish()
	})
}

// WriteOnce replaces the content with p as a single new version.
func (f *File) WriteOnce(p []byte) error {
	return f.call("writeOnce", func(nf storage.File) error {
		return nf.WriteOnce(p)
	})
}

// Seek moves the position. An unknown whence fails before the engine is
// called.
func (f *File) Seek(whence uint32, offset int32) (uint32, error) {
	var pos uint32
	err := f.call("seek", func(nf storage.File) error {
		d, err := ParseSeek(whence, offset)
		if err != nil {
			return err
		}
		pos, err = seekOn(nf, d)
		return err
	})
	return pos, err
}

// SetLen truncates or extends the file and commits a new version.
func (f *File) SetLen(n uint64) error {
	return f.call("setLen", func(nf storage.File) error {
		return nf.SetLen(n)
	})
}

// CurrVersion returns the current version number.
func (f *File) CurrVersion() (uint64, error) {
	var v uint64
	err := f.call("currVersion", func(nf storage.File) (err error) {
		v, err = nf.CurrVersion()
		return err
	})
	return v, err
}

// VersionReader opens a reader over version num.
func (f *File) VersionReader(num uint64) (*VersionReader, error) {
	var native storage.VersionReader
	err := f.call("versionReader", func(nf storage.File) (err error) {
		native, err = nf.VersionReader(num)
		return err
	})
	if err != nil {
		return nil, err
	}
	return newVersionReader(native, f.path), nil
}

// Metadata returns the file metadata.
func (f *File) Metadata() (Metadata, error) {
	var md storage.Metadata
	err := f.call("metadata", func(nf storage.File) (err error) {
		md, err = nf.Metadata()
		return err
	})
	if err != nil {
		return Metadata{}, err
	}
	return metadataOf(md), nil
}

// History returns the retained versions.
func (f *File) History() ([]Version, error) {
	var hist []storage.Version
	err := f.call("history", func(nf storage.File) (err error) {
		hist, err = nf.History()
		return err
	})
	if err != nil {
		return nil, err
	}
	return versionsOf(hist), nil
}

// VersionReader reads one historical version of a file.
type VersionReader struct {
	h    *handle[storage.VersionReader]
	path string
}

var _ io.Reader = (*VersionReader)(nil)

func newVersionReader(native storage.VersionReader, path string) *VersionReader {
	r := &VersionReader{h: newHandle(native), path: path}
	trackOpen(kindVersionReader)
	runtime.SetFinalizer(r, (*VersionReader).finalize)
	return r
}

func readerClosed() error {
	return errors.Closed("version reader")
}

func (r *VersionReader) call(op string, fn func(storage.VersionReader) error) error {
	return observe(kindVersionReader, op, r.h.do(readerClosed, fn))
}

// IsOpen reports whether the reader has not been closed.
func (r *VersionReader) IsOpen() bool {
	return r.h.isOpen()
}

// Close releases the reader. Later calls do nothing.
func (r *VersionReader) Close() error {
	runtime.SetFinalizer(r, nil)
	native, ok := r.h.close()
	if !ok {
		return nil
	}
	return release(kindVersionReader, native)
}

func (r *VersionReader) finalize() {
	if native, ok := r.h.close(); ok {
		Logger().Warn("version reader collected without close", zap.String("path", r.path))
		_ = release(kindVersionReader, native)
	}
}

// Version describes the version being read.
func (r *VersionReader) Version() (Version, error) {
	var v storage.Version
	err := r.call("version", func(n storage.VersionReader) (err error) {
		v, err = n.Version()
		return err
	})
	if err != nil {
		return Version{}, err
	}
	return versionOf(v), nil
}

// Read reads from the version. io.EOF passes through unchanged.
func (r *VersionReader) Read(p []byte) (int, error) {
	var n int
	err := r.call("read", func(nr storage.VersionReader) (err error) {
		n, err = nr.Read(p)
		return err
	})
	return n, err
}

// ReadAll reads the rest of the version.
func (r *VersionReader) ReadAll() ([]byte, error) {
	var data []byte
	err := r.call("readAll", func(nr storage.VersionReader) (err error) {
		data, err = io.ReadAll(nr)
		return err
	})
	return data, err
}

// Seek moves the read position. See ParseSeek for whence values.
func (r *VersionReader) Seek(whence uint32, offset int32) (uint32, error) {
	var pos uint32
	err := r.call("seek", func(nr storage.VersionReader) error {
		d, err := ParseSeek(whence, offset)
		if err != nil {
			return err
		}
		pos, err = seekOn(nr, d)
		return err
	})
	return pos, err
}
