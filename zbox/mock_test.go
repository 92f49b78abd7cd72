package zbox

import (
	"io"
	"sync/atomic"

	"github.com/wippyai/zbox-host/storage"
)

// mockEngine counts every delegated call so tests can assert that closed
// handles never reach it.
type mockEngine struct {
	calls  atomic.Int64
	closes atomic.Int64
}

func (e *mockEngine) hit() { e.calls.Add(1) }

func (e *mockEngine) Version() string                    { e.hit(); return "mock 1.0" }
func (e *mockEngine) Init() error                        { e.hit(); return nil }
func (e *mockEngine) Exists(string) (bool, error)        { e.hit(); return true, nil }
func (e *mockEngine) RepairSuperBlock(_, _ string) error { e.hit(); return nil }
func (e *mockEngine) Destroy(string) error               { e.hit(); return nil }

func (e *mockEngine) Open(string, string, storage.RepoOptions) (storage.Repo, error) {
	e.hit()
	return &mockRepo{e: e}, nil
}

type mockRepo struct{ e *mockEngine }

func (r *mockRepo) Close() error { r.e.closes.Add(1); return nil }

func (r *mockRepo) Info() (storage.RepoInfo, error) { r.e.hit(); return storage.RepoInfo{}, nil }
func (r *mockRepo) ResetPassword(_, _ string, _ storage.OpsLimit, _ storage.MemLimit) error {
	r.e.hit()
	return nil
}
func (r *mockRepo) PathExists(string) (bool, error) { r.e.hit(); return true, nil }
func (r *mockRepo) IsFile(string) (bool, error)     { r.e.hit(); return true, nil }
func (r *mockRepo) IsDir(string) (bool, error)      { r.e.hit(); return false, nil }
func (r *mockRepo) CreateFile(string) (storage.File, error) {
	r.e.hit()
	return &mockFile{e: r.e}, nil
}
func (r *mockRepo) OpenFile(string, storage.FileOptions) (storage.File, error) {
	r.e.hit()
	return &mockFile{e: r.e}, nil
}
func (r *mockRepo) CreateDir(string) error                     { r.e.hit(); return nil }
func (r *mockRepo) CreateDirAll(string) error                  { r.e.hit(); return nil }
func (r *mockRepo) ReadDir(string) ([]storage.DirEntry, error) { r.e.hit(); return nil, nil }
func (r *mockRepo) Metadata(string) (storage.Metadata, error)  { r.e.hit(); return storage.Metadata{}, nil }
func (r *mockRepo) History(string) ([]storage.Version, error)  { r.e.hit(); return nil, nil }
func (r *mockRepo) Copy(_, _ string) error                     { r.e.hit(); return nil }
func (r *mockRepo) CopyDirAll(_, _ string) error               { r.e.hit(); return nil }
func (r *mockRepo) RemoveFile(string) error                    { r.e.hit(); return nil }
func (r *mockRepo) RemoveDir(string) error                     { r.e.hit(); return nil }
func (r *mockRepo) RemoveDirAll(string) error                  { r.e.hit(); return nil }
func (r *mockRepo) Rename(_, _ string) error                   { r.e.hit(); return nil }

type mockFile struct{ e *mockEngine }

func (f *mockFile) Close() error                        { f.e.closes.Add(1); return nil }
func (f *mockFile) Read([]byte) (int, error)            { f.e.hit(); return 0, io.EOF }
func (f *mockFile) Write(p []byte) (int, error)         { f.e.hit(); return len(p), nil }
func (f *mockFile) Seek(int64, int) (int64, error)      { f.e.hit(); return 0, nil }
func (f *mockFile) Finish() error                       { f.e.hit(); return nil }
func (f *mockFile) WriteOnce([]byte) error              { f.e.hit(); return nil }
func (f *mockFile) SetLen(uint64) error                 { f.e.hit(); return nil }
func (f *mockFile) CurrVersion() (uint64, error)        { f.e.hit(); return 1, nil }
func (f *mockFile) Metadata() (storage.Metadata, error) { f.e.hit(); return storage.Metadata{}, nil }
func (f *mockFile) History() ([]storage.Version, error) { f.e.hit(); return nil, nil }
func (f *mockFile) VersionReader(uint64) (storage.VersionReader, error) {
	f.e.hit()
	return &mockReader{e: f.e}, nil
}

type mockReader struct{ e *mockEngine }

func (r *mockReader) Close() error                      { r.e.closes.Add(1); return nil }
func (r *mockReader) Read([]byte) (int, error)          { r.e.hit(); return 0, io.EOF }
func (r *mockReader) Seek(int64, int) (int64, error)    { r.e.hit(); return 0, nil }
func (r *mockReader) Version() (storage.Version, error) { r.e.hit(); return storage.Version{}, nil }
