package zbox_test

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/memstore"
	"github.com/wippyai/zbox-host/random"
	"github.com/wippyai/zbox-host/zbox"
)

func newZbox(t *testing.T) (*zbox.Zbox, *zbox.Repo) {
	t.Helper()
	z := zbox.New(memstore.New())
	if err := z.InitEnv("off"); err != nil {
		t.Fatal(err)
	}
	repo, err := z.NewRepoOpener().Create(true).Open("mem://"+strings.ReplaceAll(t.Name(), "/", "_"), "pwd")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return z, repo
}

func TestFile_RoundTrip(t *testing.T) {
	_, repo := newZbox(t)
	payload := []byte("the quick brown fox")

	f, err := repo.CreateFile("/fox.txt")
	if err != nil {
		t.Fatal(err)
	}
	n, err := f.Write(payload)
	if err != nil || n != len(payload) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if err := f.Finish(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f, err = repo.OpenFile("/fox.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := f.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("ReadAll = %q, want %q", got, payload)
	}
}

func TestFile_Seek(t *testing.T) {
	_, repo := newZbox(t)
	f, _ := repo.CreateFile("/s")
	defer f.Close()
	content := []byte("0123456789")
	if err := f.WriteOnce(content); err != nil {
		t.Fatal(err)
	}

	pos, err := f.Seek(uint32(zbox.SeekEnd), 0)
	if err != nil || pos != uint32(len(content)) {
		t.Fatalf("seek end = %d, %v", pos, err)
	}

	_, err = f.Seek(5, 0)
	if errors.CodeOf(err) != errors.CodeInvalidArgument {
		t.Errorf("bad whence: %v", err)
	}
	if pos, _ := f.Seek(uint32(zbox.SeekCurrent), 0); pos != uint32(len(content)) {
		t.Errorf("bad whence moved position to %d", pos)
	}

	if _, err := f.Seek(uint32(zbox.SeekStart), 0); err != nil {
		t.Fatal(err)
	}
	all, _ := f.ReadAll()
	if len(all) != len(content) {
		t.Errorf("read %d bytes after seek start, want %d", len(all), len(content))
	}

	_, _ = f.Seek(uint32(zbox.SeekEnd), -3)
	buf := make([]byte, 8)
	n, _ := f.Read(buf)
	if string(buf[:n]) != "789" {
		t.Errorf("tail = %q", buf[:n])
	}
	if _, err := f.Read(buf); err != io.EOF {
		t.Errorf("read at end = %v, want io.EOF", err)
	}
}

func TestFile_WriteOnceOverwritesAtCursor(t *testing.T) {
	_, repo := newZbox(t)
	f, _ := repo.CreateFile("/doc")
	defer f.Close()
	if err := f.WriteOnce([]byte{1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.Seek(uint32(zbox.SeekStart), 0); err != nil {
		t.Fatal(err)
	}
	dst := make([]byte, 2)
	if n, _ := f.Read(dst); n != 2 || !bytes.Equal(dst, []byte{1, 2}) {
		t.Fatalf("read = %v", dst[:n])
	}

	if err := f.WriteOnce([]byte{7, 8}); err != nil {
		t.Fatal(err)
	}
	pos, err := f.Seek(uint32(zbox.SeekCurrent), -2)
	if err != nil || pos != 2 {
		t.Fatalf("seek back = %d, %v", pos, err)
	}
	if n, _ := f.Read(dst); n != 2 || !bytes.Equal(dst, []byte{7, 8}) {
		t.Errorf("read after writeOnce = %v", dst[:n])
	}

	_, _ = f.Seek(uint32(zbox.SeekStart), 0)
	all, _ := f.ReadAll()
	if !bytes.Equal(all, []byte{1, 2, 7, 8, 5, 6}) {
		t.Errorf("content = %v", all)
	}
}

func TestVersionReader(t *testing.T) {
	_, repo := newZbox(t)
	f, _ := repo.CreateFile("/v")
	defer f.Close()
	_ = f.WriteOnce([]byte("first"))
	_ = f.WriteOnce([]byte("second"))

	cur, err := f.CurrVersion()
	if err != nil || cur != 3 {
		t.Fatalf("CurrVersion = %d, %v", cur, err)
	}
	hist, _ := f.History()
	if len(hist) != 3 {
		t.Fatalf("history = %+v", hist)
	}

	vr, err := f.VersionReader(2)
	if err != nil {
		t.Fatal(err)
	}
	defer vr.Close()
	v, _ := vr.Version()
	if v.Num != 2 || v.ContentLen != 5 {
		t.Errorf("version = %+v", v)
	}
	data, _ := vr.ReadAll()
	if string(data) != "first" {
		t.Errorf("version 2 = %q", data)
	}
	if pos, _ := vr.Seek(uint32(zbox.SeekStart), 1); pos != 1 {
		t.Errorf("reader seek = %d", pos)
	}
	rest, _ := vr.ReadAll()
	if string(rest) != "irst" {
		t.Errorf("after seek = %q", rest)
	}

	_, err = f.VersionReader(99)
	if errors.CodeOf(err) != errors.CodeNoVersion {
		t.Errorf("missing version: %v", err)
	}
}

func TestErrors_RenderEngineName(t *testing.T) {
	_, repo := newZbox(t)
	_, err := repo.OpenFile("/does/not/exist")
	if err == nil {
		t.Fatal("expected an error")
	}
	var he *errors.HostError
	if !stderrors.As(err, &he) {
		t.Fatalf("error %T is not a HostError", err)
	}
	if he.Code == 0 {
		t.Error("code is zero")
	}
	if !strings.Contains(err.Error(), errors.EngineName+"(") {
		t.Errorf("message %q lacks engine name", err.Error())
	}
}

func TestRepo_Operations(t *testing.T) {
	z, repo := newZbox(t)

	if err := repo.CreateDirAll("/a/b"); err != nil {
		t.Fatal(err)
	}
	f, _ := repo.CreateFile("/a/b/f")
	_ = f.WriteOnce([]byte("x"))
	_ = f.Close()

	if ok, _ := repo.IsDir("/a"); !ok {
		t.Error("/a is not a dir")
	}
	if ok, _ := repo.IsFile("/a/b/f"); !ok {
		t.Error("/a/b/f is not a file")
	}
	entries, err := repo.ReadDir("/a/b")
	if err != nil || len(entries) != 1 || entries[0].FileName != "f" {
		t.Fatalf("ReadDir = %+v, %v", entries, err)
	}

	if err := repo.Copy("/a/b/f", "/g"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Rename("/g", "/h"); err != nil {
		t.Fatal(err)
	}
	md, _ := repo.Metadata("/h")
	if md.ContentLen != 1 {
		t.Errorf("metadata = %+v", md)
	}
	if err := repo.CopyDirAll("/a", "/c"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := repo.PathExists("/c/b/f"); !ok {
		t.Error("copied tree missing")
	}
	if err := repo.RemoveDirAll("/c"); err != nil {
		t.Fatal(err)
	}
	if err := repo.RemoveFile("/h"); err != nil {
		t.Fatal(err)
	}

	info, err := repo.Info()
	if err != nil {
		t.Fatal(err)
	}
	if info.URI != repo.URI() || info.VolumeID == "" || info.CreatedAt == 0 {
		t.Errorf("info = %+v", info)
	}
	if err := repo.ResetPassword("pwd", "new"); err != nil {
		t.Fatal(err)
	}

	if ok, _ := z.Exists(repo.URI()); !ok {
		t.Error("repo does not exist")
	}
	if err := z.Destroy(repo.URI()); errors.CodeOf(err) != errors.CodeRepoOpened {
		t.Errorf("destroy open repo: %v", err)
	}
	_ = repo.Close()
	if err := z.Destroy(repo.URI()); err != nil {
		t.Fatal(err)
	}
	if ok, _ := z.Exists(repo.URI()); ok {
		t.Error("repo still exists after destroy")
	}
}

func TestHostTypes_JSON(t *testing.T) {
	_, repo := newZbox(t)
	f, _ := repo.CreateFile("/j")
	defer f.Close()

	md, _ := f.Metadata()
	data, err := json.Marshal(md)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	for _, key := range []string{"fileType", "contentLen", "currVersion", "createdAt", "modifiedAt"} {
		if _, ok := m[key]; !ok {
			t.Errorf("metadata JSON lacks %q: %s", key, data)
		}
	}
	if m["fileType"] != "File" {
		t.Errorf("fileType = %v", m["fileType"])
	}
	if created := int64(m["createdAt"].(float64)); time.Since(time.Unix(created, 0)) > time.Hour {
		t.Errorf("createdAt = %d is not unix seconds", created)
	}

	info, _ := repo.Info()
	data, _ = json.Marshal(info)
	for _, key := range []string{`"volumeId"`, `"versionLimit"`, `"dedupChunk"`, `"isReadOnly"`} {
		if !bytes.Contains(data, []byte(key)) {
			t.Errorf("info JSON lacks %s: %s", key, data)
		}
	}
}

func TestZbox_VersionAndInitEnv(t *testing.T) {
	z := zbox.New(memstore.New())
	if z.ZboxVersion() != memstore.EngineVersion {
		t.Errorf("ZboxVersion = %q", z.ZboxVersion())
	}
	for _, level := range []string{"off", "debug", "info", "warn", "error", "nonsense", "TRACE"} {
		if err := z.InitEnv(level); err != nil {
			t.Errorf("InitEnv(%q): %v", level, err)
		}
	}
	zbox.SetLogger(nil)
	memstore.SetLogger(nil)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"off", "", false},
		{"OFF", "", false},
		{"debug", "debug", true},
		{"trace", "debug", true},
		{"info", "info", true},
		{"warn", "warn", true},
		{"error", "error", true},
		{"verbose", "warn", true},
		{"", "warn", true},
	}
	for _, tt := range tests {
		lvl, ok := zbox.ParseLevel(tt.in)
		if ok != tt.wantOK {
			t.Errorf("ParseLevel(%q) ok = %v", tt.in, ok)
			continue
		}
		if ok && lvl.String() != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, lvl, tt.want)
		}
	}
}

func TestZbox_LoggerSinks(t *testing.T) {
	var got []*zap.Logger
	z := zbox.New(memstore.New(), zbox.WithLoggerSink(func(l *zap.Logger) {
		got = append(got, l)
	}))
	if err := z.InitEnv("error"); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] == nil || got[0].Core().Enabled(zap.WarnLevel) {
		t.Errorf("sink received %v", got)
	}
	zbox.SetLogger(nil)
	memstore.SetLogger(nil)
}

func TestZbox_RandomUint32(t *testing.T) {
	z := zbox.New(memstore.New())
	seen := make(map[uint32]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		seen[z.RandomUint32()] = struct{}{}
	}
	if len(seen) < 990 {
		t.Errorf("only %d distinct values in 1000 draws", len(seen))
	}

	var n byte
	fixed := zbox.New(memstore.New(), zbox.WithRandomSource(random.SourceFunc(func(p []byte) error {
		for i := range p {
			n++
			p[i] = n
		}
		return nil
	})))
	if got := fixed.RandomUint32(); got != 0x04030201 {
		t.Errorf("RandomUint32 = %#x, want little-endian 0x04030201", got)
	}

	broken := zbox.New(memstore.New(), zbox.WithRandomSource(random.SourceFunc(func([]byte) error {
		return io.ErrUnexpectedEOF
	})))
	fault := errors.Catch(func() { broken.RandomUint32() })
	if fault == nil || fault.Reason != errors.FaultEntropy {
		t.Errorf("fault = %v", fault)
	}
}
