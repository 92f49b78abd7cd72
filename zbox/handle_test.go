package zbox

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/storage"
)

func TestHandle_Transitions(t *testing.T) {
	h := newHandle("native")
	if !h.isOpen() {
		t.Fatal("new handle should be open")
	}

	var got string
	err := h.do(repoClosed, func(s string) error {
		got = s
		return nil
	})
	if err != nil || got != "native" {
		t.Fatalf("do = %q, %v", got, err)
	}

	native, ok := h.close()
	if !ok || native != "native" {
		t.Fatalf("first close = %q, %v", native, ok)
	}
	if _, ok := h.close(); ok {
		t.Error("second close returned the native handle again")
	}

	called := false
	err = h.do(repoClosed, func(string) error {
		called = true
		return nil
	})
	if called {
		t.Error("closed handle ran the operation")
	}
	if errors.CodeOf(err) != errors.CodeRepoClosed {
		t.Errorf("closed error = %v", err)
	}
}

func TestHandle_ZeroValueIsClosed(t *testing.T) {
	var h handle[int]
	if h.isOpen() {
		t.Error("zero handle reported open")
	}
	if _, ok := h.close(); ok {
		t.Error("zero handle returned a native value")
	}
}

func TestClosedHandles_NeverDelegate(t *testing.T) {
	e := &mockEngine{}
	z := New(e)
	repo, err := z.NewRepoOpener().Open("mock://r", "pwd")
	if err != nil {
		t.Fatal(err)
	}
	f, err := repo.CreateFile("/f")
	if err != nil {
		t.Fatal(err)
	}
	vr, err := f.VersionReader(1)
	if err != nil {
		t.Fatal(err)
	}

	for _, c := range []interface{ Close() error }{vr, f, repo} {
		if err := c.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		if err := c.Close(); err != nil {
			t.Fatalf("second close: %v", err)
		}
	}
	if got := e.closes.Load(); got != 3 {
		t.Errorf("native closes = %d, want 3", got)
	}

	before := e.calls.Load()
	buf := make([]byte, 4)

	repoOps := map[string]func() error{
		"info":          func() error { _, err := repo.Info(); return err },
		"resetPassword": func() error { return repo.ResetPassword("a", "b") },
		"pathExists":    func() error { _, err := repo.PathExists("/"); return err },
		"isFile":        func() error { _, err := repo.IsFile("/f"); return err },
		"isDir":         func() error { _, err := repo.IsDir("/"); return err },
		"createFile":    func() error { _, err := repo.CreateFile("/g"); return err },
		"openFile":      func() error { _, err := repo.OpenFile("/f"); return err },
		"openOptions":   func() error { _, err := NewOpenOptions().Write(true).Open(repo, "/f"); return err },
		"createDir":     func() error { return repo.CreateDir("/d") },
		"createDirAll":  func() error { return repo.CreateDirAll("/d/e") },
		"readDir":       func() error { _, err := repo.ReadDir("/"); return err },
		"metadata":      func() error { _, err := repo.Metadata("/f"); return err },
		"history":       func() error { _, err := repo.History("/f"); return err },
		"copy":          func() error { return repo.Copy("/f", "/g") },
		"copyDirAll":    func() error { return repo.CopyDirAll("/d", "/e") },
		"removeFile":    func() error { return repo.RemoveFile("/f") },
		"removeDir":     func() error { return repo.RemoveDir("/d") },
		"removeDirAll":  func() error { return repo.RemoveDirAll("/d") },
		"rename":        func() error { return repo.Rename("/f", "/g") },
	}
	for name, op := range repoOps {
		if code := errors.CodeOf(op()); code != errors.CodeRepoClosed {
			t.Errorf("repo %s after close: code %d", name, code)
		}
	}

	fileOps := map[string]func() error{
		"read":          func() error { _, err := f.Read(buf); return err },
		"readAll":       func() error { _, err := f.ReadAll(); return err },
		"write":         func() error { _, err := f.Write(buf); return err },
		"finish":        func() error { return f.Finish() },
		"writeOnce":     func() error { return f.WriteOnce(buf) },
		"seek":          func() error { _, err := f.Seek(0, 0); return err },
		"seekBadWhence": func() error { _, err := f.Seek(7, 0); return err },
		"setLen":        func() error { return f.SetLen(1) },
		"currVersion":   func() error { _, err := f.CurrVersion(); return err },
		"versionReader": func() error { _, err := f.VersionReader(1); return err },
		"metadata":      func() error { _, err := f.Metadata(); return err },
		"history":       func() error { _, err := f.History(); return err },
	}
	for name, op := range fileOps {
		if code := errors.CodeOf(op()); code != errors.CodeClosed {
			t.Errorf("file %s after close: code %d", name, code)
		}
	}

	readerOps := map[string]func() error{
		"version": func() error { _, err := vr.Version(); return err },
		"read":    func() error { _, err := vr.Read(buf); return err },
		"readAll": func() error { _, err := vr.ReadAll(); return err },
		"seek":    func() error { _, err := vr.Seek(1, 0); return err },
	}
	for name, op := range readerOps {
		if code := errors.CodeOf(op()); code != errors.CodeClosed {
			t.Errorf("version reader %s after close: code %d", name, code)
		}
	}

	if after := e.calls.Load(); after != before {
		t.Errorf("closed handles made %d engine calls", after-before)
	}
}

func TestClosedHandles_ErrorsAreBridged(t *testing.T) {
	e := &mockEngine{}
	repo, _ := New(e).NewRepoOpener().Open("mock://r", "pwd")
	_ = repo.Close()

	_, err := repo.Info()
	var he *errors.HostError
	if !stderrors.As(err, &he) {
		t.Fatalf("error %T is not a HostError", err)
	}
	if he.Code != errors.CodeRepoClosed {
		t.Errorf("code = %d", he.Code)
	}
	want := errors.Render(errors.CodeRepoClosed, errors.CodeRepoClosed.Description()+": repo is closed")
	if he.Error() != want {
		t.Errorf("message = %q, want %q", he.Error(), want)
	}
}

func TestRepo_StaticOpsIgnoreState(t *testing.T) {
	e := &mockEngine{}
	repo, _ := New(e).NewRepoOpener().Open("mock://r", "pwd")
	_ = repo.Close()

	before := e.calls.Load()
	if ok, err := repo.Exists("mock://r"); err != nil || !ok {
		t.Errorf("Exists = %v, %v", ok, err)
	}
	if err := repo.RepairSuperBlock("mock://r", "pwd"); err != nil {
		t.Error(err)
	}
	if err := repo.Destroy("mock://r"); err != nil {
		t.Error(err)
	}
	if got := e.calls.Load() - before; got != 3 {
		t.Errorf("static calls = %d, want 3", got)
	}
}

func TestBuilders_AreConsumed(t *testing.T) {
	e := &mockEngine{}
	z := New(e)

	opener := z.NewRepoOpener().Create(true)
	repo, err := opener.Open("mock://r", "pwd")
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()

	before := e.calls.Load()
	_, err = opener.Open("mock://r", "pwd")
	if errors.CodeOf(err) != errors.CodeInvalidArgument {
		t.Errorf("reused opener: %v", err)
	}
	if e.calls.Load() != before {
		t.Error("reused opener reached the engine")
	}

	oo := NewOpenOptions().Read(true)
	f, err := oo.Open(repo, "/f")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	before = e.calls.Load()
	_, err = oo.Open(repo, "/f")
	if errors.CodeOf(err) != errors.CodeInvalidArgument {
		t.Errorf("reused options: %v", err)
	}
	if e.calls.Load() != before {
		t.Error("reused options reached the engine")
	}
}

func TestBuilders_Options(t *testing.T) {
	z := New(&mockEngine{})
	ro := z.NewRepoOpener().CreateNew(true).Compress(true).VersionLimit(3).
		DedupChunk(false).ReadOnly(true).Force(true).Cipher(storage.CipherAes).
		OpsLimit(storage.OpsModerate).MemLimit(storage.MemSensitive).Options()
	want := storage.RepoOptions{
		Create: true, CreateNew: true, Compress: true, ReadOnly: true, Force: true,
		VersionLimit: 3, Cipher: storage.CipherAes,
		OpsLimit: storage.OpsModerate, MemLimit: storage.MemSensitive,
	}
	if ro != want {
		t.Errorf("repo options = %+v, want %+v", ro, want)
	}

	def := z.NewRepoOpener().Options()
	if def.VersionLimit != storage.DefaultVersionLimit || !def.DedupChunk ||
		def.Cipher != storage.CipherXchacha || def.OpsLimit != storage.OpsInteractive {
		t.Errorf("default repo options = %+v", def)
	}

	fo := NewOpenOptions().CreateNew(true).Append(true).Truncate(true).VersionLimit(2).DedupChunk(true).Options()
	if !fo.Read || !fo.Write || !fo.Create || !fo.CreateNew || !fo.Append || !fo.Truncate {
		t.Errorf("file options = %+v", fo)
	}
	if fo.VersionLimit == nil || *fo.VersionLimit != 2 || fo.DedupChunk == nil || !*fo.DedupChunk {
		t.Errorf("file overrides = %v %v", fo.VersionLimit, fo.DedupChunk)
	}
	if NewOpenOptions().Create(true).Options().Write != true {
		t.Error("create should imply write")
	}
}
