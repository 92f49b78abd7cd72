package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/memstore"
	"github.com/wippyai/zbox-host/resource"
	"github.com/wippyai/zbox-host/zbox"
)

func newDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d := New(zbox.New(memstore.New()))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// send dispatches one message and fails the test on error.
func send(t *testing.T, d *Dispatcher, scope, typ string, object resource.Handle, params any) any {
	t.Helper()
	reply := sendRaw(t, d, scope, typ, object, params)
	if reply.Error != nil {
		t.Fatalf("%s.%s failed: %s", scope, typ, reply.Error.Message)
	}
	return reply.Result
}

func sendRaw(t *testing.T, d *Dispatcher, scope, typ string, object resource.Handle, params any) Message {
	t.Helper()
	msg := Message{ID: 1, Scope: scope, Type: typ, Object: object}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			t.Fatal(err)
		}
		msg.Params = raw
	}
	return d.Dispatch(context.Background(), msg)
}

func expectFailure(t *testing.T, reply Message, code errors.Code) {
	t.Helper()
	if reply.Error == nil {
		t.Fatalf("%s.%s succeeded, want code %d", reply.Scope, reply.Type, code)
	}
	if reply.Error.Code != code {
		t.Fatalf("%s.%s code = %d, want %d (%s)", reply.Scope, reply.Type, reply.Error.Code, code, reply.Error.Message)
	}
	if !strings.HasPrefix(reply.Error.Message, errors.EngineName+"(") {
		t.Errorf("message %q is not rendered", reply.Error.Message)
	}
}

func openRepo(t *testing.T, d *Dispatcher, uri string) {
	t.Helper()
	send(t, d, ScopeZbox, "openRepo", 0, OpenRepoParams{
		URI: uri, Pwd: "pwd", Opts: &RepoOpts{Create: boolPtr(true)},
	})
}

func boolPtr(b bool) *bool { return &b }

func TestDispatcher_Session(t *testing.T) {
	d := newDispatcher(t)
	send(t, d, ScopeZbox, "initEnv", 0, InitEnvParams{LogLevel: "off"})
	if v := send(t, d, ScopeZbox, "version", 0, nil); v != memstore.EngineVersion {
		t.Errorf("version = %v", v)
	}
	if ok := send(t, d, ScopeZbox, "exists", 0, "mem://session"); ok != false {
		t.Errorf("exists before open = %v", ok)
	}
	openRepo(t, d, "mem://session")

	h := send(t, d, ScopeRepo, "createFile", 0, "/hello.txt").(resource.Handle)
	send(t, d, ScopeFile, "writeOnce", h, WriteParams{Text: "hello world"})
	if v := send(t, d, ScopeFile, "currVersion", h, nil); v != uint64(2) {
		t.Errorf("currVersion = %v", v)
	}
	send(t, d, ScopeFile, "close", h, nil)

	rh := send(t, d, ScopeRepo, "openFile", 0, "/hello.txt").(resource.Handle)
	if s := send(t, d, ScopeFile, "readAllString", rh, nil); s != "hello world" {
		t.Errorf("readAllString = %v", s)
	}
	if pos := send(t, d, ScopeFile, "seek", rh, SeekParams{From: 0, Offset: 6}); pos != uint32(6) {
		t.Errorf("seek = %v", pos)
	}
	chunk := send(t, d, ScopeFile, "read", rh, ReadParams{Len: 3}).(ReadResult)
	if string(chunk.Data) != "wor" || chunk.Len != 3 {
		t.Errorf("read = %+v", chunk)
	}
	send(t, d, ScopeFile, "seek", rh, SeekParams{From: 1, Offset: 0})
	end := send(t, d, ScopeFile, "read", rh, ReadParams{Len: 3}).(ReadResult)
	if end.Len != 0 {
		t.Errorf("read at end = %+v", end)
	}

	vh := send(t, d, ScopeFile, "versionReader", rh, 2).(resource.Handle)
	if ver := send(t, d, ScopeVersionReader, "version", vh, nil).(zbox.Version); ver.Num != 2 {
		t.Errorf("version = %+v", ver)
	}
	if data := send(t, d, ScopeVersionReader, "readAll", vh, nil).([]byte); string(data) != "hello world" {
		t.Errorf("reader readAll = %q", data)
	}
	send(t, d, ScopeVersionReader, "close", vh, nil)
	send(t, d, ScopeFile, "close", rh, nil)

	if files, readers := d.Opened(); files != 0 || readers != 0 {
		t.Errorf("opened = %d files, %d readers", files, readers)
	}
}

func TestDispatcher_RepoOperations(t *testing.T) {
	d := newDispatcher(t)
	openRepo(t, d, "mem://ops")

	send(t, d, ScopeRepo, "createDirAll", 0, "/a/b")
	wh := send(t, d, ScopeRepo, "openFile", 0, OpenFileParams{
		Path: "/a/b/f", Opts: &FileOpts{Create: boolPtr(true)},
	}).(resource.Handle)
	if n := send(t, d, ScopeFile, "write", wh, WriteParams{Data: []byte{1, 2, 3}}); n != 3 {
		t.Errorf("write = %v", n)
	}
	send(t, d, ScopeFile, "finish", wh, nil)
	send(t, d, ScopeFile, "setLen", wh, 5)
	md := send(t, d, ScopeFile, "metadata", wh, nil).(zbox.Metadata)
	if md.ContentLen != 5 {
		t.Errorf("metadata = %+v", md)
	}
	send(t, d, ScopeFile, "close", wh, nil)

	send(t, d, ScopeRepo, "copy", 0, FromToParams{From: "/a/b/f", To: "/g"})
	send(t, d, ScopeRepo, "rename", 0, FromToParams{From: "/g", To: "/h"})
	send(t, d, ScopeRepo, "copyDirAll", 0, FromToParams{From: "/a", To: "/c"})
	if ok := send(t, d, ScopeRepo, "isFile", 0, "/c/b/f"); ok != true {
		t.Error("copied file missing")
	}
	entries := send(t, d, ScopeRepo, "readDir", 0, "/").([]zbox.DirEntry)
	if len(entries) != 3 {
		t.Errorf("readDir = %+v", entries)
	}
	if hist := send(t, d, ScopeRepo, "history", 0, "/h").([]zbox.Version); len(hist) == 0 {
		t.Error("empty history")
	}
	send(t, d, ScopeRepo, "removeFile", 0, "/h")
	send(t, d, ScopeRepo, "removeDirAll", 0, "/c")
	send(t, d, ScopeRepo, "createDir", 0, "/e")
	send(t, d, ScopeRepo, "removeDir", 0, "/e")
	if ok := send(t, d, ScopeRepo, "pathExists", 0, "/e"); ok != false {
		t.Error("/e still exists")
	}
	if ok := send(t, d, ScopeRepo, "isDir", 0, "/a"); ok != true {
		t.Error("/a is not a dir")
	}
	info := send(t, d, ScopeRepo, "info", 0, nil).(zbox.RepoInfo)
	if info.URI != "mem://ops" {
		t.Errorf("info = %+v", info)
	}
	send(t, d, ScopeRepo, "resetPassword", 0, ResetPasswordParams{OldPwd: "pwd", NewPwd: "new"})
	send(t, d, ScopeRepo, "close", 0, nil)

	expectFailure(t, sendRaw(t, d, ScopeRepo, "info", 0, nil), errors.CodeRepoClosed)
	send(t, d, ScopeZbox, "destroy", 0, "mem://ops")
}

func TestDispatcher_Failures(t *testing.T) {
	d := newDispatcher(t)

	expectFailure(t, sendRaw(t, d, "bogus", "x", 0, nil), errors.CodeInvalidArgument)
	expectFailure(t, sendRaw(t, d, ScopeZbox, "", 0, nil), errors.CodeInvalidArgument)
	expectFailure(t, sendRaw(t, d, ScopeZbox, "nope", 0, nil), errors.CodeInvalidArgument)
	expectFailure(t, sendRaw(t, d, ScopeRepo, "info", 0, nil), errors.CodeRepoClosed)
	expectFailure(t, sendRaw(t, d, ScopeFile, "readAll", 7, nil), errors.CodeClosed)
	expectFailure(t, sendRaw(t, d, ScopeVersionReader, "readAll", 7, nil), errors.CodeClosed)
	expectFailure(t, sendRaw(t, d, ScopeZbox, "openRepo", 0, OpenRepoParams{URI: "mem://x"}), errors.CodeInvalidArgument)
	expectFailure(t, sendRaw(t, d, ScopeZbox, "openRepo", 0, OpenRepoParams{URI: "mem://x", Pwd: "p"}), errors.CodeNotFound)
	expectFailure(t, sendRaw(t, d, ScopeZbox, "exists", 0, ""), errors.CodeInvalidArgument)
	expectFailure(t, sendRaw(t, d, ScopeZbox, "exists", 0, 12), errors.CodeInvalidArgument)

	openRepo(t, d, "mem://fail")
	expectFailure(t, sendRaw(t, d, ScopeZbox, "openRepo", 0, OpenRepoParams{URI: "mem://other", Pwd: "p"}), errors.CodeRepoOpened)
	expectFailure(t, sendRaw(t, d, ScopeRepo, "openFile", 0, "/missing"), errors.CodeNotFound)
	expectFailure(t, sendRaw(t, d, ScopeRepo, "openFile", 0, OpenFileParams{
		Path: "/f", Opts: &FileOpts{Create: boolPtr(true), VersionLimit: new(uint8)},
	}), errors.CodeInvalidArgument)

	h := send(t, d, ScopeRepo, "createFile", 0, "/f").(resource.Handle)
	expectFailure(t, sendRaw(t, d, ScopeFile, "seek", h, SeekParams{From: 9}), errors.CodeInvalidArgument)
	expectFailure(t, sendRaw(t, d, ScopeFile, "read", h, ReadParams{}), errors.CodeInvalidArgument)
	expectFailure(t, sendRaw(t, d, ScopeFile, "finish", h, nil), errors.CodeNotWrite)
	expectFailure(t, sendRaw(t, d, ScopeFile, "versionReader", h, 42), errors.CodeNoVersion)
	expectFailure(t, sendRaw(t, d, ScopeVersionReader, "version", h, nil), errors.CodeClosed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reply := d.Dispatch(ctx, Message{Scope: ScopeZbox, Type: "version"})
	if reply.Error == nil || reply.Error.Code != errors.CodeUnknown {
		t.Errorf("cancelled dispatch = %+v", reply.Error)
	}
}

func TestDispatcher_CloseRepoWarnsAboutOpenObjects(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	d := newDispatcher(t)
	openRepo(t, d, "mem://warn")
	h := send(t, d, ScopeRepo, "createFile", 0, "/f").(resource.Handle)
	send(t, d, ScopeFile, "versionReader", h, 1)
	send(t, d, ScopeRepo, "close", 0, nil)

	if logs.FilterMessage("files still opened when closing repo").Len() != 1 {
		t.Errorf("missing file warning: %v", logs.All())
	}
	if logs.FilterMessage("version readers still opened when closing repo").Len() != 1 {
		t.Errorf("missing reader warning: %v", logs.All())
	}

	// objects stay usable after the repo handle closes
	if v := send(t, d, ScopeFile, "currVersion", h, nil); v != uint64(1) {
		t.Errorf("currVersion = %v", v)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if files, readers := d.Opened(); files != 0 || readers != 0 {
		t.Errorf("opened after Close = %d, %d", files, readers)
	}
}

func TestServe(t *testing.T) {
	d := newDispatcher(t)
	in := strings.Join([]string{
		`{"id":1,"scope":"zbox","type":"openRepo","params":{"uri":"mem://serve","pwd":"p","opts":{"create":true}}}`,
		`{"id":2,"scope":"repo","type":"createFile","params":"/a"}`,
		`{"id":3,"scope":"file","type":"writeOnce","object":1,"params":{"text":"hi"}}`,
		`{"id":4,"scope":"file","type":"seek","object":1,"params":{"from":0,"offset":0}}`,
		`{"id":5,"scope":"file","type":"readAllString","object":1}`,
		`{"id":6,"scope":"repo","type":"metadata","params":"/nope"}`,
	}, "\n")

	var out bytes.Buffer
	if err := d.Serve(context.Background(), strings.NewReader(in), &out); err != nil {
		t.Fatal(err)
	}

	dec := json.NewDecoder(&out)
	var replies []Message
	for dec.More() {
		var m Message
		if err := dec.Decode(&m); err != nil {
			t.Fatal(err)
		}
		replies = append(replies, m)
	}
	if len(replies) != 6 {
		t.Fatalf("got %d replies", len(replies))
	}
	for i, r := range replies[:5] {
		if r.ID != uint64(i+1) || r.Error != nil {
			t.Errorf("reply %d = %+v", i, r)
		}
	}
	if replies[3].Result != float64(0) {
		t.Errorf("seek = %v", replies[3].Result)
	}
	if replies[4].Result != "hi" {
		t.Errorf("readAllString = %v", replies[4].Result)
	}
	if replies[5].Error == nil || replies[5].Error.Code != errors.CodeNotFound {
		t.Errorf("metadata of missing path = %+v", replies[5])
	}

	err := d.Serve(context.Background(), strings.NewReader("{not json"), &out)
	if err == nil {
		t.Error("malformed input accepted")
	}
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"scope"`, `"versionReader"`, `"object"`, `"params"`} {
		if !bytes.Contains(data, []byte(want)) {
			t.Errorf("schema lacks %s", want)
		}
	}

	data, err = ParamsSchema(ScopeZbox, "openRepo")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"versionLimit"`)) || !bytes.Contains(data, []byte(`"uri"`)) {
		t.Errorf("openRepo schema = %s", data)
	}
	if _, err := ParamsSchema(ScopeRepo, "nope"); err == nil {
		t.Error("unknown params type accepted")
	}
}

func TestOperations_AreRouted(t *testing.T) {
	seen := make(map[string]bool)
	for _, op := range Operations {
		if seen[op] {
			t.Errorf("%s listed twice", op)
		}
		seen[op] = true
		if op == "zbox.initEnv" {
			continue
		}

		d := newDispatcher(t)
		openRepo(t, d, "mem://routing")
		fh := send(t, d, ScopeRepo, "createFile", 0, "/f").(resource.Handle)
		send(t, d, ScopeFile, "writeOnce", fh, WriteParams{Text: "x"})
		vh := send(t, d, ScopeFile, "versionReader", fh, 2).(resource.Handle)

		scope, typ, _ := strings.Cut(op, ".")
		object := resource.Handle(0)
		switch scope {
		case ScopeFile:
			object = fh
		case ScopeVersionReader:
			object = vh
		}
		reply := sendRaw(t, d, scope, typ, object, nil)
		if reply.Error != nil && strings.Contains(reply.Error.Message, "message type") {
			t.Errorf("%s is not routed: %s", op, reply.Error.Message)
		}
	}
	for op := range ParamTypes {
		if !seen[op] {
			t.Errorf("ParamTypes has %s which is not an operation", op)
		}
	}

	d := newDispatcher(t)
	openRepo(t, d, "mem://routing")
	reply := sendRaw(t, d, ScopeRepo, "rewind", 0, nil)
	if reply.Error == nil || !strings.Contains(reply.Error.Message, "message type") {
		t.Errorf("unknown type reply = %+v", reply)
	}
}
