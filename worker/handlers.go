package worker

import (
	"io"

	"go.uber.org/zap"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/zbox"
)

func (d *Dispatcher) zboxMessage(msg *Message) (any, error) {
	switch msg.Type {
	case "initEnv":
		var p InitEnvParams
		if len(msg.Params) > 0 {
			if err := decode(msg, &p); err != nil {
				return nil, err
			}
		}
		if p.LogLevel == "" {
			p.LogLevel = "warn"
		}
		return nil, d.zb.InitEnv(p.LogLevel)

	case "version":
		return d.zb.ZboxVersion(), nil

	case "randomUint32":
		return d.zb.RandomUint32(), nil

	case "exists":
		uri, err := decodeString(msg)
		if err != nil {
			return nil, err
		}
		return d.zb.Exists(uri)

	case "openRepo":
		var p OpenRepoParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		if d.repo != nil && d.repo.IsOpen() {
			return nil, errors.Engine(errors.CodeRepoOpened, d.repo.URI())
		}
		repo, err := repoOpener(d.zb, p.Opts).Open(p.URI, p.Pwd)
		if err != nil {
			return nil, err
		}
		d.repo = repo
		return nil, nil

	case "repairSuperBlock":
		var p CredentialParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return nil, d.zb.RepairSuperBlock(p.URI, p.Pwd)

	case "destroy":
		uri, err := decodeString(msg)
		if err != nil {
			return nil, err
		}
		return nil, d.zb.Destroy(uri)
	}
	return nil, unknownType(msg)
}

func repoOpener(zb *zbox.Zbox, o *RepoOpts) *zbox.RepoOpener {
	opener := zb.NewRepoOpener()
	if o == nil {
		return opener
	}
	if o.Create != nil {
		opener.Create(*o.Create)
	}
	if o.CreateNew != nil {
		opener.CreateNew(*o.CreateNew)
	}
	if o.Compress != nil {
		opener.Compress(*o.Compress)
	}
	if o.VersionLimit != nil {
		opener.VersionLimit(*o.VersionLimit)
	}
	if o.DedupChunk != nil {
		opener.DedupChunk(*o.DedupChunk)
	}
	if o.ReadOnly != nil {
		opener.ReadOnly(*o.ReadOnly)
	}
	if o.Force != nil {
		opener.Force(*o.Force)
	}
	return opener
}

func openOptions(o *FileOpts) *zbox.OpenOptions {
	opts := zbox.NewOpenOptions()
	if o == nil {
		return opts
	}
	if o.Read != nil {
		opts.Read(*o.Read)
	}
	if o.Write != nil {
		opts.Write(*o.Write)
	}
	if o.Append != nil {
		opts.Append(*o.Append)
	}
	if o.Truncate != nil {
		opts.Truncate(*o.Truncate)
	}
	if o.Create != nil {
		opts.Create(*o.Create)
	}
	if o.CreateNew != nil {
		opts.CreateNew(*o.CreateNew)
	}
	if o.VersionLimit != nil {
		opts.VersionLimit(*o.VersionLimit)
	}
	if o.DedupChunk != nil {
		opts.DedupChunk(*o.DedupChunk)
	}
	return opts
}

func (d *Dispatcher) repoMessage(msg *Message) (any, error) {
	if d.repo == nil {
		return nil, errors.RepoClosed()
	}
	repo := d.repo

	// single path argument
	pathOp := func(fn func(string) (any, error)) (any, error) {
		p, err := decodeString(msg)
		if err != nil {
			return nil, err
		}
		return fn(p)
	}
	fromTo := func(fn func(from, to string) error) (any, error) {
		var p FromToParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return nil, fn(p.From, p.To)
	}

	switch msg.Type {
	case "close":
		if n := d.files.Len(); n > 0 {
			Logger().Warn("files still opened when closing repo", zap.Int("count", n))
		}
		if n := d.readers.Len(); n > 0 {
			Logger().Warn("version readers still opened when closing repo", zap.Int("count", n))
		}
		err := repo.Close()
		d.repo = nil
		return nil, err

	case "info":
		return repo.Info()

	case "resetPassword":
		var p ResetPasswordParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return nil, repo.ResetPassword(p.OldPwd, p.NewPwd)

	case "pathExists":
		return pathOp(func(p string) (any, error) { return repo.PathExists(p) })
	case "isFile":
		return pathOp(func(p string) (any, error) { return repo.IsFile(p) })
	case "isDir":
		return pathOp(func(p string) (any, error) { return repo.IsDir(p) })

	case "createFile":
		return pathOp(func(p string) (any, error) {
			f, err := repo.CreateFile(p)
			if err != nil {
				return nil, err
			}
			return d.trackFile(f)
		})

	case "openFile":
		return d.openFile(msg, repo)

	case "createDir":
		return pathOp(func(p string) (any, error) { return nil, repo.CreateDir(p) })
	case "createDirAll":
		return pathOp(func(p string) (any, error) { return nil, repo.CreateDirAll(p) })
	case "readDir":
		return pathOp(func(p string) (any, error) { return repo.ReadDir(p) })
	case "metadata":
		return pathOp(func(p string) (any, error) { return repo.Metadata(p) })
	case "history":
		return pathOp(func(p string) (any, error) { return repo.History(p) })
	case "removeFile":
		return pathOp(func(p string) (any, error) { return nil, repo.RemoveFile(p) })
	case "removeDir":
		return pathOp(func(p string) (any, error) { return nil, repo.RemoveDir(p) })
	case "removeDirAll":
		return pathOp(func(p string) (any, error) { return nil, repo.RemoveDirAll(p) })

	case "copy":
		return fromTo(repo.Copy)
	case "copyDirAll":
		return fromTo(repo.CopyDirAll)
	case "rename":
		return fromTo(repo.Rename)
	}
	return nil, unknownType(msg)
}

// openFile accepts either a path string or {path, opts}.
func (d *Dispatcher) openFile(msg *Message, repo *zbox.Repo) (any, error) {
	var (
		f   *zbox.File
		err error
	)
	if len(msg.Params) > 0 && msg.Params[0] == '"' {
		var p string
		if p, err = decodeString(msg); err != nil {
			return nil, err
		}
		f, err = repo.OpenFile(p)
	} else {
		var p OpenFileParams
		if err = decode(msg, &p); err != nil {
			return nil, err
		}
		f, err = openOptions(p.Opts).Open(repo, p.Path)
	}
	if err != nil {
		return nil, err
	}
	return d.trackFile(f)
}

func (d *Dispatcher) trackFile(f *zbox.File) (any, error) {
	h, err := d.files.Insert(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(errors.PhaseDispatch, errors.KindClosed, err, "track file")
	}
	return h, nil
}

func (d *Dispatcher) fileMessage(msg *Message) (any, error) {
	f, ok := d.files.Get(msg.Object)
	if !ok {
		return nil, errors.Closed("file")
	}

	switch msg.Type {
	case "close":
		d.files.Remove(msg.Object)
		return nil, f.Close()

	case "read":
		return readChunk(msg, f)
	case "readAll":
		return f.ReadAll()
	case "readAllString":
		data, err := f.ReadAll()
		return string(data), err

	case "write":
		var p WriteParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return f.Write(p.bytes())

	case "finish":
		return nil, f.Finish()

	case "writeOnce":
		var p WriteParams
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return nil, f.WriteOnce(p.bytes())

	case "seek":
		return seek(msg, f.Seek)

	case "setLen":
		n, err := decodeUint(msg)
		if err != nil {
			return nil, err
		}
		return nil, f.SetLen(n)

	case "currVersion":
		return f.CurrVersion()
	case "metadata":
		return f.Metadata()
	case "history":
		return f.History()

	case "versionReader":
		num, err := decodeUint(msg)
		if err != nil {
			return nil, err
		}
		vr, err := f.VersionReader(num)
		if err != nil {
			return nil, err
		}
		h, err := d.readers.Insert(vr)
		if err != nil {
			_ = vr.Close()
			return nil, errors.Wrap(errors.PhaseDispatch, errors.KindClosed, err, "track version reader")
		}
		return h, nil
	}
	return nil, unknownType(msg)
}

func (d *Dispatcher) readerMessage(msg *Message) (any, error) {
	vr, ok := d.readers.Get(msg.Object)
	if !ok {
		return nil, errors.Closed("version reader")
	}

	switch msg.Type {
	case "close":
		d.readers.Remove(msg.Object)
		return nil, vr.Close()
	case "version":
		return vr.Version()
	case "read":
		return readChunk(msg, vr)
	case "readAll":
		return vr.ReadAll()
	case "readAllString":
		data, err := vr.ReadAll()
		return string(data), err
	case "seek":
		return seek(msg, vr.Seek)
	}
	return nil, unknownType(msg)
}

// readChunk reads up to the requested length. End of file yields an empty
// result rather than an error.
func readChunk(msg *Message, r io.Reader) (any, error) {
	var p ReadParams
	if err := decode(msg, &p); err != nil {
		return nil, err
	}
	buf := make([]byte, p.Len)
	n, err := r.Read(buf)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return ReadResult{Data: buf[:n], Len: n}, nil
}

func seek(msg *Message, fn func(whence uint32, offset int32) (uint32, error)) (any, error) {
	var p SeekParams
	if err := decode(msg, &p); err != nil {
		return nil, err
	}
	return fn(p.From, p.Offset)
}
