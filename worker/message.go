package worker

import (
	"encoding/json"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/resource"
)

// Scopes address the object a message operates on.
const (
	ScopeZbox          = "zbox"
	ScopeRepo          = "repo"
	ScopeFile          = "file"
	ScopeVersionReader = "versionReader"
)

// Message is one request and, once dispatched, its reply. Object carries
// the handle of an opened file or version reader for those scopes.
type Message struct {
	ID     uint64          `json:"id"`
	Scope  string          `json:"scope" validate:"required,oneof=zbox repo file versionReader" jsonschema:"enum=zbox,enum=repo,enum=file,enum=versionReader"`
	Type   string          `json:"type" validate:"required"`
	Object resource.Handle `json:"object,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result any             `json:"result,omitempty"`
	Error  *Failure        `json:"error,omitempty"`
}

// Failure is a bridged error as it crosses the message boundary.
type Failure struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func (f *Failure) Error() string {
	return f.Message
}

// InitEnvParams configures diagnostics.
type InitEnvParams struct {
	LogLevel string `json:"logLevel,omitempty"`
}

// RepoOpts mirrors the repository opener setters. Unset fields keep the
// engine defaults.
type RepoOpts struct {
	Create       *bool  `json:"create,omitempty"`
	CreateNew    *bool  `json:"createNew,omitempty"`
	Compress     *bool  `json:"compress,omitempty"`
	VersionLimit *uint8 `json:"versionLimit,omitempty" validate:"omitempty,min=1"`
	DedupChunk   *bool  `json:"dedupChunk,omitempty"`
	ReadOnly     *bool  `json:"readOnly,omitempty"`
	Force        *bool  `json:"force,omitempty"`
}

type OpenRepoParams struct {
	URI  string    `json:"uri" validate:"required"`
	Pwd  string    `json:"pwd" validate:"required"`
	Opts *RepoOpts `json:"opts,omitempty"`
}

// CredentialParams names a repository and its password.
type CredentialParams struct {
	URI string `json:"uri" validate:"required"`
	Pwd string `json:"pwd" validate:"required"`
}

type ResetPasswordParams struct {
	OldPwd string `json:"oldPwd" validate:"required"`
	NewPwd string `json:"newPwd" validate:"required"`
}

// FromToParams names the source and destination of copy and rename.
type FromToParams struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

// FileOpts mirrors the file open option setters.
type FileOpts struct {
	Read         *bool  `json:"read,omitempty"`
	Write        *bool  `json:"write,omitempty"`
	Append       *bool  `json:"append,omitempty"`
	Truncate     *bool  `json:"truncate,omitempty"`
	Create       *bool  `json:"create,omitempty"`
	CreateNew    *bool  `json:"createNew,omitempty"`
	VersionLimit *uint8 `json:"versionLimit,omitempty" validate:"omitempty,min=1"`
	DedupChunk   *bool  `json:"dedupChunk,omitempty"`
}

type OpenFileParams struct {
	Path string    `json:"path" validate:"required"`
	Opts *FileOpts `json:"opts,omitempty"`
}

// ReadParams asks for up to Len bytes.
type ReadParams struct {
	Len uint32 `json:"len" validate:"required,max=16777216"`
}

// ReadResult carries the bytes read. Data is base64 in JSON.
type ReadResult struct {
	Data []byte `json:"data"`
	Len  int    `json:"len"`
}

// WriteParams carries bytes to write, as base64 Data or plain Text.
type WriteParams struct {
	Data []byte `json:"data,omitempty"`
	Text string `json:"text,omitempty"`
}

func (p WriteParams) bytes() []byte {
	if p.Data != nil {
		return p.Data
	}
	return []byte(p.Text)
}

// SeekParams uses the host whence numbering: 0 start, 1 end, 2 current.
type SeekParams struct {
	From   uint32 `json:"from"`
	Offset int32  `json:"offset"`
}
