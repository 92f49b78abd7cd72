package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// Cipher selects the repository encryption algorithm.
type Cipher int

const (
	CipherXchacha Cipher = iota
	CipherAes
)

func (c Cipher) String() string {
	switch c {
	case CipherXchacha:
		return "Xchacha"
	case CipherAes:
		return "Aes"
	}
	return fmt.Sprintf("Cipher(%d)", int(c))
}

// OpsLimit is the password hashing computation cost.
type OpsLimit int

const (
	OpsInteractive OpsLimit = iota
	OpsModerate
	OpsSensitive
)

// MemLimit is the password hashing memory cost.
type MemLimit int

const (
	MemInteractive MemLimit = iota
	MemModerate
	MemSensitive
)

// DefaultVersionLimit is the number of versions a file keeps by default.
const DefaultVersionLimit uint8 = 10

// RepoOptions configures opening or creating a repository.
type RepoOptions struct {
	Create       bool
	CreateNew    bool
	Compress     bool
	ReadOnly     bool
	Force        bool
	VersionLimit uint8
	DedupChunk   bool
	Cipher       Cipher
	OpsLimit     OpsLimit
	MemLimit     MemLimit
}

// DefaultRepoOptions returns the engine defaults: open existing, ten
// versions per file, chunk dedup on, XChaCha with interactive limits.
func DefaultRepoOptions() RepoOptions {
	return RepoOptions{
		VersionLimit: DefaultVersionLimit,
		DedupChunk:   true,
		Cipher:       CipherXchacha,
		OpsLimit:     OpsInteractive,
		MemLimit:     MemInteractive,
	}
}

// FileOptions configures opening a file. Nil VersionLimit and DedupChunk
// inherit the repository setting.
type FileOptions struct {
	Read         bool
	Write        bool
	Append       bool
	Truncate     bool
	Create       bool
	CreateNew    bool
	VersionLimit *uint8
	DedupChunk   *bool
}

// DefaultFileOptions opens an existing file for reading.
func DefaultFileOptions() FileOptions {
	return FileOptions{Read: true}
}

// FileType distinguishes files from directories.
type FileType int

const (
	FileTypeFile FileType = iota
	FileTypeDir
)

func (t FileType) String() string {
	if t == FileTypeDir {
		return "Dir"
	}
	return "File"
}

// MarshalJSON encodes the type by name.
func (t FileType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a type name.
func (t *FileType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "File":
		*t = FileTypeFile
	case "Dir":
		*t = FileTypeDir
	default:
		return fmt.Errorf("unknown file type %q", s)
	}
	return nil
}

// RepoInfo describes an open repository.
type RepoInfo struct {
	VolumeID     string
	Version      string
	URI          string
	Compress     bool
	VersionLimit uint8
	DedupChunk   bool
	ReadOnly     bool
	CreatedAt    time.Time
}

// Metadata describes a file or directory.
type Metadata struct {
	FileType    FileType
	ContentLen  uint64
	CurrVersion uint64
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

// DirEntry is one child returned by ReadDir.
type DirEntry struct {
	Path     string
	FileName string
	Metadata Metadata
}

// Version is one entry of a file's history.
type Version struct {
	Num        uint64
	ContentLen uint64
	CreatedAt  time.Time
}
