package zbox

import (
	"time"

	"github.com/wippyai/zbox-host/storage"
)

// RepoInfo is the host view of a repository. Times are Unix seconds.
type RepoInfo struct {
	VolumeID     string `json:"volumeId"`
	Version      string `json:"version"`
	URI          string `json:"uri"`
	Compress     bool   `json:"compress"`
	VersionLimit uint8  `json:"versionLimit"`
	DedupChunk   bool   `json:"dedupChunk"`
	IsReadOnly   bool   `json:"isReadOnly"`
	CreatedAt    uint64 `json:"createdAt"`
}

// Metadata is the host view of a file or directory.
type Metadata struct {
	FileType    storage.FileType `json:"fileType"`
	ContentLen  uint64           `json:"contentLen"`
	CurrVersion uint64           `json:"currVersion"`
	CreatedAt   uint64           `json:"createdAt"`
	ModifiedAt  uint64           `json:"modifiedAt"`
}

// DirEntry is the host view of one directory child.
type DirEntry struct {
	Path     string   `json:"path"`
	FileName string   `json:"fileName"`
	Metadata Metadata `json:"metadata"`
}

// Version is the host view of one file version.
type Version struct {
	Num        uint64 `json:"num"`
	ContentLen uint64 `json:"contentLen"`
	CreatedAt  uint64 `json:"createdAt"`
}

func unixSeconds(t time.Time) uint64 {
	if t.IsZero() || t.Unix() < 0 {
		return 0
	}
	return uint64(t.Unix())
}

func repoInfoOf(info storage.RepoInfo) RepoInfo {
	return RepoInfo{
		VolumeID:     info.VolumeID,
		Version:      info.Version,
		URI:          info.URI,
		Compress:     info.Compress,
		VersionLimit: info.VersionLimit,
		DedupChunk:   info.DedupChunk,
		IsReadOnly:   info.ReadOnly,
		CreatedAt:    unixSeconds(info.CreatedAt),
	}
}

func metadataOf(md storage.Metadata) Metadata {
	return Metadata{
		FileType:    md.FileType,
		ContentLen:  md.ContentLen,
		CurrVersion: md.CurrVersion,
		CreatedAt:   unixSeconds(md.CreatedAt),
		ModifiedAt:  unixSeconds(md.ModifiedAt),
	}
}

func versionOf(v storage.Version) Version {
	return Version{Num: v.Num, ContentLen: v.ContentLen, CreatedAt: unixSeconds(v.CreatedAt)}
}

func versionsOf(vs []storage.Version) []Version {
	out := make([]Version, len(vs))
	for i, v := range vs {
		out[i] = versionOf(v)
	}
	return out
}

func dirEntriesOf(es []storage.DirEntry) []DirEntry {
	out := make([]DirEntry, len(es))
	for i, e := range es {
		out[i] = DirEntry{Path: e.Path, FileName: e.FileName, Metadata: metadataOf(e.Metadata)}
	}
	return out
}
