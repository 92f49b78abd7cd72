package memstore

import (
	"bytes"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/pierrec/lz4/v4"
)

// blob is one stored content body, shared between versions when dedup is
// on. data is lz4 framed when compressed is set.
type blob struct {
	hash       uint64
	data       []byte
	size       uint64
	compressed bool
	refs       int
}

// blobStore keeps version content. Identical content is stored once when
// dedup is requested, keyed by xxhash and confirmed byte for byte.
type blobStore struct {
	compress bool
	byHash   map[uint64][]*blob
	stored   uint64
}

func newBlobStore(compress bool) *blobStore {
	return &blobStore{compress: compress, byHash: make(map[uint64][]*blob)}
}

func (s *blobStore) put(content []byte, dedup bool) (*blob, error) {
	h := xxhash.Sum64(content)
	if dedup {
		for _, b := range s.byHash[h] {
			if b.size != uint64(len(content)) {
				continue
			}
			existing, err := s.get(b)
			if err != nil {
				return nil, err
			}
			if bytes.Equal(existing, content) {
				b.refs++
				return b, nil
			}
		}
	}

	b := &blob{hash: h, size: uint64(len(content)), refs: 1}
	if s.compress && len(content) > 0 {
		packed, err := compressBlock(content)
		if err != nil {
			return nil, err
		}
		if len(packed) < len(content) {
			b.data, b.compressed = packed, true
		}
	}
	if !b.compressed {
		b.data = bytes.Clone(content)
	}

	s.stored += uint64(len(b.data))
	if dedup {
		s.byHash[h] = append(s.byHash[h], b)
	}
	return b, nil
}

func (s *blobStore) get(b *blob) ([]byte, error) {
	if !b.compressed {
		return b.data, nil
	}
	return io.ReadAll(lz4.NewReader(bytes.NewReader(b.data)))
}

func (s *blobStore) release(b *blob) {
	b.refs--
	if b.refs > 0 {
		return
	}
	s.stored -= uint64(len(b.data))
	list := s.byHash[b.hash]
	for i, c := range list {
		if c == b {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.byHash, b.hash)
	} else {
		s.byHash[b.hash] = list
	}
}

func (s *blobStore) retain(b *blob) {
	b.refs++
}

func compressBlock(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
