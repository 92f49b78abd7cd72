package random

import (
	"context"
	"crypto/rand"
	"encoding/binary"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/zbox-host/errors"
)

// ExportName is the env symbol guests import to obtain one random value.
const ExportName = "random_uint32"

// Source is the host's secure random capability.
type Source interface {
	// Fill overwrites p with cryptographically strong random bytes.
	Fill(p []byte) error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(p []byte) error

func (f SourceFunc) Fill(p []byte) error {
	return f(p)
}

type secureSource struct{}

// NewSecureSource returns a Source backed by crypto/rand.
func NewSecureSource() Source {
	return secureSource{}
}

func (secureSource) Fill(p []byte) error {
	_, err := rand.Read(p)
	return err
}

// Bridge hands out 32-bit values drawn from a Source.
type Bridge struct {
	source Source
}

// New creates a Bridge over src. A nil src is accepted and faults on first
// use, matching a host that never exposed the capability.
func New(src Source) *Bridge {
	return &Bridge{source: src}
}

// Uint32 returns a random value assembled little-endian from 4 source
// bytes. A missing or failing source raises a FaultEntropy fault; there is
// no weaker fallback.
func (b *Bridge) Uint32() uint32 {
	if b == nil || b.source == nil {
		errors.Trap(errors.FaultEntropy, "no secure random source")
	}
	var buf [4]byte
	if err := b.source.Fill(buf[:]); err != nil {
		errors.TrapCause(errors.FaultEntropy, err, "secure random source failed")
	}
	return binary.LittleEndian.Uint32(buf[:])
}

// GoFunc exposes Uint32 as a wazero host function of type () -> i32.
func (b *Bridge) GoFunc() api.GoModuleFunc {
	return func(_ context.Context, _ api.Module, stack []uint64) {
		stack[0] = api.EncodeU32(b.Uint32())
	}
}
