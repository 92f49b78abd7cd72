// Package random supplies cryptographically strong 32-bit values to the
// guest, which has no entropy of its own.
//
// Values come from a host Source, crypto/rand by default. When the source
// is missing or fails, Uint32 terminates the execution context with a
// FaultEntropy fault instead of returning a weaker value.
package random
