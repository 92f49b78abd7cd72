package libc

import "github.com/wippyai/zbox-host/random"

// Options configures a heap and the shim built on it.
type Options struct {
	// InitialPages is the number of pages reserved by the first growth.
	InitialPages uint32
	// GrowPages is the minimum number of pages added by later growths.
	GrowPages uint32
	// Sanitize tracks every live record and faults on double free, free
	// of unknown pointers and header tampering. Freed memory is poisoned.
	Sanitize bool
	// LegacyCalloc disables zero-filling in calloc.
	LegacyCalloc bool
	// Random is the entropy source behind random_uint32. Defaults to
	// crypto/rand.
	Random random.Source
}

func (o Options) withDefaults() Options {
	if o.InitialPages == 0 {
		o.InitialPages = 1
	}
	if o.GrowPages == 0 {
		o.GrowPages = 1
	}
	if o.Random == nil {
		o.Random = random.NewSecureSource()
	}
	return o
}
