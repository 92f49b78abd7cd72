// Package runtime loads and runs core wasm guests against the env C runtime
// host module.
//
// A Runtime owns one wazero runtime with the env module registered. Modules
// are compiled once with Load and instantiated any number of times; each
// Instance has its own linear memory and therefore its own heap.
//
//	rt, err := runtime.New(ctx, runtime.WithLibc(libc.Options{Sanitize: true}))
//	mod, err := rt.Load(ctx, wasm)
//	inst, err := mod.Instantiate(ctx)
//	results, err := inst.Call(ctx, "zbox_version")
//
// Host functions that hit an unrecoverable condition (abort, raise, a failed
// assertion, entropy loss, heap corruption) terminate the instance. The call
// returns an error carrying the *errors.Fault and every later call on the
// same instance fails with KindPoisoned.
package runtime
