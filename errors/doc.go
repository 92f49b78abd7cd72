// Package errors provides the structured error types of the zbox host, the
// bridge that turns them into host failures, and the fatal fault channel.
//
// Errors are categorized by Phase (where the error occurred), Kind (error
// category) and, for storage engine failures, a numeric Code:
//
//	err := errors.New(errors.PhaseEngine, errors.KindEngine).
//		Code(errors.CodeNotFound).
//		Path("/docs/a.txt").
//		Build()
//
// Every failure handed to a host passes through Bridge, which renders the
// engine message and keeps the code:
//
//	herr := errors.Bridge(err) // ZboxFS(1052): File not found: /docs/a.txt
//	errors.CodeOf(herr)        // CodeNotFound
//
// Fatal conditions are not errors. Trap panics with *Fault and the
// execution context that raised it is discarded.
package errors
