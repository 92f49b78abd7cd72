package errors

import (
	"errors"
	"fmt"
)

// Reason identifies why execution was terminated.
type Reason string

const (
	FaultAbort   Reason = "abort"
	FaultRaise   Reason = "raise"
	FaultAssert  Reason = "assertion failed"
	FaultEntropy Reason = "entropy unavailable"
	FaultMemory  Reason = "memory access out of bounds"
	FaultHeap    Reason = "heap corruption"
)

// Fault is an unrecoverable termination of the current execution context.
// It is raised with panic, never returned, so no caller can continue past
// it by accident. Inside a guest call wazero recovers the panic and fails
// the call; the runtime then closes the instance.
type Fault struct {
	Reason Reason
	Detail string
	Cause  error
}

func (f *Fault) Error() string {
	msg := "fatal: " + string(f.Reason)
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	if f.Cause != nil {
		msg += " (caused by: " + f.Cause.Error() + ")"
	}
	return msg
}

func (f *Fault) Unwrap() error {
	return f.Cause
}

// Is matches faults with the same reason.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	return ok && t.Reason == f.Reason
}

// NewFault creates a fault without raising it.
func NewFault(reason Reason, cause error, detail string, args ...any) *Fault {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Fault{Reason: reason, Detail: detail, Cause: cause}
}

// Trap raises a fault. It never returns.
func Trap(reason Reason, detail string, args ...any) {
	panic(NewFault(reason, nil, detail, args...))
}

// TrapCause raises a fault wrapping cause. It never returns.
func TrapCause(reason Reason, cause error, detail string, args ...any) {
	panic(NewFault(reason, cause, detail, args...))
}

// AsFault finds a fault in err's chain.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Catch runs fn and returns the fault it raised, if any. Other panics are
// re-raised. It is meant for the outermost host frame (a CLI or a test),
// which reports the fault and discards the execution context.
func Catch(fn func()) (fault *Fault) {
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(*Fault)
			if !ok {
				panic(r)
			}
			fault = f
		}
	}()
	fn()
	return nil
}
