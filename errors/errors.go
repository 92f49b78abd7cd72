package errors

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseAlloc    Phase = "alloc"    // guest heap management
	PhaseEngine   Phase = "engine"   // storage engine operations
	PhaseHandle   Phase = "handle"   // handle lifecycle checks
	PhaseValidate Phase = "validate" // argument validation
	PhaseRuntime  Phase = "runtime"  // guest execution
	PhaseLoad     Phase = "load"     // module loading
	PhaseHost     Phase = "host"     // host module registration
	PhaseConfig   Phase = "config"   // configuration loading
	PhaseDispatch Phase = "dispatch" // message dispatch
)

// Kind categorizes the error
type Kind string

const (
	KindClosed         Kind = "closed"
	KindInvalidInput   Kind = "invalid_input"
	KindEngine         Kind = "engine"
	KindAllocation     Kind = "allocation"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindOverflow       Kind = "overflow"
	KindNotFound       Kind = "not_found"
	KindUnsupported    Kind = "unsupported"
	KindRegistration   Kind = "registration"
	KindInstantiation  Kind = "instantiation"
	KindNotInitialized Kind = "not_initialized"
	KindPoisoned       Kind = "poisoned"
)

// Error is the structured error type used throughout the host.
// Code is the engine-domain code; zero means the error has no engine code
// and will bridge as Unknown.
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Code   Code
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Code != 0 {
		b.WriteByte('(')
		b.WriteString(strconv.Itoa(int(e.Code)))
		b.WriteByte(')')
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Errors with an engine code
// match on the code, others on phase and kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case *Error:
		if e.Code != 0 || t.Code != 0 {
			return e.Code == t.Code
		}
		return e.Phase == t.Phase && e.Kind == t.Kind
	case *HostError:
		return e.Code != 0 && e.Code == t.Code
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Code sets the engine-domain code
func (b *Builder) Code(c Code) *Builder {
	b.err.Code = c
	return b
}

// Path sets the path the error refers to
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Engine creates an engine-domain error with the given code.
func Engine(code Code, detail string) *Error {
	return &Error{
		Phase:  PhaseEngine,
		Kind:   KindEngine,
		Code:   code,
		Detail: detail,
	}
}

// EngineAt creates an engine-domain error about a path.
func EngineAt(code Code, path string) *Error {
	return &Error{
		Phase: PhaseEngine,
		Kind:  KindEngine,
		Code:  code,
		Path:  []string{path},
	}
}

// Closed creates the use-after-close error for files and version readers.
func Closed(what string) *Error {
	return &Error{
		Phase:  PhaseHandle,
		Kind:   KindClosed,
		Code:   CodeClosed,
		Detail: what + " is closed",
	}
}

// RepoClosed creates the use-after-close error for repositories.
func RepoClosed() *Error {
	return &Error{
		Phase:  PhaseHandle,
		Kind:   KindClosed,
		Code:   CodeRepoClosed,
		Detail: "repo is closed",
	}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindInvalidInput,
		Code:   CodeInvalidArgument,
		Detail: detail,
	}
}

// NotFound creates a not found error for a path.
func NotFound(path string) *Error {
	return EngineAt(CodeNotFound, path)
}

// AlreadyExists creates an already exists error for a path.
func AlreadyExists(path string) *Error {
	return EngineAt(CodeAlreadyExists, path)
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(size, align uint32) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindAllocation,
		Code:   CodeOutOfMemory,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Code:   CodeInvalidArgument,
		Detail: fmt.Sprintf("value %v overflows %s", value, target),
		Value:  value,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a module load error
func Load(cause error, detail string) *Error {
	return Wrap(PhaseLoad, KindInstantiation, cause, detail)
}

// Registration creates a host module registration error
func Registration(cause error, detail string) *Error {
	return Wrap(PhaseHost, KindRegistration, cause, detail)
}
