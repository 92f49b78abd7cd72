package errors

import (
	"errors"
	"io"
	"strconv"
)

// EngineName prefixes every bridged message.
const EngineName = "ZboxFS"

// HostError is the failure value that crosses the host boundary. Message is
// the rendered "ZboxFS(<code>): <description>" string. Code is kept next to
// it so hosts can branch without parsing text.
type HostError struct {
	Code    Code
	Message string
	cause   error
}

func (e *HostError) Error() string {
	return e.Message
}

func (e *HostError) Unwrap() error {
	return e.cause
}

// Is matches another HostError or Error with the same code.
func (e *HostError) Is(target error) bool {
	switch t := target.(type) {
	case *HostError:
		return e.Code == t.Code
	case *Error:
		return t.Code != 0 && e.Code == t.Code
	}
	return false
}

// Render formats a code and description the way the engine reports errors.
func Render(code Code, description string) string {
	return EngineName + "(" + strconv.Itoa(int(code)) + "): " + description
}

// Bridge is the single translation point from internal errors to host
// failures. nil and io.EOF pass through unchanged so readers keep standard
// io semantics. Errors without an engine code bridge as CodeUnknown.
func Bridge(err error) error {
	if err == nil {
		return nil
	}
	if err == io.EOF {
		return io.EOF
	}

	var he *HostError
	if errors.As(err, &he) {
		return he
	}

	var e *Error
	if errors.As(err, &e) && e.Code != CodeOK {
		desc := e.Code.Description()
		if e.Detail != "" {
			desc += ": " + e.Detail
		} else if len(e.Path) > 0 {
			desc += ": " + e.Path[len(e.Path)-1]
		}
		return &HostError{Code: e.Code, Message: Render(e.Code, desc), cause: err}
	}

	return &HostError{Code: CodeUnknown, Message: Render(CodeUnknown, err.Error()), cause: err}
}

// CodeOf extracts the engine code from err. It returns CodeOK for nil and
// CodeUnknown for errors that carry no code.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var he *HostError
	if errors.As(err, &he) {
		return he.Code
	}
	var e *Error
	if errors.As(err, &e) && e.Code != CodeOK {
		return e.Code
	}
	return CodeUnknown
}
