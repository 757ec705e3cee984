package collector

import "fmt"

// Kind classifies collection failures for diagnostics surfaced to the editor.
type Kind int

const (
	KindEnvironmentNotFound Kind = iota
	KindScriptError
	KindTimeout
	KindMalformedOutput
)

func (k Kind) String() string {
	switch k {
	case KindEnvironmentNotFound:
		return "ENVIRONMENT_NOT_FOUND"
	case KindScriptError:
		return "SCRIPT_ERROR"
	case KindTimeout:
		return "TIMEOUT"
	case KindMalformedOutput:
		return "MALFORMED_OUTPUT"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a failed collection attempt. Stderr carries the probe's captured
// diagnostic output, truncated for display.
type Error struct {
	Kind   Kind
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("collection failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("collection failed (%s)", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

const maxStderr = 4096

func newError(kind Kind, stderr []byte, err error) *Error {
	diag := string(stderr)
	if len(diag) > maxStderr {
		diag = diag[len(diag)-maxStderr:]
	}
	return &Error{Kind: kind, Stderr: diag, Err: err}
}
