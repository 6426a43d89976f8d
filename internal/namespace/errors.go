package namespace

import (
	"errors"
	"fmt"
)

var (
	// ErrModuleNotFound means no search root holds the module's source.
	ErrModuleNotFound = errors.New("module not found")
	// ErrAttributeNotFound means the module or class has no such binding.
	ErrAttributeNotFound = errors.New("attribute not found")
	// ErrNotCallable means the binding exists but is not a def or class.
	ErrNotCallable = errors.New("target is not callable")
	// ErrNoClassContext means self.method was called with no enclosing class.
	ErrNoClassContext = errors.New("no class context for self")
	// ErrUnsupportedCallee covers callees resolved only at runtime: instance
	// attributes, call results, subscripts and directly imported bindings.
	ErrUnsupportedCallee = errors.New("unsupported callee")
	// ErrInvalidTarget is returned for malformed entry point targets.
	ErrInvalidTarget = errors.New("invalid target")
)

// ResolutionError reports a call that could not be resolved to a
// definition. It is recoverable: the call is drawn as a leaf.
type ResolutionError struct {
	Call   string
	Reason string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("cannot resolve %s: %v", e.Call, e.Err)
	}
	return fmt.Sprintf("cannot resolve %s: %s: %v", e.Call, e.Reason, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func resolutionError(call string, err error, format string, args ...any) *ResolutionError {
	return &ResolutionError{Call: call, Reason: fmt.Sprintf(format, args...), Err: err}
}
