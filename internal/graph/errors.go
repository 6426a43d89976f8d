package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrBreakOutsideLoop is reported for a break with no enclosing loop.
	ErrBreakOutsideLoop = errors.New("break outside loop")
	// ErrContinueOutsideLoop is reported for a continue with no enclosing loop.
	ErrContinueOutsideLoop = errors.New("continue outside loop")
	// ErrBuilderUsed is returned when Build is called twice on one Builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrNoEntry is returned when the entry callable has no definition.
	ErrNoEntry = errors.New("entry callable has no definition")
)

// ControlFlowError reports malformed control flow. It aborts the build.
type ControlFlowError struct {
	Err    error // ErrBreakOutsideLoop or ErrContinueOutsideLoop
	Module string
	Line   int
}

func (e *ControlFlowError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Module, e.Line, e.Err)
}

func (e *ControlFlowError) Unwrap() error { return e.Err }
