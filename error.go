package tensorpipe

import (
	"errors"
	"fmt"

	"github.com/dudk/tensorpipe/filter"
	"github.com/dudk/tensorpipe/graph"
	"github.com/dudk/tensorpipe/tensor"
)

// Errors of dependent packages, so callers can match every kind with
// errors.Is without importing them.
var (
	ErrInvalidShape        = tensor.ErrInvalidShape
	ErrInvalidCount        = tensor.ErrInvalidCount
	ErrSpecMismatch        = tensor.ErrSpecMismatch
	ErrCycleDetected       = graph.ErrCycleDetected
	ErrDanglingEdge        = graph.ErrDanglingEdge
	ErrDuplicateName       = filter.ErrDuplicateName
	ErrUnknownFilter       = filter.ErrUnknownFilter
	ErrFilterInUse         = filter.ErrFilterInUse
	ErrOutputSpecViolation = filter.ErrOutputSpecViolation
	ErrFilterPanic         = filter.ErrFilterPanic
)

var (
	// ErrUnknownSource is returned when data is pushed into missing source.
	ErrUnknownSource = errors.New("unknown source")
	// ErrUnknownNode is returned when node is missing or has unexpected kind.
	ErrUnknownNode = errors.New("unknown node")
	// ErrUnknownPad is returned when selector doesn't have requested pad.
	ErrUnknownPad = errors.New("unknown pad")
	// ErrNotRunning is returned when pipeline cannot accept data at this moment.
	ErrNotRunning = errors.New("pipeline is not running")
	// ErrClosed is returned when pipeline method is called after Close.
	ErrClosed = errors.New("pipeline is closed")
)

// RunError is returned if node failed during pipeline execution.
type RunError struct {
	Node string
	Err  error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("node %q: %v", e.Node, e.Err)
}

// Unwrap returns the node error.
func (e *RunError) Unwrap() error {
	return e.Err
}
