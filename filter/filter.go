// Package filter defines pluggable computation units and the registry
// they are looked up from when a graph is built.
package filter

import (
	"errors"
	"fmt"

	"github.com/dudk/tensorpipe/tensor"
)

var (
	// ErrDuplicateName is returned when a filter with the same name is already registered.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrUnknownFilter is returned when a filter is not registered.
	ErrUnknownFilter = errors.New("unknown filter")
	// ErrFilterInUse is returned on attempt to unregister a filter referenced by live pipeline.
	ErrFilterInUse = errors.New("filter in use")
	// ErrOutputSpecViolation is returned when filter produced set with unexpected spec.
	ErrOutputSpecViolation = errors.New("output spec violation")
	// ErrFilterPanic is returned when filter invocation panicked.
	ErrFilterPanic = errors.New("filter panicked")
)

// Filter is a synchronous transform of one tensor set into another.
//
// OutputSpec derives the spec of the produced set for the provided input
// spec. Invoke must return a set structurally equal to the derived spec,
// it might return a raw set with buffers of exact sizes. Returning the
// input set itself is allowed.
type Filter interface {
	Name() string
	OutputSpec(in tensor.SetSpec) (tensor.SetSpec, error)
	Invoke(in *tensor.Set, inSpec, outSpec tensor.SetSpec) (*tensor.Set, error)
}

// Func is a closure-based Filter.
type Func struct {
	FilterName     string
	OutputSpecFunc func(in tensor.SetSpec) (tensor.SetSpec, error)
	InvokeFunc     func(in *tensor.Set, inSpec, outSpec tensor.SetSpec) (*tensor.Set, error)
}

// Name returns the filter name.
func (f Func) Name() string {
	return f.FilterName
}

// OutputSpec calls OutputSpecFunc. Input spec is returned if it's not set.
func (f Func) OutputSpec(in tensor.SetSpec) (tensor.SetSpec, error) {
	if f.OutputSpecFunc == nil {
		return in.Clone(), nil
	}
	return f.OutputSpecFunc(in)
}

// Invoke calls InvokeFunc. Input set is returned if it's not set.
func (f Func) Invoke(in *tensor.Set, inSpec, outSpec tensor.SetSpec) (*tensor.Set, error) {
	if f.InvokeFunc == nil {
		return in, nil
	}
	return f.InvokeFunc(in, inSpec, outSpec)
}

// CheckOutput binds the produced set to the derived spec. Every
// discrepancy is reported as ErrOutputSpecViolation.
func CheckOutput(out *tensor.Set, want tensor.SetSpec) error {
	if out == nil {
		return fmt.Errorf("%w: no output produced", ErrOutputSpecViolation)
	}
	if err := out.Conform(want); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputSpecViolation, err)
	}
	return nil
}
