// Package single invokes one registered filter without building a graph.
package single

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/dudk/tensorpipe/filter"
	"github.com/dudk/tensorpipe/log"
	"github.com/dudk/tensorpipe/tensor"
)

var (
	// ErrTimeout is returned when filter didn't return in time.
	ErrTimeout = errors.New("invoke timeout")
	// ErrClosed is returned when Invoke is called after Close.
	ErrClosed = errors.New("single shot is closed")
)

// Shot holds an acquired filter and the specs negotiated for it.
type Shot struct {
	handle  *filter.Handle
	in      tensor.SetSpec
	out     tensor.SetSpec
	timeout atomic.Duration
	closed  atomic.Bool
	log     logrus.FieldLogger
}

// Option provides a way to set functional parameters to shot.
type Option func(*Shot)

// WithTimeout limits every invoke. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(s *Shot) {
		s.timeout.Store(d)
	}
}

// WithLogger sets logger. Silent logger is used by default.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Shot) {
		s.log = l
	}
}

// New acquires the filter and derives its output spec for the provided
// input. Nil registry means filter.Default.
func New(r *filter.Registry, filterName string, in tensor.SetSpec, options ...Option) (*Shot, error) {
	if r == nil {
		r = filter.Default
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	h, err := r.Acquire(filterName)
	if err != nil {
		return nil, err
	}
	out, err := h.OutputSpec(in)
	if err == nil {
		err = out.Validate()
	}
	if err != nil {
		h.Release()
		return nil, fmt.Errorf("%w: filter %q: %v", tensor.ErrSpecMismatch, filterName, err)
	}
	s := &Shot{
		handle: h,
		in:     in.Clone(),
		out:    out,
		log:    log.Silent(),
	}
	for _, option := range options {
		option(s)
	}
	s.log = s.log.WithField("filter", filterName)
	return s, nil
}

// InputInfo returns the expected input spec.
func (s *Shot) InputInfo() tensor.SetSpec {
	return s.in.Clone()
}

// OutputInfo returns the spec of produced sets.
func (s *Shot) OutputInfo() tensor.SetSpec {
	return s.out.Clone()
}

// SetTimeout changes the limit for the consequent invokes.
func (s *Shot) SetTimeout(d time.Duration) {
	s.timeout.Store(d)
}

type result struct {
	set *tensor.Set
	err error
}

// Invoke runs the filter over the set. Input set is owned by the shot
// once Invoke is called. If the filter didn't return in time, ErrTimeout
// is returned and the late output is released.
func (s *Shot) Invoke(ctx context.Context, in *tensor.Set) (*tensor.Set, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if in == nil {
		return nil, fmt.Errorf("%w: no input", tensor.ErrSpecMismatch)
	}
	if err := in.Conform(s.in); err != nil {
		return nil, err
	}
	if d := s.timeout.Load(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	resc := make(chan result, 1)
	go func() {
		out, err := s.handle.Invoke(in, s.in, s.out)
		if err == nil {
			err = filter.CheckOutput(out, s.out)
		}
		if err != nil {
			tensor.ReleaseUnshared(out, in)
			in.Release()
			resc <- result{err: err}
			return
		}
		tensor.ReleaseUnshared(in, out)
		resc <- result{set: out}
	}()

	select {
	case r := <-resc:
		return r.set, r.err
	case <-ctx.Done():
		go func() {
			if r := <-resc; r.set != nil {
				r.set.Release()
			}
		}()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.log.WithField("timeout", s.timeout.Load()).Warn("invoke timed out")
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

// Close releases the filter. Consequent calls do nothing.
func (s *Shot) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.handle.Release()
	}
	return nil
}
