package tensor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Set is an ordered collection of buffers treated as one unit of data.
// Set is owned by a single stage at a time and must not be used after it
// was handed off or released.
type Set struct {
	buffers []*Buffer
	spec    SetSpec
}

// Allocate creates a set with one zeroed buffer per tensor of the spec.
func Allocate(spec SetSpec) (*Set, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	s := Set{
		buffers: make([]*Buffer, len(spec)),
		spec:    spec.Clone(),
	}
	for i := range spec {
		s.buffers[i] = &Buffer{data: getBytes(spec[i].Bytes()), pooled: true}
	}
	return &s, nil
}

// NewSet returns a set of raw buffers without spec. Spec is assigned when
// the set is conformed to the expected one.
func NewSet(buffers ...*Buffer) (*Set, error) {
	if len(buffers) == 0 || len(buffers) > SizeLimit {
		return nil, fmt.Errorf("%w: %d must be in range [1, %d]", ErrInvalidCount, len(buffers), SizeLimit)
	}
	for i, b := range buffers {
		if b.Len() == 0 {
			return nil, fmt.Errorf("%w: buffer %d is empty", ErrInvalidShape, i)
		}
	}
	return &Set{buffers: append([]*Buffer(nil), buffers...)}, nil
}

// Len returns number of buffers.
func (s *Set) Len() int {
	return len(s.buffers)
}

// Buffer returns i-th buffer.
func (s *Set) Buffer(i int) *Buffer {
	return s.buffers[i]
}

// Spec returns spec of the set. It's nil for raw sets.
func (s *Set) Spec() SetSpec {
	return s.spec
}

// HasSpec reports if the set was bound to a spec.
func (s *Set) HasSpec() bool {
	return s.spec != nil
}

// Conform binds the set to the expected spec. Set with spec must be
// structurally equal to it, raw set must have the same number of buffers
// with the exact byte sizes. ErrSpecMismatch is returned otherwise.
func (s *Set) Conform(want SetSpec) error {
	if s.spec != nil {
		return Mismatch(s.spec, want)
	}
	if len(s.buffers) != len(want) {
		return fmt.Errorf("%w: %d buffers, want %d", ErrSpecMismatch, len(s.buffers), len(want))
	}
	for i, b := range s.buffers {
		if b.Len() != want[i].Bytes() {
			return fmt.Errorf("%w: buffer %d has %d bytes, want %d for %v", ErrSpecMismatch, i, b.Len(), want[i].Bytes(), want[i])
		}
	}
	s.spec = want.Clone()
	return nil
}

// Size returns total size of all buffers in bytes.
func (s *Set) Size() int {
	n := 0
	for _, b := range s.buffers {
		n += b.Len()
	}
	return n
}

// Clone returns an independent deep copy of the set.
func (s *Set) Clone() *Set {
	c := Set{
		buffers: make([]*Buffer, len(s.buffers)),
		spec:    s.spec.Clone(),
	}
	for i, b := range s.buffers {
		c.buffers[i] = b.clone()
	}
	return &c
}

// Equal checks if both sets have bitwise-equal buffers.
func (s *Set) Equal(o *Set) bool {
	if len(s.buffers) != len(o.buffers) {
		return false
	}
	for i := range s.buffers {
		if !bytes.Equal(s.buffers[i].Bytes(), o.buffers[i].Bytes()) {
			return false
		}
	}
	return true
}

// Release returns buffers memory to the pool. Consequent calls do nothing.
func (s *Set) Release() {
	if s == nil {
		return
	}
	for _, b := range s.buffers {
		b.release()
	}
	s.buffers = nil
	s.spec = nil
}

// ReleaseUnshared releases buffers of from that are not referenced by to.
// It's used when a stage hands over a new set that might reuse buffers of
// its input.
func ReleaseUnshared(from, to *Set) {
	if from == nil || from == to {
		return
	}
	for _, b := range from.buffers {
		if to != nil && to.contains(b) {
			continue
		}
		b.release()
	}
	from.buffers = nil
	from.spec = nil
}

func (s *Set) contains(b *Buffer) bool {
	for _, sb := range s.buffers {
		if sb == b {
			return true
		}
	}
	return false
}

func (s *Set) String() string {
	sizes := make([]string, len(s.buffers))
	for i, b := range s.buffers {
		sizes[i] = humanize.IBytes(uint64(b.Len()))
	}
	spec := "raw"
	if s.spec != nil {
		spec = s.spec.String()
	}
	return fmt.Sprintf("%s [%s]", spec, strings.Join(sizes, ", "))
}
