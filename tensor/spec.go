package tensor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// RankLimit is the maximum number of dimensions of a single tensor.
	RankLimit = 4
	// SizeLimit is the maximum number of tensors in a set.
	SizeLimit = 16
)

var (
	// ErrInvalidShape is returned when tensor type or dimensions are not valid.
	ErrInvalidShape = errors.New("invalid shape")
	// ErrInvalidCount is returned when a set has no tensors or more than SizeLimit.
	ErrInvalidCount = errors.New("invalid tensor count")
	// ErrSpecMismatch is returned when two specs are expected to be equal, but they are not.
	ErrSpecMismatch = errors.New("spec mismatch")
)

// Spec describes type and shape of a single tensor. Name is a label and
// doesn't take part in the comparison.
type Spec struct {
	Type Type   `yaml:"type" json:"type"`
	Dims []int  `yaml:"dims,flow" json:"dims"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

// SetSpec describes every tensor of a set in order.
type SetSpec []Spec

// NewSpec is a shortcut for unnamed tensor spec.
func NewSpec(t Type, dims ...int) Spec {
	return Spec{Type: t, Dims: dims}
}

// Validate checks that the type is known, rank is within limit, every
// dimension is positive and the byte size fits int.
func (s Spec) Validate() error {
	if !s.Type.Valid() {
		return fmt.Errorf("%w: type %v", ErrInvalidShape, s.Type)
	}
	if len(s.Dims) == 0 || len(s.Dims) > RankLimit {
		return fmt.Errorf("%w: rank %d must be in range [1, %d]", ErrInvalidShape, len(s.Dims), RankLimit)
	}
	n := s.Type.Size()
	for i, d := range s.Dims {
		if d <= 0 {
			return fmt.Errorf("%w: dimension %d is %d", ErrInvalidShape, i, d)
		}
		if n > math.MaxInt/d {
			return fmt.Errorf("%w: size of %v overflows", ErrInvalidShape, s.Dims)
		}
		n *= d
	}
	return nil
}

// Elements returns the number of elements.
func (s Spec) Elements() int {
	if len(s.Dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range s.Dims {
		n *= d
	}
	return n
}

// Bytes returns the size of tensor data in bytes.
func (s Spec) Bytes() int {
	return s.Elements() * s.Type.Size()
}

// Equal checks if type and dimensions match.
func (s Spec) Equal(o Spec) bool {
	if s.Type != o.Type || len(s.Dims) != len(o.Dims) {
		return false
	}
	for i := range s.Dims {
		if s.Dims[i] != o.Dims[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the spec.
func (s Spec) Clone() Spec {
	c := s
	c.Dims = append([]int(nil), s.Dims...)
	return c
}

// String formats spec as type[d0:d1:...], prefixed with name if present.
func (s Spec) String() string {
	dims := make([]string, len(s.Dims))
	for i, d := range s.Dims {
		dims[i] = strconv.Itoa(d)
	}
	str := fmt.Sprintf("%v[%s]", s.Type, strings.Join(dims, ":"))
	if s.Name != "" {
		return s.Name + ":" + str
	}
	return str
}

// Validate checks the number of tensors and every tensor spec.
func (ss SetSpec) Validate() error {
	if len(ss) == 0 || len(ss) > SizeLimit {
		return fmt.Errorf("%w: %d must be in range [1, %d]", ErrInvalidCount, len(ss), SizeLimit)
	}
	for i := range ss {
		if err := ss[i].Validate(); err != nil {
			return fmt.Errorf("tensor %d: %w", i, err)
		}
	}
	return nil
}

// Equal checks if both sets have structurally equal specs in the same order.
func (ss SetSpec) Equal(o SetSpec) bool {
	if len(ss) != len(o) {
		return false
	}
	for i := range ss {
		if !ss[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the set spec.
func (ss SetSpec) Clone() SetSpec {
	if ss == nil {
		return nil
	}
	c := make(SetSpec, len(ss))
	for i := range ss {
		c[i] = ss[i].Clone()
	}
	return c
}

// Bytes returns the size of every tensor in bytes.
func (ss SetSpec) Bytes() []int {
	sizes := make([]int, len(ss))
	for i := range ss {
		sizes[i] = ss[i].Bytes()
	}
	return sizes
}

func (ss SetSpec) String() string {
	specs := make([]string, len(ss))
	for i := range ss {
		specs[i] = ss[i].String()
	}
	return "{" + strings.Join(specs, ", ") + "}"
}

// Mismatch returns ErrSpecMismatch wrapped with both specs if they differ.
func Mismatch(got, want SetSpec) error {
	if got.Equal(want) {
		return nil
	}
	return fmt.Errorf("%w: got %v, want %v", ErrSpecMismatch, got, want)
}
