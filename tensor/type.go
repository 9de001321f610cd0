// Package tensor provides typed multi-tensor buffers and their shape metadata.
package tensor

import (
	"fmt"
	"strings"
)

// Type is the element type of a tensor.
type Type int

// Supported element types.
const (
	Unknown Type = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

var typeNames = [...]string{
	Unknown: "unknown",
	Int8:    "int8",
	Uint8:   "uint8",
	Int16:   "int16",
	Uint16:  "uint16",
	Int32:   "int32",
	Uint32:  "uint32",
	Int64:   "int64",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
}

// Size returns the byte size of a single element. Unknown type has zero size.
func (t Type) Size() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

// Valid reports if type is one of the known element types.
func (t Type) Valid() bool {
	return t > Unknown && t <= Float64
}

func (t Type) String() string {
	if t < Unknown || t > Float64 {
		return typeNames[Unknown]
	}
	return typeNames[t]
}

// ParseType returns the type for its canonical name. Unknown and an error
// are returned for any other value.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if Type(t) != Unknown && name == s {
			return Type(t), nil
		}
	}
	return Unknown, fmt.Errorf("unknown tensor type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	v, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
