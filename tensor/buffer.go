package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Buffer is a fixed-size byte region holding data of a single tensor.
// Multi-byte elements are stored little-endian.
type Buffer struct {
	data []byte
	// pooled is set if data came from the pool and is returned there on release.
	pooled bool
}

// AllocateRaw returns zeroed buffer of n bytes, not bound to any spec.
func AllocateRaw(n int) (*Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", ErrInvalidShape, n)
	}
	return &Buffer{data: getBytes(n), pooled: true}, nil
}

// Wrap returns buffer backed by provided bytes. Slice is not copied and
// is never handed over to the pool.
func Wrap(b []byte) *Buffer {
	return &Buffer{data: b[:len(b):len(b)]}
}

// Bytes returns the underlying data.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// Len returns the size of buffer in bytes.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

func (b *Buffer) clone() *Buffer {
	c := &Buffer{data: getBytes(len(b.data)), pooled: true}
	copy(c.data, b.data)
	return c
}

func (b *Buffer) release() {
	if b.data == nil {
		return
	}
	if b.pooled {
		putBytes(b.data)
	}
	b.data = nil
	b.pooled = false
}

// Int32 returns i-th element interpreted as int32.
func (b *Buffer) Int32(i int) int32 {
	return int32(binary.LittleEndian.Uint32(b.data[i*4:]))
}

// PutInt32 sets i-th element as int32.
func (b *Buffer) PutInt32(i int, v int32) {
	binary.LittleEndian.PutUint32(b.data[i*4:], uint32(v))
}

// Float32 returns i-th element interpreted as float32.
func (b *Buffer) Float32(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b.data[i*4:]))
}

// PutFloat32 sets i-th element as float32.
func (b *Buffer) PutFloat32(i int, v float32) {
	binary.LittleEndian.PutUint32(b.data[i*4:], math.Float32bits(v))
}

// Value returns i-th element of type t converted to float64.
func (b *Buffer) Value(t Type, i int) float64 {
	off := i * t.Size()
	d := b.data
	switch t {
	case Int8:
		return float64(int8(d[off]))
	case Uint8:
		return float64(d[off])
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(d[off:])))
	case Uint16:
		return float64(binary.LittleEndian.Uint16(d[off:]))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(d[off:])))
	case Uint32:
		return float64(binary.LittleEndian.Uint32(d[off:]))
	case Int64:
		return float64(int64(binary.LittleEndian.Uint64(d[off:])))
	case Uint64:
		return float64(binary.LittleEndian.Uint64(d[off:]))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(d[off:])))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(d[off:]))
	}
	panic(fmt.Sprintf("value of %v tensor", t))
}

// SetValue converts v to type t and stores it as i-th element. Integer
// types truncate the fraction.
func (b *Buffer) SetValue(t Type, i int, v float64) {
	off := i * t.Size()
	d := b.data
	switch t {
	case Int8:
		d[off] = byte(int8(v))
	case Uint8:
		d[off] = uint8(v)
	case Int16:
		binary.LittleEndian.PutUint16(d[off:], uint16(int16(v)))
	case Uint16:
		binary.LittleEndian.PutUint16(d[off:], uint16(v))
	case Int32:
		binary.LittleEndian.PutUint32(d[off:], uint32(int32(v)))
	case Uint32:
		binary.LittleEndian.PutUint32(d[off:], uint32(v))
	case Int64:
		binary.LittleEndian.PutUint64(d[off:], uint64(int64(v)))
	case Uint64:
		binary.LittleEndian.PutUint64(d[off:], uint64(v))
	case Float32:
		binary.LittleEndian.PutUint32(d[off:], math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(d[off:], math.Float64bits(v))
	default:
		panic(fmt.Sprintf("set value of %v tensor", t))
	}
}
