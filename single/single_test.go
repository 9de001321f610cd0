package single_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dudk/tensorpipe/filter"
	"github.com/dudk/tensorpipe/single"
	"github.com/dudk/tensorpipe/tensor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	int32x4   = tensor.SetSpec{tensor.NewSpec(tensor.Int32, 4)}
	float32x4 = tensor.SetSpec{tensor.NewSpec(tensor.Float32, 4)}
)

func TestInvoke(t *testing.T) {
	r := filter.NewRegistry()
	require.NoError(t, r.Register(filter.Convert("convert", tensor.Float32)))

	s, err := single.New(r, "convert", int32x4)
	require.NoError(t, err)
	assert.Equal(t, int32x4, s.InputInfo())
	assert.Equal(t, float32x4, s.OutputInfo())
	assert.ErrorIs(t, r.Unregister("convert"), filter.ErrFilterInUse)

	in, err := tensor.Allocate(int32x4)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		in.Buffer(0).PutInt32(i, int32(i))
	}
	out, err := s.Invoke(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, float32(3), out.Buffer(0).Float32(3))
	out.Release()

	wrong, err := tensor.Allocate(float32x4)
	require.NoError(t, err)
	_, err = s.Invoke(context.Background(), wrong)
	assert.ErrorIs(t, err, tensor.ErrSpecMismatch)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, err = s.Invoke(context.Background(), in)
	assert.ErrorIs(t, err, single.ErrClosed)
	assert.NoError(t, r.Unregister("convert"))
}

func TestNewErrors(t *testing.T) {
	r := filter.NewRegistry()
	require.NoError(t, r.Register(filter.Func{
		FilterName: "reject",
		OutputSpecFunc: func(tensor.SetSpec) (tensor.SetSpec, error) {
			return nil, errors.New("unsupported")
		},
	}))

	_, err := single.New(r, "missing", int32x4)
	assert.ErrorIs(t, err, filter.ErrUnknownFilter)
	_, err = single.New(r, "reject", int32x4)
	assert.ErrorIs(t, err, tensor.ErrSpecMismatch)
	_, err = single.New(r, "reject", tensor.SetSpec{})
	assert.ErrorIs(t, err, tensor.ErrInvalidCount)
	// failed attempts must not hold the filter.
	assert.NoError(t, r.Unregister("reject"))
}

func TestTimeout(t *testing.T) {
	r := filter.NewRegistry()
	unblock := make(chan struct{})
	require.NoError(t, r.Register(filter.Func{
		FilterName: "slow",
		InvokeFunc: func(in *tensor.Set, _, _ tensor.SetSpec) (*tensor.Set, error) {
			<-unblock
			return in, nil
		},
	}))
	s, err := single.New(r, "slow", int32x4, single.WithTimeout(10*time.Millisecond))
	require.NoError(t, err)
	defer s.Close()

	in, err := tensor.Allocate(int32x4)
	require.NoError(t, err)
	_, err = s.Invoke(context.Background(), in)
	assert.ErrorIs(t, err, single.ErrTimeout)
	close(unblock)

	s.SetTimeout(0)
	in, err = tensor.Allocate(int32x4)
	require.NoError(t, err)
	out, err := s.Invoke(context.Background(), in)
	require.NoError(t, err)
	assert.Same(t, in, out)
}

func TestOutputViolation(t *testing.T) {
	r := filter.NewRegistry()
	require.NoError(t, r.Register(filter.Func{
		FilterName: "wrong",
		InvokeFunc: func(*tensor.Set, tensor.SetSpec, tensor.SetSpec) (*tensor.Set, error) {
			return tensor.Allocate(float32x4)
		},
	}))
	s, err := single.New(r, "wrong", int32x4)
	require.NoError(t, err)
	defer s.Close()

	in, err := tensor.Allocate(int32x4)
	require.NoError(t, err)
	_, err = s.Invoke(context.Background(), in)
	assert.ErrorIs(t, err, filter.ErrOutputSpecViolation)
}

func TestPanic(t *testing.T) {
	r := filter.NewRegistry()
	require.NoError(t, r.Register(filter.Func{
		FilterName: "boom",
		InvokeFunc: func(*tensor.Set, tensor.SetSpec, tensor.SetSpec) (*tensor.Set, error) {
			panic("boom")
		},
	}))
	s, err := single.New(r, "boom", int32x4)
	require.NoError(t, err)
	defer s.Close()

	in, err := tensor.Allocate(int32x4)
	require.NoError(t, err)
	_, err = s.Invoke(context.Background(), in)
	assert.ErrorIs(t, err, filter.ErrFilterPanic)
	assert.Contains(t, err.Error(), "boom")
}
