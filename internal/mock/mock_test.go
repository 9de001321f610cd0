package mock_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/tensorpipe/internal/mock"
	"github.com/dudk/tensorpipe/tensor"
)

var (
	errTest = errors.New("test error")
	spec    = tensor.SetSpec{tensor.NewSpec(tensor.Int32, 4)}
)

func TestFilter(t *testing.T) {
	testFilter := func(f *mock.Filter, calls, messages int) func(*testing.T) {
		return func(t *testing.T) {
			var err error
			for i := 0; i < calls && err == nil; i++ {
				var in *tensor.Set
				in, err = tensor.Allocate(spec)
				require.NoError(t, err)
				var out *tensor.Set
				out, err = f.Invoke(in, spec, spec)
				if err == nil {
					assert.Same(t, in, out)
					assert.Equal(t, int32(f.Value), out.Buffer(0).Int32(3))
				}
			}
			if f.ErrorOnCall != nil {
				assert.ErrorIs(t, err, f.ErrorOnCall)
			}
			n, size := f.Count()
			assert.Equal(t, messages, n)
			assert.Equal(t, messages*16, size)
			assert.False(t, f.Overlapped)
		}
	}

	t.Run("no errors", testFilter(&mock.Filter{Value: 2}, 10, 10))
	t.Run("error after limit", testFilter(&mock.Filter{ErrorOnCall: errTest, Limit: 3}, 10, 3))
	t.Run("error on first call", testFilter(&mock.Filter{ErrorOnCall: errTest}, 10, 0))
}

func TestSink(t *testing.T) {
	sink := mock.Sink{Arrived: make(chan struct{}, 2)}
	for i := 0; i < 2; i++ {
		s, err := tensor.Allocate(spec)
		require.NoError(t, err)
		sink.Sink(s, spec)
	}
	assert.Len(t, sink.Arrived, 2)
	assert.Len(t, sink.Sets(), 2)
	n, size := sink.Count()
	assert.Equal(t, 2, n)
	assert.Equal(t, 32, size)

	sink.Reset()
	assert.Empty(t, sink.Sets())
	n, _ = sink.Count()
	assert.Zero(t, n)
}
