package runner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dudk/tensorpipe/internal/runner"
	"github.com/dudk/tensorpipe/tensor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func message(t *testing.T) runner.Message {
	t.Helper()
	s, err := tensor.Allocate(tensor.SetSpec{tensor.NewSpec(tensor.Int32, 10)})
	require.NoError(t, err)
	return runner.Message{Set: s}
}

func TestSourceOrder(t *testing.T) {
	in := make(chan runner.Message, 10)
	var got []int32
	done := make(chan struct{})
	r := runner.Source{
		Name: "src",
		In:   in,
		Fn: func(ctx context.Context, m runner.Message) error {
			got = append(got, m.Set.Buffer(0).Int32(0))
			if len(got) == 10 {
				close(done)
			}
			return nil
		},
	}
	for i := 0; i < 10; i++ {
		m := message(t)
		m.Set.Buffer(0).PutInt32(0, int32(i))
		in <- m
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()
	<-done
	cancel()
	assert.NoError(t, <-errc)
	assert.Equal(t, []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestSourceError(t *testing.T) {
	in := make(chan runner.Message, 2)
	in <- message(t)
	in <- message(t)
	errTest := errors.New("test error")
	r := runner.Source{
		Name: "src",
		In:   in,
		Fn: func(context.Context, runner.Message) error {
			return errTest
		},
	}
	err := r.Run(context.Background())
	assert.ErrorIs(t, err, errTest)
	assert.Len(t, in, 0)
}

func TestSinkDiscardsOnCancel(t *testing.T) {
	in := make(chan runner.Message, 4)
	delivered := make(chan struct{}, 4)
	r := runner.Sink{
		Name: "sink",
		In:   in,
		Fn: func(runner.Message) {
			delivered <- struct{}{}
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()
	in <- message(t)
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("message is not delivered")
	}
	cancel()
	assert.NoError(t, <-errc)

	in <- message(t)
	runner.Drain(in)
	assert.Len(t, in, 0)
	assert.False(t, runner.Send(ctx, make(chan runner.Message), message(t)))
}
