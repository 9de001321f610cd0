package state_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dudk/tensorpipe/internal/state"
)

type recorder struct {
	sync.Mutex
	states []state.State
}

func (r *recorder) record(s state.State) {
	r.Lock()
	defer r.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) get() []state.State {
	r.Lock()
	defer r.Unlock()
	return append([]state.State(nil), r.states...)
}

func TestTransitions(t *testing.T) {
	defer goleak.VerifyNone(t)
	tests := []struct {
		preparation []state.State
		target      state.State
		steps       []state.State
		err         error
	}{
		{
			target: state.Playing,
			steps:  []state.State{state.Ready, state.Paused, state.Playing},
		},
		{
			preparation: []state.State{state.Playing},
			target:      state.Paused,
			steps:       []state.State{state.Paused},
		},
		{
			preparation: []state.State{state.Paused},
			target:      state.Playing,
			steps:       []state.State{state.Playing},
		},
		{
			preparation: []state.State{state.Playing},
			target:      state.Playing,
		},
		{
			preparation: []state.State{state.Playing},
			target:      state.Null,
			steps:       []state.State{state.Null},
		},
		{
			preparation: []state.State{state.Playing},
			target:      state.Ready,
			steps:       []state.State{state.Paused, state.Ready},
		},
		{
			target: state.Unknown,
			err:    state.ErrInvalidState,
		},
	}
	for _, test := range tests {
		m := state.New()
		for _, s := range test.preparation {
			_, err := m.To(s)
			require.NoError(t, err)
		}
		steps, err := m.To(test.target)
		if test.err != nil {
			assert.ErrorIs(t, err, test.err)
		} else {
			assert.NoError(t, err)
			assert.Equal(t, test.steps, steps)
			assert.Equal(t, test.target, m.Current())
		}
		assert.True(t, m.Close(time.Second))
	}
}

func TestFail(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := state.New()
	assert.False(t, m.Fail())
	_, err := m.To(state.Playing)
	require.NoError(t, err)
	assert.True(t, m.Fail())
	assert.False(t, m.Fail())
	assert.Equal(t, state.Unknown, m.Current())

	_, err = m.To(state.Playing)
	assert.ErrorIs(t, err, state.ErrInvalidState)
	steps, err := m.To(state.Null)
	assert.NoError(t, err)
	assert.Equal(t, []state.State{state.Null}, steps)
	assert.True(t, m.Close(time.Second))
}

func TestNotificationOrder(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := &recorder{}
	m := state.New()
	m.SetCallback(r.record)
	for i := 0; i < 3; i++ {
		_, _ = m.To(state.Playing)
		_, _ = m.To(state.Paused)
		_, _ = m.To(state.Null)
	}
	assert.True(t, m.Close(time.Second))

	cycle := []state.State{state.Ready, state.Paused, state.Playing, state.Paused, state.Null}
	var expected []state.State
	for i := 0; i < 3; i++ {
		expected = append(expected, cycle...)
	}
	assert.Equal(t, expected, r.get())
}

func TestSlowCallback(t *testing.T) {
	release := make(chan struct{})
	m := state.New()
	m.SetCallback(func(state.State) {
		<-release
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.To(state.Playing)
		_, _ = m.To(state.Null)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("transition blocked by callback")
	}
	assert.False(t, m.Close(10*time.Millisecond))
	close(release)
	assert.True(t, m.Close(time.Second))
}

func TestString(t *testing.T) {
	assert.Equal(t, "PLAYING", state.Playing.String())
	assert.Equal(t, "UNKNOWN", state.Unknown.String())
	assert.Equal(t, "State(42)", state.State(42).String())
}
