// Package state implements the run-state machine of the pipeline.
package state

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrInvalidState is returned if transition cannot be made from the current state.
	ErrInvalidState = errors.New("invalid state")
)

// State identifies one of the possible states pipeline can be in.
type State int

// states
const (
	Null    State = iota // Null is the initial state, no resources are allocated.
	Ready                // Ready means that pipeline is prepared to start.
	Paused               // Paused means that pipeline processes admitted data, but refuses new.
	Playing              // Playing means that pipeline accepts and processes data.
	Unknown              // Unknown means that pipeline failed.
)

func (s State) String() string {
	switch s {
	case Null:
		return "NULL"
	case Ready:
		return "READY"
	case Paused:
		return "PAUSED"
	case Playing:
		return "PLAYING"
	case Unknown:
		return "UNKNOWN"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Machine keeps the current state and notifies about every change in the
// order of transitions. Notifications are delivered from a separate
// goroutine, so slow callbacks never block transitions.
type Machine struct {
	mu      sync.Mutex
	current State
	*notifier
}

// New returns machine in Null state.
func New() *Machine {
	n := &notifier{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go n.run()
	return &Machine{notifier: n}
}

// Current returns current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// To moves machine to the target state through every intermediate
// state. Null is reachable from any state directly. Unknown state can
// be left only to Null.
func (m *Machine) To(target State) ([]State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	steps, err := path(m.current, target)
	if err != nil {
		return nil, err
	}
	if len(steps) > 0 {
		m.current = target
		m.push(steps...)
	}
	return steps, nil
}

// Fail moves machine to Unknown state. False is returned if it's already
// failed or in Null state.
func (m *Machine) Fail() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == Unknown || m.current == Null {
		return false
	}
	m.current = Unknown
	m.push(Unknown)
	return true
}

func path(from, to State) ([]State, error) {
	switch {
	case from == to:
		return nil, nil
	case to == Null:
		return []State{Null}, nil
	case from == Unknown || to == Unknown:
		return nil, fmt.Errorf("%w: %v to %v", ErrInvalidState, from, to)
	}
	var steps []State
	step := State(1)
	if to < from {
		step = -1
	}
	for s := from + step; ; s += step {
		steps = append(steps, s)
		if s == to {
			return steps, nil
		}
	}
}

// notifier delivers state changes to the callback in order.
type notifier struct {
	mu     sync.Mutex
	fn     func(State)
	queue  []State
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// SetCallback sets function to notify about state changes. Nil disables
// notifications.
func (n *notifier) SetCallback(fn func(State)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fn = fn
}

func (n *notifier) push(states ...State) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.queue = append(n.queue, states...)
	n.mu.Unlock()
	n.signal()
}

func (n *notifier) signal() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) run() {
	defer close(n.done)
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			closed := n.closed
			n.mu.Unlock()
			if closed {
				return
			}
			<-n.wake
			continue
		}
		s := n.queue[0]
		n.queue = n.queue[1:]
		fn := n.fn
		n.mu.Unlock()
		if fn != nil {
			fn(s)
		}
	}
}

// Close delivers pending notifications and stops the notifier. It waits
// at most for timeout and returns false if callback didn't return in time.
// Consequent calls do nothing.
func (n *notifier) Close(timeout time.Duration) bool {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.signal()
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-n.done:
		return true
	case <-t.C:
		return false
	}
}
