// Package runner executes pipeline sources and sinks in their own
// goroutines.
package runner

import (
	"context"
	"fmt"

	"github.com/dudk/tensorpipe/internal/control"
	"github.com/dudk/tensorpipe/tensor"
)

// Message is a main structure for pipeline transport.
type Message struct {
	Set      *tensor.Set       // Set of the message.
	Controls *control.Snapshot // Controls captured when the set was admitted.
}

type (
	// Source propagates messages admitted into the source node. Messages
	// are handled one by one in the order of admission.
	Source struct {
		Name string
		In   chan Message
		Fn   func(ctx context.Context, m Message) error
	}

	// Sink delivers messages arrived to the sink node. At most one
	// delivery is executed at a time.
	Sink struct {
		Name string
		In   chan Message
		Fn   func(m Message)
	}
)

// Run starts the source runner. It returns when context is done or
// propagation failed. Pending messages are discarded on return.
func (r Source) Run(ctx context.Context) error {
	defer Drain(r.In)
	for {
		select {
		case m := <-r.In:
			if err := r.Fn(ctx, m); err != nil {
				return fmt.Errorf("error running source %q: %w", r.Name, err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Run starts the sink runner. It returns when context is done. Pending
// messages are discarded on return.
func (r Sink) Run(ctx context.Context) error {
	defer Drain(r.In)
	for {
		select {
		case m := <-r.In:
			if ctx.Err() != nil {
				m.Set.Release()
				return nil
			}
			r.Fn(m)
		case <-ctx.Done():
			return nil
		}
	}
}

// Send pushes message into channel. False is returned if context is done
// before the message was accepted.
func Send(ctx context.Context, c chan<- Message, m Message) bool {
	select {
	case c <- m:
		return true
	case <-ctx.Done():
		return false
	}
}

// Drain releases every pending message without blocking.
func Drain(c chan Message) {
	for {
		select {
		case m := <-c:
			m.Set.Release()
		default:
			return
		}
	}
}
