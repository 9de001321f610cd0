// Package mock provides mocks for pipeline components and allows to execute integration tests.
package mock

import (
	"sync"
	"time"

	"github.com/dudk/tensorpipe/tensor"
)

// Filter mocks a filter.Filter interface. It hands over the input set
// and counts invocations.
type Filter struct {
	counter
	FilterName string
	Interval   time.Duration
	// ErrorOnCall is returned once Limit invocations succeeded.
	ErrorOnCall error
	Limit       int
	// Value is added to every element if not zero.
	Value float64

	active sync.Mutex
	busy   bool
	// Overlapped is set if invocations were executed concurrently.
	Overlapped bool
}

// Name implements filter.Filter.
func (m *Filter) Name() string {
	return m.FilterName
}

// OutputSpec implements filter.Filter. Output spec is the same as input.
func (m *Filter) OutputSpec(in tensor.SetSpec) (tensor.SetSpec, error) {
	return in.Clone(), nil
}

// Invoke implements filter.Filter.
func (m *Filter) Invoke(in *tensor.Set, inSpec, _ tensor.SetSpec) (*tensor.Set, error) {
	m.enter()
	defer m.leave()
	if m.ErrorOnCall != nil && m.Messages() >= m.Limit {
		return nil, m.ErrorOnCall
	}
	time.Sleep(m.Interval)
	if m.Value != 0 {
		for i := range inSpec {
			b := in.Buffer(i)
			for j := 0; j < inSpec[i].Elements(); j++ {
				b.SetValue(inSpec[i].Type, j, b.Value(inSpec[i].Type, j)+m.Value)
			}
		}
	}
	m.advance(in.Size())
	return in, nil
}

func (m *Filter) enter() {
	m.active.Lock()
	defer m.active.Unlock()
	if m.busy {
		m.Overlapped = true
	}
	m.busy = true
}

func (m *Filter) leave() {
	m.active.Lock()
	defer m.active.Unlock()
	m.busy = false
}

// Sink collects delivered sets. Sets are kept unless Discard is set.
type Sink struct {
	counter
	Discard bool
	// Arrived receives a value per delivered set if not nil.
	Arrived chan struct{}

	mu   sync.Mutex
	sets []*tensor.Set
}

// Sink has tensorpipe.SinkFunc signature.
func (m *Sink) Sink(s *tensor.Set, _ tensor.SetSpec) {
	m.advance(s.Size())
	if m.Discard {
		s.Release()
	} else {
		m.mu.Lock()
		m.sets = append(m.sets, s)
		m.mu.Unlock()
	}
	if m.Arrived != nil {
		m.Arrived <- struct{}{}
	}
}

// Sets returns collected sets.
func (m *Sink) Sets() []*tensor.Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*tensor.Set(nil), m.sets...)
}

// Reset releases collected sets and resets counter.
func (m *Sink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sets {
		s.Release()
	}
	m.sets = nil
	m.reset()
}

// counter counts messages and bytes.
type counter struct {
	mu       sync.Mutex
	messages int
	bytes    int
}

// Advance counter's metrics.
func (c *counter) advance(size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages++
	c.bytes = c.bytes + size
}

// Reset resets counter's metrics.
func (c *counter) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages, c.bytes = 0, 0
}

// Messages returns number of handled sets.
func (c *counter) Messages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages
}

// Count returns messages and bytes metrics.
func (c *counter) Count() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages, c.bytes
}
