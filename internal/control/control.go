// Package control keeps states of valves and selectors. Every change
// produces a new immutable snapshot, data admitted into the pipeline
// carries the snapshot current at the moment of admission.
package control

import (
	"sync"

	"go.uber.org/atomic"
)

// Snapshot is an immutable set of control states.
type Snapshot struct {
	valves    map[string]bool
	selectors map[string]string
}

// Open reports if valve is open.
func (s *Snapshot) Open(valve string) bool {
	return s.valves[valve]
}

// Active returns active pad of the selector.
func (s *Snapshot) Active(selector string) string {
	return s.selectors[selector]
}

func (s *Snapshot) clone() *Snapshot {
	c := Snapshot{
		valves:    make(map[string]bool, len(s.valves)),
		selectors: make(map[string]string, len(s.selectors)),
	}
	for k, v := range s.valves {
		c.valves[k] = v
	}
	for k, v := range s.selectors {
		c.selectors[k] = v
	}
	return &c
}

// Store holds the current snapshot. Loads are lock-free, changes are
// serialized.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewStore returns store with initial states.
func NewStore(valves map[string]bool, selectors map[string]string) *Store {
	s := Snapshot{valves: valves, selectors: selectors}
	st := &Store{}
	st.current.Store(s.clone())
	return st
}

// Load returns the current snapshot.
func (st *Store) Load() *Snapshot {
	return st.current.Load()
}

// SetValve changes valve state for the data admitted after the call.
func (st *Store) SetValve(name string, open bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.current.Load().clone()
	s.valves[name] = open
	st.current.Store(s)
}

// Select changes active pad for the data admitted after the call.
func (st *Store) Select(name, pad string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.current.Load().clone()
	s.selectors[name] = pad
	st.current.Store(s)
}
