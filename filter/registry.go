package filter

import (
	"fmt"
	"sync"

	"github.com/dudk/tensorpipe/tensor"
)

// Default is the process-wide registry.
var Default = NewRegistry()

// Registry maps unique names to filters. It's safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	Filter
	refs int
}

// Handle is a reference to the acquired filter. Invocations through the
// same handle are serialized.
type Handle struct {
	mu       sync.Mutex
	once     sync.Once
	registry *Registry
	filter   Filter
}

// NewRegistry returns empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Register adds filter to the default registry.
func Register(f Filter) error {
	return Default.Register(f)
}

// Unregister removes filter from the default registry.
func Unregister(name string) error {
	return Default.Unregister(name)
}

// Register adds filter under its name.
func (r *Registry) Register(f Filter) error {
	if f == nil || f.Name() == "" {
		return fmt.Errorf("filter must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[f.Name()]; ok {
		return fmt.Errorf("%w: filter %q", ErrDuplicateName, f.Name())
	}
	r.entries[f.Name()] = &entry{Filter: f}
	return nil
}

// Unregister removes filter from the registry. Filter cannot be removed
// until every handle is released.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFilter, name)
	}
	if e.refs > 0 {
		return fmt.Errorf("%w: %q has %d references", ErrFilterInUse, name, e.refs)
	}
	delete(r.entries, name)
	return nil
}

// Lookup returns registered filter.
func (r *Registry) Lookup(name string) (Filter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.Filter, true
}

// Names returns names of all registered filters.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// Acquire returns a handle to the filter and prevents it from being
// unregistered until the handle is released.
func (r *Registry) Acquire(name string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, name)
	}
	e.refs++
	return &Handle{
		registry: r,
		filter:   e.Filter,
	}, nil
}

func (r *Registry) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok && e.refs > 0 {
		e.refs--
	}
}

// Name returns the name of acquired filter.
func (h *Handle) Name() string {
	return h.filter.Name()
}

// OutputSpec derives output spec with acquired filter.
func (h *Handle) OutputSpec(in tensor.SetSpec) (tensor.SetSpec, error) {
	return h.filter.OutputSpec(in)
}

// Invoke calls the acquired filter. Concurrent calls are serialized.
// A panic in the filter is returned as an error.
func (h *Handle) Invoke(in *tensor.Set, inSpec, outSpec tensor.SetSpec) (out *tensor.Set, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: filter %q: %v", ErrFilterPanic, h.filter.Name(), r)
		}
	}()
	return h.filter.Invoke(in, inSpec, outSpec)
}

// Release drops the reference. Consequent calls do nothing.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.registry.release(h.filter.Name())
	})
}
