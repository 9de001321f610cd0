package tensorpipe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/dudk/tensorpipe/filter"
	"github.com/dudk/tensorpipe/graph"
	"github.com/dudk/tensorpipe/internal/control"
	"github.com/dudk/tensorpipe/internal/runner"
	"github.com/dudk/tensorpipe/internal/state"
	"github.com/dudk/tensorpipe/log"
	"github.com/dudk/tensorpipe/metric"
	"github.com/dudk/tensorpipe/tensor"
)

// Pipeline executes a built graph. It's safe for concurrent use.
type Pipeline struct {
	id      string
	name    string
	graph   *graph.Graph
	nodes   map[string]graph.Node
	out     map[string][]graph.Edge
	config  Config
	log     logrus.FieldLogger
	metrics *metric.Metrics

	handles  map[string]*filter.Handle // mapped to filter names.
	controls *control.Store
	sinks    map[string]*atomic.Pointer[SinkFunc]
	machine  *state.Machine
	stats    stats

	lifecycle sync.Mutex   // serializes Start, Pause, Stop and Close.
	pushMu    sync.RWMutex // exclusive while run is replaced.
	run       *run
	closed    atomic.Bool
	err       atomic.Error
}

// run holds workers of a single Start..Stop cycle.
type run struct {
	ctx     context.Context
	cancel  context.CancelFunc
	sources map[string]chan runner.Message
	sinks   map[string]chan runner.Message
	done    chan struct{}
}

// Stats contains counters of the pipeline since it was created.
type Stats struct {
	Admitted  int64 // Sets accepted by sources.
	Delivered int64 // Sets delivered to sink callbacks.
	Dropped   int64 // Sets dropped by closed valves.
}

type stats struct {
	admitted  atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
}

// New creates a pipeline for the built graph and acquires every filter
// it references. Returned pipeline is in Null state.
func New(g *graph.Graph, options ...Option) (*Pipeline, error) {
	if g == nil {
		return nil, errors.New("graph is required")
	}
	p := &Pipeline{
		id:     xid.New().String(),
		name:   g.Name(),
		graph:  g,
		nodes:  make(map[string]graph.Node),
		out:    make(map[string][]graph.Edge),
		config: DefaultConfig(),
		log:    log.Silent(),
		sinks:  make(map[string]*atomic.Pointer[SinkFunc]),
	}
	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}
	p.log = p.log.WithFields(logrus.Fields{
		"pipeline": p.name,
		"id":       p.id,
	})

	handles, err := acquire(g)
	if err != nil {
		return nil, err
	}
	p.handles = handles

	valves := make(map[string]bool)
	selectors := make(map[string]string)
	for _, name := range g.Order() {
		n, _ := g.Node(name)
		p.nodes[name] = n
		p.out[name] = g.Out(name)
		switch n.Kind {
		case graph.Valve:
			valves[name] = n.Open
		case graph.Selector:
			selectors[name] = n.Active
		case graph.Sink:
			p.sinks[name] = &atomic.Pointer[SinkFunc]{}
		}
	}
	p.controls = control.NewStore(valves, selectors)
	p.machine = state.New()
	p.metrics.SetState(p.name, int(Null))
	p.log.WithField("filters", len(handles)).Debug("pipeline created")
	return p, nil
}

// acquire returns handles for all filters of the graph. Nothing is
// acquired if any of filters is missing.
func acquire(g *graph.Graph) (map[string]*filter.Handle, error) {
	handles := make(map[string]*filter.Handle)
	for _, name := range g.Filters() {
		h, err := g.Registry().Acquire(name)
		if err != nil {
			for _, h := range handles {
				h.Release()
			}
			return nil, err
		}
		handles[name] = h
	}
	return handles, nil
}

// ID returns unique id of the pipeline.
func (p *Pipeline) ID() string {
	return p.id
}

// Name returns the name of the pipeline.
func (p *Pipeline) Name() string {
	return p.name
}

// Graph returns the executed graph.
func (p *Pipeline) Graph() *graph.Graph {
	return p.graph
}

// State returns current state.
func (p *Pipeline) State() State {
	return p.machine.Current()
}

// Err returns the error that moved pipeline to Unknown state. It's kept
// until the pipeline is started again.
func (p *Pipeline) Err() error {
	return p.err.Load()
}

// Stats returns current counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Admitted:  p.stats.admitted.Load(),
		Delivered: p.stats.delivered.Load(),
		Dropped:   p.stats.dropped.Load(),
	}
}

// Start moves pipeline to Playing state through every intermediate
// state. Failed pipeline must be stopped before it can be started again.
func (p *Pipeline) Start() error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if p.closed.Load() {
		return ErrClosed
	}
	switch p.machine.Current() {
	case Playing:
		return nil
	case Unknown:
		if err := p.err.Load(); err != nil {
			return fmt.Errorf("%w: %w", ErrNotRunning, err)
		}
		return ErrNotRunning
	}
	if p.run == nil {
		p.err.Store(nil)
		r := p.newRun()
		p.pushMu.Lock()
		p.run = r
		p.pushMu.Unlock()
	}
	return p.transition(Playing)
}

// Pause moves pipeline to Paused state. Data already admitted is still
// processed, but sources refuse new one.
func (p *Pipeline) Pause() error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if p.closed.Load() {
		return ErrClosed
	}
	switch s := p.machine.Current(); s {
	case Paused:
		return nil
	case Playing:
		return p.transition(Paused)
	default:
		return fmt.Errorf("%w: %v", ErrNotRunning, s)
	}
}

// Stop moves pipeline to Null state. Data in flight is discarded. Stopped
// pipeline can be started again.
func (p *Pipeline) Stop() error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if p.closed.Load() {
		return ErrClosed
	}
	return p.stop()
}

// Close stops the pipeline and releases all acquired filters. Consequent
// calls do nothing.
func (p *Pipeline) Close() error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if p.closed.Load() {
		return nil
	}
	err := p.stop()
	p.closed.Store(true)
	for _, h := range p.handles {
		h.Release()
	}
	if !p.machine.Close(p.config.CloseTimeout) {
		p.log.WithField("timeout", p.config.CloseTimeout).Warn("state callback didn't return in time")
	}
	p.log.Debug("pipeline closed")
	return err
}

func (p *Pipeline) stop() error {
	if r := p.run; r != nil {
		r.cancel()
		p.pushMu.Lock()
		p.run = nil
		p.pushMu.Unlock()
		p.wait(r)
		r.drain()
	}
	return p.transition(Null)
}

func (p *Pipeline) transition(target State) error {
	steps, err := p.machine.To(target)
	if err != nil {
		return err
	}
	if len(steps) > 0 {
		p.metrics.SetState(p.name, int(target))
		p.log.WithField("state", target).Debug("state changed")
	}
	return nil
}

// fail moves pipeline to Unknown state. The first error is kept.
func (p *Pipeline) fail(err error) {
	if p.err.Load() == nil {
		p.err.Store(err)
	}
	var re *RunError
	if errors.As(err, &re) {
		p.metrics.Failed(p.name, re.Node)
	}
	if p.machine.Fail() {
		p.metrics.SetState(p.name, int(Unknown))
		p.log.WithError(err).Error("pipeline failed")
	}
}

func (p *Pipeline) newRun() *run {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	r := run{
		ctx:     ctx,
		cancel:  cancel,
		sources: make(map[string]chan runner.Message),
		sinks:   make(map[string]chan runner.Message),
		done:    make(chan struct{}),
	}
	for _, name := range p.graph.Sinks() {
		c := make(chan runner.Message, p.config.DeliveryQueue)
		r.sinks[name] = c
		s := runner.Sink{
			Name: name,
			In:   c,
			Fn:   p.deliver(name),
		}
		g.Go(func() error {
			return s.Run(ctx)
		})
	}
	for _, name := range p.graph.Sources() {
		c := make(chan runner.Message, p.config.QueueSize)
		r.sources[name] = c
		s := runner.Source{
			Name: name,
			In:   c,
			Fn: func(ctx context.Context, m runner.Message) error {
				return p.propagate(ctx, &r, name, m)
			},
		}
		g.Go(func() error {
			err := s.Run(ctx)
			if err != nil {
				p.fail(err)
			}
			return err
		})
	}
	go func() {
		defer close(r.done)
		if err := g.Wait(); err != nil {
			p.log.WithError(err).Debug("workers stopped")
		}
	}()
	return &r
}

// wait blocks until run workers are done or close timeout expired.
func (p *Pipeline) wait(r *run) {
	t := time.NewTimer(p.config.CloseTimeout)
	defer t.Stop()
	select {
	case <-r.done:
	case <-t.C:
		p.log.WithField("timeout", p.config.CloseTimeout).Warn("workers didn't stop in time")
	}
}

// drain discards sets left in queues.
func (r *run) drain() {
	for _, c := range r.sources {
		runner.Drain(c)
	}
	for _, c := range r.sinks {
		runner.Drain(c)
	}
}

// deliver returns function that passes messages to the sink callback.
// Messages are released if there is no callback.
func (p *Pipeline) deliver(sink string) func(runner.Message) {
	cb := p.sinks[sink]
	return func(m runner.Message) {
		fn := cb.Load()
		if fn == nil || *fn == nil {
			m.Set.Release()
			return
		}
		p.stats.delivered.Inc()
		p.metrics.Passed(p.name, sink, m.Set.Size())
		(*fn)(m.Set, m.Set.Spec())
	}
}

// SetSinkCallback registers function to receive sets arrived to the
// sink. Nil function unregisters the callback, sets are discarded then.
func (p *Pipeline) SetSinkCallback(sink string, fn SinkFunc) error {
	if p.closed.Load() {
		return ErrClosed
	}
	cb, ok := p.sinks[sink]
	if !ok {
		return fmt.Errorf("%w: sink %q", ErrUnknownNode, sink)
	}
	if fn == nil {
		cb.Store(nil)
		return nil
	}
	cb.Store(&fn)
	return nil
}

// SetStateCallback registers function to receive state changes. Nil
// function unregisters the callback.
func (p *Pipeline) SetStateCallback(fn StateFunc) {
	p.machine.SetCallback(fn)
}

// InputData pushes the set into the source. It returns once the set was
// accepted and blocks while the source queue is full. Raw sets are bound
// to the source spec. The set is owned by pipeline if no error returned.
func (p *Pipeline) InputData(source string, s *tensor.Set) error {
	return p.Push(context.Background(), source, s)
}

// Push is InputData that gives up when context is done.
func (p *Pipeline) Push(ctx context.Context, source string, s *tensor.Set) error {
	p.pushMu.RLock()
	defer p.pushMu.RUnlock()
	if p.closed.Load() {
		return ErrClosed
	}
	if n, ok := p.nodes[source]; !ok || n.Kind != graph.Source {
		return fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	r := p.run
	if st := p.machine.Current(); r == nil || st != Playing {
		return fmt.Errorf("%w: %v", ErrNotRunning, st)
	}
	if s == nil {
		return fmt.Errorf("%w: source %q got no set", ErrSpecMismatch, source)
	}
	if err := s.Conform(p.graph.OutSpec(source)); err != nil {
		return fmt.Errorf("source %q: %w", source, err)
	}
	m := runner.Message{
		Set:      s,
		Controls: p.controls.Load(),
	}
	// Run may have failed while state is not yet updated.
	if r.ctx.Err() != nil {
		return ErrNotRunning
	}
	select {
	case r.sources[source] <- m:
		p.stats.admitted.Inc()
		return nil
	case <-r.ctx.Done():
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ControlValve opens or closes the valve for sets admitted after the
// call.
func (p *Pipeline) ControlValve(name string, open bool) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if n, ok := p.nodes[name]; !ok || n.Kind != graph.Valve {
		return fmt.Errorf("%w: valve %q", ErrUnknownNode, name)
	}
	p.controls.SetValve(name, open)
	p.log.WithFields(logrus.Fields{"node": name, "open": open}).Debug("valve changed")
	return nil
}

// SelectSwitchPad activates the selector pad for sets admitted after the
// call.
func (p *Pipeline) SelectSwitchPad(name, pad string) error {
	if p.closed.Load() {
		return ErrClosed
	}
	n, ok := p.nodes[name]
	if !ok || n.Kind != graph.Selector {
		return fmt.Errorf("%w: selector %q", ErrUnknownNode, name)
	}
	if !n.HasPad(pad) {
		return fmt.Errorf("%w: selector %q has no pad %q", ErrUnknownPad, name, pad)
	}
	p.controls.Select(name, pad)
	p.log.WithFields(logrus.Fields{"node": name, "pad": pad}).Debug("pad selected")
	return nil
}

// GetSwitchPads returns pads of the selector.
func (p *Pipeline) GetSwitchPads(name string) ([]string, error) {
	n, ok := p.nodes[name]
	if !ok || n.Kind != graph.Selector {
		return nil, fmt.Errorf("%w: selector %q", ErrUnknownNode, name)
	}
	return append([]string(nil), n.Pads...), nil
}

// ActiveSwitchPad returns the pad that receives newly admitted sets.
func (p *Pipeline) ActiveSwitchPad(name string) (string, error) {
	n, ok := p.nodes[name]
	if !ok || n.Kind != graph.Selector {
		return "", fmt.Errorf("%w: selector %q", ErrUnknownNode, name)
	}
	return p.controls.Load().Active(name), nil
}
