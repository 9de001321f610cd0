package graph

import (
	"errors"
	"fmt"

	"github.com/dudk/tensorpipe/filter"
	"github.com/dudk/tensorpipe/tensor"
)

var (
	// ErrCycleDetected is returned when nodes and edges form a cycle.
	ErrCycleDetected = errors.New("cycle detected")
	// ErrDanglingEdge is returned when edge references unknown node or pad,
	// or node connections don't match its kind.
	ErrDanglingEdge = errors.New("dangling edge")
	// ErrDuplicateName is returned when node name is not unique.
	ErrDuplicateName = filter.ErrDuplicateName
	// ErrUnknownFilter is returned when filter node references unregistered filter.
	ErrUnknownFilter = filter.ErrUnknownFilter
	// ErrSpecMismatch is returned when producer output and consumer input don't match.
	ErrSpecMismatch = tensor.ErrSpecMismatch
)

// Builder collects nodes and edges. The first error is kept and returned
// by Build, so calls can be chained.
type Builder struct {
	name  string
	nodes []Node
	index map[string]int
	edges []Edge
	err   error
}

// New returns a builder of the named graph.
func New(name string) *Builder {
	return &Builder{
		name:  name,
		index: make(map[string]int),
	}
}

func (b *Builder) add(n Node) *Builder {
	if b.err != nil {
		return b
	}
	if _, ok := kindNames[n.Kind]; !ok {
		b.err = fmt.Errorf("node %q has unknown kind %v", n.Name, n.Kind)
		return b
	}
	if n.Name == "" {
		b.err = fmt.Errorf("%v node must have a name", n.Kind)
		return b
	}
	if _, ok := b.index[n.Name]; ok {
		b.err = fmt.Errorf("%w: node %q", ErrDuplicateName, n.Name)
		return b
	}
	b.index[n.Name] = len(b.nodes)
	b.nodes = append(b.nodes, n.clone())
	return b
}

// AddSource adds source node that emits sets of the provided spec.
func (b *Builder) AddSource(name string, spec tensor.SetSpec) *Builder {
	return b.add(Node{Name: name, Kind: Source, Spec: spec})
}

// AddFilter adds node that invokes the registered filter.
func (b *Builder) AddFilter(name, filterName string) *Builder {
	return b.add(Node{Name: name, Kind: Filter, Filter: filterName})
}

// AddSink adds exit point of the graph.
func (b *Builder) AddSink(name string) *Builder {
	return b.add(Node{Name: name, Kind: Sink})
}

// AddTee adds node that duplicates input to all outputs.
func (b *Builder) AddTee(name string) *Builder {
	return b.add(Node{Name: name, Kind: Tee})
}

// AddValve adds node that passes or drops input.
func (b *Builder) AddValve(name string, open bool) *Builder {
	return b.add(Node{Name: name, Kind: Valve, Open: open})
}

// AddSelector adds node that forwards input to exactly one of its pads.
// The first pad is active.
func (b *Builder) AddSelector(name string, pads ...string) *Builder {
	n := Node{Name: name, Kind: Selector, Pads: pads}
	if len(pads) > 0 {
		n.Active = pads[0]
	}
	return b.add(n)
}

// AddNode adds node as is.
func (b *Builder) AddNode(n Node) *Builder {
	return b.add(n)
}

// Expect sets the expected input spec of filter or sink node.
func (b *Builder) Expect(name string, spec tensor.SetSpec) *Builder {
	if b.err != nil {
		return b
	}
	i, ok := b.index[name]
	if !ok {
		b.err = fmt.Errorf("%w: expect on unknown node %q", ErrDanglingEdge, name)
		return b
	}
	switch b.nodes[i].Kind {
	case Filter, Sink:
		b.nodes[i].Spec = spec.Clone()
	default:
		b.err = fmt.Errorf("%v node %q doesn't take expected spec", b.nodes[i].Kind, name)
	}
	return b
}

// Connect adds edge between two nodes.
func (b *Builder) Connect(from, to string) *Builder {
	return b.ConnectPad(from, "", to)
}

// ConnectPad adds edge from selector pad to node.
func (b *Builder) ConnectPad(from, pad, to string) *Builder {
	if b.err != nil {
		return b
	}
	b.edges = append(b.edges, Edge{From: from, Pad: pad, To: to})
	return b
}

// Build validates the topology and negotiates specs of every edge. Filters
// are resolved in the provided registry, filter.Default is used if it's nil.
func (b *Builder) Build(r *filter.Registry) (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if r == nil {
		r = filter.Default
	}
	g := &Graph{
		name:     b.name,
		registry: r,
		nodes:    make(map[string]*Node, len(b.nodes)),
		out:      make(map[string][]Edge),
		in:       make(map[string]Edge),
		inSpec:   make(map[string]tensor.SetSpec),
		outSpec:  make(map[string]tensor.SetSpec),
	}
	for i := range b.nodes {
		n := b.nodes[i].clone()
		g.nodes[n.Name] = &n
	}

	for _, e := range b.edges {
		if _, ok := g.nodes[e.From]; !ok {
			return nil, fmt.Errorf("%w: %v: unknown node %q", ErrDanglingEdge, e, e.From)
		}
		if _, ok := g.nodes[e.To]; !ok {
			return nil, fmt.Errorf("%w: %v: unknown node %q", ErrDanglingEdge, e, e.To)
		}
	}

	order, err := b.sort()
	if err != nil {
		return nil, err
	}
	g.order = order

	if err := b.link(g); err != nil {
		return nil, err
	}
	if err := negotiate(g); err != nil {
		return nil, err
	}
	return g, nil
}

// sort returns nodes in topological order using Kahn's algorithm. Ties
// are resolved by insertion order, so the result is deterministic.
func (b *Builder) sort() ([]string, error) {
	indegree := make([]int, len(b.nodes))
	next := make([][]int, len(b.nodes))
	for _, e := range b.edges {
		from, to := b.index[e.From], b.index[e.To]
		next[from] = append(next[from], to)
		indegree[to]++
	}

	ready := make([]int, 0, len(b.nodes))
	for i, d := range indegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}
	order := make([]string, 0, len(b.nodes))
	for len(ready) > 0 {
		// pick the earliest inserted node
		min := 0
		for i := range ready {
			if ready[i] < ready[min] {
				min = i
			}
		}
		n := ready[min]
		ready = append(ready[:min], ready[min+1:]...)
		order = append(order, b.nodes[n].Name)
		for _, m := range next[n] {
			indegree[m]--
			if indegree[m] == 0 {
				ready = append(ready, m)
			}
		}
	}
	if len(order) != len(b.nodes) {
		var cyclic []string
		for i, d := range indegree {
			if d > 0 {
				cyclic = append(cyclic, b.nodes[i].Name)
			}
		}
		return nil, fmt.Errorf("%w: nodes %v", ErrCycleDetected, cyclic)
	}
	return order, nil
}

// link checks connections against node kinds and indexes edges.
func (b *Builder) link(g *Graph) error {
	bound := make(map[string]map[string]bool)
	for _, e := range b.edges {
		from, to := g.nodes[e.From], g.nodes[e.To]
		switch {
		case from.Kind == Sink:
			return fmt.Errorf("%w: %v: sink %q has no outputs", ErrDanglingEdge, e, from.Name)
		case to.Kind == Source:
			return fmt.Errorf("%w: %v: source %q has no inputs", ErrDanglingEdge, e, to.Name)
		case from.Kind == Selector:
			if !from.HasPad(e.Pad) {
				return fmt.Errorf("%w: %v: selector %q has no pad %q", ErrDanglingEdge, e, from.Name, e.Pad)
			}
			if bound[from.Name][e.Pad] {
				return fmt.Errorf("%w: %v: pad %q is already linked", ErrDanglingEdge, e, e.Pad)
			}
			if bound[from.Name] == nil {
				bound[from.Name] = make(map[string]bool)
			}
			bound[from.Name][e.Pad] = true
		case e.Pad != "":
			return fmt.Errorf("%w: %v: %v %q has no pads", ErrDanglingEdge, e, from.Kind, from.Name)
		}
		if _, ok := g.in[e.To]; ok {
			return fmt.Errorf("%w: %v: node %q already has input", ErrDanglingEdge, e, e.To)
		}
		g.in[e.To] = e
		g.out[e.From] = append(g.out[e.From], e)
	}

	for _, name := range g.order {
		n := g.nodes[name]
		outs := len(g.out[name])
		if _, ok := g.in[name]; !ok && n.Kind != Source {
			return fmt.Errorf("%w: %v %q has no input", ErrDanglingEdge, n.Kind, name)
		}
		switch n.Kind {
		case Source, Filter, Valve:
			if outs != 1 {
				return fmt.Errorf("%w: %v %q must have one output, got %d", ErrDanglingEdge, n.Kind, name, outs)
			}
		case Tee:
			if outs == 0 {
				return fmt.Errorf("%w: tee %q has no outputs", ErrDanglingEdge, name)
			}
		case Selector:
			if len(n.Pads) == 0 {
				return fmt.Errorf("%w: selector %q has no pads", ErrDanglingEdge, name)
			}
			for _, pad := range n.Pads {
				if !bound[name][pad] {
					return fmt.Errorf("%w: selector %q pad %q is not linked", ErrDanglingEdge, name, pad)
				}
			}
			if n.Active == "" {
				n.Active = n.Pads[0]
			}
			if !n.HasPad(n.Active) {
				return fmt.Errorf("%w: selector %q has no active pad %q", ErrDanglingEdge, name, n.Active)
			}
		}
	}
	return nil
}

// negotiate assigns specs in topological order and checks them against
// expectations of consumers.
func negotiate(g *Graph) error {
	for _, name := range g.order {
		n := g.nodes[name]
		var in tensor.SetSpec
		if e, ok := g.in[name]; ok {
			in = g.outSpec[e.From]
			g.inSpec[name] = in
			if n.Kind != Source && n.Spec != nil {
				if err := tensor.Mismatch(in, n.Spec); err != nil {
					return fmt.Errorf("%v: %w", e, err)
				}
			}
		}
		switch n.Kind {
		case Source:
			if err := n.Spec.Validate(); err != nil {
				return fmt.Errorf("source %q: %w", name, err)
			}
			g.outSpec[name] = n.Spec
		case Filter:
			f, ok := g.registry.Lookup(n.Filter)
			if !ok {
				return fmt.Errorf("%w: node %q references %q", ErrUnknownFilter, name, n.Filter)
			}
			out, err := f.OutputSpec(in.Clone())
			if err != nil {
				return fmt.Errorf("%w: filter %q rejected %v: %v", ErrSpecMismatch, name, in, err)
			}
			if err := out.Validate(); err != nil {
				return fmt.Errorf("%w: filter %q derived invalid spec: %v", ErrSpecMismatch, name, err)
			}
			g.outSpec[name] = out
		case Tee, Valve, Selector:
			g.outSpec[name] = in
		}
	}
	for name, edges := range g.out {
		for i := range edges {
			edges[i].Spec = g.outSpec[name]
		}
		for _, e := range edges {
			g.in[e.To] = e
		}
	}
	return nil
}
