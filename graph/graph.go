package graph

import (
	"fmt"
	"io"
	"strings"

	"github.com/dudk/tensorpipe/filter"
	"github.com/dudk/tensorpipe/tensor"
)

// Graph is a validated topology. It's immutable and safe for concurrent
// reads.
type Graph struct {
	name     string
	registry *filter.Registry
	nodes    map[string]*Node
	order    []string
	in       map[string]Edge
	out      map[string][]Edge
	inSpec   map[string]tensor.SetSpec
	outSpec  map[string]tensor.SetSpec
}

// Name returns the graph name.
func (g *Graph) Name() string {
	return g.name
}

// Registry returns the registry filters were resolved in.
func (g *Graph) Registry() *filter.Registry {
	return g.registry
}

// Node returns a copy of named node.
func (g *Graph) Node(name string) (Node, bool) {
	n, ok := g.nodes[name]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Order returns node names in topological order.
func (g *Graph) Order() []string {
	return append([]string(nil), g.order...)
}

// Sources returns names of source nodes in topological order.
func (g *Graph) Sources() []string {
	return g.ofKind(Source)
}

// Sinks returns names of sink nodes in topological order.
func (g *Graph) Sinks() []string {
	return g.ofKind(Sink)
}

// Filters returns distinct names of referenced filters.
func (g *Graph) Filters() []string {
	seen := make(map[string]bool)
	var names []string
	for _, name := range g.order {
		n := g.nodes[name]
		if n.Kind == Filter && !seen[n.Filter] {
			seen[n.Filter] = true
			names = append(names, n.Filter)
		}
	}
	return names
}

func (g *Graph) ofKind(k Kind) []string {
	var names []string
	for _, name := range g.order {
		if g.nodes[name].Kind == k {
			names = append(names, name)
		}
	}
	return names
}

// Out returns output edges of the node in order of connection.
func (g *Graph) Out(name string) []Edge {
	return append([]Edge(nil), g.out[name]...)
}

// In returns input edge of the node.
func (g *Graph) In(name string) (Edge, bool) {
	e, ok := g.in[name]
	return e, ok
}

// Edges returns all edges following topological order of producers.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, name := range g.order {
		edges = append(edges, g.out[name]...)
	}
	return edges
}

// InSpec returns negotiated input spec of the node.
func (g *Graph) InSpec(name string) tensor.SetSpec {
	return g.inSpec[name]
}

// OutSpec returns negotiated output spec of the node.
func (g *Graph) OutSpec(name string) tensor.SetSpec {
	return g.outSpec[name]
}

// String returns one edge per line.
func (g *Graph) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", g.name)
	for _, e := range g.Edges() {
		fmt.Fprintf(&b, "\t%v %v\n", e, e.Spec)
	}
	return b.String()
}

// DotString renders the graph in graphviz format.
func (g *Graph) DotString() string {
	var b strings.Builder
	g.WriteDot(&b)
	return b.String()
}

// WriteDot writes the graph in graphviz format.
func (g *Graph) WriteDot(w io.Writer) {
	sanitize := func(s string) string {
		s = strings.ReplaceAll(s, `"`, ``)
		s = strings.ReplaceAll(s, "\n", `\n`)
		return s
	}
	fmt.Fprintf(w, "digraph %q {\n", sanitize(g.name))
	for _, name := range g.order {
		n := g.nodes[name]
		label := fmt.Sprintf("%s\\n%v", n.Name, n.Kind)
		if n.Kind == Filter {
			label += " " + n.Filter
		}
		fmt.Fprintf(w, "\t%q [label=\"%s\"]\n", name, sanitize(label))
	}
	for _, e := range g.Edges() {
		label := e.Spec.String()
		if e.Pad != "" {
			label = e.Pad + " " + label
		}
		fmt.Fprintf(w, "\t%q -> %q [label=\"%s\"]\n", e.From, e.To, sanitize(label))
	}
	fmt.Fprintln(w, "}")
}
