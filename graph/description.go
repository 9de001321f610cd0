package graph

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/dudk/tensorpipe/tensor"
)

// Description is a structural topology, as produced by an external parser
// of pipeline descriptions. It can be decoded from YAML or JSON.
type Description struct {
	Name  string            `yaml:"name" json:"name"`
	Nodes []NodeDescription `yaml:"nodes" json:"nodes"`
	Edges []EdgeDescription `yaml:"edges" json:"edges"`
}

// NodeDescription describes a single node.
type NodeDescription struct {
	Name   string         `yaml:"name" json:"name"`
	Kind   Kind           `yaml:"kind" json:"kind"`
	Spec   tensor.SetSpec `yaml:"spec,omitempty" json:"spec,omitempty"`
	Filter string         `yaml:"filter,omitempty" json:"filter,omitempty"`
	Open   *bool          `yaml:"open,omitempty" json:"open,omitempty"`
	Pads   []string       `yaml:"pads,omitempty,flow" json:"pads,omitempty"`
	Active string         `yaml:"active,omitempty" json:"active,omitempty"`
}

// EdgeDescription describes a single edge.
type EdgeDescription struct {
	From string `yaml:"from" json:"from"`
	Pad  string `yaml:"pad,omitempty" json:"pad,omitempty"`
	To   string `yaml:"to" json:"to"`
}

// Decode reads description in YAML format. JSON is accepted as well.
func Decode(r io.Reader) (*Description, error) {
	var d Description
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("error decoding graph description: %w", err)
	}
	return &d, nil
}

// Encode writes description in YAML format.
func (d *Description) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}

// Builder converts description into graph builder. Valves are open
// unless stated otherwise.
func (d *Description) Builder() *Builder {
	b := New(d.Name)
	for _, n := range d.Nodes {
		node := Node{
			Name:   n.Name,
			Kind:   n.Kind,
			Spec:   n.Spec,
			Filter: n.Filter,
			Open:   n.Open == nil || *n.Open,
			Pads:   n.Pads,
			Active: n.Active,
		}
		b.AddNode(node)
	}
	for _, e := range d.Edges {
		b.ConnectPad(e.From, e.Pad, e.To)
	}
	return b
}

// Describe returns description of the built graph. Negotiated specs are
// not included, only the declared ones.
func (g *Graph) Describe() *Description {
	d := Description{Name: g.name}
	for _, name := range g.order {
		n := g.nodes[name]
		nd := NodeDescription{
			Name:   n.Name,
			Kind:   n.Kind,
			Spec:   n.Spec.Clone(),
			Filter: n.Filter,
		}
		switch n.Kind {
		case Valve:
			open := n.Open
			nd.Open = &open
		case Selector:
			nd.Pads = append([]string(nil), n.Pads...)
			nd.Active = n.Active
		}
		d.Nodes = append(d.Nodes, nd)
	}
	for _, e := range g.Edges() {
		d.Edges = append(d.Edges, EdgeDescription{From: e.From, Pad: e.Pad, To: e.To})
	}
	return &d
}

// normalize returns a copy with nodes and edges sorted, so equal
// topologies produce equal encodings.
func (d *Description) normalize() *Description {
	n := Description{
		Name:  d.Name,
		Nodes: append([]NodeDescription(nil), d.Nodes...),
		Edges: append([]EdgeDescription(nil), d.Edges...),
	}
	sort.SliceStable(n.Nodes, func(i, j int) bool {
		return n.Nodes[i].Name < n.Nodes[j].Name
	})
	sort.SliceStable(n.Edges, func(i, j int) bool {
		a, b := n.Edges[i], n.Edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.Pad != b.Pad {
			return a.Pad < b.Pad
		}
		return a.To < b.To
	})
	return &n
}

// Diff returns unified diff between normalized descriptions. Empty string
// means topologies are equal.
func Diff(a, b *Description) (string, error) {
	var ab, bb bytes.Buffer
	if err := a.normalize().Encode(&ab); err != nil {
		return "", err
	}
	if err := b.normalize().Encode(&bb); err != nil {
		return "", err
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(ab.String()),
		B:        difflib.SplitLines(bb.String()),
		FromFile: a.Name,
		ToFile:   b.Name,
		Context:  3,
	})
}
