// Package graph builds validated processing topologies out of named nodes
// and the edges between them.
package graph

import (
	"fmt"

	"github.com/dudk/tensorpipe/tensor"
)

// Kind identifies the role of the node in the graph.
type Kind int

// Node kinds.
const (
	Source Kind = iota + 1
	Filter
	Sink
	Tee
	Valve
	Selector
)

var kindNames = map[Kind]string{
	Source:   "source",
	Filter:   "filter",
	Sink:     "sink",
	Tee:      "tee",
	Valve:    "valve",
	Selector: "selector",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown node kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown node kind %q", text)
}

// Node is a named element of the graph. Fields are relevant depending on
// the kind:
//   - Source: Spec is the declared output;
//   - Filter: Filter is the registered filter name, optional Spec is the expected input;
//   - Sink: optional Spec is the expected input;
//   - Valve: Open is the initial state;
//   - Selector: Pads are output pads, Active is the initial pad.
type Node struct {
	Name   string
	Kind   Kind
	Spec   tensor.SetSpec
	Filter string
	Open   bool
	Pads   []string
	Active string
}

// Edge connects output of one node to the input of another. Pad selects
// the output pad of a selector and is empty for other kinds. Spec is
// assigned during the build.
type Edge struct {
	From string
	Pad  string
	To   string
	Spec tensor.SetSpec
}

func (e Edge) String() string {
	if e.Pad != "" {
		return fmt.Sprintf("%s.%s -> %s", e.From, e.Pad, e.To)
	}
	return fmt.Sprintf("%s -> %s", e.From, e.To)
}

// HasPad reports if selector has the pad.
func (n Node) HasPad(pad string) bool {
	for _, p := range n.Pads {
		if p == pad {
			return true
		}
	}
	return false
}

func (n Node) clone() Node {
	c := n
	c.Spec = n.Spec.Clone()
	c.Pads = append([]string(nil), n.Pads...)
	return c
}
