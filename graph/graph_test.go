package graph_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/tensorpipe/filter"
	"github.com/dudk/tensorpipe/graph"
	"github.com/dudk/tensorpipe/tensor"
)

var (
	int32x10   = tensor.SetSpec{tensor.NewSpec(tensor.Int32, 10)}
	float32x10 = tensor.SetSpec{tensor.NewSpec(tensor.Float32, 10)}
	image      = tensor.SetSpec{tensor.NewSpec(tensor.Uint8, 3, 100, 100, 1)}
)

func registry(t *testing.T) *filter.Registry {
	t.Helper()
	r := filter.NewRegistry()
	require.NoError(t, r.Register(filter.Passthrough("passthrough")))
	require.NoError(t, r.Register(filter.Convert("convert", tensor.Float32)))
	require.NoError(t, r.Register(filter.Func{
		FilterName: "reject",
		OutputSpecFunc: func(tensor.SetSpec) (tensor.SetSpec, error) {
			return nil, errors.New("unsupported input")
		},
	}))
	return r
}

func TestBuildChain(t *testing.T) {
	g, err := graph.New("chain").
		AddSource("srcx", int32x10).
		AddFilter("f1", "passthrough").
		AddFilter("f2", "convert").
		AddSink("sinkx").
		Connect("srcx", "f1").
		Connect("f1", "f2").
		Connect("f2", "sinkx").
		Build(registry(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"srcx", "f1", "f2", "sinkx"}, g.Order())
	assert.Equal(t, []string{"srcx"}, g.Sources())
	assert.Equal(t, []string{"sinkx"}, g.Sinks())
	assert.Equal(t, []string{"passthrough", "convert"}, g.Filters())
	assert.True(t, int32x10.Equal(g.InSpec("f2")))
	assert.True(t, float32x10.Equal(g.OutSpec("f2")))
	assert.True(t, float32x10.Equal(g.InSpec("sinkx")))
	in, ok := g.In("sinkx")
	require.True(t, ok)
	assert.True(t, float32x10.Equal(in.Spec))
	assert.Len(t, g.Edges(), 3)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder *graph.Builder
		err     error
	}{
		{
			name: "self loop",
			builder: graph.New("g").
				AddSource("src", int32x10).
				AddFilter("f", "passthrough").
				Connect("src", "f").
				Connect("f", "f"),
			err: graph.ErrCycleDetected,
		},
		{
			name: "filter loop",
			builder: graph.New("g").
				AddSource("src", int32x10).
				AddFilter("a", "passthrough").
				AddFilter("b", "passthrough").
				AddTee("t").
				AddSink("sink").
				Connect("src", "a").
				Connect("a", "t").
				Connect("t", "b").
				Connect("b", "a").
				Connect("t", "sink"),
			err: graph.ErrCycleDetected,
		},
		{
			name: "cycle through source",
			builder: graph.New("g").
				AddSource("src", int32x10).
				AddFilter("a", "passthrough").
				Connect("src", "a").
				Connect("a", "src"),
			err: graph.ErrCycleDetected,
		},
		{
			name: "unknown target",
			builder: graph.New("g").
				AddSource("src", int32x10).
				Connect("src", "sink"),
			err: graph.ErrDanglingEdge,
		},
		{
			name: "unknown pad",
			builder: graph.New("g").
				AddSource("src", int32x10).
				AddSelector("outs", "src_0").
				AddSink("sink").
				Connect("src", "outs").
				ConnectPad("outs", "src_1", "sink"),
			err: graph.ErrDanglingEdge,
		},
		{
			name: "unlinked pad",
			builder: graph.New("g").
				AddSource("src", int32x10).
				AddSelector("outs", "src_0", "src_1").
				AddSink("sink").
				Connect("src", "outs").
				ConnectPad("outs", "src_0", "sink"),
			err: graph.ErrDanglingEdge,
		},
		{
			name: "two inputs",
			builder: graph.New("g").
				AddSource("a", int32x10).
				AddSource("b", int32x10).
				AddSink("sink").
				Connect("a", "sink").
				Connect("b", "sink"),
			err: graph.ErrDanglingEdge,
		},
		{
			name: "no input",
			builder: graph.New("g").
				AddSource("src", int32x10).
				AddSink("sink").
				AddSink("orphan").
				Connect("src", "sink"),
			err: graph.ErrDanglingEdge,
		},
		{
			name: "filter without output",
			builder: graph.New("g").
				AddSource("src", int32x10).
				AddFilter("f", "passthrough").
				Connect("src", "f"),
			err: graph.ErrDanglingEdge,
		},
		{
			name: "duplicate node",
			builder: graph.New("g").
				AddSource("src", int32x10).
				AddSink("src"),
			err: graph.ErrDuplicateName,
		},
		{
			name: "unknown filter",
			builder: graph.New("g").
				AddSource("src", int32x10).
				AddFilter("f", "missing").
				AddSink("sink").
				Connect("src", "f").
				Connect("f", "sink"),
			err: graph.ErrUnknownFilter,
		},
		{
			name: "sink expectation",
			builder: graph.New("g").
				AddSource("src", int32x10).
				AddFilter("f", "convert").
				AddSink("sink").
				Expect("sink", int32x10).
				Connect("src", "f").
				Connect("f", "sink"),
			err: graph.ErrSpecMismatch,
		},
		{
			name: "filter rejects input",
			builder: graph.New("g").
				AddSource("src", int32x10).
				AddFilter("f", "reject").
				AddSink("sink").
				Connect("src", "f").
				Connect("f", "sink"),
			err: graph.ErrSpecMismatch,
		},
		{
			name: "invalid source spec",
			builder: graph.New("g").
				AddSource("src", tensor.SetSpec{tensor.NewSpec(tensor.Int32, 0)}).
				AddSink("sink").
				Connect("src", "sink"),
			err: tensor.ErrInvalidShape,
		},
	}
	for _, test := range tests {
		_, err := test.builder.Build(registry(t))
		assert.ErrorIs(t, err, test.err, test.name)
	}
}

func TestTeeValveSelector(t *testing.T) {
	g, err := graph.New("controls").
		AddSource("srcx", image).
		AddTee("t").
		AddSink("sink1").
		AddValve("valvex", true).
		AddSelector("outs", "src_0", "src_1").
		AddSink("sink2").
		AddSink("sink3").
		Connect("srcx", "t").
		Connect("t", "sink1").
		Connect("t", "valvex").
		Connect("valvex", "outs").
		ConnectPad("outs", "src_0", "sink2").
		ConnectPad("outs", "src_1", "sink3").
		Build(nil)
	require.NoError(t, err)

	outs, ok := g.Node("outs")
	require.True(t, ok)
	assert.Equal(t, "src_0", outs.Active)
	assert.Equal(t, []string{"src_0", "src_1"}, outs.Pads)
	assert.True(t, image.Equal(g.InSpec("sink3")))
	assert.Len(t, g.Out("t"), 2)
	assert.Equal(t, []string{"sink1", "sink2", "sink3"}, g.Sinks())

	dot := g.DotString()
	assert.True(t, strings.HasPrefix(dot, `digraph "controls" {`))
	assert.Contains(t, dot, `"outs" -> "sink3" [label="src_1 {uint8[3:100:100:1]}"]`)
}

func TestDescription(t *testing.T) {
	const topology = `
name: custom
nodes:
  - name: srcx
    kind: source
    spec:
      - {type: int32, dims: [10, 1, 1, 1]}
  - name: f
    kind: filter
    filter: convert
  - name: valvex
    kind: valve
    open: false
  - name: sinkx
    kind: sink
edges:
  - {from: srcx, to: f}
  - {from: f, to: valvex}
  - {from: valvex, to: sinkx}
`
	d, err := graph.Decode(strings.NewReader(topology))
	require.NoError(t, err)
	g, err := d.Builder().Build(registry(t))
	require.NoError(t, err)
	valve, _ := g.Node("valvex")
	assert.False(t, valve.Open)
	assert.Equal(t, tensor.Float32, g.OutSpec("f")[0].Type)

	diff, err := graph.Diff(d, g.Describe())
	require.NoError(t, err)
	assert.Empty(t, diff)

	changed := g.Describe()
	changed.Nodes[1].Filter = "passthrough"
	diff, err = graph.Diff(d, changed)
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^-\s+filter: convert$`, diff)
	assert.Regexp(t, `(?m)^\+\s+filter: passthrough$`, diff)

	_, err = graph.Decode(strings.NewReader("name: x\nnodes:\n  - name: a\n    kind: mixer\n"))
	assert.Error(t, err)
	_, err = graph.Decode(strings.NewReader("name: x\nunknown: 1\n"))
	assert.Error(t, err)
}
