package tensorpipe

import (
	"context"
	"fmt"
	"time"

	"github.com/dudk/tensorpipe/filter"
	"github.com/dudk/tensorpipe/graph"
	"github.com/dudk/tensorpipe/internal/runner"
	"github.com/dudk/tensorpipe/tensor"
)

// propagate walks the message from the node down to sinks. Message is
// owned by propagate and released when it cannot be passed further. Only
// failed filters and selectors return errors.
func (p *Pipeline) propagate(ctx context.Context, r *run, node string, m runner.Message) error {
	if ctx.Err() != nil {
		m.Set.Release()
		return nil
	}
	n := p.nodes[node]
	switch n.Kind {
	case graph.Source:
		p.metrics.Passed(p.name, node, m.Set.Size())
		return p.forward(ctx, r, node, m)
	case graph.Filter:
		out, err := p.invoke(node, n.Filter, m.Set)
		if err != nil {
			return err
		}
		p.metrics.Passed(p.name, node, out.Size())
		m.Set = out
		return p.forward(ctx, r, node, m)
	case graph.Tee:
		return p.tee(ctx, r, node, m)
	case graph.Valve:
		if !m.Controls.Open(node) {
			m.Set.Release()
			p.stats.dropped.Inc()
			p.metrics.Drop(p.name, node)
			return nil
		}
		p.metrics.Passed(p.name, node, m.Set.Size())
		return p.forward(ctx, r, node, m)
	case graph.Selector:
		pad := m.Controls.Active(node)
		for _, e := range p.out[node] {
			if e.Pad == pad {
				p.metrics.Passed(p.name, node, m.Set.Size())
				return p.propagate(ctx, r, e.To, m)
			}
		}
		m.Set.Release()
		return &RunError{Node: node, Err: fmt.Errorf("%w: %q", ErrUnknownPad, pad)}
	case graph.Sink:
		if !runner.Send(ctx, r.sinks[node], m) {
			m.Set.Release()
		}
		return nil
	}
	m.Set.Release()
	return nil
}

func (p *Pipeline) forward(ctx context.Context, r *run, node string, m runner.Message) error {
	return p.propagate(ctx, r, p.out[node][0].To, m)
}

// tee sends independent copy to every branch. Copies are made before the
// first branch is walked, so downstream nodes can modify their sets.
func (p *Pipeline) tee(ctx context.Context, r *run, node string, m runner.Message) error {
	edges := p.out[node]
	sets := make([]*tensor.Set, len(edges))
	for i := 0; i < len(edges)-1; i++ {
		sets[i] = m.Set.Clone()
	}
	sets[len(edges)-1] = m.Set
	p.metrics.Passed(p.name, node, m.Set.Size()*len(edges))
	for i, e := range edges {
		err := p.propagate(ctx, r, e.To, runner.Message{
			Set:      sets[i],
			Controls: m.Controls,
		})
		if err != nil {
			for _, s := range sets[i+1:] {
				s.Release()
			}
			return err
		}
	}
	return nil
}

// invoke calls the filter and checks the produced set. Input buffers not
// reused by the output are released.
func (p *Pipeline) invoke(node, name string, in *tensor.Set) (*tensor.Set, error) {
	inSpec, outSpec := p.graph.InSpec(node), p.graph.OutSpec(node)
	start := time.Now()
	out, err := p.handles[name].Invoke(in, inSpec, outSpec)
	p.metrics.Invoked(p.name, node, time.Since(start))
	if err == nil {
		err = filter.CheckOutput(out, outSpec)
	}
	if err != nil {
		tensor.ReleaseUnshared(out, in)
		in.Release()
		p.log.WithField("node", node).WithError(err).Debug("filter failed")
		return nil, &RunError{Node: node, Err: err}
	}
	tensor.ReleaseUnshared(in, out)
	return out, nil
}
