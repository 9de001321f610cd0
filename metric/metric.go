// Package metric provides prometheus collectors for pipeline nodes.
//
// Nil *Metrics is valid and doesn't capture anything, so components can
// call it unconditionally.
package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	pipelineLabel = "pipeline"
	nodeLabel     = "node"
)

// Metrics contains pipeline and node collectors.
type Metrics struct {
	Sets           *prometheus.CounterVec
	Bytes          *prometheus.CounterVec
	Dropped        *prometheus.CounterVec
	InvokeDuration *prometheus.HistogramVec
	Errors         *prometheus.CounterVec
	State          *prometheus.GaugeVec
}

// New creates collectors in provided namespace.
func New(namespace string) *Metrics {
	labels := []string{pipelineLabel, nodeLabel}
	return &Metrics{
		Sets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "node",
				Name:      "sets_total",
				Help:      "Total number of tensor sets passed through the node",
			},
			labels,
		),
		Bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "node",
				Name:      "bytes_total",
				Help:      "Total number of bytes passed through the node",
			},
			labels,
		),
		Dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "node",
				Name:      "dropped_total",
				Help:      "Total number of tensor sets dropped by the node",
			},
			labels,
		),
		InvokeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "filter",
				Name:      "invoke_duration_seconds",
				Help:      "Filter invoke duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			labels,
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "node",
				Name:      "errors_total",
				Help:      "Total number of node run errors",
			},
			labels,
		),
		State: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "state",
				Help:      "Pipeline state (0=null, 1=ready, 2=paused, 3=playing, 4=unknown)",
			},
			[]string{pipelineLabel},
		),
	}
}

// Register registers all collectors.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Sets, m.Bytes, m.Dropped, m.InvokeDuration, m.Errors, m.State} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Passed captures set that went through the node.
func (m *Metrics) Passed(pipeline, node string, bytes int) {
	if m == nil {
		return
	}
	m.Sets.WithLabelValues(pipeline, node).Inc()
	m.Bytes.WithLabelValues(pipeline, node).Add(float64(bytes))
}

// Drop captures set dropped by the node.
func (m *Metrics) Drop(pipeline, node string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(pipeline, node).Inc()
}

// Invoked captures filter invoke duration.
func (m *Metrics) Invoked(pipeline, node string, d time.Duration) {
	if m == nil {
		return
	}
	m.InvokeDuration.WithLabelValues(pipeline, node).Observe(d.Seconds())
}

// Failed captures run error of the node.
func (m *Metrics) Failed(pipeline, node string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(pipeline, node).Inc()
}

// SetState captures current pipeline state.
func (m *Metrics) SetState(pipeline string, state int) {
	if m == nil {
		return
	}
	m.State.WithLabelValues(pipeline).Set(float64(state))
}
