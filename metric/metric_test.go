package metric_test

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/tensorpipe/metric"
)

func TestPassed(t *testing.T) {
	m := metric.New("test")
	require.NoError(t, m.Register(prometheus.NewRegistry()))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				m.Passed("p", "sink", 40)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, float64(40), testutil.ToFloat64(m.Sets.WithLabelValues("p", "sink")))
	assert.Equal(t, float64(1600), testutil.ToFloat64(m.Bytes.WithLabelValues("p", "sink")))

	m.Drop("p", "valve")
	m.Failed("p", "filter")
	m.Invoked("p", "filter", time.Millisecond)
	m.SetState("p", 3)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Dropped.WithLabelValues("p", "valve")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Errors.WithLabelValues("p", "filter")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.State.WithLabelValues("p")))
}

func TestRegisterTwice(t *testing.T) {
	r := prometheus.NewRegistry()
	require.NoError(t, metric.New("test").Register(r))
	assert.Error(t, metric.New("test").Register(r))
}

func TestNil(t *testing.T) {
	var m *metric.Metrics
	assert.NotPanics(t, func() {
		m.Passed("p", "n", 1)
		m.Drop("p", "n")
		m.Invoked("p", "n", time.Second)
		m.Failed("p", "n")
		m.SetState("p", 0)
	})
}
