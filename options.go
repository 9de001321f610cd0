package tensorpipe

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/dudk/tensorpipe/metric"
)

// Config contains tunables of the pipeline runtime.
type Config struct {
	// QueueSize is the number of sets every source accepts without
	// blocking the caller.
	QueueSize int `yaml:"queue_size"`
	// CloseTimeout limits how long Stop and Close wait for workers.
	CloseTimeout time.Duration `yaml:"close_timeout"`
	// DeliveryQueue is the number of sets buffered in front of every sink.
	DeliveryQueue int `yaml:"delivery_queue"`
}

// DefaultConfig returns config used when none is provided.
func DefaultConfig() Config {
	return Config{
		QueueSize:     16,
		CloseTimeout:  5 * time.Second,
		DeliveryQueue: 16,
	}
}

// Validate checks that all values are positive.
func (c Config) Validate() error {
	switch {
	case c.QueueSize <= 0:
		return fmt.Errorf("queue size must be positive: %d", c.QueueSize)
	case c.CloseTimeout <= 0:
		return fmt.Errorf("close timeout must be positive: %v", c.CloseTimeout)
	case c.DeliveryQueue <= 0:
		return fmt.Errorf("delivery queue must be positive: %d", c.DeliveryQueue)
	}
	return nil
}

// LoadConfig decodes YAML config. Missing values are taken from
// DefaultConfig.
func LoadConfig(r io.Reader) (Config, error) {
	c := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Option provides a way to set functional parameters to pipeline.
type Option func(p *Pipeline) error

// WithName overrides the name of the graph.
func WithName(name string) Option {
	return func(p *Pipeline) error {
		p.name = name
		return nil
	}
}

// WithLogger sets logger to pipeline. If this option is not provided,
// silent logger is used.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) error {
		p.log = l
		return nil
	}
}

// WithMetrics enables metrics for this pipeline and all its nodes.
func WithMetrics(m *metric.Metrics) Option {
	return func(p *Pipeline) error {
		p.metrics = m
		return nil
	}
}

// WithConfig replaces the whole config.
func WithConfig(c Config) Option {
	return func(p *Pipeline) error {
		if err := c.Validate(); err != nil {
			return err
		}
		p.config = c
		return nil
	}
}

// WithQueueSize sets size of source queues.
func WithQueueSize(n int) Option {
	return func(p *Pipeline) error {
		if n <= 0 {
			return fmt.Errorf("queue size must be positive: %d", n)
		}
		p.config.QueueSize = n
		return nil
	}
}

// WithCloseTimeout sets how long Stop and Close wait for workers.
func WithCloseTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d <= 0 {
			return fmt.Errorf("close timeout must be positive: %v", d)
		}
		p.config.CloseTimeout = d
		return nil
	}
}
