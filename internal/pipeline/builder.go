package pipeline

import (
	"io"

	"firestige.xyz/pulse/internal/component"
	"firestige.xyz/pulse/internal/metrics"
	"firestige.xyz/pulse/internal/topology"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{
		config: Config{
			BufferSize: 1024, // default
		},
	}
}

// WithMetrics sets the controller components record into.
func (b *Builder) WithMetrics(c *metrics.Controller) *Builder {
	b.config.Metrics = c
	return b
}

// WithTopology sets the topology that receives component fan-outs.
func (b *Builder) WithTopology(t *topology.Topology) *Builder {
	b.config.Topology = t
	return b
}

// WithRegistry sets the registry kept in sync with running components.
func (b *Builder) WithRegistry(r *component.Registry) *Builder {
	b.config.Registry = r
	return b
}

// WithBufferSize sets the per-component input channel buffer size.
func (b *Builder) WithBufferSize(size int) *Builder {
	b.config.BufferSize = size
	return b
}

// WithOutput sets where console sinks targeting stdout write.
func (b *Builder) WithOutput(w io.Writer) *Builder {
	b.config.Env.Output = w
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.config)
}
