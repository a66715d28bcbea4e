// Package metrics implements the pipeline's Prometheus instruments and the
// metric snapshot source the observability layer samples from.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metric names sampled by the observability layer.
const (
	EventsProcessedTotal  = "events_processed_total"
	ProcessedBytesTotal   = "processed_bytes_total"
	ProcessingErrorsTotal = "processing_errors_total"
	UptimeSeconds         = "uptime_seconds"
)

// componentLabels identify the owning component and the measurement point.
var componentLabels = []string{"component_name", "component_kind", "component_type", "origin"}

// Controller owns a private Prometheus registry and the pipeline counters
// registered in it. It is constructed once at startup and passed explicitly
// to everything that records or samples metrics.
type Controller struct {
	registry *prometheus.Registry
	started  time.Time

	eventsProcessed *prometheus.CounterVec
	bytesProcessed  *prometheus.CounterVec
	errors          *prometheus.CounterVec
}

// Options tune controller construction.
type Options struct {
	// ProcessCollectors also registers the Go runtime and process collectors
	// so the scrape endpoint exposes them. They are ignored by the sampler
	// because they carry no component_name tag.
	ProcessCollectors bool
}

// NewController creates a controller with a fresh registry.
func NewController(opts Options) *Controller {
	c := &Controller{
		registry: prometheus.NewRegistry(),
		started:  time.Now(),
		eventsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: EventsProcessedTotal,
				Help: "Total number of events processed by a component",
			},
			componentLabels,
		),
		bytesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: ProcessedBytesTotal,
				Help: "Total number of bytes processed by a component",
			},
			componentLabels,
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: ProcessingErrorsTotal,
				Help: "Total number of processing errors raised by a component",
			},
			componentLabels,
		),
	}

	uptime := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: UptimeSeconds,
			Help: "Seconds since the metrics controller was created",
		},
		func() float64 { return time.Since(c.started).Seconds() },
	)

	c.registry.MustRegister(c.eventsProcessed, c.bytesProcessed, c.errors, uptime)
	if opts.ProcessCollectors {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// Registry returns the underlying registry, e.g. for the scrape endpoint.
func (c *Controller) Registry() *prometheus.Registry {
	return c.registry
}

// Recorder returns the counters for one component as seen from origin.
// The same component may be recorded from several origins; the
// observability layer merges them.
func (c *Controller) Recorder(name, kind, typ, origin string) *Recorder {
	labels := prometheus.Labels{
		"component_name": name,
		"component_kind": kind,
		"component_type": typ,
		"origin":         origin,
	}
	return &Recorder{
		events: c.eventsProcessed.With(labels),
		bytes:  c.bytesProcessed.With(labels),
		errors: c.errors.With(labels),
	}
}

// Forget drops every series of the named component, used when a component
// is removed on reload.
func (c *Controller) Forget(name string) {
	match := prometheus.Labels{"component_name": name}
	c.eventsProcessed.DeletePartialMatch(match)
	c.bytesProcessed.DeletePartialMatch(match)
	c.errors.DeletePartialMatch(match)
}

// Recorder increments one component's counters.
type Recorder struct {
	events prometheus.Counter
	bytes  prometheus.Counter
	errors prometheus.Counter
}

// Processed records events and their byte size.
func (r *Recorder) Processed(events, bytes int) {
	r.events.Add(float64(events))
	r.bytes.Add(float64(bytes))
}

// Error records a processing error.
func (r *Recorder) Error() {
	r.errors.Inc()
}
