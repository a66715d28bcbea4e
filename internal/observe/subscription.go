package observe

import (
	"context"
	"fmt"
	"time"

	"firestige.xyz/pulse/internal/core"
	"firestige.xyz/pulse/internal/metrics"
)

// Interval bounds, in milliseconds, accepted by every subscription.
const (
	MinInterval     = 10
	MaxInterval     = 60_000
	DefaultInterval = 1000
)

// ValidateInterval checks a subscription interval in milliseconds.
func ValidateInterval(ms int) error {
	if ms < MinInterval || ms > MaxInterval {
		return fmt.Errorf("%w: %d ms (must be %d..%d)", core.ErrIntervalOutOfRange, ms, MinInterval, MaxInterval)
	}
	return nil
}

// Total is a single counter or gauge reading.
type Total struct {
	Name      string     `json:"name"`
	Component string     `json:"component,omitempty"`
	Tags      core.Tags  `json:"tags,omitempty"`
	Value     float64    `json:"value"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// NewTotal builds a Total from a metric. Distributions report their sum.
func NewTotal(m *core.Metric) Total {
	component, _ := m.TagValue(core.TagComponentName)
	return Total{
		Name:      m.Name,
		Component: component,
		Tags:      m.Tags,
		Value:     scalar(m.Value),
		Timestamp: m.Timestamp,
	}
}

func scalar(v core.MetricValue) float64 {
	switch v := v.(type) {
	case core.Counter:
		return v.Value
	case core.Gauge:
		return v.Value
	case core.Distribution:
		return v.Sum
	default:
		return 0
	}
}

// ComponentThroughput is one component's per-interval delta.
type ComponentThroughput struct {
	Component  string `json:"component"`
	Throughput int64  `json:"throughput"`
}

// Subscriptions exposes the metric queries offered to subscribers. Every
// call starts its own sampler with its own caches; nothing is shared between
// two subscriptions.
type Subscriptions struct {
	Source metrics.Source
	Roles  RoleLookup
}

// NewSubscriptions creates the query surface over a snapshot source.
func NewSubscriptions(src metrics.Source, roles RoleLookup) *Subscriptions {
	return &Subscriptions{Source: src, Roles: roles}
}

func (s *Subscriptions) metrics(ctx context.Context, interval int) (<-chan *core.Metric, error) {
	if err := ValidateInterval(interval); err != nil {
		return nil, err
	}
	return Sample(ctx, s.Source, time.Duration(interval)*time.Millisecond), nil
}

func (s *Subscriptions) componentMetrics(ctx context.Context, interval int) (<-chan []*core.Metric, error) {
	if err := ValidateInterval(interval); err != nil {
		return nil, err
	}
	return SampleComponents(ctx, s.Source, s.Roles, time.Duration(interval)*time.Millisecond), nil
}

// totals emits a Total for each sampled metric passing filter.
func (s *Subscriptions) totals(ctx context.Context, interval int, filter Filter) (<-chan Total, error) {
	in, err := s.metrics(ctx, interval)
	if err != nil {
		return nil, err
	}
	return mapStream(ctx, in, func(m *core.Metric) (Total, bool) {
		if !filter.Match(m) {
			return Total{}, false
		}
		return NewTotal(m), true
	}), nil
}

func (s *Subscriptions) throughput(ctx context.Context, interval int, filter Filter) (<-chan int64, error) {
	in, err := s.metrics(ctx, interval)
	if err != nil {
		return nil, err
	}
	return mapStream(ctx, CounterThroughput(ctx, in, filter), func(t Throughput) (int64, bool) {
		return int64(t.Value), true
	}), nil
}

func (s *Subscriptions) componentThroughputs(ctx context.Context, interval int, filter Filter) (<-chan []ComponentThroughput, error) {
	in, err := s.componentMetrics(ctx, interval)
	if err != nil {
		return nil, err
	}
	return mapStream(ctx, ComponentCounterThroughputs(ctx, in, filter), func(batch []Throughput) ([]ComponentThroughput, bool) {
		out := make([]ComponentThroughput, 0, len(batch))
		for _, t := range batch {
			name, _ := t.Metric.TagValue(core.TagComponentName)
			out = append(out, ComponentThroughput{Component: name, Throughput: int64(t.Value)})
		}
		return out, true
	}), nil
}

func (s *Subscriptions) componentTotals(ctx context.Context, interval int, filter Filter) (<-chan []Total, error) {
	in, err := s.componentMetrics(ctx, interval)
	if err != nil {
		return nil, err
	}
	return mapStream(ctx, ComponentCounterMetrics(ctx, in, filter), func(batch []*core.Metric) ([]Total, bool) {
		out := make([]Total, len(batch))
		for i, m := range batch {
			out[i] = NewTotal(m)
		}
		return out, true
	}), nil
}

// Uptime streams how long the process has been running.
func (s *Subscriptions) Uptime(ctx context.Context, interval int) (<-chan Total, error) {
	return s.totals(ctx, interval, ByName(metrics.UptimeSeconds))
}

// EventsProcessedTotal streams every events processed reading.
func (s *Subscriptions) EventsProcessedTotal(ctx context.Context, interval int) (<-chan Total, error) {
	return s.totals(ctx, interval, ByName(metrics.EventsProcessedTotal))
}

// EventsProcessedThroughput streams the global events processed throughput.
func (s *Subscriptions) EventsProcessedThroughput(ctx context.Context, interval int) (<-chan int64, error) {
	return s.throughput(ctx, interval, ByName(metrics.EventsProcessedTotal))
}

// ComponentEventsProcessedThroughputs streams per-component events throughput.
func (s *Subscriptions) ComponentEventsProcessedThroughputs(ctx context.Context, interval int) (<-chan []ComponentThroughput, error) {
	return s.componentThroughputs(ctx, interval, ByName(metrics.EventsProcessedTotal))
}

// ComponentEventsProcessedTotals streams per-component events totals, only
// for components whose total grew.
func (s *Subscriptions) ComponentEventsProcessedTotals(ctx context.Context, interval int) (<-chan []Total, error) {
	return s.componentTotals(ctx, interval, ByName(metrics.EventsProcessedTotal))
}

// BytesProcessedTotal streams every bytes processed reading.
func (s *Subscriptions) BytesProcessedTotal(ctx context.Context, interval int) (<-chan Total, error) {
	return s.totals(ctx, interval, ByName(metrics.ProcessedBytesTotal))
}

// BytesProcessedThroughput streams the global bytes processed throughput.
func (s *Subscriptions) BytesProcessedThroughput(ctx context.Context, interval int) (<-chan int64, error) {
	return s.throughput(ctx, interval, ByName(metrics.ProcessedBytesTotal))
}

// ComponentBytesProcessedTotals streams per-component bytes totals, only
// for components whose total grew.
func (s *Subscriptions) ComponentBytesProcessedTotals(ctx context.Context, interval int) (<-chan []Total, error) {
	return s.componentTotals(ctx, interval, ByName(metrics.ProcessedBytesTotal))
}

// ComponentBytesProcessedThroughputs streams per-component bytes throughput.
func (s *Subscriptions) ComponentBytesProcessedThroughputs(ctx context.Context, interval int) (<-chan []ComponentThroughput, error) {
	return s.componentThroughputs(ctx, interval, ByName(metrics.ProcessedBytesTotal))
}

// ErrorsTotal streams every *_errors_total reading.
func (s *Subscriptions) ErrorsTotal(ctx context.Context, interval int) (<-chan Total, error) {
	return s.totals(ctx, interval, BySuffix("_errors_total"))
}

// ComponentErrorsTotals streams per-component error totals that grew.
func (s *Subscriptions) ComponentErrorsTotals(ctx context.Context, interval int) (<-chan []Total, error) {
	return s.componentTotals(ctx, interval, BySuffix("_errors_total"))
}

// Metrics streams uptime, events processed and bytes processed readings.
func (s *Subscriptions) Metrics(ctx context.Context, interval int) (<-chan Total, error) {
	in, err := s.metrics(ctx, interval)
	if err != nil {
		return nil, err
	}
	return mapStream(ctx, in, func(m *core.Metric) (Total, bool) {
		switch m.Name {
		case metrics.UptimeSeconds, metrics.EventsProcessedTotal, metrics.ProcessedBytesTotal:
			return NewTotal(m), true
		default:
			return Total{}, false
		}
	}), nil
}

// ComponentEventsProcessedTotal returns the first events processed reading
// of the named component in a fresh snapshot.
func (s *Subscriptions) ComponentEventsProcessedTotal(name string) (Total, error) {
	return s.componentTotal(name, metrics.EventsProcessedTotal)
}

// ComponentBytesProcessedTotal returns the first bytes processed reading of
// the named component in a fresh snapshot.
func (s *Subscriptions) ComponentBytesProcessedTotal(name string) (Total, error) {
	return s.componentTotal(name, metrics.ProcessedBytesTotal)
}

func (s *Subscriptions) componentTotal(component, metric string) (Total, error) {
	events, err := s.Source.Capture()
	if err != nil {
		return Total{}, err
	}
	for _, ev := range events {
		m, ok := ev.AsMetric()
		if ok && m.Name == metric && m.TagMatches(core.TagComponentName, component) {
			return NewTotal(m), nil
		}
	}
	return Total{}, fmt.Errorf("%w: no %s for %q", core.ErrComponentNotFound, metric, component)
}

// mapStream applies fn to every element of in, dropping elements for which
// fn returns false.
func mapStream[T, U any](ctx context.Context, in <-chan T, fn func(T) (U, bool)) <-chan U {
	out := make(chan U)
	go func() {
		defer close(out)
		for v := range in {
			u, ok := fn(v)
			if !ok {
				continue
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
