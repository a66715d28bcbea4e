package observe

import (
	"context"

	"firestige.xyz/pulse/internal/core"
)

// Throughput pairs a counter reading with its delta from the previous one.
type Throughput struct {
	Metric *core.Metric
	Value  float64
}

// CounterThroughput derives a global throughput from successive counter
// readings that pass filter. A reading only produces a value when it exceeds
// the last one seen; the very first value is dropped since it has no
// preceding sample to measure against.
func CounterThroughput(ctx context.Context, in <-chan *core.Metric, filter Filter) <-chan Throughput {
	out := make(chan Throughput)

	go func() {
		defer close(out)
		last := 0.0
		skipped := false
		for m := range in {
			if !filter.Match(m) {
				continue
			}
			value, ok := m.CounterValue()
			if !ok || value <= last {
				continue
			}
			delta := value - last
			last = value
			if !skipped {
				skipped = true
				continue
			}
			select {
			case out <- Throughput{Metric: m, Value: delta}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// ComponentCounterThroughputs derives per-component throughput from
// aggregated batches. Deltas are emitted as-is, zero or negative included,
// since component counters may reset independently. The first batch is
// dropped.
func ComponentCounterThroughputs(ctx context.Context, in <-chan []*core.Metric, filter Filter) <-chan []Throughput {
	out := make(chan []Throughput)

	go func() {
		defer close(out)
		cache := make(map[string]float64)
		skipped := false
		for batch := range in {
			results := make([]Throughput, 0, len(batch))
			for _, m := range batch {
				if !filter.Match(m) {
					continue
				}
				name, ok := m.TagValue(core.TagComponentName)
				if !ok {
					continue
				}
				value, ok := m.CounterValue()
				if !ok {
					continue
				}
				last := cache[name]
				cache[name] = value
				results = append(results, Throughput{Metric: m, Value: value - last})
			}
			if !skipped {
				skipped = true
				continue
			}
			select {
			case out <- results:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// ComponentCounterMetrics passes a component's counter only when it grew
// since the previous batch, so subscribers see changes rather than repeats.
// A counter that resets stays silent until it passes its old high-water mark.
func ComponentCounterMetrics(ctx context.Context, in <-chan []*core.Metric, filter Filter) <-chan []*core.Metric {
	out := make(chan []*core.Metric)

	go func() {
		defer close(out)
		cache := make(map[string]float64)
		for batch := range in {
			results := make([]*core.Metric, 0, len(batch))
			for _, m := range batch {
				if !filter.Match(m) {
					continue
				}
				name, ok := m.TagValue(core.TagComponentName)
				if !ok {
					continue
				}
				value, ok := m.CounterValue()
				if !ok {
					continue
				}
				if value <= cache[name] {
					continue
				}
				cache[name] = value
				results = append(results, m)
			}
			select {
			case out <- results:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
