package observe

import (
	"sync"

	"firestige.xyz/pulse/internal/component"
	"firestige.xyz/pulse/internal/core"
)

func counter(name string, tags map[string]string, value float64) *core.Metric {
	return &core.Metric{Name: name, Tags: core.Tags(tags), Value: core.Counter{Value: value}}
}

func events(metrics ...*core.Metric) []core.Event {
	out := make([]core.Event, len(metrics))
	for i, m := range metrics {
		out[i] = core.MetricEventOf(m)
	}
	return out
}

// fakeSource replays snapshots; the last one repeats forever.
type fakeSource struct {
	mu        sync.Mutex
	snapshots [][]core.Event
	calls     int
	err       error
}

func (f *fakeSource) Capture() ([]core.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if i >= len(f.snapshots) {
		i = len(f.snapshots) - 1
	}
	if i < 0 {
		return nil, nil
	}
	return f.snapshots[i], nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func registry() *component.Registry {
	return component.NewRegistry(
		component.Component{Name: "in", Type: "generator", Role: component.Source},
		component.Component{Name: "parse", Type: "add_fields", Role: component.Transform},
		component.Component{Name: "a_out", Type: "console", Role: component.Sink},
		component.Component{Name: "b_out", Type: "blackhole", Role: component.Sink},
	)
}
