package observe

import (
	"sort"

	"firestige.xyz/pulse/internal/component"
	"firestige.xyz/pulse/internal/core"
	"firestige.xyz/pulse/internal/metrics"
)

// RoleLookup resolves a component name to its role.
type RoleLookup interface {
	Lookup(name string) (component.Role, bool)
}

type ranked struct {
	metric    *core.Metric
	component string
	rank      int
}

// ComponentMetrics classifies one snapshot by owning component and merges
// series that differ only by origin. Output holds all source metrics, then
// transforms, then sinks; components of the same role are ordered by name and
// each component's metrics by (name, tags). Metrics without a component_name
// tag, or naming a component the registry does not know, are dropped.
//
// The input is not modified.
func ComponentMetrics(events []core.Event, roles RoleLookup) []*core.Metric {
	items := make([]ranked, 0, len(events))
	for _, ev := range events {
		m, ok := ev.AsMetric()
		if !ok {
			continue
		}
		name, ok := m.TagValue(core.TagComponentName)
		if !ok {
			continue
		}
		role, ok := roles.Lookup(name)
		if !ok {
			continue
		}
		items = append(items, ranked{metric: m, component: name, rank: role.Rank()})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].rank != items[j].rank {
			return items[i].rank < items[j].rank
		}
		return items[i].component < items[j].component
	})

	out := make([]*core.Metric, 0, len(items))
	for start := 0; start < len(items); {
		end := start + 1
		for end < len(items) && items[end].component == items[start].component {
			end++
		}
		run := make([]*core.Metric, 0, end-start)
		for _, it := range items[start:end] {
			run = append(run, it.metric)
		}
		out = append(out, Aggregate(run)...)
		start = end
	}
	return out
}

type candidate struct {
	metric   *core.Metric
	priority bool
}

// Aggregate merges metrics of one component that share (name, tags) once
// their origin tag is removed. The input metrics are cloned, not modified.
//
// Counters named events_processed_total or processed_bytes_total resolve by
// priority: a reading whose origin equalled its component_type wins over one
// that did not, otherwise the larger value is kept. Other counters are summed.
// Pairs that are not both counters stay unmerged.
func Aggregate(run []*core.Metric) []*core.Metric {
	cands := make([]candidate, len(run))
	for i, m := range run {
		m = m.Clone()
		origin, hasOrigin := m.Tags.Remove(core.TagOrigin)
		typ, hasType := m.TagValue(core.TagComponentType)
		cands[i] = candidate{
			metric:   m,
			priority: hasOrigin == hasType && origin == typ,
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i].metric, cands[j].metric
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return core.CompareTags(a.Tags, b.Tags) < 0
	})

	merged := make([]candidate, 0, len(cands))
	for _, c := range cands {
		if n := len(merged); n > 0 && merge(&merged[n-1], c) {
			continue
		}
		merged = append(merged, c)
	}

	out := make([]*core.Metric, len(merged))
	for i, c := range merged {
		out[i] = c.metric
	}
	return out
}

// merge folds next into acc when both are the same counter series.
func merge(acc *candidate, next candidate) bool {
	if acc.metric.Name != next.metric.Name || !acc.metric.Tags.Equal(next.metric.Tags) {
		return false
	}
	a, ok := next.metric.CounterValue()
	if !ok {
		return false
	}
	b, ok := acc.metric.CounterValue()
	if !ok {
		return false
	}

	var value float64
	switch acc.metric.Name {
	case metrics.EventsProcessedTotal, metrics.ProcessedBytesTotal:
		switch {
		case next.priority && !acc.priority:
			value = a
		case acc.priority && !next.priority:
			value = b
		default:
			value = max(a, b)
		}
		acc.priority = acc.priority || next.priority
	default:
		value = a + b
	}

	acc.metric.Value = core.Counter{Value: value}
	return true
}
