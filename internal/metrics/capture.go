package metrics

import (
	"fmt"
	"time"

	dto "github.com/prometheus/client_model/go"

	"firestige.xyz/pulse/internal/core"
)

// Source returns the current set of metric data points.
type Source interface {
	Capture() ([]core.Event, error)
}

// Ensure reports a missing snapshot source. It is checked once at startup;
// a missing source is a configuration error, never a per-tick one.
func Ensure(src Source) error {
	if src == nil {
		return core.ErrMetricsNotInitialized
	}
	if c, ok := src.(*Controller); ok && c == nil {
		return core.ErrMetricsNotInitialized
	}
	return nil
}

// Capture gathers the registry once and converts every sample into a metric
// event stamped with the capture time.
func (c *Controller) Capture() ([]core.Event, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCaptureFailed, err)
	}
	now := time.Now()
	return convertFamilies(families, now), nil
}

func convertFamilies(families []*dto.MetricFamily, now time.Time) []core.Event {
	var events []core.Event
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			value, ok := convertValue(mf.GetType(), m)
			if !ok {
				continue
			}
			ts := now
			events = append(events, core.MetricEventOf(&core.Metric{
				Name:      mf.GetName(),
				Tags:      convertLabels(m.GetLabel()),
				Value:     value,
				Timestamp: &ts,
			}))
		}
	}
	return events
}

func convertLabels(pairs []*dto.LabelPair) core.Tags {
	if len(pairs) == 0 {
		return nil
	}
	tags := make(core.Tags, len(pairs))
	for _, p := range pairs {
		tags[p.GetName()] = p.GetValue()
	}
	return tags
}

func convertValue(typ dto.MetricType, m *dto.Metric) (core.MetricValue, bool) {
	switch typ {
	case dto.MetricType_COUNTER:
		return core.Counter{Value: m.GetCounter().GetValue()}, true
	case dto.MetricType_GAUGE:
		return core.Gauge{Value: m.GetGauge().GetValue()}, true
	case dto.MetricType_UNTYPED:
		return core.Gauge{Value: m.GetUntyped().GetValue()}, true
	case dto.MetricType_SUMMARY:
		s := m.GetSummary()
		return core.Distribution{Count: s.GetSampleCount(), Sum: s.GetSampleSum()}, true
	case dto.MetricType_HISTOGRAM, dto.MetricType_GAUGE_HISTOGRAM:
		h := m.GetHistogram()
		return core.Distribution{Count: h.GetSampleCount(), Sum: h.GetSampleSum()}, true
	default:
		return nil, false
	}
}
