// Package core defines the event and metric types shared by the pipeline,
// the metric snapshot source and the observability layer.
package core

import (
	"encoding/json"
	"time"
)

// Event is either a log event or a metric. Exactly one field is set.
type Event struct {
	Log    *LogEvent
	Metric *Metric
}

// LogEventOf wraps a log event.
func LogEventOf(l *LogEvent) Event { return Event{Log: l} }

// MetricEventOf wraps a metric.
func MetricEventOf(m *Metric) Event { return Event{Metric: m} }

// AsLog returns the log event, if this is one.
func (e Event) AsLog() (*LogEvent, bool) { return e.Log, e.Log != nil }

// AsMetric returns the metric, if this is one.
func (e Event) AsMetric() (*Metric, bool) { return e.Metric, e.Metric != nil }

// Clone deep-copies the wrapped event so each receiver owns its copy.
func (e Event) Clone() Event {
	switch {
	case e.Log != nil:
		return Event{Log: e.Log.Clone()}
	case e.Metric != nil:
		return Event{Metric: e.Metric.Clone()}
	default:
		return e
	}
}

// Size is a rough byte size used for processed_bytes_total accounting.
func (e Event) Size() int {
	if e.Log != nil {
		return e.Log.Size()
	}
	if e.Metric != nil {
		return len(e.Metric.Name) + 8
	}
	return 0
}

// LogEvent is a structured log line flowing through the pipeline.
type LogEvent struct {
	Fields    map[string]any `json:"fields"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewLogEvent creates a log event holding message under the "message" field.
func NewLogEvent(message string) *LogEvent {
	return &LogEvent{
		Fields:    map[string]any{"message": message},
		Timestamp: time.Now(),
	}
}

// Get returns a field value.
func (l *LogEvent) Get(field string) (any, bool) {
	v, ok := l.Fields[field]
	return v, ok
}

// Insert sets a field value.
func (l *LogEvent) Insert(field string, value any) {
	if l.Fields == nil {
		l.Fields = make(map[string]any)
	}
	l.Fields[field] = value
}

// Clone returns a shallow copy with its own field map, so fan-out
// destinations can mutate independently.
func (l *LogEvent) Clone() *LogEvent {
	fields := make(map[string]any, len(l.Fields))
	for k, v := range l.Fields {
		fields[k] = v
	}
	return &LogEvent{Fields: fields, Timestamp: l.Timestamp}
}

// Size returns the JSON-encoded length of the fields.
func (l *LogEvent) Size() int {
	b, err := json.Marshal(l.Fields)
	if err != nil {
		return 0
	}
	return len(b)
}

// Metric is a single sampled data point.
type Metric struct {
	Name      string
	Tags      Tags
	Value     MetricValue
	Timestamp *time.Time
}

// TagValue returns the value of a tag.
func (m *Metric) TagValue(key string) (string, bool) {
	return m.Tags.Value(key)
}

// TagMatches reports whether tag key is present with the given value.
func (m *Metric) TagMatches(key, value string) bool {
	v, ok := m.Tags.Value(key)
	return ok && v == value
}

// Clone returns a deep copy of the metric.
func (m *Metric) Clone() *Metric {
	out := *m
	out.Tags = m.Tags.Clone()
	if m.Timestamp != nil {
		ts := *m.Timestamp
		out.Timestamp = &ts
	}
	return &out
}

// CounterValue returns the counter value, if the metric is a counter.
func (m *Metric) CounterValue() (float64, bool) {
	c, ok := m.Value.(Counter)
	return c.Value, ok
}

// MetricValue is one of Counter, Gauge or Distribution.
type MetricValue interface {
	metricValue()
}

// Counter is a monotonic-within-origin value.
type Counter struct {
	Value float64
}

// Gauge is a point-in-time value.
type Gauge struct {
	Value float64
}

// Distribution summarises observed samples.
type Distribution struct {
	Count uint64
	Sum   float64
}

func (Counter) metricValue()      {}
func (Gauge) metricValue()        {}
func (Distribution) metricValue() {}
