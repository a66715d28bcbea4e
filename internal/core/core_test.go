package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareTags(t *testing.T) {
	tests := []struct {
		name string
		a, b Tags
		want int
	}{
		{"both nil", nil, nil, 0},
		{"nil first", nil, Tags{}, -1},
		{"nil last", Tags{"a": "1"}, nil, 1},
		{"equal", Tags{"a": "1", "b": "2"}, Tags{"b": "2", "a": "1"}, 0},
		{"key order", Tags{"a": "9"}, Tags{"b": "0"}, -1},
		{"value order", Tags{"a": "1"}, Tags{"a": "2"}, -1},
		{"prefix shorter", Tags{"a": "1"}, Tags{"a": "1", "b": "1"}, -1},
		{"empty before pair", Tags{}, Tags{"a": "1"}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareTags(tt.a, tt.b))
			assert.Equal(t, -tt.want, CompareTags(tt.b, tt.a))
		})
	}
}

func TestTagsRemove(t *testing.T) {
	tags := Tags{TagOrigin: "generator", TagComponentType: "generator"}

	v, ok := tags.Remove(TagOrigin)
	assert.True(t, ok)
	assert.Equal(t, "generator", v)
	_, ok = tags.Value(TagOrigin)
	assert.False(t, ok)

	var empty Tags
	_, ok = empty.Remove(TagOrigin)
	assert.False(t, ok)
}

func TestTagsClone(t *testing.T) {
	var nilTags Tags
	assert.Nil(t, nilTags.Clone())

	orig := Tags{"a": "1"}
	cp := orig.Clone()
	cp["a"] = "2"
	assert.Equal(t, "1", orig["a"])
}

func TestMetricClone(t *testing.T) {
	m := &Metric{Name: "events_processed_total", Tags: Tags{"a": "1"}, Value: Counter{Value: 3}}
	cp := m.Clone()
	cp.Tags["a"] = "2"

	assert.Equal(t, "1", m.Tags["a"])
	v, ok := cp.CounterValue()
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestMetricTagMatches(t *testing.T) {
	m := &Metric{Name: "x", Tags: Tags{TagComponentName: "in"}}
	assert.True(t, m.TagMatches(TagComponentName, "in"))
	assert.False(t, m.TagMatches(TagComponentName, "out"))
	assert.False(t, m.TagMatches(TagOrigin, "in"))
}

func TestEventUnion(t *testing.T) {
	log := LogEventOf(NewLogEvent("hello"))
	_, ok := log.AsMetric()
	assert.False(t, ok)
	l, ok := log.AsLog()
	assert.True(t, ok)
	msg, _ := l.Get("message")
	assert.Equal(t, "hello", msg)
	assert.Greater(t, log.Size(), 0)

	metric := MetricEventOf(&Metric{Name: "uptime_seconds", Value: Gauge{Value: 1}})
	_, ok = metric.AsLog()
	assert.False(t, ok)
	_, ok = metric.AsMetric()
	assert.True(t, ok)
}

func TestLogEventCloneIsIndependent(t *testing.T) {
	l := NewLogEvent("a")
	cp := l.Clone()
	cp.Insert("extra", 1)

	_, ok := l.Get("extra")
	assert.False(t, ok)
}
