package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pulse/internal/core"
)

func findMetric(events []core.Event, name string, tags core.Tags) *core.Metric {
	for _, ev := range events {
		m, ok := ev.AsMetric()
		if !ok || m.Name != name {
			continue
		}
		if tags == nil || m.Tags.Equal(tags) {
			return m
		}
	}
	return nil
}

func TestCaptureCounters(t *testing.T) {
	c := NewController(Options{})
	c.Recorder("in", "source", "generator", "generator").Processed(3, 120)
	c.Recorder("in", "source", "generator", "fanout").Processed(2, 80)

	events, err := c.Capture()
	require.NoError(t, err)

	m := findMetric(events, EventsProcessedTotal, core.Tags{
		"component_name": "in",
		"component_kind": "source",
		"component_type": "generator",
		"origin":         "generator",
	})
	require.NotNil(t, m)
	assert.Equal(t, core.Counter{Value: 3}, m.Value)
	assert.NotNil(t, m.Timestamp)

	m = findMetric(events, ProcessedBytesTotal, core.Tags{
		"component_name": "in",
		"component_kind": "source",
		"component_type": "generator",
		"origin":         "fanout",
	})
	require.NotNil(t, m)
	assert.Equal(t, core.Counter{Value: 80}, m.Value)
}

func TestCaptureUptimeIsUntaggedGauge(t *testing.T) {
	c := NewController(Options{})

	events, err := c.Capture()
	require.NoError(t, err)

	m := findMetric(events, UptimeSeconds, nil)
	require.NotNil(t, m)
	assert.Nil(t, m.Tags)
	assert.IsType(t, core.Gauge{}, m.Value)
}

func TestCaptureDistribution(t *testing.T) {
	c := NewController(Options{})
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "tap_latency_seconds", Help: "h"})
	c.Registry().MustRegister(h)
	h.Observe(0.5)
	h.Observe(1.5)

	events, err := c.Capture()
	require.NoError(t, err)

	m := findMetric(events, "tap_latency_seconds", nil)
	require.NotNil(t, m)
	assert.Equal(t, core.Distribution{Count: 2, Sum: 2}, m.Value)
}

func TestForget(t *testing.T) {
	c := NewController(Options{})
	c.Recorder("gone", "sink", "console", "console").Processed(1, 1)
	c.Forget("gone")

	events, err := c.Capture()
	require.NoError(t, err)
	assert.Nil(t, findMetric(events, EventsProcessedTotal, nil))
}

func TestEnsure(t *testing.T) {
	assert.ErrorIs(t, Ensure(nil), core.ErrMetricsNotInitialized)

	var typedNil *Controller
	assert.ErrorIs(t, Ensure(typedNil), core.ErrMetricsNotInitialized)

	assert.NoError(t, Ensure(NewController(Options{})))
}

func TestServerExposesRegistry(t *testing.T) {
	c := NewController(Options{})
	c.Recorder("in", "source", "generator", "generator").Processed(1, 10)

	s := NewServer("127.0.0.1:0", "", c.Registry())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), EventsProcessedTotal))
}
