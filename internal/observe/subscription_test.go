package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pulse/internal/core"
	"firestige.xyz/pulse/internal/metrics"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "stream closed")
		return v
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for stream")
	}
	var zero T
	return zero
}

func eventSnapshots(values ...float64) [][]core.Event {
	out := make([][]core.Event, len(values))
	for i, v := range values {
		out[i] = events(counter("events_processed_total",
			map[string]string{"component_name": "in", "component_type": "generator", "origin": "generator"}, v))
	}
	return out
}

func TestValidateInterval(t *testing.T) {
	assert.NoError(t, ValidateInterval(MinInterval))
	assert.NoError(t, ValidateInterval(MaxInterval))
	assert.ErrorIs(t, ValidateInterval(MinInterval-1), core.ErrIntervalOutOfRange)
	assert.ErrorIs(t, ValidateInterval(MaxInterval+1), core.ErrIntervalOutOfRange)
}

func TestSubscriptionRejectsBadInterval(t *testing.T) {
	subs := NewSubscriptions(&fakeSource{}, registry())

	_, err := subs.EventsProcessedTotal(context.Background(), 5)
	assert.ErrorIs(t, err, core.ErrIntervalOutOfRange)

	_, err = subs.Subscribe(context.Background(), "uptime", 70_000)
	assert.ErrorIs(t, err, core.ErrIntervalOutOfRange)
}

func TestSubscribeUnknownQuery(t *testing.T) {
	subs := NewSubscriptions(&fakeSource{}, registry())

	_, err := subs.Subscribe(context.Background(), "nope", DefaultInterval)
	assert.ErrorIs(t, err, core.ErrUnknownQuery)
}

func TestQueriesSorted(t *testing.T) {
	names := Queries()
	assert.Contains(t, names, "component_events_processed_throughputs")
	assert.Contains(t, names, "errors_total")
	assert.IsIncreasing(t, names)
}

func TestSampleEmitsImmediatelyAndClosesOnCancel(t *testing.T) {
	src := &fakeSource{snapshots: eventSnapshots(10)}
	ctx, cancel := context.WithCancel(context.Background())

	ch := Sample(ctx, src, time.Minute)
	m := receive(t, ch)
	assert.Equal(t, "events_processed_total", m.Name)

	cancel()
	for range ch {
	}
	assert.Equal(t, 1, src.Calls())
}

func TestSampleSkipsFailedCapture(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := Sample(ctx, src, MinInterval*time.Millisecond)

	// A failed tick is skipped and sampling carries on.
	require.Eventually(t, func() bool { return src.Calls() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.Empty(t, drain(ch))
}

func TestEventsProcessedThroughputStream(t *testing.T) {
	subs := NewSubscriptions(&fakeSource{snapshots: eventSnapshots(10, 15, 15, 22)}, registry())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := subs.EventsProcessedThroughput(ctx, MinInterval)
	require.NoError(t, err)

	assert.Equal(t, int64(5), receive(t, ch))
	assert.Equal(t, int64(7), receive(t, ch))
}

func TestComponentEventsProcessedThroughputsStream(t *testing.T) {
	subs := NewSubscriptions(&fakeSource{snapshots: eventSnapshots(10, 15, 15, 22)}, registry())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := subs.ComponentEventsProcessedThroughputs(ctx, MinInterval)
	require.NoError(t, err)

	for _, want := range []int64{5, 0, 7} {
		batch := receive(t, ch)
		require.Len(t, batch, 1)
		assert.Equal(t, ComponentThroughput{Component: "in", Throughput: want}, batch[0])
	}
}

func TestSubscribeErasesType(t *testing.T) {
	subs := NewSubscriptions(&fakeSource{snapshots: eventSnapshots(3)}, registry())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := subs.Subscribe(ctx, "component_events_processed_totals", MinInterval)
	require.NoError(t, err)

	v := receive(t, ch)
	totals, ok := v.([]Total)
	require.True(t, ok)
	require.Len(t, totals, 1)
	assert.Equal(t, "in", totals[0].Component)
	assert.Equal(t, 3.0, totals[0].Value)
	assert.NotContains(t, totals[0].Tags, core.TagOrigin)
}

func TestPointQueries(t *testing.T) {
	src := &fakeSource{snapshots: [][]core.Event{events(
		counter("events_processed_total", map[string]string{"component_name": "in"}, 8),
		counter("processed_bytes_total", map[string]string{"component_name": "in"}, 800),
	)}}
	subs := NewSubscriptions(src, registry())

	total, err := subs.ComponentEventsProcessedTotal("in")
	require.NoError(t, err)
	assert.Equal(t, 8.0, total.Value)

	total, err = subs.ComponentBytesProcessedTotal("in")
	require.NoError(t, err)
	assert.Equal(t, 800.0, total.Value)

	_, err = subs.ComponentEventsProcessedTotal("missing")
	assert.ErrorIs(t, err, core.ErrComponentNotFound)
}

func TestSnapshotOverController(t *testing.T) {
	ctl := metrics.NewController(metrics.Options{})
	ctl.Recorder("in", "source", "generator", "generator").Processed(4, 40)
	ctl.Recorder("in", "source", "generator", "fanout").Processed(6, 60)
	ctl.Recorder("parse", "transform", "add_fields", "add_fields").Error()

	subs := NewSubscriptions(ctl, registry())
	totals, err := subs.Snapshot()
	require.NoError(t, err)

	byKey := make(map[string]float64)
	for _, total := range totals {
		byKey[total.Component+"/"+total.Name] = total.Value
		assert.NotContains(t, total.Tags, core.TagOrigin)
	}
	assert.Equal(t, 4.0, byKey["in/"+metrics.EventsProcessedTotal])
	assert.Equal(t, 40.0, byKey["in/"+metrics.ProcessedBytesTotal])
	assert.Equal(t, 1.0, byKey["parse/"+metrics.ProcessingErrorsTotal])
	assert.Equal(t, "in", totals[0].Component)
}
