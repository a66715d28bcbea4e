package command

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pulse/internal/component"
	"firestige.xyz/pulse/internal/core"
	"firestige.xyz/pulse/internal/metrics"
	"firestige.xyz/pulse/internal/observe"
	"firestige.xyz/pulse/internal/tap"
	"firestige.xyz/pulse/internal/topology"
)

type fixture struct {
	handler  *CommandHandler
	metrics  *metrics.Controller
	topology *topology.Topology
	fanout   *topology.Fanout
}

type fakeReloader struct {
	calls int
	err   error
}

func (r *fakeReloader) Reload() error {
	r.calls++
	return r.err
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctl := metrics.NewController(metrics.Options{})
	ctl.Recorder("in", "source", "generator", "generator").Processed(4, 40)
	ctl.Recorder("in", "source", "generator", "fanout").Processed(6, 60)
	ctl.Recorder("out", "sink", "console", "console").Processed(3, 30)

	registry := component.NewRegistry(
		component.Component{Name: "in", Type: "generator", Role: component.Source},
		component.Component{Name: "out", Type: "console", Role: component.Sink},
	)

	topo := topology.New()
	fanout := topology.NewFanout("in", nil)
	topo.Reload(map[string]*topology.Fanout{"in": fanout})
	ctx, cancel := context.WithCancel(context.Background())
	topo.Run(ctx)
	t.Cleanup(func() {
		cancel()
		topo.Wait()
	})

	h := NewCommandHandler(Options{
		Subscriptions: observe.NewSubscriptions(ctl, registry),
		Registry:      registry,
		Taps:          topo,
		Reloader:      &fakeReloader{},
		TapBufferSize: 8,
	})
	return &fixture{handler: h, metrics: ctl, topology: topo, fanout: fanout}
}

func params(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestHandleComponentsList(t *testing.T) {
	f := newFixture(t)

	resp := f.handler.Handle(context.Background(), Command{Method: MethodComponentsList, ID: "1"})
	require.Nil(t, resp.Error)
	assert.Equal(t, "1", resp.ID)
	assert.Equal(t, []ComponentInfo{
		{Name: "in", Type: "generator", Role: "source"},
		{Name: "out", Type: "console", Role: "sink"},
	}, resp.Result)
}

func TestHandleMetricsSnapshot(t *testing.T) {
	f := newFixture(t)

	resp := f.handler.Handle(context.Background(), Command{Method: MethodMetricsSnapshot, ID: "1"})
	require.Nil(t, resp.Error)

	totals, ok := resp.Result.([]observe.Total)
	require.True(t, ok)
	found := false
	for _, total := range totals {
		if total.Component == "in" && total.Name == metrics.EventsProcessedTotal {
			found = true
			assert.Equal(t, 4.0, total.Value)
		}
	}
	assert.True(t, found)
}

func TestHandleComponentTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.handler.Handle(ctx, Command{Method: MethodComponentTotal, ID: "1",
		Params: params(t, ComponentTotalParams{Component: "out", Metric: "bytes"})})
	require.Nil(t, resp.Error)
	assert.Equal(t, 30.0, resp.Result.(observe.Total).Value)

	resp = f.handler.Handle(ctx, Command{Method: MethodComponentTotal, ID: "2",
		Params: params(t, ComponentTotalParams{Component: "ghost"})})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)

	resp = f.handler.Handle(ctx, Command{Method: MethodComponentTotal, ID: "3",
		Params: params(t, ComponentTotalParams{Component: "out", Metric: "latency"})})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)

	resp = f.handler.Handle(ctx, Command{Method: MethodComponentTotal, ID: "4", Params: json.RawMessage(`{`)})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
}

func TestHandleUnknownAndStreamingMethods(t *testing.T) {
	f := newFixture(t)

	resp := f.handler.Handle(context.Background(), Command{Method: "task_create", ID: "1"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)

	resp = f.handler.Handle(context.Background(), Command{Method: MethodSubscribe, ID: "2"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidRequest, resp.Error.Code)
}

func TestHandleConfigReload(t *testing.T) {
	reloader := &fakeReloader{}
	h := NewCommandHandler(Options{Reloader: reloader})

	resp := h.Handle(context.Background(), Command{Method: MethodConfigReload, ID: "1"})
	assert.Nil(t, resp.Error)
	assert.Equal(t, 1, reloader.calls)

	reloader.err = errors.New("bad yaml")
	resp = h.Handle(context.Background(), Command{Method: MethodConfigReload, ID: "2"})
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "bad yaml")

	resp = NewCommandHandler(Options{}).Handle(context.Background(), Command{Method: MethodConfigReload, ID: "3"})
	require.NotNil(t, resp.Error)
}

func TestHandleDaemonStatusAndShutdown(t *testing.T) {
	f := newFixture(t)

	resp := f.handler.Handle(context.Background(), Command{Method: MethodDaemonStatus, ID: "1"})
	require.Nil(t, resp.Error)
	status := resp.Result.(DaemonStatus)
	assert.Equal(t, 2, status.Components)
	assert.Equal(t, observe.Queries(), status.Queries)

	resp = f.handler.Handle(context.Background(), Command{Method: MethodDaemonShutdown, ID: "2"})
	require.NotNil(t, resp.Error)

	called := make(chan struct{})
	f.handler.SetShutdownFunc(func() { close(called) })
	resp = f.handler.Handle(context.Background(), Command{Method: MethodDaemonShutdown, ID: "3"})
	require.Nil(t, resp.Error)
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("shutdown func not called")
	}
}

func TestStreamSubscribe(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []any
	errInfo := f.handler.Stream(ctx, Command{Method: MethodSubscribe, ID: "1",
		Params: params(t, SubscribeParams{Query: "component_events_processed_totals", Interval: observe.MinInterval})},
		func(v any) error {
			got = append(got, v)
			return errors.New("enough")
		})

	assert.Nil(t, errInfo)
	require.Len(t, got, 1)
	totals := got[0].([]observe.Total)
	require.NotEmpty(t, totals)
	assert.Equal(t, "in", totals[0].Component)
}

func TestStreamSubscribeRejects(t *testing.T) {
	f := newFixture(t)
	send := func(any) error { return nil }

	errInfo := f.handler.Stream(context.Background(), Command{Method: MethodSubscribe,
		Params: params(t, SubscribeParams{Query: "nope"})}, send)
	require.NotNil(t, errInfo)
	assert.Equal(t, ErrCodeInvalidParams, errInfo.Code)

	errInfo = f.handler.Stream(context.Background(), Command{Method: MethodSubscribe,
		Params: params(t, SubscribeParams{Query: "uptime", Interval: 1})}, send)
	require.NotNil(t, errInfo)
	assert.Equal(t, ErrCodeInvalidParams, errInfo.Code)

	errInfo = f.handler.Stream(context.Background(), Command{Method: MethodTap,
		Params: params(t, TapParams{})}, send)
	require.NotNil(t, errInfo)
	assert.Equal(t, ErrCodeInvalidParams, errInfo.Code)

	errInfo = f.handler.Stream(context.Background(), Command{Method: MethodDaemonStatus}, send)
	require.NotNil(t, errInfo)
	assert.Equal(t, ErrCodeMethodNotFound, errInfo.Code)
}

func TestStreamTapStopsOnReturn(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan tap.Result, 16)
	done := make(chan *ErrorInfo, 1)
	go func() {
		done <- f.handler.Stream(ctx, Command{Method: MethodTap, Params: params(t, TapParams{Inputs: []string{"in"}})},
			func(v any) error {
				results <- v.(tap.Result)
				return nil
			})
	}()

	first := <-results
	require.True(t, first.IsNotification())
	assert.Equal(t, tap.Matched, first.Notification.Kind)
	require.Eventually(t, func() bool { return f.topology.Taps() == 1 }, 2*time.Second, 5*time.Millisecond)

	f.fanout.Send(core.LogEventOf(core.NewLogEvent("hi")))
	r := <-results
	assert.Equal(t, "in", r.InputName)

	cancel()
	assert.Nil(t, <-done)
	require.Eventually(t, func() bool { return f.topology.Taps() == 0 }, 2*time.Second, 5*time.Millisecond)
}
