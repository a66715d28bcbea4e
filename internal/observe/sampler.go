package observe

import (
	"context"
	"log/slog"
	"time"

	"firestige.xyz/pulse/internal/core"
	"firestige.xyz/pulse/internal/metrics"
)

// tick runs fn immediately and then once per interval until ctx is done or
// fn returns false. Cancellation is only observed between ticks and inside
// fn's own sends, never in the middle of a capture.
func tick(ctx context.Context, interval time.Duration, fn func() bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !fn() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// capture takes one snapshot. A failing capture skips the tick.
func capture(src metrics.Source) []core.Event {
	events, err := src.Capture()
	if err != nil {
		slog.Warn("metric capture failed, skipping tick", "error", err)
		return nil
	}
	return events
}

// Sample emits every metric of a snapshot taken every interval. Each tick
// captures once and pushes the whole snapshot, one metric per element, before
// waiting for the next tick. The channel is closed once ctx is done.
func Sample(ctx context.Context, src metrics.Source, interval time.Duration) <-chan *core.Metric {
	out := make(chan *core.Metric)

	go func() {
		defer close(out)
		tick(ctx, interval, func() bool {
			for _, ev := range capture(src) {
				m, ok := ev.AsMetric()
				if !ok {
					continue
				}
				select {
				case out <- m:
				case <-ctx.Done():
					return false
				}
			}
			return true
		})
	}()

	return out
}

// SampleComponents emits, every interval, one snapshot classified and
// aggregated per component (see ComponentMetrics).
func SampleComponents(ctx context.Context, src metrics.Source, roles RoleLookup, interval time.Duration) <-chan []*core.Metric {
	out := make(chan []*core.Metric)

	go func() {
		defer close(out)
		tick(ctx, interval, func() bool {
			batch := ComponentMetrics(capture(src), roles)
			select {
			case out <- batch:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()

	return out
}
