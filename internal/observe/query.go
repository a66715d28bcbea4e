package observe

import (
	"context"
	"fmt"
	"sort"

	"firestige.xyz/pulse/internal/core"
)

type queryFunc func(s *Subscriptions, ctx context.Context, interval int) (<-chan any, error)

func erase[T any](fn func(*Subscriptions, context.Context, int) (<-chan T, error)) queryFunc {
	return func(s *Subscriptions, ctx context.Context, interval int) (<-chan any, error) {
		ch, err := fn(s, ctx, interval)
		if err != nil {
			return nil, err
		}
		return mapStream(ctx, ch, func(v T) (any, bool) { return v, true }), nil
	}
}

// queries maps the names used by the control socket to subscriptions.
var queries = map[string]queryFunc{
	"uptime":                                 erase((*Subscriptions).Uptime),
	"events_processed_total":                 erase((*Subscriptions).EventsProcessedTotal),
	"events_processed_throughput":            erase((*Subscriptions).EventsProcessedThroughput),
	"component_events_processed_throughputs": erase((*Subscriptions).ComponentEventsProcessedThroughputs),
	"component_events_processed_totals":      erase((*Subscriptions).ComponentEventsProcessedTotals),
	"bytes_processed_total":                  erase((*Subscriptions).BytesProcessedTotal),
	"bytes_processed_throughput":             erase((*Subscriptions).BytesProcessedThroughput),
	"component_bytes_processed_totals":       erase((*Subscriptions).ComponentBytesProcessedTotals),
	"component_bytes_processed_throughputs":  erase((*Subscriptions).ComponentBytesProcessedThroughputs),
	"errors_total":                           erase((*Subscriptions).ErrorsTotal),
	"component_errors_totals":                erase((*Subscriptions).ComponentErrorsTotals),
	"metrics":                                erase((*Subscriptions).Metrics),
}

// Queries lists the subscription names accepted by Subscribe.
func Queries() []string {
	names := make([]string, 0, len(queries))
	for name := range queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subscribe starts the named subscription.
func (s *Subscriptions) Subscribe(ctx context.Context, query string, interval int) (<-chan any, error) {
	fn, ok := queries[query]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownQuery, query)
	}
	return fn(s, ctx, interval)
}

// Snapshot captures once and returns the aggregated per-component view.
func (s *Subscriptions) Snapshot() ([]Total, error) {
	events, err := s.Source.Capture()
	if err != nil {
		return nil, err
	}
	batch := ComponentMetrics(events, s.Roles)
	out := make([]Total, len(batch))
	for i, m := range batch {
		out[i] = NewTotal(m)
	}
	return out, nil
}
