package pipeline

import (
	"sync/atomic"
)

// stageMetrics holds lock-free per-stage counters backing Stats.
type stageMetrics struct {
	Processed atomic.Uint64
	Dropped   atomic.Uint64
	Errors    atomic.Uint64
}

// ComponentStats is a point-in-time copy of one stage's counters.
type ComponentStats struct {
	Processed uint64 `json:"processed"`
	Dropped   uint64 `json:"dropped"`
	Errors    uint64 `json:"errors"`
}

func (m *stageMetrics) snapshot() ComponentStats {
	return ComponentStats{
		Processed: m.Processed.Load(),
		Dropped:   m.Dropped.Load(),
		Errors:    m.Errors.Load(),
	}
}

// Stats represents pipeline statistics.
type Stats struct {
	Running    bool                      `json:"running"`
	Components map[string]ComponentStats `json:"components"`
}
