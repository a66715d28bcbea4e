// Package topology routes component output to downstream consumers and
// attaches live taps to running components.
package topology

import (
	"sort"
	"sync"
	"sync/atomic"

	"firestige.xyz/pulse/internal/core"
	"firestige.xyz/pulse/internal/metrics"
)

// Fanout copies one component's output to every registered destination.
// Sends never block: a destination whose buffer is full misses the event.
type Fanout struct {
	name     string
	recorder *metrics.Recorder

	mu      sync.RWMutex
	dests   map[string]chan<- core.Event
	closed  bool
	dropped atomic.Uint64
}

// NewFanout creates the fan-out for the named component. recorder may be
// nil; when set, every Send is counted as seen from the fan-out.
func NewFanout(name string, recorder *metrics.Recorder) *Fanout {
	return &Fanout{
		name:     name,
		recorder: recorder,
		dests:    make(map[string]chan<- core.Event),
	}
}

// Name is the owning component.
func (f *Fanout) Name() string { return f.name }

// Add registers dest under key, replacing and closing any previous
// destination with the same key. Adding to a closed fan-out closes dest.
func (f *Fanout) Add(key string, dest chan<- core.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(dest)
		return
	}
	if old, ok := f.dests[key]; ok && old != dest {
		close(old)
	}
	f.dests[key] = dest
}

// Remove unregisters and closes the destination under key.
func (f *Fanout) Remove(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	dest, ok := f.dests[key]
	if !ok {
		return false
	}
	delete(f.dests, key)
	close(dest)
	return true
}

// Has reports whether key is registered.
func (f *Fanout) Has(key string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.dests[key]
	return ok
}

// Keys returns the registered keys, sorted.
func (f *Fanout) Keys() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	keys := make([]string, 0, len(f.dests))
	for k := range f.dests {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Send copies ev to every destination. Each destination gets its own clone.
func (f *Fanout) Send(ev core.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	if f.recorder != nil {
		f.recorder.Processed(1, ev.Size())
	}

	for _, dest := range f.dests {
		select {
		case dest <- ev.Clone():
		default:
			f.dropped.Add(1)
		}
	}
}

// Dropped returns how many copies were discarded on full destinations.
func (f *Fanout) Dropped() uint64 {
	return f.dropped.Load()
}

// Close retires the fan-out. Remaining destinations are unregistered but
// left open: pipeline inputs are shared by several upstreams and belong to
// the pipeline. Later sends are ignored.
func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	clear(f.dests)
}

// Closed reports whether Close has been called.
func (f *Fanout) Closed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.closed
}
