package topology

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"firestige.xyz/pulse/internal/tap"
)

// DefaultControlBuffer is the capacity of the control channel.
const DefaultControlBuffer = 16

// Topology owns the fan-out of every running component and the set of
// live taps. Taps are kept in an arena keyed by sink id; fan-outs refer to
// tap routes only by key.
type Topology struct {
	mu      sync.Mutex
	fanouts map[string]*Fanout
	taps    map[uuid.UUID]*tap.Sink

	control chan tap.ControlMessage
	wg      sync.WaitGroup
}

// New creates an empty topology.
func New() *Topology {
	return &Topology{
		fanouts: make(map[string]*Fanout),
		taps:    make(map[uuid.UUID]*tap.Sink),
		control: make(chan tap.ControlMessage, DefaultControlBuffer),
	}
}

// Control is the channel tap controllers send Start and Stop on.
func (t *Topology) Control() chan<- tap.ControlMessage {
	return t.control
}

// Run starts the control loop. It returns immediately; the loop ends when
// ctx is done. Use Wait to block until it has.
func (t *Topology) Run(ctx context.Context) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ctx.Done():
				t.detachAll()
				return
			case msg := <-t.control:
				t.handle(msg)
			}
		}
	}()
}

// Wait blocks until the control loop has exited.
func (t *Topology) Wait() {
	t.wg.Wait()
}

func (t *Topology) handle(msg tap.ControlMessage) {
	ctl := msg.Tap
	if ctl.Sink == nil {
		return
	}
	switch ctl.Kind {
	case tap.Start:
		t.start(ctl.Sink)
	case tap.Stop:
		t.stop(ctl.Sink.ID())
	default:
		slog.Warn("unknown tap control", "kind", ctl.Kind.String())
	}
}

func (t *Topology) start(sink *tap.Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := sink.ID()
	if _, ok := t.taps[id]; ok {
		return
	}
	t.taps[id] = sink
	t.resolve(sink)
	slog.Info("tap started", "tap_id", id, "inputs", sink.InputNames())
}

func (t *Topology) stop(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sink, ok := t.taps[id]
	if !ok {
		return
	}
	t.detach(sink)
	delete(t.taps, id)
	slog.Info("tap stopped", "tap_id", id)
}

// resolve attaches sink to every live component among its inputs and
// notifies it of each match state. Callers hold t.mu.
func (t *Topology) resolve(sink *tap.Sink) {
	inputs := sink.Inputs()
	for _, name := range sink.InputNames() {
		fanout, ok := t.fanouts[name]
		if !ok {
			sink.ComponentNotMatched(name)
			continue
		}
		if !fanout.Has(inputs[name].String()) {
			key, dest, ok := sink.MakeOutput(name)
			if !ok {
				continue
			}
			fanout.Add(key, dest)
		}
		sink.ComponentMatched(name)
	}
}

// detach removes every route of sink. Callers hold t.mu.
func (t *Topology) detach(sink *tap.Sink) {
	for name, id := range sink.Inputs() {
		if fanout, ok := t.fanouts[name]; ok {
			fanout.Remove(id.String())
		}
	}
}

func (t *Topology) detachAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, sink := range t.taps {
		t.detach(sink)
		delete(t.taps, id)
	}
}

// Reload swaps in the fan-outs of a rebuilt pipeline. Routes on fan-outs
// being replaced are closed and the old fan-outs retired, then every live
// tap is resolved again and receives fresh match notifications.
func (t *Topology) Reload(fanouts map[string]*Fanout) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for name, old := range t.fanouts {
		if fanouts[name] == old {
			continue
		}
		for _, sink := range t.taps {
			if id, ok := sink.Inputs()[name]; ok {
				old.Remove(id.String())
			}
		}
		old.Close()
	}

	t.fanouts = make(map[string]*Fanout, len(fanouts))
	for name, f := range fanouts {
		t.fanouts[name] = f
	}
	for _, sink := range t.taps {
		t.resolve(sink)
	}
}

// Fanout returns the fan-out of a running component.
func (t *Topology) Fanout(name string) (*Fanout, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.fanouts[name]
	return f, ok
}

// Components lists the running components, sorted.
func (t *Topology) Components() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.fanouts))
	for name := range t.fanouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Taps returns the number of live taps.
func (t *Topology) Taps() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.taps)
}
