package tap

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"firestige.xyz/pulse/internal/core"
)

// DefaultBufferSize is the capacity of each forwarding channel.
const DefaultBufferSize = 100

// Destination is the send side handed to a component's fan-out. The fan-out
// closes it to retire the route.
type Destination = chan<- core.Event

// Option configures a Sink.
type Option func(*Sink)

// WithBufferSize sets the capacity of forwarding channels made by MakeOutput.
func WithBufferSize(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

// Sink receives copies of events from the components named by its inputs
// and relays them, tagged by input name, to a results channel.
//
// Deliveries never block the sender: results pass through an unbounded
// relay, and once the sink is closed further results are discarded.
type Sink struct {
	id         uuid.UUID
	inputs     map[string]uuid.UUID
	bufferSize int

	queue  chan Result
	done   chan struct{}
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewSink creates a sink for the given input names. Every input gets its
// own UUID used as the route key in fan-outs. results is closed once the
// sink is closed and its relay has drained.
func NewSink(inputNames []string, results chan<- Result, opts ...Option) *Sink {
	s := &Sink{
		id:         uuid.New(),
		inputs:     make(map[string]uuid.UUID, len(inputNames)),
		bufferSize: DefaultBufferSize,
		queue:      make(chan Result),
		done:       make(chan struct{}),
	}
	for _, name := range inputNames {
		if _, ok := s.inputs[name]; !ok {
			s.inputs[name] = uuid.New()
		}
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.relay(results)
	return s
}

// ID is the sink's identity in the topology arena.
func (s *Sink) ID() uuid.UUID { return s.id }

// InputNames returns the configured input names, sorted.
func (s *Sink) InputNames() []string {
	names := make([]string, 0, len(s.inputs))
	for name := range s.inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Inputs returns a copy of the input name to route key mapping.
func (s *Sink) Inputs() map[string]uuid.UUID {
	out := make(map[string]uuid.UUID, len(s.inputs))
	for name, id := range s.inputs {
		out[name] = id
	}
	return out
}

// MakeOutput creates a forwarding route for one input. It returns the
// route key, the channel the fan-out should copy events into, and false if
// name is not one of the sink's inputs or the sink is closed. Each call starts exactly one
// forwarding goroutine, which ends when the channel is closed or the sink
// is closed.
func (s *Sink) MakeOutput(name string) (string, Destination, bool) {
	id, ok := s.inputs[name]
	if !ok {
		return "", nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", nil, false
	}

	ch := make(chan core.Event, s.bufferSize)
	s.wg.Add(1)
	go s.forward(name, ch)
	return id.String(), ch, true
}

// ComponentMatched reports that input name resolved to a running component.
// Names the sink was not created with are ignored.
func (s *Sink) ComponentMatched(name string) {
	if _, ok := s.inputs[name]; ok {
		s.send(NotificationResult(ComponentMatched(name)))
	}
}

// ComponentNotMatched reports that input name resolved to nothing.
func (s *Sink) ComponentNotMatched(name string) {
	if _, ok := s.inputs[name]; ok {
		s.send(NotificationResult(ComponentNotMatched(name)))
	}
}

// Close stops every forwarding goroutine and the relay. It is safe to call
// more than once.
func (s *Sink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Closed reports whether Close has been called.
func (s *Sink) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Sink) forward(name string, in <-chan core.Event) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			log, ok := ev.AsLog()
			if !ok {
				continue
			}
			s.send(LogEventResult(name, log))
		}
	}
}

// send hands r to the relay, dropping it if the sink is closed.
func (s *Sink) send(r Result) {
	select {
	case s.queue <- r:
	case <-s.done:
	}
}

// relay buffers results without bound so a slow subscriber never stalls
// forwarding.
func (s *Sink) relay(results chan<- Result) {
	defer close(results)

	var pending []Result
	for {
		var out chan<- Result
		var head Result
		if len(pending) > 0 {
			out = results
			head = pending[0]
		}

		select {
		case <-s.done:
			if len(pending) > 0 {
				slog.Debug("tap closed with undelivered results", "tap_id", s.id, "dropped", len(pending))
			}
			return
		case r := <-s.queue:
			pending = append(pending, r)
		case out <- head:
			pending[0] = Result{}
			pending = pending[1:]
		}
	}
}
