package tap

import (
	"log/slog"
	"sync"
	"time"
)

// ControlKind is the operation a Control message asks for.
type ControlKind int

const (
	Start ControlKind = iota + 1
	Stop
)

func (k ControlKind) String() string {
	switch k {
	case Start:
		return "start"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Control attaches or detaches a sink.
type Control struct {
	Kind ControlKind
	Sink *Sink
}

// ControlMessage is what the topology's control loop consumes.
type ControlMessage struct {
	Tap Control
}

// sendTimeout bounds how long a controller waits on a control loop that
// is no longer draining its channel, e.g. during shutdown.
const sendTimeout = time.Second

// Controller ties a sink's registration to a scope: creating it starts the
// tap, closing it stops the tap. Use it as
//
//	ctl := tap.NewController(topo.Control(), sink)
//	defer ctl.Close()
type Controller struct {
	control chan<- ControlMessage
	sink    *Sink
	once    sync.Once
}

// NewController sends Start for sink on control.
func NewController(control chan<- ControlMessage, sink *Sink) *Controller {
	c := &Controller{control: control, sink: sink}
	c.send(Start)
	return c
}

// Sink returns the controlled sink.
func (c *Controller) Sink() *Sink { return c.sink }

// Close sends Stop exactly once and closes the sink.
func (c *Controller) Close() {
	c.once.Do(func() {
		c.send(Stop)
		c.sink.Close()
	})
}

func (c *Controller) send(kind ControlKind) {
	msg := ControlMessage{Tap: Control{Kind: kind, Sink: c.sink}}
	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()

	select {
	case c.control <- msg:
	case <-timer.C:
		slog.Warn("tap control message dropped", "tap_id", c.sink.ID(), "control", kind.String())
	}
}
