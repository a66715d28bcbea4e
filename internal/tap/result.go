// Package tap streams a copy of the log events leaving selected components
// to a subscriber, without slowing the pipeline down.
package tap

import (
	"fmt"

	"firestige.xyz/pulse/internal/core"
)

// NotificationKind tells whether a tapped input resolved to a live component.
type NotificationKind int

const (
	Matched NotificationKind = iota + 1
	NotMatched
)

func (k NotificationKind) String() string {
	switch k {
	case Matched:
		return "matched"
	case NotMatched:
		return "not_matched"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON output.
func (k NotificationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind written by MarshalText.
func (k *NotificationKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "matched":
		*k = Matched
	case "not_matched":
		*k = NotMatched
	default:
		return fmt.Errorf("unknown notification kind %q", text)
	}
	return nil
}

// Notification reports the match state of one requested input.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	InputName string           `json:"input_name"`
}

// ComponentMatched is sent when an input name resolves to a running component.
func ComponentMatched(name string) Notification {
	return Notification{Kind: Matched, InputName: name}
}

// ComponentNotMatched is sent when an input name resolves to nothing.
func ComponentNotMatched(name string) Notification {
	return Notification{Kind: NotMatched, InputName: name}
}

// Result is one element of a tap stream: either a log event observed on an
// input or a notification about that input. Exactly one of Event and
// Notification is set.
type Result struct {
	InputName    string         `json:"input_name"`
	Event        *core.LogEvent `json:"event,omitempty"`
	Notification *Notification  `json:"notification,omitempty"`
}

// LogEventResult wraps an event observed on input.
func LogEventResult(input string, ev *core.LogEvent) Result {
	return Result{InputName: input, Event: ev}
}

// NotificationResult wraps a notification.
func NotificationResult(n Notification) Result {
	return Result{InputName: n.InputName, Notification: &n}
}

// IsNotification reports whether r carries a notification.
func (r Result) IsNotification() bool { return r.Notification != nil }
