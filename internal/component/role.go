// Package component implements the component registry.
package component

import (
	"fmt"
	"strings"

	"firestige.xyz/pulse/internal/core"
)

// Role is the topological role of a pipeline component.
type Role int

// Roles in display order.
const (
	Source Role = iota + 1
	Transform
	Sink
)

// Rank returns the sort rank: Source=1, Transform=2, Sink=3.
func (r Role) Rank() int {
	return int(r)
}

func (r Role) String() string {
	switch r {
	case Source:
		return "source"
	case Transform:
		return "transform"
	case Sink:
		return "sink"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole converts "source", "transform" or "sink" (any case) to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "source":
		return Source, nil
	case "transform":
		return Transform, nil
	case "sink":
		return Sink, nil
	default:
		return 0, fmt.Errorf("%w: %q", core.ErrUnknownRole, s)
	}
}

// Component is a registered pipeline component.
type Component struct {
	Name string
	Type string // e.g. "generator", "add_fields", "console"
	Role Role
}
