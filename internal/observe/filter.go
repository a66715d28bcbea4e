// Package observe turns metric snapshots into per-component, origin-merged
// metric streams and derives throughput from them.
package observe

import (
	"strings"

	"firestige.xyz/pulse/internal/core"
)

type filterKind int

const (
	byName filterKind = iota
	bySuffix
)

// Filter selects metrics by name. The set of filters is closed: exact name
// or name suffix.
type Filter struct {
	kind  filterKind
	value string
}

// ByName matches metrics whose name equals name.
func ByName(name string) Filter {
	return Filter{kind: byName, value: name}
}

// BySuffix matches metrics whose name ends with suffix.
func BySuffix(suffix string) Filter {
	return Filter{kind: bySuffix, value: suffix}
}

// Match reports whether m passes the filter.
func (f Filter) Match(m *core.Metric) bool {
	switch f.kind {
	case bySuffix:
		return strings.HasSuffix(m.Name, f.value)
	default:
		return m.Name == f.value
	}
}

func (f Filter) String() string {
	if f.kind == bySuffix {
		return "*" + f.value
	}
	return f.value
}
