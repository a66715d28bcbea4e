// Package core defines core types.
package core

import "sort"

// Tags are the key/value pairs attached to a metric. A nil Tags means the
// metric carries no tags at all, which sorts before any tagged metric.
type Tags map[string]string

// Tag keys understood by the observability layer.
const (
	TagComponentName = "component_name"
	TagComponentType = "component_type"
	TagComponentKind = "component_kind"
	TagOrigin        = "origin"
)

// Value returns the value stored under key.
func (t Tags) Value(key string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t[key]
	return v, ok
}

// Remove deletes key and returns its previous value.
func (t Tags) Remove(key string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t[key]
	if ok {
		delete(t, key)
	}
	return v, ok
}

// Clone returns an independent copy. Cloning nil yields nil.
func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	out := make(Tags, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Equal reports whether both tag sets hold the same pairs. nil only equals nil.
func (t Tags) Equal(o Tags) bool {
	return CompareTags(t, o) == 0
}

// sortedKeys returns the keys in lexicographic order.
func (t Tags) sortedKeys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CompareTags orders tag sets by their sorted (key, value) pairs, comparing
// pair by pair and then by length. nil sorts first.
func CompareTags(a, b Tags) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	ak, bk := a.sortedKeys(), b.sortedKeys()
	for i := 0; i < len(ak) && i < len(bk); i++ {
		if c := compareStrings(ak[i], bk[i]); c != 0 {
			return c
		}
		if c := compareStrings(a[ak[i]], b[bk[i]]); c != 0 {
			return c
		}
	}
	switch {
	case len(ak) < len(bk):
		return -1
	case len(ak) > len(bk):
		return 1
	}
	return 0
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
