// Package atlas loads atlas sources into the canonical representation the
// pipeline works with: a per-element label array plus an immutable
// key-to-name LabelTable.
package atlas

import (
	"errors"
	"sort"
)

// ErrIOFailure wraps every failure to read or decode an atlas source.
var ErrIOFailure = errors.New("atlas source unavailable")

// Reserved keys.
const (
	UnknownKey    int32 = -1 // unlabeled surface vertex
	BackgroundKey int32 = 0  // volume background
)

// LabelTable is an immutable mapping from label key to region name.
type LabelTable struct {
	keys  []int32
	names map[int32]string
}

// NewLabelTable copies names into a new table.
func NewLabelTable(names map[int32]string) *LabelTable {
	t := &LabelTable{
		keys:  make([]int32, 0, len(names)),
		names: make(map[int32]string, len(names)),
	}
	for k, v := range names {
		t.keys = append(t.keys, k)
		t.names[k] = v
	}
	sort.Slice(t.keys, func(i, j int) bool { return t.keys[i] < t.keys[j] })
	return t
}

// Len returns the number of entries.
func (t *LabelTable) Len() int {
	return len(t.keys)
}

// Keys returns every key in ascending order.
func (t *LabelTable) Keys() []int32 {
	out := make([]int32, len(t.keys))
	copy(out, t.keys)
	return out
}

// Name returns the name stored under key.
func (t *LabelTable) Name(key int32) (string, bool) {
	name, ok := t.names[key]
	return name, ok
}

// KeysNamed returns, in ascending order, every key whose name is exactly name.
func (t *LabelTable) KeysNamed(name string) []int32 {
	var out []int32
	for _, k := range t.keys {
		if t.names[k] == name {
			out = append(out, k)
		}
	}
	return out
}

// HasName reports whether any key carries name.
func (t *LabelTable) HasName(name string) bool {
	for _, k := range t.keys {
		if t.names[k] == name {
			return true
		}
	}
	return false
}

// Names returns the names in key order.
func (t *LabelTable) Names() []string {
	out := make([]string, len(t.keys))
	for i, k := range t.keys {
		out[i] = t.names[k]
	}
	return out
}
