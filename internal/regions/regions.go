// Package regions maps logical region ids to atlas label keys, tolerating
// naming drift between atlas releases.
package regions

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Faultbox/atlasmesh/internal/atlas"
	"github.com/Faultbox/atlasmesh/pkg/encoding"
)

// ErrNoMatch is returned when none of a region's candidates exist in the
// loaded atlas. It is an expected outcome for some atlas versions.
var ErrNoMatch = errors.New("no matching atlas label")

// Category tags a region's output class.
type Category string

const (
	Cortical    Category = "cortical"
	Subcortical Category = "subcortical"
	Cerebellar  Category = "cerebellar"
	Glass       Category = "glass"
)

// Categories lists every category in summary order.
var Categories = []Category{Cortical, Glass, Subcortical, Cerebellar}

// Resolution selects how a Spec's Labels are matched against a table.
type Resolution int

const (
	// ResolveExact unions every key whose name equals one of the labels.
	ResolveExact Resolution = iota
	// ResolveClosest picks the single best key for the first label that
	// matches under the strategy list.
	ResolveClosest
	// ResolveByKeyword unions every key whose folded name contains a label.
	ResolveByKeyword
	// ResolveNonMedial selects everything except the medial wall.
	ResolveNonMedial
)

// Spec describes one logical region.
type Spec struct {
	ID         string
	Category   Category
	Labels     []string
	Resolution Resolution
}

// Selection is a Spec resolved against one LabelTable.
type Selection struct {
	Keys []int32
	// Matched holds the atlas names that produced Keys.
	Matched []string
	// Exclude inverts Keys: every label not listed is selected.
	Exclude bool
	// Strategy names the matching strategy for ResolveClosest.
	Strategy string
}

// Contains reports whether label is selected.
func (s Selection) Contains(label int32) bool {
	i := sort.Search(len(s.Keys), func(i int) bool { return s.Keys[i] >= label })
	found := i < len(s.Keys) && s.Keys[i] == label
	return found != s.Exclude
}

// Mask builds a per-element mask over labels.
func (s Selection) Mask(labels []int32) []bool {
	mask := make([]bool, len(labels))
	for i, l := range labels {
		mask[i] = s.Contains(l)
	}
	return mask
}

// Resolve matches the spec against table. ErrNoMatch is wrapped when nothing
// is selected.
func (s Spec) Resolve(table *atlas.LabelTable) (Selection, error) {
	var sel Selection
	switch s.Resolution {
	case ResolveExact:
		sel.Keys = ResolveLabels(s.Labels, table)
	case ResolveClosest:
		key, strategy, ok := FindClosestLabelKeyWith(table, s.Labels, DefaultStrategies)
		if ok {
			sel.Keys = []int32{key}
			sel.Strategy = strategy
		}
	case ResolveByKeyword:
		sel.Keys = ResolveKeywords(table, s.Labels)
	case ResolveNonMedial:
		sel.Keys = MedialWallKeys(table)
		sel.Exclude = true
		return sel, nil
	default:
		return sel, fmt.Errorf("region %s: unknown resolution %d", s.ID, s.Resolution)
	}

	if len(sel.Keys) == 0 {
		return sel, fmt.Errorf("%w: region %s, tried %q", ErrNoMatch, s.ID, s.Labels)
	}
	for _, k := range sel.Keys {
		name, _ := table.Name(k)
		sel.Matched = append(sel.Matched, name)
	}
	return sel, nil
}

// ResolveLabels returns, ascending and without repeats, every key whose name
// exactly equals one of the candidates.
func ResolveLabels(candidates []string, table *atlas.LabelTable) []int32 {
	seen := make(map[int32]struct{})
	var keys []int32
	for _, c := range candidates {
		for _, k := range table.KeysNamed(c) {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ResolveKeywords returns every key whose case-folded name contains any of
// the keywords.
func ResolveKeywords(table *atlas.LabelTable, keywords []string) []int32 {
	folded := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if f := encoding.FoldName(kw); f != "" {
			folded = append(folded, f)
		}
	}

	var keys []int32
	for _, k := range table.Keys() {
		name, _ := table.Name(k)
		fn := encoding.FoldName(name)
		for _, kw := range folded {
			if strings.Contains(fn, kw) {
				keys = append(keys, k)
				break
			}
		}
	}
	return keys
}

// MedialWallKeys returns the keys whose names mark the medial wall.
func MedialWallKeys(table *atlas.LabelTable) []int32 {
	return ResolveLabels(MedialWallNames, table)
}

// BuildMask returns a mask that is true where labels[i] is one of keys.
func BuildMask(labels []int32, keys []int32) []bool {
	set := make(map[int32]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	mask := make([]bool, len(labels))
	for i, l := range labels {
		_, mask[i] = set[l]
	}
	return mask
}

// MissingLabels lists, sorted, the exact-match candidates of specs that no
// key in table carries.
func MissingLabels(specs []Spec, table *atlas.LabelTable) []string {
	seen := make(map[string]struct{})
	var missing []string
	for _, s := range specs {
		if s.Resolution != ResolveExact {
			continue
		}
		for _, l := range s.Labels {
			if _, dup := seen[l]; dup {
				continue
			}
			seen[l] = struct{}{}
			if !table.HasName(l) {
				missing = append(missing, l)
			}
		}
	}
	sort.Strings(missing)
	return missing
}
