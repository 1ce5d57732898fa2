package regions

import (
	"strings"

	"github.com/Faultbox/atlasmesh/internal/atlas"
	"github.com/Faultbox/atlasmesh/pkg/encoding"
)

// MatchStrategy decides whether an atlas name satisfies a candidate option.
type MatchStrategy struct {
	Name  string
	Match func(option, name string) bool
}

// DefaultStrategies are tried in order for every option: exact, then
// Unicode case-insensitive, then substring in either direction.
var DefaultStrategies = []MatchStrategy{
	{Name: "exact", Match: matchExact},
	{Name: "case-insensitive", Match: matchFolded},
	{Name: "substring", Match: matchSubstring},
}

func matchExact(option, name string) bool {
	return option == name
}

func matchFolded(option, name string) bool {
	return encoding.FoldName(option) == encoding.FoldName(name)
}

// matchSubstring never matches an empty name, which would otherwise be
// contained in every option.
func matchSubstring(option, name string) bool {
	o, n := encoding.FoldName(option), encoding.FoldName(name)
	if o == "" || n == "" {
		return false
	}
	return strings.Contains(n, o) || strings.Contains(o, n)
}

// FindClosestLabelKey returns the key best matching options using
// DefaultStrategies.
func FindClosestLabelKey(table *atlas.LabelTable, options []string) (int32, bool) {
	key, _, ok := FindClosestLabelKeyWith(table, options, DefaultStrategies)
	return key, ok
}

// FindClosestLabelKeyWith tries each option in priority order; for each
// option every strategy is run over the whole table in ascending key order.
// The first hit wins and its strategy name is returned.
func FindClosestLabelKeyWith(table *atlas.LabelTable, options []string, strategies []MatchStrategy) (int32, string, bool) {
	keys := table.Keys()
	for _, opt := range options {
		for _, st := range strategies {
			for _, k := range keys {
				name, _ := table.Name(k)
				if st.Match(opt, name) {
					return k, st.Name, true
				}
			}
		}
	}
	return 0, "", false
}
