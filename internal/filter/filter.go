package filter

import (
	"sort"
	"strings"
)

// Union appends the entries of add that are not already in base, keeping the
// order of first appearance.
func Union(base, add []string) []string {
	seen := make(map[string]struct{}, len(base)+len(add))
	out := make([]string, 0, len(base)+len(add))
	for _, s := range append(append([]string(nil), base...), add...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Scope describes how a task target relates to the exported project.
type Scope int

const (
	// ScopeProject is the exported project itself.
	ScopeProject Scope = iota
	// ScopeSeries is a series of the exported project, e.g. "proj/bionic".
	ScopeSeries
	// ScopeForeign is a different top-level project.
	ScopeForeign
	// ScopeOther is anything else, such as a series of another project.
	ScopeOther
)

// ClassifyTarget reports the scope of a task target name relative to project.
func ClassifyTarget(target, project string) Scope {
	switch {
	case target == project:
		return ScopeProject
	case strings.HasPrefix(target, project+"/"):
		return ScopeSeries
	case !strings.Contains(target, "/"):
		return ScopeForeign
	default:
		return ScopeOther
	}
}

// SeriesName returns the series part of a target such as "proj/bionic".
func SeriesName(target string) string {
	if i := strings.LastIndex(target, "/"); i >= 0 {
		return target[i+1:]
	}
	return target
}
