package inventory

import "sort"

// WorkingSet is an immutable, deduplicated, sorted list of object names.
// Filters consume one and return a new one; a set is never mutated after
// construction, so an Inventory can back several independent pipelines.
type WorkingSet struct {
	names []string
}

// NewWorkingSet builds a WorkingSet from names, deduplicating and sorting.
func NewWorkingSet(names []string) WorkingSet {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return WorkingSet{names: out}
}

// Names returns a copy of the names in sorted order.
func (ws WorkingSet) Names() []string {
	return append([]string(nil), ws.names...)
}

// Len returns the number of names in the set.
func (ws WorkingSet) Len() int {
	return len(ws.names)
}

// Empty reports whether the set holds no names.
func (ws WorkingSet) Empty() bool {
	return len(ws.names) == 0
}

// Contains reports whether name is in the set.
func (ws WorkingSet) Contains(name string) bool {
	i := sort.SearchStrings(ws.names, name)
	return i < len(ws.names) && ws.names[i] == name
}

// Keep returns a new WorkingSet holding the names for which keep is true.
func (ws WorkingSet) Keep(keep func(name string) bool) WorkingSet {
	out := make([]string, 0, len(ws.names))
	for _, n := range ws.names {
		if keep(n) {
			out = append(out, n)
		}
	}
	return WorkingSet{names: out}
}
