package filters

import (
	"context"
	"regexp"
	"sort"
	"strconv"

	"github.com/culler-io/culler/internal/errkind"
	"github.com/culler-io/culler/internal/inventory"
)

// CountFilter keeps the retained tail of the working set: the Count entries
// that come first in sort order (by name, or by age with use_age) survive,
// the rest do not. Exclude inverts the result to select the action
// candidates instead.
//
// An optional Pattern with exactly one capture group extracts a per-object
// retention count from the name; names that do not match or whose capture
// is not a number fall back to DefaultCount, or to Count when no default is
// given.
type CountFilter struct {
	Exclude   bool `yaml:"exclude"`
	ageParams `yaml:",inline"`

	Count        int    `yaml:"count"`
	Reverse      *bool  `yaml:"reverse"`
	UseAge       bool   `yaml:"use_age"`
	Pattern      string `yaml:"pattern"`
	DefaultCount *int   `yaml:"default_count"`
}

func (f *CountFilter) Kind() Kind { return KindCount }

func (f *CountFilter) reverse() bool {
	if f.Reverse == nil {
		return true
	}
	return *f.Reverse
}

func (f *CountFilter) Validate(cat inventory.Category) error {
	if f.Count <= 0 {
		return errkind.Configf("count must be positive, got %d", f.Count)
	}
	if f.Pattern != "" {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return errkind.Configf("invalid count pattern %q: %v", f.Pattern, err)
		}
		if re.NumSubexp() != 1 {
			return errkind.Preconditionf("count pattern %q must have exactly one capture group, has %d", f.Pattern, re.NumSubexp())
		}
	}
	if f.DefaultCount != nil && *f.DefaultCount < 0 {
		return errkind.Configf("default_count must not be negative, got %d", *f.DefaultCount)
	}
	if f.UseAge {
		return f.ageParams.validate(cat, inventory.SourceCreationDate)
	}
	return nil
}

func (f *CountFilter) Apply(ctx context.Context, inv *inventory.Inventory, ws inventory.WorkingSet) (inventory.WorkingSet, error) {
	ordered, err := orderedNames(ctx, f.ageParams, inv, ws, f.UseAge, f.reverse())
	if err != nil {
		return ws, err
	}

	countFor, err := f.countResolver()
	if err != nil {
		return ws, err
	}

	retained := make(map[string]bool, len(ordered))
	for rank, name := range ordered {
		retained[name] = rank < countFor(name)
	}

	return ws.Keep(func(name string) bool {
		return keep(retained[name], f.Exclude)
	}), nil
}

// countResolver returns the effective retention count per object name.
func (f *CountFilter) countResolver() (func(string) int, error) {
	if f.Pattern == "" {
		return func(string) int { return f.Count }, nil
	}

	re, err := regexp.Compile(f.Pattern)
	if err != nil {
		return nil, errkind.Configf("invalid count pattern %q: %v", f.Pattern, err)
	}
	if re.NumSubexp() != 1 {
		return nil, errkind.Preconditionf("count pattern %q must have exactly one capture group, has %d", f.Pattern, re.NumSubexp())
	}

	fallback := f.Count
	if f.DefaultCount != nil {
		fallback = *f.DefaultCount
	}
	return func(name string) int {
		m := re.FindStringSubmatch(name)
		if m == nil {
			return fallback
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 0 {
			return fallback
		}
		return n
	}, nil
}

// orderedNames sorts the working set for rank-based filters. With byAge the
// order is by resolved age with names as tie-breaker, and objects without a
// resolvable age are left out entirely. reverse=true puts the greatest name
// or the most recent age first.
func orderedNames(ctx context.Context, p ageParams, inv *inventory.Inventory, ws inventory.WorkingSet, byAge, reverse bool) ([]string, error) {
	names := ws.Names()
	if !byAge {
		if reverse {
			sort.Sort(sort.Reverse(sort.StringSlice(names)))
		}
		return names, nil
	}

	ages, err := p.resolveAges(ctx, inv, ws, inventory.SourceCreationDate)
	if err != nil {
		return nil, err
	}
	aged := names[:0]
	for _, name := range names {
		if _, ok := ages[name]; ok {
			aged = append(aged, name)
		}
	}
	sort.Slice(aged, func(i, j int) bool {
		ai, aj := ages[aged[i]], ages[aged[j]]
		if ai != aj {
			if reverse {
				return ai > aj
			}
			return ai < aj
		}
		if reverse {
			return aged[i] > aged[j]
		}
		return aged[i] < aged[j]
	})
	return aged, nil
}
