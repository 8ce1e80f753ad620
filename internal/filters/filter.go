// Package filters implements the ordered, composable predicate pipeline
// that narrows a working set of cluster objects.
//
// Each filter kind is a closed, strongly typed variant implementing the
// Filter interface; decoding a declarative {filtertype, exclude, ...}
// tuple dispatches exhaustively on the kind, so an unsupported kind is a
// configuration error before any remote call. Filters never mutate their
// input: every application returns a new working set, which keeps one
// inventory reusable across independent pipelines.
package filters

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/culler-io/culler/internal/age"
	"github.com/culler-io/culler/internal/errkind"
	"github.com/culler-io/culler/internal/inventory"
)

// Kind identifies a filter variant.
type Kind string

// The closed set of filter kinds.
const (
	KindPattern     Kind = "pattern"
	KindAge         Kind = "age"
	KindPeriod      Kind = "period"
	KindCount       Kind = "count"
	KindSpace       Kind = "space"
	KindShards      Kind = "shards"
	KindAllocated   Kind = "allocated"
	KindAlias       Kind = "alias"
	KindForcemerged Kind = "forcemerged"
	KindOpened      Kind = "opened"
	KindClosed      Kind = "closed"
	KindKibana      Kind = "kibana"
	KindIlm         Kind = "ilm"
	KindState       Kind = "state"
	KindNone        Kind = "none"
)

// Filter is one step of the pipeline. Apply consumes a working set and
// returns a new, narrowed one; it never widens and never mutates its
// input. Validate runs before any remote call.
type Filter interface {
	Kind() Kind
	Validate(cat inventory.Category) error
	Apply(ctx context.Context, inv *inventory.Inventory, ws inventory.WorkingSet) (inventory.WorkingSet, error)
}

// keep applies the standard exclude inversion: with exclude false objects
// matching the predicate are retained, with exclude true the complement is.
func keep(match, exclude bool) bool {
	return match != exclude
}

// List is an ordered sequence of filters, decodable from the declarative
// YAML form.
type List []Filter

// UnmarshalYAML decodes a sequence of {filtertype, ...} tuples into typed
// filter variants.
func (l *List) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return errkind.Configf("filters must be a list")
	}

	out := make(List, 0, len(node.Content))
	for i, item := range node.Content {
		f, err := decodeFilter(item)
		if err != nil {
			return fmt.Errorf("filter %d: %w", i, err)
		}
		out = append(out, f)
	}
	*l = out
	return nil
}

func decodeFilter(node *yaml.Node) (Filter, error) {
	var head struct {
		Filtertype string `yaml:"filtertype"`
	}
	if err := node.Decode(&head); err != nil {
		return nil, errkind.Configf("malformed filter: %v", err)
	}
	if head.Filtertype == "" {
		return nil, errkind.Missingf("filtertype is required")
	}

	var f Filter
	switch Kind(head.Filtertype) {
	case KindPattern:
		f = &PatternFilter{}
	case KindAge:
		f = &AgeFilter{}
	case KindPeriod:
		f = &PeriodFilter{}
	case KindCount:
		f = &CountFilter{}
	case KindSpace:
		f = &SpaceFilter{}
	case KindShards:
		f = &ShardsFilter{}
	case KindAllocated:
		f = &AllocatedFilter{}
	case KindAlias:
		f = &AliasFilter{}
	case KindForcemerged:
		f = &ForcemergedFilter{}
	case KindOpened:
		f = &OpenedFilter{}
	case KindClosed:
		f = &ClosedFilter{}
	case KindKibana:
		f = &KibanaFilter{}
	case KindIlm:
		f = &IlmFilter{}
	case KindState:
		f = &StateFilter{}
	case KindNone:
		f = &NoneFilter{}
	default:
		return nil, errkind.Configf("unknown filtertype %q", head.Filtertype)
	}

	if err := node.Decode(f); err != nil {
		return nil, errkind.Configf("filtertype %s: %v", head.Filtertype, err)
	}
	return f, nil
}

// requireCategory returns a configuration error unless the inventory
// category is one of the allowed ones.
func requireCategory(kind Kind, cat inventory.Category, allowed ...inventory.Category) error {
	for _, a := range allowed {
		if cat == a {
			return nil
		}
	}
	return errkind.Configf("filtertype %s does not apply to %s", kind, cat)
}

// ageParams are the shared parameters of filters that consult the age
// resolver: which source produces the age and the source-specific knobs.
type ageParams struct {
	Source      string `yaml:"source"`
	Timestring  string `yaml:"timestring"`
	Field       string `yaml:"field"`
	StatsResult string `yaml:"stats_result"`
}

func (p ageParams) validate(cat inventory.Category, defaultSource string) error {
	src := p.Source
	if src == "" {
		src = defaultSource
	}
	switch src {
	case inventory.SourceName:
		if p.Timestring == "" {
			return errkind.Missingf("source name requires a timestring")
		}
		if _, err := age.Regex(p.Timestring); err != nil {
			return err
		}
	case inventory.SourceCreationDate:
	case inventory.SourceFieldStats:
		if cat != inventory.CategoryIndices {
			return errkind.Configf("source field_stats applies to indices only")
		}
		if p.Field == "" {
			return errkind.Missingf("source field_stats requires a field")
		}
		if p.StatsResult != "" &&
			p.StatsResult != inventory.StatsMinValue && p.StatsResult != inventory.StatsMaxValue {
			return errkind.Configf("unknown stats_result %q", p.StatsResult)
		}
	default:
		return errkind.Configf("unknown age source %q", src)
	}
	return nil
}

// resolveAges produces the per-object epoch-seconds ages for the working
// set. Objects the source cannot produce an age for are absent from the
// result; age-based filters drop them.
func (p ageParams) resolveAges(ctx context.Context, inv *inventory.Inventory, ws inventory.WorkingSet, defaultSource string) (map[string]int64, error) {
	src := p.Source
	if src == "" {
		src = defaultSource
	}

	switch src {
	case inventory.SourceName:
		ages := make(map[string]int64, ws.Len())
		for _, name := range ws.Names() {
			if epoch, ok := inv.Age(name, inventory.SourceName); ok {
				ages[name] = epoch
				continue
			}
			t, ok, err := age.Parse(name, p.Timestring)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			epoch := age.FixEpoch(t.Unix())
			inv.SetAge(name, inventory.SourceName, epoch)
			ages[name] = epoch
		}
		return ages, nil

	case inventory.SourceCreationDate:
		if inv.Category() == inventory.CategoryIndices {
			if err := inv.Ensure(ctx, inventory.MetaSettings); err != nil {
				return nil, err
			}
		}
		ages := make(map[string]int64, ws.Len())
		for _, name := range ws.Names() {
			if epoch, ok := inv.Age(name, inventory.SourceCreationDate); ok {
				ages[name] = epoch
			}
		}
		return ages, nil

	case inventory.SourceFieldStats:
		selector := p.StatsResult
		if selector == "" {
			selector = inventory.StatsMinValue
		}
		if err := inv.FetchFieldAges(ctx, ws, p.Field, selector); err != nil {
			return nil, err
		}
		ages := make(map[string]int64, ws.Len())
		for _, name := range ws.Names() {
			if epoch, ok := inv.Age(name, inventory.SourceFieldStats); ok {
				ages[name] = epoch
			}
		}
		return ages, nil

	default:
		return nil, errkind.Configf("unknown age source %q", src)
	}
}
