package filters

import (
	"context"
	"strings"

	"github.com/culler-io/culler/internal/client"
	"github.com/culler-io/culler/internal/errkind"
	"github.com/culler-io/culler/internal/inventory"
)

// Shard-count comparison behaviors.
const (
	ShardsGreaterThan        = "greater_than"
	ShardsLessThan           = "less_than"
	ShardsGreaterThanOrEqual = "greater_than_or_equal"
	ShardsLessThanOrEqual    = "less_than_or_equal"
	ShardsEqual              = "equal"
)

// ShardsFilter keeps indices whose shard count compares against a target.
type ShardsFilter struct {
	Exclude             bool   `yaml:"exclude"`
	NumberOfShards      int    `yaml:"number_of_shards"`
	ShardFilterBehavior string `yaml:"shard_filter_behavior"`
}

func (f *ShardsFilter) Kind() Kind { return KindShards }

func (f *ShardsFilter) behavior() string {
	if f.ShardFilterBehavior == "" {
		return ShardsGreaterThan
	}
	return f.ShardFilterBehavior
}

func (f *ShardsFilter) Validate(cat inventory.Category) error {
	if err := requireCategory(KindShards, cat, inventory.CategoryIndices); err != nil {
		return err
	}
	if f.NumberOfShards <= 0 {
		return errkind.Configf("number_of_shards must be positive, got %d", f.NumberOfShards)
	}
	switch f.behavior() {
	case ShardsGreaterThan, ShardsLessThan, ShardsGreaterThanOrEqual, ShardsLessThanOrEqual, ShardsEqual:
		return nil
	default:
		return errkind.Configf("unknown shard_filter_behavior %q", f.ShardFilterBehavior)
	}
}

func (f *ShardsFilter) Apply(ctx context.Context, inv *inventory.Inventory, ws inventory.WorkingSet) (inventory.WorkingSet, error) {
	if err := inv.Ensure(ctx, inventory.MetaSettings); err != nil {
		return ws, err
	}

	return ws.Keep(func(name string) bool {
		o, ok := inv.Info(name)
		if !ok {
			return false
		}
		var match bool
		switch f.behavior() {
		case ShardsGreaterThan:
			match = o.ShardCount > f.NumberOfShards
		case ShardsLessThan:
			match = o.ShardCount < f.NumberOfShards
		case ShardsGreaterThanOrEqual:
			match = o.ShardCount >= f.NumberOfShards
		case ShardsLessThanOrEqual:
			match = o.ShardCount <= f.NumberOfShards
		case ShardsEqual:
			match = o.ShardCount == f.NumberOfShards
		}
		return keep(match, f.Exclude)
	}), nil
}

// Allocation routing types.
const (
	AllocationRequire = "require"
	AllocationInclude = "include"
	AllocationExclude = "exclude"
)

// AllocatedFilter keeps indices whose allocation routing carries the given
// key/value pair under the chosen allocation type.
type AllocatedFilter struct {
	Exclude        bool   `yaml:"exclude"`
	Key            string `yaml:"key"`
	Value          string `yaml:"value"`
	AllocationType string `yaml:"allocation_type"`
}

func (f *AllocatedFilter) Kind() Kind { return KindAllocated }

func (f *AllocatedFilter) allocationType() string {
	if f.AllocationType == "" {
		return AllocationRequire
	}
	return f.AllocationType
}

func (f *AllocatedFilter) Validate(cat inventory.Category) error {
	if err := requireCategory(KindAllocated, cat, inventory.CategoryIndices); err != nil {
		return err
	}
	if f.Key == "" || f.Value == "" {
		return errkind.Missingf("allocated filter requires key and value")
	}
	switch f.allocationType() {
	case AllocationRequire, AllocationInclude, AllocationExclude:
		return nil
	default:
		return errkind.Configf("unknown allocation_type %q", f.AllocationType)
	}
}

func (f *AllocatedFilter) Apply(ctx context.Context, inv *inventory.Inventory, ws inventory.WorkingSet) (inventory.WorkingSet, error) {
	if err := inv.Ensure(ctx, inventory.MetaSettings); err != nil {
		return ws, err
	}

	return ws.Keep(func(name string) bool {
		match := false
		if o, ok := inv.Info(name); ok {
			match = o.Routing[f.allocationType()][f.Key] == f.Value
		}
		return keep(match, f.Exclude)
	}), nil
}

// AliasFilter keeps indices that are members of any of the listed aliases.
// A missing alias entry for an index means not a member, never an error.
type AliasFilter struct {
	Exclude bool     `yaml:"exclude"`
	Aliases []string `yaml:"aliases"`
}

func (f *AliasFilter) Kind() Kind { return KindAlias }

func (f *AliasFilter) Validate(cat inventory.Category) error {
	if err := requireCategory(KindAlias, cat, inventory.CategoryIndices); err != nil {
		return err
	}
	if len(f.Aliases) == 0 {
		return errkind.Missingf("alias filter requires at least one alias")
	}
	return nil
}

func (f *AliasFilter) Apply(ctx context.Context, inv *inventory.Inventory, ws inventory.WorkingSet) (inventory.WorkingSet, error) {
	if err := inv.Ensure(ctx, inventory.MetaAliases); err != nil {
		return ws, err
	}

	return ws.Keep(func(name string) bool {
		match := false
		if o, ok := inv.Info(name); ok && o.Aliases != nil {
			for _, a := range f.Aliases {
				if _, member := o.Aliases[a]; member {
					match = true
					break
				}
			}
		}
		return keep(match, f.Exclude)
	}), nil
}

// ForcemergedFilter keeps indices that still need merging: those whose
// largest per-shard segment count exceeds the target.
type ForcemergedFilter struct {
	Exclude        bool `yaml:"exclude"`
	MaxNumSegments int  `yaml:"max_num_segments"`
}

func (f *ForcemergedFilter) Kind() Kind { return KindForcemerged }

func (f *ForcemergedFilter) Validate(cat inventory.Category) error {
	if err := requireCategory(KindForcemerged, cat, inventory.CategoryIndices); err != nil {
		return err
	}
	if f.MaxNumSegments <= 0 {
		return errkind.Configf("max_num_segments must be positive, got %d", f.MaxNumSegments)
	}
	return nil
}

func (f *ForcemergedFilter) Apply(ctx context.Context, inv *inventory.Inventory, ws inventory.WorkingSet) (inventory.WorkingSet, error) {
	if err := inv.Ensure(ctx, inventory.MetaSegments); err != nil {
		return ws, err
	}

	return ws.Keep(func(name string) bool {
		match := false
		if o, ok := inv.Info(name); ok {
			match = o.MaxShardSegments > f.MaxNumSegments
		}
		return keep(match, f.Exclude)
	}), nil
}

// OpenedFilter keeps open indices.
type OpenedFilter struct {
	Exclude bool `yaml:"exclude"`
}

func (f *OpenedFilter) Kind() Kind { return KindOpened }

func (f *OpenedFilter) Validate(cat inventory.Category) error {
	return requireCategory(KindOpened, cat, inventory.CategoryIndices)
}

func (f *OpenedFilter) Apply(ctx context.Context, inv *inventory.Inventory, ws inventory.WorkingSet) (inventory.WorkingSet, error) {
	return keepState(ctx, inv, ws, inventory.StateOpen, f.Exclude)
}

// ClosedFilter keeps closed indices.
type ClosedFilter struct {
	Exclude bool `yaml:"exclude"`
}

func (f *ClosedFilter) Kind() Kind { return KindClosed }

func (f *ClosedFilter) Validate(cat inventory.Category) error {
	return requireCategory(KindClosed, cat, inventory.CategoryIndices)
}

func (f *ClosedFilter) Apply(ctx context.Context, inv *inventory.Inventory, ws inventory.WorkingSet) (inventory.WorkingSet, error) {
	return keepState(ctx, inv, ws, inventory.StateClosed, f.Exclude)
}

func keepState(ctx context.Context, inv *inventory.Inventory, ws inventory.WorkingSet, want inventory.State, exclude bool) (inventory.WorkingSet, error) {
	if err := inv.Ensure(ctx, inventory.MetaState); err != nil {
		return ws, err
	}
	return ws.Keep(func(name string) bool {
		match := false
		if o, ok := inv.Info(name); ok {
			match = o.State == want
		}
		return keep(match, exclude)
	}), nil
}

// reservedPrefix marks system dashboards indices that destructive pipelines
// must not touch by accident.
const reservedPrefix = ".kibana"

// KibanaFilter drops reserved dashboard indices. Exclude defaults to true;
// setting it to false inverts the filter to select only the reserved ones.
type KibanaFilter struct {
	Exclude *bool `yaml:"exclude"`
}

func (f *KibanaFilter) Kind() Kind { return KindKibana }

func (f *KibanaFilter) exclude() bool {
	if f.Exclude == nil {
		return true
	}
	return *f.Exclude
}

func (f *KibanaFilter) Validate(cat inventory.Category) error {
	return requireCategory(KindKibana, cat, inventory.CategoryIndices)
}

func (f *KibanaFilter) Apply(_ context.Context, _ *inventory.Inventory, ws inventory.WorkingSet) (inventory.WorkingSet, error) {
	return ws.Keep(func(name string) bool {
		return keep(strings.HasPrefix(name, reservedPrefix), f.exclude())
	}), nil
}

// IlmFilter drops indices managed by a lifecycle policy. Exclude defaults
// to true; setting it to false selects only the managed ones.
type IlmFilter struct {
	Exclude *bool `yaml:"exclude"`
}

func (f *IlmFilter) Kind() Kind { return KindIlm }

func (f *IlmFilter) exclude() bool {
	if f.Exclude == nil {
		return true
	}
	return *f.Exclude
}

func (f *IlmFilter) Validate(cat inventory.Category) error {
	return requireCategory(KindIlm, cat, inventory.CategoryIndices)
}

func (f *IlmFilter) Apply(ctx context.Context, inv *inventory.Inventory, ws inventory.WorkingSet) (inventory.WorkingSet, error) {
	if err := inv.Ensure(ctx, inventory.MetaSettings); err != nil {
		return ws, err
	}

	return ws.Keep(func(name string) bool {
		match := false
		if o, ok := inv.Info(name); ok {
			match = o.LifecyclePolicy != ""
		}
		return keep(match, f.exclude())
	}), nil
}

// StateFilter keeps snapshots in the given state, SUCCESS by default.
type StateFilter struct {
	Exclude bool   `yaml:"exclude"`
	State   string `yaml:"state"`
}

func (f *StateFilter) Kind() Kind { return KindState }

func (f *StateFilter) state() string {
	if f.State == "" {
		return client.SnapshotSuccess
	}
	return f.State
}

func (f *StateFilter) Validate(cat inventory.Category) error {
	if err := requireCategory(KindState, cat, inventory.CategorySnapshots); err != nil {
		return err
	}
	switch f.state() {
	case client.SnapshotSuccess, client.SnapshotPartial, client.SnapshotFailed, client.SnapshotInProgress:
		return nil
	default:
		return errkind.Configf("unknown snapshot state %q", f.State)
	}
}

func (f *StateFilter) Apply(_ context.Context, inv *inventory.Inventory, ws inventory.WorkingSet) (inventory.WorkingSet, error) {
	return ws.Keep(func(name string) bool {
		match := false
		if o, ok := inv.Info(name); ok {
			match = o.SnapshotState == f.state()
		}
		return keep(match, f.Exclude)
	}), nil
}

// NoneFilter is the identity filter, an explicit no-op placeholder.
type NoneFilter struct{}

func (f *NoneFilter) Kind() Kind { return KindNone }

func (f *NoneFilter) Validate(inventory.Category) error { return nil }

func (f *NoneFilter) Apply(_ context.Context, _ *inventory.Inventory, ws inventory.WorkingSet) (inventory.WorkingSet, error) {
	return ws, nil
}
