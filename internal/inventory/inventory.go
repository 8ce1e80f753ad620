// Package inventory builds and caches per-object metadata for one planning
// run. An Inventory is constructed from a live cluster snapshot, fetches
// each metadata category at most once with a single bulk call, and backs
// every filter decision. It holds no state across runs.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/culler-io/culler/internal/age"
	"github.com/culler-io/culler/internal/client"
	"github.com/culler-io/culler/internal/errkind"
	"github.com/culler-io/culler/internal/metrics"
)

// Category is the kind of object an inventory holds.
type Category int

const (
	// CategoryIndices is an inventory of indices.
	CategoryIndices Category = iota
	// CategorySnapshots is an inventory of snapshots in one repository.
	CategorySnapshots
)

func (c Category) String() string {
	switch c {
	case CategoryIndices:
		return "indices"
	case CategorySnapshots:
		return "snapshots"
	default:
		return "unknown"
	}
}

// State is the open/closed state of an index.
type State int

const (
	// StateUnknown means the state has not been fetched yet.
	StateUnknown State = iota
	// StateOpen means the index is open.
	StateOpen
	// StateClosed means the index is closed.
	StateClosed
)

// Age sources.
const (
	SourceName         = "name"
	SourceCreationDate = "creation_date"
	SourceFieldStats   = "field_stats"
)

// Field-stats selectors.
const (
	StatsMinValue = "min_value"
	StatsMaxValue = "max_value"
)

// MetaCategory identifies one lazily fetched metadata category.
type MetaCategory int

const (
	// MetaState is the open/closed state of indices.
	MetaState MetaCategory = iota
	// MetaSettings is static index settings (creation date, shard count,
	// allocation routing, lifecycle policy).
	MetaSettings
	// MetaStats is store statistics (sizes).
	MetaStats
	// MetaSegments is per-shard segment counts.
	MetaSegments
	// MetaAliases is alias membership.
	MetaAliases
)

func (c MetaCategory) String() string {
	switch c {
	case MetaState:
		return "state"
	case MetaSettings:
		return "settings"
	case MetaStats:
		return "stats"
	case MetaSegments:
		return "segments"
	case MetaAliases:
		return "aliases"
	default:
		return "unknown"
	}
}

// ObjectInfo is the cached metadata for one object.
type ObjectInfo struct {
	Name             string
	State            State
	PrimarySizeBytes int64
	TotalSizeBytes   int64
	CreationEpoch    int64
	Ages             map[string]int64
	MaxShardSegments int
	ShardCount       int
	Aliases          map[string]struct{}
	LifecyclePolicy  string
	Routing          map[string]map[string]string

	// SnapshotState is set for snapshot inventories only.
	SnapshotState string
}

// SizeBytes returns the object size under the chosen accounting mode.
func (o *ObjectInfo) SizeBytes(primariesOnly bool) int64 {
	if primariesOnly {
		return o.PrimarySizeBytes
	}
	return o.TotalSizeBytes
}

// Inventory caches metadata for the objects of one planning run.
type Inventory struct {
	cl         client.Client
	category   Category
	repository string
	info       map[string]*ObjectInfo
	fetched    map[MetaCategory]bool
	metrics    *metrics.Core

	// fieldAgesKey memoizes the last FetchFieldAges query so repeated
	// filters over the same field do not re-run the aggregation.
	fieldAgesKey string
}

// NewIndexInventory lists all indices matching pattern and builds an
// inventory over them. Metadata categories are fetched lazily afterwards.
func NewIndexInventory(ctx context.Context, cl client.Client, pattern string) (*Inventory, error) {
	names, err := cl.ListIndices(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("list indices %q: %w", pattern, err)
	}

	inv := &Inventory{
		cl:       cl,
		category: CategoryIndices,
		info:     make(map[string]*ObjectInfo, len(names)),
		fetched:  make(map[MetaCategory]bool),
	}
	for _, name := range names {
		inv.info[name] = &ObjectInfo{Name: name, Ages: make(map[string]int64)}
	}
	return inv, nil
}

// NewSnapshotInventory lists all snapshots in repository and builds an
// inventory over them. Snapshot metadata is complete at construction.
func NewSnapshotInventory(ctx context.Context, cl client.Client, repository string) (*Inventory, error) {
	if repository == "" {
		return nil, errkind.Missingf("snapshot inventory requires a repository")
	}
	snaps, err := cl.ListSnapshots(ctx, repository)
	if err != nil {
		return nil, fmt.Errorf("list snapshots in %q: %w", repository, err)
	}

	inv := &Inventory{
		cl:         cl,
		category:   CategorySnapshots,
		repository: repository,
		info:       make(map[string]*ObjectInfo, len(snaps)),
		fetched:    make(map[MetaCategory]bool),
	}
	for _, s := range snaps {
		o := &ObjectInfo{
			Name:          s.Name,
			CreationEpoch: age.FixEpoch(s.StartTimeSeconds),
			Ages:          make(map[string]int64),
			SnapshotState: s.State,
		}
		o.Ages[SourceCreationDate] = o.CreationEpoch
		inv.info[s.Name] = o
	}
	return inv, nil
}

// WithMetrics attaches metric collectors to fetch operations.
func (inv *Inventory) WithMetrics(m *metrics.Core) *Inventory {
	inv.metrics = m
	return inv
}

// Category returns the object category of the inventory.
func (inv *Inventory) Category() Category {
	return inv.category
}

// Repository returns the snapshot repository, empty for index inventories.
func (inv *Inventory) Repository() string {
	return inv.repository
}

// Len returns the number of objects in the inventory.
func (inv *Inventory) Len() int {
	return len(inv.info)
}

// WorkingSet returns the full candidate universe as a working set.
func (inv *Inventory) WorkingSet() WorkingSet {
	names := make([]string, 0, len(inv.info))
	for name := range inv.info {
		names = append(names, name)
	}
	return NewWorkingSet(names)
}

// Info returns the cached metadata for name. The returned pointer is owned
// by the inventory; callers must not retain it across a Refresh.
func (inv *Inventory) Info(name string) (*ObjectInfo, bool) {
	o, ok := inv.info[name]
	return o, ok
}

// Age returns the cached age for name under the given source.
func (inv *Inventory) Age(name, source string) (int64, bool) {
	o, ok := inv.info[name]
	if !ok {
		return 0, false
	}
	epoch, ok := o.Ages[source]
	return epoch, ok
}

// SetAge records an age value for name under the given source.
func (inv *Inventory) SetAge(name, source string, epoch int64) {
	if o, ok := inv.info[name]; ok {
		o.Ages[source] = epoch
	}
}

// Ensure fetches each requested metadata category if it has not been
// fetched yet. Each category costs exactly one bulk remote call; repeated
// calls are free.
func (inv *Inventory) Ensure(ctx context.Context, cats ...MetaCategory) error {
	for _, cat := range cats {
		if inv.fetched[cat] {
			continue
		}
		if err := inv.fetch(ctx, cat); err != nil {
			return err
		}
		inv.fetched[cat] = true
	}
	return nil
}

// Refresh forces a re-fetch of one metadata category.
func (inv *Inventory) Refresh(ctx context.Context, cat MetaCategory) error {
	inv.fetched[cat] = false
	return inv.Ensure(ctx, cat)
}

func (inv *Inventory) fetch(ctx context.Context, cat MetaCategory) error {
	if inv.category == CategorySnapshots {
		return errkind.Configf("metadata category %s does not apply to snapshots", cat)
	}

	start := time.Now()
	var err error
	switch cat {
	case MetaState:
		err = inv.fetchStates(ctx)
	case MetaSettings:
		err = inv.fetchSettings(ctx)
	case MetaStats:
		err = inv.fetchStats(ctx)
	case MetaSegments:
		err = inv.fetchSegments(ctx)
	case MetaAliases:
		err = inv.fetchAliases(ctx)
	default:
		err = errkind.Configf("unknown metadata category %d", cat)
	}
	inv.metrics.ObserveFetch(cat.String(), time.Since(start), err)
	return err
}

func (inv *Inventory) names() []string {
	names := make([]string, 0, len(inv.info))
	for name := range inv.info {
		names = append(names, name)
	}
	return names
}

func (inv *Inventory) fetchStates(ctx context.Context) error {
	states, err := inv.cl.IndexStates(ctx, inv.names())
	if err != nil {
		return fmt.Errorf("fetch index states: %w", err)
	}
	for name, o := range inv.info {
		switch states[name] {
		case client.IndexOpen:
			o.State = StateOpen
		case client.IndexClosed:
			o.State = StateClosed
		default:
			o.State = StateUnknown
		}
	}
	return nil
}

func (inv *Inventory) fetchSettings(ctx context.Context) error {
	settings, err := inv.cl.IndexSettings(ctx, inv.names())
	if err != nil {
		return fmt.Errorf("fetch index settings: %w", err)
	}
	for name, s := range settings {
		o, ok := inv.info[name]
		if !ok {
			continue
		}
		o.CreationEpoch = age.FixEpoch(s.CreationDate)
		o.Ages[SourceCreationDate] = o.CreationEpoch
		o.ShardCount = s.NumberOfShards
		o.Routing = s.RoutingAllocation
		o.LifecyclePolicy = s.LifecycleName
	}
	return nil
}

// fetchStats queries store statistics for open indices only; the cluster
// rejects stats calls against closed ones, whose sizes stay zero.
func (inv *Inventory) fetchStats(ctx context.Context) error {
	if err := inv.Ensure(ctx, MetaState); err != nil {
		return err
	}

	open := make([]string, 0, len(inv.info))
	for name, o := range inv.info {
		if o.State == StateOpen {
			open = append(open, name)
		}
	}
	if len(open) == 0 {
		return nil
	}

	stats, err := inv.cl.IndexStats(ctx, open)
	if err != nil {
		return fmt.Errorf("fetch index stats: %w", err)
	}
	for name, s := range stats {
		if o, ok := inv.info[name]; ok {
			o.PrimarySizeBytes = s.PrimarySizeBytes
			o.TotalSizeBytes = s.TotalSizeBytes
		}
	}
	return nil
}

func (inv *Inventory) fetchSegments(ctx context.Context) error {
	segments, err := inv.cl.IndexSegments(ctx, inv.names())
	if err != nil {
		return fmt.Errorf("fetch index segments: %w", err)
	}
	for name, s := range segments {
		if o, ok := inv.info[name]; ok {
			o.MaxShardSegments = s.MaxShardSegments
		}
	}
	return nil
}

func (inv *Inventory) fetchAliases(ctx context.Context) error {
	aliases, err := inv.cl.IndexAliases(ctx, inv.names())
	if err != nil {
		return fmt.Errorf("fetch index aliases: %w", err)
	}
	for name, o := range inv.info {
		list, ok := aliases[name]
		if !ok {
			o.Aliases = nil
			continue
		}
		o.Aliases = make(map[string]struct{}, len(list))
		for _, a := range list {
			o.Aliases[a] = struct{}{}
		}
	}
	return nil
}

// FetchFieldAges runs one min/max aggregation over field across the
// working set and records the per-object result under the field_stats age
// source. A missing field is an action-precondition failure; an unknown
// selector is a configuration error.
func (inv *Inventory) FetchFieldAges(ctx context.Context, ws WorkingSet, field, selector string) error {
	if inv.category != CategoryIndices {
		return errkind.Configf("field_stats aging applies to indices only")
	}
	if field == "" {
		return errkind.Missingf("field_stats aging requires a field")
	}
	if selector != StatsMinValue && selector != StatsMaxValue {
		return errkind.Configf("unknown stats selector %q", selector)
	}
	if ws.Empty() {
		return nil
	}
	key := field + "\x00" + selector
	if inv.fieldAgesKey == key {
		return nil
	}

	start := time.Now()
	ranges, err := inv.cl.FieldRange(ctx, ws.Names(), field)
	inv.metrics.ObserveFetch("field_stats", time.Since(start), err)
	if err != nil {
		if errors.Is(err, client.ErrFieldMissing) {
			return errkind.Preconditionf("field %q not found in %s", field, inv.category)
		}
		return fmt.Errorf("fetch field stats for %q: %w", field, err)
	}

	for _, name := range ws.Names() {
		r, ok := ranges[name]
		if !ok {
			continue
		}
		v := r.Min
		if selector == StatsMaxValue {
			v = r.Max
		}
		inv.SetAge(name, SourceFieldStats, age.FixEpoch(v))
	}
	inv.fieldAgesKey = key
	return nil
}
