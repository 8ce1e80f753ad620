package filters

import (
	"context"

	"github.com/culler-io/culler/internal/errkind"
	"github.com/culler-io/culler/internal/inventory"
)

// Threshold behaviors for the space filter.
const (
	ThresholdGreaterThan = "greater_than"
	ThresholdLessThan    = "less_than"
)

// Size accounting modes for the space filter.
const (
	SizeTotal     = "total"
	SizePrimaries = "primaries"
)

const gigabyte = int64(1) << 30

// SpaceFilter walks the working set in sort order accumulating store size
// and classifies each object against a gigabyte budget. With greater_than
// an object matches once the running total has passed the budget; with
// less_than it matches while the running total is still within it. Sort
// order and threshold direction are independent knobs.
type SpaceFilter struct {
	Exclude   bool `yaml:"exclude"`
	ageParams `yaml:",inline"`

	DiskSpace         float64 `yaml:"disk_space"`
	Reverse           *bool   `yaml:"reverse"`
	UseAge            bool    `yaml:"use_age"`
	ThresholdBehavior string  `yaml:"threshold_behavior"`
	SizeBehavior      string  `yaml:"size_behavior"`
}

func (f *SpaceFilter) Kind() Kind { return KindSpace }

func (f *SpaceFilter) reverse() bool {
	if f.Reverse == nil {
		return true
	}
	return *f.Reverse
}

func (f *SpaceFilter) behavior() string {
	if f.ThresholdBehavior == "" {
		return ThresholdGreaterThan
	}
	return f.ThresholdBehavior
}

func (f *SpaceFilter) Validate(cat inventory.Category) error {
	if err := requireCategory(KindSpace, cat, inventory.CategoryIndices); err != nil {
		return err
	}
	if f.DiskSpace <= 0 {
		return errkind.Configf("disk_space must be positive, got %v", f.DiskSpace)
	}
	switch f.behavior() {
	case ThresholdGreaterThan, ThresholdLessThan:
	default:
		return errkind.Configf("unknown threshold_behavior %q", f.ThresholdBehavior)
	}
	switch f.SizeBehavior {
	case "", SizeTotal, SizePrimaries:
	default:
		return errkind.Configf("unknown size_behavior %q", f.SizeBehavior)
	}
	if f.UseAge {
		return f.ageParams.validate(cat, inventory.SourceCreationDate)
	}
	return nil
}

func (f *SpaceFilter) Apply(ctx context.Context, inv *inventory.Inventory, ws inventory.WorkingSet) (inventory.WorkingSet, error) {
	if err := inv.Ensure(ctx, inventory.MetaStats); err != nil {
		return ws, err
	}
	ordered, err := orderedNames(ctx, f.ageParams, inv, ws, f.UseAge, f.reverse())
	if err != nil {
		return ws, err
	}

	budget := int64(f.DiskSpace * float64(gigabyte))
	primariesOnly := f.SizeBehavior == SizePrimaries
	overBudget := make(map[string]bool, len(ordered))
	var running int64
	for _, name := range ordered {
		o, ok := inv.Info(name)
		if !ok {
			continue
		}
		running += o.SizeBytes(primariesOnly)
		overBudget[name] = running > budget
	}

	wantOver := f.behavior() == ThresholdGreaterThan
	return ws.Keep(func(name string) bool {
		over, walked := overBudget[name]
		if !walked {
			// Not part of the walk (no resolvable age); cannot be classified.
			return false
		}
		return keep(over == wantOver, f.Exclude)
	}), nil
}
