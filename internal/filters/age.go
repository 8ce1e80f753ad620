package filters

import (
	"context"
	"time"

	"github.com/culler-io/culler/internal/age"
	"github.com/culler-io/culler/internal/errkind"
	"github.com/culler-io/culler/internal/inventory"
)

// Age comparison directions.
const (
	DirectionOlder   = "older"
	DirectionYounger = "younger"
)

// AgeFilter keeps objects on one side of a pivot point in time. The pivot
// is the reference epoch (now unless Epoch is set) minus UnitCount units.
type AgeFilter struct {
	Exclude   bool  `yaml:"exclude"`
	ageParams `yaml:",inline"`
	Direction string `yaml:"direction"`
	Unit      string `yaml:"unit"`
	UnitCount int    `yaml:"unit_count"`
	Epoch     int64  `yaml:"epoch"`
}

func (f *AgeFilter) Kind() Kind { return KindAge }

func (f *AgeFilter) Validate(cat inventory.Category) error {
	if f.Direction != DirectionOlder && f.Direction != DirectionYounger {
		return errkind.Configf("age direction must be older or younger, got %q", f.Direction)
	}
	if _, err := age.UnitSeconds(f.Unit); err != nil {
		return err
	}
	if f.UnitCount <= 0 {
		return errkind.Configf("age unit_count must be positive, got %d", f.UnitCount)
	}
	return f.ageParams.validate(cat, inventory.SourceCreationDate)
}

// pivot computes the comparison epoch.
func (f *AgeFilter) pivot() (int64, error) {
	secs, err := age.UnitSeconds(f.Unit)
	if err != nil {
		return 0, err
	}
	ref := f.Epoch
	if ref == 0 {
		ref = time.Now().Unix()
	}
	return ref - int64(f.UnitCount)*secs, nil
}

func (f *AgeFilter) Apply(ctx context.Context, inv *inventory.Inventory, ws inventory.WorkingSet) (inventory.WorkingSet, error) {
	pivot, err := f.pivot()
	if err != nil {
		return ws, err
	}
	ages, err := f.resolveAges(ctx, inv, ws, inventory.SourceCreationDate)
	if err != nil {
		return ws, err
	}

	return ws.Keep(func(name string) bool {
		epoch, ok := ages[name]
		if !ok {
			// No resolvable age means the object cannot be classified.
			return false
		}
		match := epoch < pivot
		if f.Direction == DirectionYounger {
			match = epoch > pivot
		}
		return keep(match, f.Exclude)
	}), nil
}
