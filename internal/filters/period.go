package filters

import (
	"context"
	"time"

	"github.com/culler-io/culler/internal/age"
	"github.com/culler-io/culler/internal/errkind"
	"github.com/culler-io/culler/internal/inventory"
)

// Week start days for week-unit windows.
const (
	WeekStartsSunday = "sunday"
	WeekStartsMonday = "monday"
)

// PeriodFilter keeps objects whose age falls inside an inclusive calendar
// window. In relative mode the window is derived from unit offsets against
// a reference point; in absolute mode the caller supplies literal dates.
type PeriodFilter struct {
	Exclude   bool `yaml:"exclude"`
	ageParams `yaml:",inline"`

	PeriodType   string `yaml:"period_type"` // relative (default) or absolute
	Unit         string `yaml:"unit"`
	RangeFrom    *int   `yaml:"range_from"`
	RangeTo      *int   `yaml:"range_to"`
	WeekStartsOn string `yaml:"week_starts_on"`
	Epoch        int64  `yaml:"epoch"`

	DateFrom       string `yaml:"date_from"`
	DateTo         string `yaml:"date_to"`
	DateFromFormat string `yaml:"date_from_format"`
	DateToFormat   string `yaml:"date_to_format"`
}

// Period modes.
const (
	PeriodRelative = "relative"
	PeriodAbsolute = "absolute"
)

func (f *PeriodFilter) Kind() Kind { return KindPeriod }

func (f *PeriodFilter) mode() string {
	if f.PeriodType == "" {
		return PeriodRelative
	}
	return f.PeriodType
}

func (f *PeriodFilter) Validate(cat inventory.Category) error {
	switch f.mode() {
	case PeriodRelative:
		if _, err := age.UnitSeconds(f.Unit); err != nil {
			return err
		}
		switch f.Unit {
		case "seconds", "minutes":
			return errkind.Configf("period unit %q is too fine, use hours or coarser", f.Unit)
		}
		if f.RangeFrom == nil || f.RangeTo == nil {
			return errkind.Missingf("relative period requires range_from and range_to")
		}
		if *f.RangeTo < *f.RangeFrom {
			return errkind.Configf("range_to %d is before range_from %d", *f.RangeTo, *f.RangeFrom)
		}
		if f.WeekStartsOn != "" && f.WeekStartsOn != WeekStartsSunday && f.WeekStartsOn != WeekStartsMonday {
			return errkind.Configf("week_starts_on must be sunday or monday, got %q", f.WeekStartsOn)
		}
	case PeriodAbsolute:
		if f.DateFrom == "" || f.DateTo == "" {
			return errkind.Missingf("absolute period requires date_from and date_to")
		}
		if f.DateFromFormat == "" || f.DateToFormat == "" {
			return errkind.Missingf("absolute period requires date_from_format and date_to_format")
		}
		if _, err := age.UnitSeconds(f.Unit); err != nil {
			return err
		}
	default:
		return errkind.Configf("unknown period_type %q", f.PeriodType)
	}
	return f.ageParams.validate(cat, inventory.SourceName)
}

// window computes the inclusive [start, end] epoch bounds.
func (f *PeriodFilter) window() (int64, int64, error) {
	if f.mode() == PeriodAbsolute {
		return f.absoluteWindow()
	}
	return f.relativeWindow()
}

func (f *PeriodFilter) relativeWindow() (int64, int64, error) {
	ref := time.Now().UTC()
	if f.Epoch != 0 {
		ref = time.Unix(f.Epoch, 0).UTC()
	}

	start, err := periodStart(ref, f.Unit, *f.RangeFrom, f.weekStart())
	if err != nil {
		return 0, 0, err
	}
	endStart, err := periodStart(ref, f.Unit, *f.RangeTo, f.weekStart())
	if err != nil {
		return 0, 0, err
	}
	end := nextPeriod(endStart, f.Unit).Add(-time.Second)
	return start.Unix(), end.Unix(), nil
}

func (f *PeriodFilter) weekStart() time.Weekday {
	if f.WeekStartsOn == WeekStartsSunday {
		return time.Sunday
	}
	return time.Monday
}

func (f *PeriodFilter) absoluteWindow() (int64, int64, error) {
	from, ok, err := age.Parse(f.DateFrom, f.DateFromFormat)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, errkind.Configf("date_from %q does not match format %q", f.DateFrom, f.DateFromFormat)
	}
	to, ok, err := age.Parse(f.DateTo, f.DateToFormat)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, errkind.Configf("date_to %q does not match format %q", f.DateTo, f.DateToFormat)
	}
	if to.Before(from) {
		return 0, 0, errkind.Configf("date_to %s is before date_from %s", f.DateTo, f.DateFrom)
	}

	// The end bound extends to the last second of its period.
	end := nextPeriod(truncatePeriod(to, f.Unit, f.weekStart()), f.Unit).Add(-time.Second)
	return from.Unix(), end.Unix(), nil
}

// periodStart is the first second of the period `offset` units away from
// the reference, using exact calendar boundaries.
func periodStart(ref time.Time, unit string, offset int, weekStart time.Weekday) (time.Time, error) {
	base := truncatePeriod(ref, unit, weekStart)
	switch unit {
	case "hours":
		return base.Add(time.Duration(offset) * time.Hour), nil
	case "days":
		return base.AddDate(0, 0, offset), nil
	case "weeks":
		return base.AddDate(0, 0, 7*offset), nil
	case "months":
		return base.AddDate(0, offset, 0), nil
	case "years":
		return base.AddDate(offset, 0, 0), nil
	default:
		return time.Time{}, errkind.Configf("unknown unit %q", unit)
	}
}

// truncatePeriod drops t to the first second of its containing period.
func truncatePeriod(t time.Time, unit string, weekStart time.Weekday) time.Time {
	t = t.UTC()
	switch unit {
	case "hours":
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case "days":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case "weeks":
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		back := (int(day.Weekday()) - int(weekStart) + 7) % 7
		return day.AddDate(0, 0, -back)
	case "months":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case "years":
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// nextPeriod is the first second of the period after the one starting at t.
func nextPeriod(t time.Time, unit string) time.Time {
	switch unit {
	case "hours":
		return t.Add(time.Hour)
	case "days":
		return t.AddDate(0, 0, 1)
	case "weeks":
		return t.AddDate(0, 0, 7)
	case "months":
		return t.AddDate(0, 1, 0)
	case "years":
		return t.AddDate(1, 0, 0)
	default:
		return t
	}
}

func (f *PeriodFilter) Apply(ctx context.Context, inv *inventory.Inventory, ws inventory.WorkingSet) (inventory.WorkingSet, error) {
	start, end, err := f.window()
	if err != nil {
		return ws, err
	}
	ages, err := f.resolveAges(ctx, inv, ws, inventory.SourceName)
	if err != nil {
		return ws, err
	}

	return ws.Keep(func(name string) bool {
		epoch, ok := ages[name]
		if !ok {
			return false
		}
		match := epoch >= start && epoch <= end
		return keep(match, f.Exclude)
	}), nil
}
