package filters

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/culler-io/culler/internal/client"
	"github.com/culler-io/culler/internal/errkind"
	"github.com/culler-io/culler/internal/inventory"
)

// dailyMock builds a mock with count daily-dated indices, newest first at
// offset zero from ref.
func dailyMock(ref time.Time, count int) *client.MockClient {
	m := client.NewMockClient()
	for i := 0; i < count; i++ {
		name := "logs-" + ref.AddDate(0, 0, -i).Format("2006.01.02")
		m.AddIndex(name, client.MockIndex{})
	}
	return m
}

func TestAgeFilterOlderByName(t *testing.T) {
	ref := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	m := dailyMock(ref, 10)
	inv := newIndexInv(t, m, "logs-*")

	f := &AgeFilter{
		ageParams: ageParams{Source: inventory.SourceName, Timestring: "%Y.%m.%d"},
		Direction: DirectionOlder,
		Unit:      "days",
		UnitCount: 5,
		Epoch:     ref.Unix(),
	}
	if err := f.Validate(inv.Category()); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	out, err := f.Apply(context.Background(), inv, inv.WorkingSet())
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// The five oldest of ten daily indices are older than five days.
	wantNames(t, out,
		"logs-2026.08.11", "logs-2026.08.12", "logs-2026.08.13",
		"logs-2026.08.14", "logs-2026.08.15")
}

func TestAgeFilterDirectionsPartitionTheSet(t *testing.T) {
	ref := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	m := dailyMock(ref, 10)
	m.AddIndex("scratch", client.MockIndex{}) // no timestamp, no age
	inv := newIndexInv(t, m, "*")
	ws := inv.WorkingSet()

	base := AgeFilter{
		ageParams: ageParams{Source: inventory.SourceName, Timestring: "%Y.%m.%d"},
		Unit:      "days",
		UnitCount: 5,
		Epoch:     ref.Unix(),
	}
	older := base
	older.Direction = DirectionOlder
	younger := base
	younger.Direction = DirectionYounger

	oldSet, err := older.Apply(context.Background(), inv, ws)
	if err != nil {
		t.Fatalf("older Apply failed: %v", err)
	}
	youngSet, err := younger.Apply(context.Background(), inv, ws)
	if err != nil {
		t.Fatalf("younger Apply failed: %v", err)
	}

	for _, name := range oldSet.Names() {
		if youngSet.Contains(name) {
			t.Errorf("%s is in both result sets", name)
		}
	}
	if got := oldSet.Len() + youngSet.Len(); got != ws.Len()-1 {
		t.Errorf("partition covers %d objects, want %d plus the unaged one", got, ws.Len()-1)
	}
	if oldSet.Contains("scratch") || youngSet.Contains("scratch") {
		t.Error("object without an age must appear in neither set")
	}
}

func TestAgeFilterCreationDateSource(t *testing.T) {
	ref := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	m := client.NewMockClient()
	for i := 0; i < 4; i++ {
		m.AddIndex(fmt.Sprintf("idx-%d", i), client.MockIndex{
			Settings: client.IndexSettings{
				CreationDate: ref.AddDate(0, 0, -i).UnixMilli(),
			},
		})
	}
	inv := newIndexInv(t, m, "idx-*")

	f := &AgeFilter{
		Direction: DirectionOlder,
		Unit:      "days",
		UnitCount: 2,
		Epoch:     ref.Unix(),
	}
	out, err := f.Apply(context.Background(), inv, inv.WorkingSet())
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	wantNames(t, out, "idx-3")
	if got := m.Calls("IndexSettings"); got != 1 {
		t.Errorf("IndexSettings called %d times, want 1", got)
	}
}

func TestAgeFilterExclude(t *testing.T) {
	ref := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	m := dailyMock(ref, 10)
	inv := newIndexInv(t, m, "logs-*")

	f := &AgeFilter{
		Exclude:   true,
		ageParams: ageParams{Source: inventory.SourceName, Timestring: "%Y.%m.%d"},
		Direction: DirectionOlder,
		Unit:      "days",
		UnitCount: 5,
		Epoch:     ref.Unix(),
	}
	out, err := f.Apply(context.Background(), inv, inv.WorkingSet())
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.Len() != 5 || out.Contains("logs-2026.08.11") || !out.Contains("logs-2026.08.20") {
		t.Errorf("exclude kept %v", out.Names())
	}
}

func TestAgeFilterValidate(t *testing.T) {
	cases := []struct {
		name string
		f    AgeFilter
		want error
	}{
		{
			"bad direction",
			AgeFilter{Direction: "sideways", Unit: "days", UnitCount: 1},
			errkind.ErrConfiguration,
		},
		{
			"bad unit",
			AgeFilter{Direction: DirectionOlder, Unit: "fortnights", UnitCount: 1},
			errkind.ErrConfiguration,
		},
		{
			"zero unit_count",
			AgeFilter{Direction: DirectionOlder, Unit: "days"},
			errkind.ErrConfiguration,
		},
		{
			"name source without timestring",
			AgeFilter{
				ageParams: ageParams{Source: inventory.SourceName},
				Direction: DirectionOlder, Unit: "days", UnitCount: 1,
			},
			errkind.ErrMissingArgument,
		},
		{
			"field_stats without field",
			AgeFilter{
				ageParams: ageParams{Source: inventory.SourceFieldStats},
				Direction: DirectionOlder, Unit: "days", UnitCount: 1,
			},
			errkind.ErrMissingArgument,
		},
	}
	for _, tc := range cases {
		if err := tc.f.Validate(inventory.CategoryIndices); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestAgeFilterFieldStatsSource(t *testing.T) {
	ref := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	m := client.NewMockClient()
	m.AddIndex("idx-old", client.MockIndex{})
	m.AddIndex("idx-new", client.MockIndex{})
	m.SetFieldRange("idx-old", client.FieldRange{
		Min: ref.AddDate(0, 0, -9).UnixMilli(),
		Max: ref.AddDate(0, 0, -8).UnixMilli(),
	})
	m.SetFieldRange("idx-new", client.FieldRange{
		Min: ref.AddDate(0, 0, -1).UnixMilli(),
		Max: ref.UnixMilli(),
	})
	inv := newIndexInv(t, m, "idx-*")

	f := &AgeFilter{
		ageParams: ageParams{Source: inventory.SourceFieldStats, Field: "@timestamp"},
		Direction: DirectionOlder,
		Unit:      "days",
		UnitCount: 5,
		Epoch:     ref.Unix(),
	}
	out, err := f.Apply(context.Background(), inv, inv.WorkingSet())
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	wantNames(t, out, "idx-old")
}
