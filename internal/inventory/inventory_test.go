package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/culler-io/culler/internal/client"
	"github.com/culler-io/culler/internal/errkind"
)

func newTestMock() *client.MockClient {
	m := client.NewMockClient()
	m.AddIndex("logs-1", client.MockIndex{
		Settings: client.IndexSettings{
			CreationDate:   1755907200000, // milliseconds
			NumberOfShards: 3,
			LifecycleName:  "retain-30d",
		},
		Stats:    client.IndexStats{PrimarySizeBytes: 100, TotalSizeBytes: 200},
		Segments: client.IndexSegments{MaxShardSegments: 4},
		Aliases:  []string{"logs"},
	})
	m.AddIndex("logs-2", client.MockIndex{
		State:    client.IndexClosed,
		Settings: client.IndexSettings{CreationDate: 1755993600000, NumberOfShards: 1},
	})
	return m
}

func TestNewIndexInventoryPopulatesUniverse(t *testing.T) {
	m := newTestMock()
	inv, err := NewIndexInventory(context.Background(), m, "logs-*")
	if err != nil {
		t.Fatalf("NewIndexInventory failed: %v", err)
	}

	ws := inv.WorkingSet()
	if ws.Len() != 2 {
		t.Errorf("working set size = %d, want 2", ws.Len())
	}
	if !ws.Contains("logs-1") || !ws.Contains("logs-2") {
		t.Errorf("working set missing names: %v", ws.Names())
	}
	if m.Calls("ListIndices") != 1 {
		t.Errorf("ListIndices called %d times, want 1", m.Calls("ListIndices"))
	}
}

func TestEnsureFetchesOnce(t *testing.T) {
	m := newTestMock()
	inv, err := NewIndexInventory(context.Background(), m, "logs-*")
	if err != nil {
		t.Fatalf("NewIndexInventory failed: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := inv.Ensure(ctx, MetaSettings); err != nil {
			t.Fatalf("Ensure failed: %v", err)
		}
	}
	if got := m.Calls("IndexSettings"); got != 1 {
		t.Errorf("IndexSettings called %d times, want 1", got)
	}

	o, ok := inv.Info("logs-1")
	if !ok {
		t.Fatal("logs-1 missing")
	}
	if o.CreationEpoch != 1755907200 {
		t.Errorf("creation epoch = %d, want normalized seconds", o.CreationEpoch)
	}
	if o.ShardCount != 3 || o.LifecyclePolicy != "retain-30d" {
		t.Errorf("unexpected settings: %+v", o)
	}
	if epoch, ok := inv.Age("logs-1", SourceCreationDate); !ok || epoch != 1755907200 {
		t.Errorf("creation_date age = %d, %v", epoch, ok)
	}
}

func TestRefreshForcesRefetch(t *testing.T) {
	m := newTestMock()
	inv, err := NewIndexInventory(context.Background(), m, "logs-*")
	if err != nil {
		t.Fatalf("NewIndexInventory failed: %v", err)
	}
	ctx := context.Background()

	if err := inv.Ensure(ctx, MetaSettings); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if err := inv.Refresh(ctx, MetaSettings); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got := m.Calls("IndexSettings"); got != 2 {
		t.Errorf("IndexSettings called %d times, want 2", got)
	}
}

func TestStatsSkipClosedIndices(t *testing.T) {
	m := newTestMock()
	inv, err := NewIndexInventory(context.Background(), m, "logs-*")
	if err != nil {
		t.Fatalf("NewIndexInventory failed: %v", err)
	}

	if err := inv.Ensure(context.Background(), MetaStats); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	open, _ := inv.Info("logs-1")
	if open.PrimarySizeBytes != 100 || open.TotalSizeBytes != 200 {
		t.Errorf("unexpected sizes: %+v", open)
	}
	closed, _ := inv.Info("logs-2")
	if closed.PrimarySizeBytes != 0 {
		t.Errorf("closed index should have zero size, got %d", closed.PrimarySizeBytes)
	}
	if closed.State != StateClosed {
		t.Errorf("stats fetch should have resolved states, got %v", closed.State)
	}
}

func TestFetchErrorIsWrappedNotSwallowed(t *testing.T) {
	m := newTestMock()
	inv, err := NewIndexInventory(context.Background(), m, "logs-*")
	if err != nil {
		t.Fatalf("NewIndexInventory failed: %v", err)
	}

	boom := errors.New("cluster unavailable")
	m.FailWith("IndexSegments", boom)
	err = inv.Ensure(context.Background(), MetaSegments)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped client error, got %v", err)
	}

	// The failed category must not be marked fetched.
	m.FailWith("IndexSegments", nil)
	if err := inv.Ensure(context.Background(), MetaSegments); err != nil {
		t.Fatalf("Ensure after recovery failed: %v", err)
	}
	if got := m.Calls("IndexSegments"); got != 2 {
		t.Errorf("IndexSegments called %d times, want 2", got)
	}
}

func TestSnapshotInventory(t *testing.T) {
	m := client.NewMockClient()
	m.SetSnapshots("backups", []client.SnapshotInfo{
		{Name: "snap-1", State: client.SnapshotSuccess, StartTimeSeconds: 1755907200},
		{Name: "snap-2", State: client.SnapshotPartial, StartTimeSeconds: 1755993600},
	})

	inv, err := NewSnapshotInventory(context.Background(), m, "backups")
	if err != nil {
		t.Fatalf("NewSnapshotInventory failed: %v", err)
	}
	if inv.Category() != CategorySnapshots {
		t.Errorf("category = %v", inv.Category())
	}
	if inv.Repository() != "backups" {
		t.Errorf("repository = %q", inv.Repository())
	}

	o, ok := inv.Info("snap-1")
	if !ok || o.SnapshotState != client.SnapshotSuccess {
		t.Errorf("unexpected snapshot info: %+v", o)
	}
	if epoch, ok := inv.Age("snap-1", SourceCreationDate); !ok || epoch != 1755907200 {
		t.Errorf("snapshot age = %d, %v", epoch, ok)
	}

	// Index-only metadata categories must be rejected.
	err = inv.Ensure(context.Background(), MetaSettings)
	if !errors.Is(err, errkind.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestSnapshotInventoryRequiresRepository(t *testing.T) {
	m := client.NewMockClient()
	_, err := NewSnapshotInventory(context.Background(), m, "")
	if !errors.Is(err, errkind.ErrMissingArgument) {
		t.Errorf("expected missing-argument error, got %v", err)
	}
}

func TestFetchFieldAges(t *testing.T) {
	m := newTestMock()
	m.SetFieldRange("logs-1", client.FieldRange{Min: 1755907200000, Max: 1755993600000})
	inv, err := NewIndexInventory(context.Background(), m, "logs-*")
	if err != nil {
		t.Fatalf("NewIndexInventory failed: %v", err)
	}
	ws := inv.WorkingSet()

	if err := inv.FetchFieldAges(context.Background(), ws, "@timestamp", StatsMaxValue); err != nil {
		t.Fatalf("FetchFieldAges failed: %v", err)
	}
	if epoch, ok := inv.Age("logs-1", SourceFieldStats); !ok || epoch != 1755993600 {
		t.Errorf("field_stats age = %d, %v", epoch, ok)
	}
	// logs-2 had no aggregation result and must have no field_stats age.
	if _, ok := inv.Age("logs-2", SourceFieldStats); ok {
		t.Error("logs-2 should not have a field_stats age")
	}

	if err := inv.FetchFieldAges(context.Background(), ws, "@timestamp", "median_value"); !errors.Is(err, errkind.ErrConfiguration) {
		t.Errorf("unknown selector should be a configuration error, got %v", err)
	}
	if err := inv.FetchFieldAges(context.Background(), ws, "", StatsMinValue); !errors.Is(err, errkind.ErrMissingArgument) {
		t.Errorf("empty field should be a missing-argument error, got %v", err)
	}
}

func TestFetchFieldAgesMissingField(t *testing.T) {
	m := newTestMock()
	m.FailWith("FieldRange", client.ErrFieldMissing)
	inv, err := NewIndexInventory(context.Background(), m, "logs-*")
	if err != nil {
		t.Fatalf("NewIndexInventory failed: %v", err)
	}

	err = inv.FetchFieldAges(context.Background(), inv.WorkingSet(), "nope", StatsMinValue)
	if !errors.Is(err, errkind.ErrPrecondition) {
		t.Errorf("missing field should be a precondition error, got %v", err)
	}
}

func TestWorkingSetDedupAndOrder(t *testing.T) {
	ws := NewWorkingSet([]string{"b", "a", "b", "c", "a"})
	got := ws.Names()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("names = %v, want %v", got, want)
		}
	}

	kept := ws.Keep(func(name string) bool { return name != "b" })
	if kept.Len() != 2 || kept.Contains("b") {
		t.Errorf("Keep result = %v", kept.Names())
	}
	// The source set is untouched.
	if ws.Len() != 3 {
		t.Errorf("source set mutated: %v", ws.Names())
	}
}
