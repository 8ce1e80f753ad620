package planner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/culler-io/culler/internal/client"
	"github.com/culler-io/culler/internal/config"
	"github.com/culler-io/culler/internal/errkind"
	"github.com/culler-io/culler/internal/runlog"
)

func loadActions(t *testing.T, content string) *config.ActionFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "actions.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write actions: %v", err)
	}
	af, err := config.LoadActions(path)
	if err != nil {
		t.Fatalf("LoadActions failed: %v", err)
	}
	return af
}

func testMock(t *testing.T) *client.MockClient {
	t.Helper()
	ref := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	m := client.NewMockClient()
	for i := 0; i < 10; i++ {
		m.AddIndex("logs-"+ref.AddDate(0, 0, -i).Format("2006.01.02"), client.MockIndex{})
	}
	m.SetSnapshots("backups", []client.SnapshotInfo{
		{Name: "snap-1", State: client.SnapshotSuccess, StartTimeSeconds: ref.AddDate(0, 0, -2).Unix()},
		{Name: "snap-2", State: client.SnapshotFailed, StartTimeSeconds: ref.AddDate(0, 0, -1).Unix()},
	})
	return m
}

const planActions = `
actions:
  1:
    action: delete_indices
    pattern: "logs-*"
    filters:
      - filtertype: age
        source: name
        timestring: "%Y.%m.%d"
        direction: older
        unit: days
        unit_count: 5
        epoch: 1787227200
  2:
    action: delete_snapshots
    category: snapshots
    repository: backups
    filters:
      - filtertype: state
        state: SUCCESS
`

func TestRunPlansAllActions(t *testing.T) {
	m := testMock(t)
	af := loadActions(t, planActions)

	report, err := New(m).Run(context.Background(), af)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.RunID == "" {
		t.Error("empty run id")
	}
	if len(report.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(report.Results))
	}

	first := report.Results[0]
	if first.Action != "delete_indices" || first.Candidates != 10 || len(first.Selected) != 5 {
		t.Errorf("first result = %+v", first)
	}
	second := report.Results[1]
	if second.Category != config.CategorySnapshots || len(second.Selected) != 1 || second.Selected[0] != "snap-1" {
		t.Errorf("second result = %+v", second)
	}
}

func TestRunEmptySelectionFailsWithoutIgnore(t *testing.T) {
	m := testMock(t)
	af := loadActions(t, `
actions:
  1:
    action: close
    pattern: "logs-*"
    filters:
      - filtertype: pattern
        kind: prefix
        value: nomatch-
  2:
    action: delete_indices
    pattern: "logs-*"
`)

	report, err := New(m).Run(context.Background(), af)
	if !errors.Is(err, errkind.ErrNoCandidates) {
		t.Fatalf("expected no-candidates failure, got %v", err)
	}
	// The run stops at the failing action.
	if len(report.Results) != 1 {
		t.Errorf("got %d results, want 1", len(report.Results))
	}
}

func TestRunEmptySelectionIgnored(t *testing.T) {
	m := testMock(t)
	af := loadActions(t, `
actions:
  1:
    action: close
    pattern: "logs-*"
    ignore_empty_list: true
    filters:
      - filtertype: pattern
        kind: prefix
        value: nomatch-
  2:
    action: delete_indices
    pattern: "logs-*"
`)

	report, err := New(m).Run(context.Background(), af)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(report.Results))
	}
	if len(report.Results[0].Selected) != 0 || len(report.Results[1].Selected) != 10 {
		t.Errorf("results = %+v", report.Results)
	}
}

func TestRunContinueIfErrored(t *testing.T) {
	m := testMock(t)
	m.FailWith("ListSnapshots", errors.New("repository missing"))
	af := loadActions(t, `
actions:
  1:
    action: delete_snapshots
    category: snapshots
    repository: backups
    continue_if_exception: true
  2:
    action: delete_indices
    pattern: "logs-*"
`)

	report, err := New(m).Run(context.Background(), af)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(report.Results))
	}
	if report.Results[0].Err == nil {
		t.Error("first result should carry the failure")
	}
	if len(report.Results[1].Selected) != 10 {
		t.Errorf("second result = %+v", report.Results[1])
	}
}

func TestRunRecordsHistory(t *testing.T) {
	m := testMock(t)
	store, err := runlog.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()
	af := loadActions(t, planActions)

	report, err := New(m).WithRunLog(store).Run(context.Background(), af)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	runs, err := store.Runs(context.Background(), 1)
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != report.RunID || runs[0].Outcome != runlog.OutcomeCompleted {
		t.Errorf("runs = %+v", runs)
	}

	actions, err := store.Actions(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("Actions failed: %v", err)
	}
	if len(actions) != 2 || actions[0].Candidates != 10 || len(actions[0].Selected) != 5 {
		t.Errorf("actions = %+v", actions)
	}
}
