package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/culler-io/culler/internal/client"
	"github.com/culler-io/culler/internal/errkind"
)

// fakeClock advances only when the waiter sleeps.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) sleep(d time.Duration) { c.t = c.t.Add(d) }
func (c *fakeClock) now() time.Time        { return c.t }

func newTestWaiter(cl client.Client) (*Waiter, *fakeClock) {
	clock := newFakeClock()
	return NewWaiter(cl).withClock(clock.sleep, clock.now), clock
}

func TestWaitSnapshotTimesOut(t *testing.T) {
	m := client.NewMockClient()
	m.SetSnapshots("backups", []client.SnapshotInfo{
		{Name: "snap-1", State: client.SnapshotInProgress},
	})
	w, _ := newTestWaiter(m)

	err := w.Wait(context.Background(), Request{
		Action:       ActionSnapshot,
		Repository:   "backups",
		Snapshot:     "snap-1",
		WaitInterval: time.Second,
		MaxWait:      3 * time.Second,
	})
	if !errors.Is(err, errkind.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if got := m.Calls("SnapshotInfo"); got != 3 {
		t.Errorf("checked %d times, want 3", got)
	}
}

func TestWaitSucceedsAfterKChecks(t *testing.T) {
	const k = 4
	m := client.NewMockClient()
	m.SetHealth(client.Health{Status: "green", RelocatingShards: 2})
	w, clock := newTestWaiter(m)
	start := clock.now()

	// Flip the cluster to settled right before the k-th check.
	checks := 0
	w.sleep = func(d time.Duration) {
		clock.sleep(d)
		checks++
		if checks == k-1 {
			m.SetHealth(client.Health{Status: "green"})
		}
	}

	err := w.Wait(context.Background(), Request{
		Action:       ActionAllocation,
		WaitInterval: 2 * time.Second,
		MaxWait:      time.Minute,
	})
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if got := m.Calls("ClusterHealth"); got != k {
		t.Errorf("checked %d times, want %d", got, k)
	}
	if elapsed := clock.now().Sub(start); elapsed != (k-1)*2*time.Second {
		t.Errorf("elapsed %s, want %s", elapsed, (k-1)*2*time.Second)
	}
}

func TestWaitImmediateSuccessNeverSleeps(t *testing.T) {
	m := client.NewMockClient()
	w, _ := newTestWaiter(m)
	slept := false
	w.sleep = func(time.Duration) { slept = true }

	err := w.Wait(context.Background(), Request{Action: ActionReplicas})
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if slept {
		t.Error("check succeeded on the first try but the waiter slept")
	}
}

func TestWaitShrinkTracksHealth(t *testing.T) {
	m := client.NewMockClient()
	m.SetHealth(client.Health{Status: "yellow"})
	w, _ := newTestWaiter(m)
	w.sleep = func(time.Duration) { m.SetHealth(client.Health{Status: "green"}) }

	err := w.Wait(context.Background(), Request{
		Action:  ActionShrink,
		Indices: []string{"logs-2026.08-shrunk"},
	})
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if got := m.Calls("ClusterHealth"); got != 2 {
		t.Errorf("checked %d times, want 2", got)
	}
}

func TestWaitSnapshotTerminalStates(t *testing.T) {
	for _, state := range []string{client.SnapshotSuccess, client.SnapshotPartial, client.SnapshotFailed} {
		m := client.NewMockClient()
		m.SetSnapshots("backups", []client.SnapshotInfo{{Name: "snap-1", State: state}})
		w, _ := newTestWaiter(m)

		err := w.Wait(context.Background(), Request{
			Action:     ActionSnapshot,
			Repository: "backups",
			Snapshot:   "snap-1",
			MaxWait:    time.Second,
		})
		if err != nil {
			t.Errorf("state %s: Wait failed: %v", state, err)
		}
	}
}

func TestWaitRestore(t *testing.T) {
	m := client.NewMockClient()
	m.SetRecovery("idx-1", []client.ShardRecovery{
		{Shard: 0, Stage: client.RecoveryDone},
		{Shard: 1, Stage: "INDEX"},
	})
	w, clock := newTestWaiter(m)
	w.sleep = func(d time.Duration) {
		clock.sleep(d)
		m.SetRecovery("idx-1", []client.ShardRecovery{
			{Shard: 0, Stage: client.RecoveryDone},
			{Shard: 1, Stage: client.RecoveryDone},
		})
	}

	err := w.Wait(context.Background(), Request{
		Action:       ActionRestore,
		Indices:      []string{"idx-1"},
		WaitInterval: time.Second,
		MaxWait:      time.Minute,
	})
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if got := m.Calls("IndexRecovery"); got != 2 {
		t.Errorf("checked %d times, want 2", got)
	}
}

func TestWaitReindexTask(t *testing.T) {
	m := client.NewMockClient()
	m.SetTask("node:42", client.TaskInfo{Completed: true})
	w, _ := newTestWaiter(m)

	err := w.Wait(context.Background(), Request{Action: ActionReindex, TaskID: "node:42"})
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
}

func TestWaitReindexTaskFailure(t *testing.T) {
	m := client.NewMockClient()
	m.SetTask("node:42", client.TaskInfo{Completed: true, FailureReason: "mapper parse error"})
	w, _ := newTestWaiter(m)

	err := w.Wait(context.Background(), Request{Action: ActionReindex, TaskID: "node:42"})
	if err == nil {
		t.Fatal("expected the task failure to surface")
	}
	if errors.Is(err, errkind.ErrTimeout) {
		t.Errorf("task failure reported as timeout: %v", err)
	}
}

func TestWaitPreconditions(t *testing.T) {
	m := client.NewMockClient()
	w, _ := newTestWaiter(m)

	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"snapshot without repo", Request{Action: ActionSnapshot, Snapshot: "s"}, errkind.ErrMissingArgument},
		{"snapshot without name", Request{Action: ActionSnapshot, Repository: "r"}, errkind.ErrMissingArgument},
		{"reindex without task", Request{Action: ActionReindex}, errkind.ErrMissingArgument},
		{"restore without indices", Request{Action: ActionRestore}, errkind.ErrMissingArgument},
		{"shrink without target", Request{Action: ActionShrink}, errkind.ErrMissingArgument},
		{"unknown action", Request{Action: "defrag"}, errkind.ErrConfiguration},
	}
	for _, tc := range cases {
		err := w.Wait(context.Background(), tc.req)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
	// Validation failures never reach the cluster.
	for _, method := range []string{"SnapshotInfo", "TaskStatus", "IndexRecovery", "ClusterHealth"} {
		if got := m.Calls(method); got != 0 {
			t.Errorf("%s called %d times during validation failures", method, got)
		}
	}
}

func TestWaitCheckErrorPropagates(t *testing.T) {
	m := client.NewMockClient()
	boom := errors.New("cluster unavailable")
	m.FailWith("ClusterHealth", boom)
	w, _ := newTestWaiter(m)

	err := w.Wait(context.Background(), Request{Action: ActionAllocation, MaxWait: time.Second})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped check error, got %v", err)
	}
}

func TestWaitUnboundedIgnoresBudget(t *testing.T) {
	m := client.NewMockClient()
	m.SetHealth(client.Health{Status: "yellow"})
	w, clock := newTestWaiter(m)

	// Let it run far past any reasonable budget, then settle.
	checks := 0
	w.sleep = func(d time.Duration) {
		clock.sleep(d)
		checks++
		if checks == 50 {
			m.SetHealth(client.Health{Status: "green"})
		}
	}

	err := w.Wait(context.Background(), Request{
		Action:       ActionReplicas,
		WaitInterval: time.Hour,
		MaxWait:      Unbounded,
	})
	if err != nil {
		t.Fatalf("unbounded wait failed: %v", err)
	}
	if got := m.Calls("ClusterHealth"); got != 51 {
		t.Errorf("checked %d times, want 51", got)
	}
}
