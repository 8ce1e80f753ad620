// Package poll implements the completion poller: a bounded, synchronous
// retry loop that blocks until a long-running remote operation reaches a
// terminal state or a wall-clock budget runs out.
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/culler-io/culler/internal/client"
	"github.com/culler-io/culler/internal/errkind"
	"github.com/culler-io/culler/internal/logging"
	"github.com/culler-io/culler/internal/metrics"
)

// Action names the kind of remote operation being awaited. Each action is
// bound to a fixed check against the live cluster.
type Action string

const (
	// ActionAllocation awaits shard reallocation; done when no shards are
	// relocating.
	ActionAllocation Action = "allocation"
	// ActionReplicas awaits replica assignment; done when the cluster is
	// green.
	ActionReplicas Action = "replicas"
	// ActionClusterRouting awaits routing changes; done when no shards
	// are relocating.
	ActionClusterRouting Action = "cluster_routing"
	// ActionSnapshot awaits a snapshot; done when its state is terminal.
	ActionSnapshot Action = "snapshot"
	// ActionRestore awaits a restore; done when every shard of every
	// restored index reports a finished recovery.
	ActionRestore Action = "restore"
	// ActionReindex awaits a reindex task; done when the task completes.
	ActionReindex Action = "reindex"
	// ActionShrink awaits a shrink; done when the cluster is green.
	ActionShrink Action = "shrink"
)

// DefaultInterval is the pause between checks when the request does not
// set one.
const DefaultInterval = 9 * time.Second

// Unbounded disables the wall-clock budget.
const Unbounded = time.Duration(-1)

// Request describes one wait. MaxWait at or below zero means unbounded.
type Request struct {
	Action       Action
	Repository   string
	Snapshot     string
	TaskID       string
	Indices      []string
	WaitInterval time.Duration
	MaxWait      time.Duration
}

// Waiter runs completion polls against a cluster. The zero sleep and clock
// functions use real time; tests replace them.
type Waiter struct {
	cl      client.Client
	log     *logging.Logger
	metrics *metrics.Core
	sleep   func(time.Duration)
	now     func() time.Time
}

// NewWaiter builds a Waiter over the given client.
func NewWaiter(cl client.Client) *Waiter {
	return &Waiter{
		cl:    cl,
		sleep: time.Sleep,
		now:   time.Now,
	}
}

// WithLogger attaches a logger.
func (w *Waiter) WithLogger(l *logging.Logger) *Waiter {
	w.log = l
	return w
}

// WithMetrics attaches metric collectors.
func (w *Waiter) WithMetrics(m *metrics.Core) *Waiter {
	w.metrics = m
	return w
}

// withClock replaces the sleep and time functions, for tests.
func (w *Waiter) withClock(sleep func(time.Duration), now func() time.Time) *Waiter {
	w.sleep = sleep
	w.now = now
	return w
}

// Wait blocks until the operation described by req reaches its terminal
// state, then returns nil. It returns errkind.ErrTimeout once the budget
// is exhausted, and any check failure as an execution error. Argument
// validation happens before the first check.
func (w *Waiter) Wait(ctx context.Context, req Request) error {
	check, err := w.checkFor(req)
	if err != nil {
		return err
	}
	interval := req.WaitInterval
	if interval <= 0 {
		interval = DefaultInterval
	}
	bounded := req.MaxWait > 0

	start := w.now()
	for {
		done, err := check(ctx)
		if err != nil {
			w.metrics.ObservePollCheck(string(req.Action), "error")
			return fmt.Errorf("completion check for %s: %w", req.Action, err)
		}
		if done {
			elapsed := w.now().Sub(start)
			w.metrics.ObservePollCheck(string(req.Action), "succeeded")
			w.metrics.ObservePollDone(string(req.Action), elapsed)
			if w.log != nil {
				w.log.Infof("wait complete", map[string]any{
					"action":  string(req.Action),
					"elapsed": elapsed.Seconds(),
				})
			}
			return nil
		}
		w.metrics.ObservePollCheck(string(req.Action), "pending")

		w.sleep(interval)
		elapsed := w.now().Sub(start)
		if bounded && elapsed >= req.MaxWait {
			return errkind.Timeoutf("action %s did not complete within %s", req.Action, req.MaxWait)
		}
		if w.log != nil {
			w.log.Debugf("still waiting", map[string]any{
				"action":  string(req.Action),
				"elapsed": elapsed.Seconds(),
			})
		}
	}
}

type checkFunc func(context.Context) (bool, error)

// checkFor binds the request to its action-specific check, validating the
// action's required arguments first.
func (w *Waiter) checkFor(req Request) (checkFunc, error) {
	switch req.Action {
	case ActionAllocation, ActionClusterRouting:
		return w.relocationCheck, nil
	case ActionReplicas:
		return w.greenCheck, nil
	case ActionShrink:
		if len(req.Indices) == 0 {
			return nil, errkind.Missingf("action %s requires the shrunken target index", req.Action)
		}
		return w.greenCheck, nil
	case ActionSnapshot:
		if req.Repository == "" || req.Snapshot == "" {
			return nil, errkind.Missingf("action %s requires repository and snapshot", req.Action)
		}
		return w.snapshotCheck(req.Repository, req.Snapshot), nil
	case ActionRestore:
		if len(req.Indices) == 0 {
			return nil, errkind.Missingf("action %s requires the restored indices", req.Action)
		}
		return w.recoveryCheck(req.Indices), nil
	case ActionReindex:
		if req.TaskID == "" {
			return nil, errkind.Missingf("action %s requires a task id", req.Action)
		}
		return w.taskCheck(req.TaskID), nil
	default:
		return nil, errkind.Configf("unknown wait action %q", req.Action)
	}
}

func (w *Waiter) relocationCheck(ctx context.Context) (bool, error) {
	h, err := w.cl.ClusterHealth(ctx)
	if err != nil {
		return false, err
	}
	return h.RelocatingShards == 0, nil
}

func (w *Waiter) greenCheck(ctx context.Context) (bool, error) {
	h, err := w.cl.ClusterHealth(ctx)
	if err != nil {
		return false, err
	}
	return h.Status == "green", nil
}

func (w *Waiter) snapshotCheck(repository, snapshot string) checkFunc {
	return func(ctx context.Context) (bool, error) {
		s, err := w.cl.SnapshotInfo(ctx, repository, snapshot)
		if err != nil {
			return false, err
		}
		if s.State == client.SnapshotInProgress {
			return false, nil
		}
		if s.State != client.SnapshotSuccess && w.log != nil {
			w.log.Warnf("snapshot finished abnormally", map[string]any{
				"snapshot": snapshot,
				"state":    s.State,
			})
		}
		return true, nil
	}
}

func (w *Waiter) recoveryCheck(indices []string) checkFunc {
	return func(ctx context.Context) (bool, error) {
		recovery, err := w.cl.IndexRecovery(ctx, indices)
		if err != nil {
			return false, err
		}
		for _, name := range indices {
			shards, ok := recovery[name]
			if !ok || len(shards) == 0 {
				return false, nil
			}
			for _, s := range shards {
				if s.Stage != client.RecoveryDone {
					return false, nil
				}
			}
		}
		return true, nil
	}
}

func (w *Waiter) taskCheck(taskID string) checkFunc {
	return func(ctx context.Context) (bool, error) {
		info, err := w.cl.TaskStatus(ctx, taskID)
		if err != nil {
			return false, err
		}
		if !info.Completed {
			return false, nil
		}
		if info.FailureReason != "" {
			return false, fmt.Errorf("task %s failed: %s", taskID, info.FailureReason)
		}
		return true, nil
	}
}
