// Package planner drives one planning run: for every action spec it
// builds an inventory, runs the filter pipeline, and reports the selected
// objects. The planner only reads from the cluster; applying the selected
// actions belongs to an outer layer.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/culler-io/culler/internal/client"
	"github.com/culler-io/culler/internal/config"
	"github.com/culler-io/culler/internal/errkind"
	"github.com/culler-io/culler/internal/filters"
	"github.com/culler-io/culler/internal/inventory"
	"github.com/culler-io/culler/internal/logging"
	"github.com/culler-io/culler/internal/metrics"
	"github.com/culler-io/culler/internal/runlog"
)

// Result is the outcome of one action spec within a run.
type Result struct {
	Position   int
	Action     string
	Category   string
	Candidates int
	Selected   []string
	Err        error
}

// Report is the outcome of a whole run.
type Report struct {
	RunID   string
	Results []Result
}

// Planner executes action files against a cluster.
type Planner struct {
	cl      client.Client
	log     *logging.Logger
	metrics *metrics.Core
	store   *runlog.Store
}

// New builds a planner over the given client.
func New(cl client.Client) *Planner {
	return &Planner{cl: cl, log: logging.DefaultLogger()}
}

// WithLogger attaches a logger.
func (p *Planner) WithLogger(l *logging.Logger) *Planner {
	p.log = l
	return p
}

// WithMetrics attaches metric collectors.
func (p *Planner) WithMetrics(m *metrics.Core) *Planner {
	p.metrics = m
	return p
}

// WithRunLog attaches a run history store.
func (p *Planner) WithRunLog(s *runlog.Store) *Planner {
	p.store = s
	return p
}

// Run executes every action of the file in order. An action whose
// filtering comes up empty fails the run unless the spec sets
// ignore_empty_list; any other action failure stops the run unless the
// spec sets continue_if_exception. The report always covers the actions
// that ran.
func (p *Planner) Run(ctx context.Context, af *config.ActionFile) (*Report, error) {
	runID, err := p.beginRun(ctx)
	if err != nil {
		return nil, err
	}
	log := p.log.WithRunID(runID)
	ctx = logging.WithLoggerCtx(logging.WithRunIDCtx(ctx, runID), log)
	report := &Report{RunID: runID}

	var runErr error
	for i, spec := range af.Ordered() {
		res := p.runAction(ctx, log, i+1, spec)
		report.Results = append(report.Results, res)
		p.recordAction(ctx, runID, res)

		if res.Err == nil {
			continue
		}
		if errors.Is(res.Err, errkind.ErrNoCandidates) && spec.IgnoreEmptyList {
			log.Warnf("no candidates, continuing", map[string]any{"action": spec.Action})
			continue
		}
		if spec.ContinueIfErrored {
			log.Errorf("action failed, continuing", map[string]any{
				"action": spec.Action,
				"error":  res.Err.Error(),
			})
			continue
		}
		runErr = fmt.Errorf("action %d (%s): %w", i+1, spec.Action, res.Err)
		break
	}

	p.finishRun(ctx, runID, runErr)
	return report, runErr
}

func (p *Planner) runAction(ctx context.Context, log *logging.Logger, position int, spec config.ActionSpec) Result {
	res := Result{Position: position, Action: spec.Action}

	var (
		inv *inventory.Inventory
		err error
	)
	if spec.Targets(config.CategorySnapshots) {
		res.Category = config.CategorySnapshots
		inv, err = inventory.NewSnapshotInventory(ctx, p.cl, spec.Repository)
	} else {
		res.Category = config.CategoryIndices
		inv, err = inventory.NewIndexInventory(ctx, p.cl, spec.Pattern)
	}
	if err != nil {
		res.Err = err
		return res
	}
	inv.WithMetrics(p.metrics)
	res.Candidates = inv.Len()

	log.Infof("planning action", map[string]any{
		"action":     spec.Action,
		"category":   res.Category,
		"candidates": res.Candidates,
	})

	pipeline := filters.NewPipeline(spec.Filters).
		WithMetrics(p.metrics).
		WithLogger(log)
	ws, err := pipeline.Run(ctx, inv, inv.WorkingSet())
	res.Selected = ws.Names()
	res.Err = err
	return res
}

func (p *Planner) beginRun(ctx context.Context) (string, error) {
	if p.store == nil {
		return uuid.NewString(), nil
	}
	id, err := p.store.BeginRun(ctx)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

func (p *Planner) recordAction(ctx context.Context, runID string, res Result) {
	if p.store == nil {
		return
	}
	rec := runlog.ActionRecord{
		Position:   res.Position,
		Action:     res.Action,
		Category:   res.Category,
		Candidates: res.Candidates,
		Selected:   res.Selected,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	if err := p.store.RecordAction(ctx, runID, rec); err != nil {
		p.log.Errorf("record action", map[string]any{"error": err.Error()})
	}
}

func (p *Planner) finishRun(ctx context.Context, runID string, runErr error) {
	if p.store == nil {
		return
	}
	outcome := runlog.OutcomeCompleted
	if runErr != nil {
		outcome = runlog.OutcomeFailed
	}
	if err := p.store.FinishRun(ctx, runID, outcome); err != nil {
		p.log.Errorf("finish run", map[string]any{"error": err.Error()})
	}
}
