package filters

import (
	"context"
	"fmt"
	"time"

	"github.com/culler-io/culler/internal/errkind"
	"github.com/culler-io/culler/internal/inventory"
	"github.com/culler-io/culler/internal/logging"
	"github.com/culler-io/culler/internal/metrics"
)

// Pipeline applies an ordered filter list against one inventory. All
// filters are validated up front, before the first remote call, so a
// misconfigured pipeline never partially executes.
type Pipeline struct {
	filters List
	metrics *metrics.Core
	log     *logging.Logger
}

// NewPipeline builds a pipeline over the given filter list.
func NewPipeline(filters List) *Pipeline {
	return &Pipeline{filters: filters}
}

// WithMetrics attaches metric collectors to filter application.
func (p *Pipeline) WithMetrics(m *metrics.Core) *Pipeline {
	p.metrics = m
	return p
}

// WithLogger attaches a logger to filter application.
func (p *Pipeline) WithLogger(l *logging.Logger) *Pipeline {
	p.log = l
	return p
}

// Len returns the number of filters in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.filters)
}

// Run validates every filter and then applies them in order, each one
// narrowing the working set. A final empty set is reported as
// errkind.ErrNoCandidates together with the set, so callers can choose to
// warn or fail.
func (p *Pipeline) Run(ctx context.Context, inv *inventory.Inventory, ws inventory.WorkingSet) (inventory.WorkingSet, error) {
	log := p.log
	if log == nil {
		log = logging.FromCtx(ctx)
	}
	for i, f := range p.filters {
		if err := f.Validate(inv.Category()); err != nil {
			return ws, fmt.Errorf("filter %d (%s): %w", i, f.Kind(), err)
		}
	}

	for i, f := range p.filters {
		start := time.Now()
		out, err := f.Apply(ctx, inv, ws)
		if err != nil {
			return ws, fmt.Errorf("filter %d (%s): %w", i, f.Kind(), err)
		}
		dropped := ws.Len() - out.Len()
		p.metrics.ObserveFilter(string(f.Kind()), time.Since(start), dropped)
		log.Debugf("filter applied", map[string]any{
			"filtertype": string(f.Kind()),
			"position":   i,
			"in":         ws.Len(),
			"out":        out.Len(),
		})
		ws = out
	}

	if ws.Empty() {
		return ws, fmt.Errorf("%w: every object was filtered out", errkind.ErrNoCandidates)
	}
	return ws, nil
}
