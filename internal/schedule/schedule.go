// Package schedule runs planning on a cron schedule.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/culler-io/culler/internal/errkind"
	"github.com/culler-io/culler/internal/logging"
)

// Scheduler fires a job function on a cron expression. One job runs at a
// time; a firing that arrives while the previous one is still running is
// skipped.
type Scheduler struct {
	spec string
	job  func(context.Context)
	cron *cron.Cron
	log  *logging.Logger

	mu      sync.Mutex
	running bool
	busy    bool
}

// New builds a scheduler. The expression uses standard five-field cron
// syntax and is validated here, before anything starts.
func New(spec string, job func(context.Context)) (*Scheduler, error) {
	if spec == "" {
		return nil, errkind.Missingf("cron expression must not be empty")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, errkind.Configf("invalid cron expression %q: %v", spec, err)
	}
	return &Scheduler{
		spec: spec,
		job:  job,
		cron: cron.New(),
	}, nil
}

// WithLogger attaches a logger.
func (s *Scheduler) WithLogger(l *logging.Logger) *Scheduler {
	s.log = l
	return s
}

// Start begins firing the job. The scheduler stops itself when ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, func() { s.fire(ctx) }); err != nil {
		return errkind.Configf("schedule job: %v", err)
	}
	s.cron.Start()
	s.running = true
	if s.log != nil {
		s.log.Infof("scheduler started", map[string]any{"schedule": s.spec})
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) fire(ctx context.Context) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		if s.log != nil {
			s.log.Warn("previous run still in progress, skipping this firing")
		}
		return
	}
	s.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()
	s.job(ctx)
}

// Stop halts the schedule and waits for a running job to finish. The wait
// happens outside the lock so the job's own bookkeeping can complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	if s.log != nil {
		s.log.Info("scheduler stopped")
	}
}

// IsRunning reports whether the schedule is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next firing time, zero when not running.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
