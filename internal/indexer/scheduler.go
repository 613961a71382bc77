package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"media-catalog/internal/logging"
)

// Scheduler runs full reconciliation passes on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	entryID cron.EntryID
	spec    string
}

// NewScheduler registers r to run on spec, a standard five-field cron
// expression or a descriptor such as "@every 30m". Runs that would overlap
// a still running scheduled pass are skipped.
func NewScheduler(r *Reconciler, spec string) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid scan schedule %q: %w", spec, err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	id, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		if _, err := r.Run(ctx, TriggerSchedule); err != nil {
			logging.Warn("Scheduled reconcile failed: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule reconcile: %w", err)
	}

	return &Scheduler{cron: c, entryID: id, spec: spec}, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	logging.Info("Scheduled reconcile: %s (next run %s)", s.spec, s.Next().Format(time.RFC3339))
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// Stop halts the schedule and returns a context that is done once a
// running pass has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
