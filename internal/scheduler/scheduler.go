// Package scheduler wires the maintenance jobs onto a cron runner.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/studio-booking/internal/jobs"
)

// Scheduler manages cron job scheduling.  All schedules run in UTC to
// match the timestamps stored in the database.
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
	log  *logrus.Logger
}

// NewScheduler creates a scheduler and registers the jobs.  sweepSpec is
// a cron expression for the unpaid-booking sweep; empty selects every
// minute.
func NewScheduler(jobRunner *jobs.JobRunner, sweepSpec string, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if sweepSpec == "" {
		sweepSpec = "@every 1m"
	}

	s := &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		jobs: jobRunner,
		log:  log,
	}

	if _, err := s.cron.AddFunc(sweepSpec, s.jobs.SweepUnpaidBookings); err != nil {
		log.WithError(err).Error("failed to register SweepUnpaidBookings job")
	}
	return s
}

// Start begins the cron scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("cron scheduler started")
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("cron scheduler stopped")
}
