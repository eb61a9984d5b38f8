// Package jobs contains the background maintenance jobs driven by the
// cron scheduler.
package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/studio-booking/internal/lock"
	"github.com/iliyamo/studio-booking/internal/model"
)

// SweepTx is the row-locked view the sweep works through inside one
// transaction.
type SweepTx interface {
	BookingForUpdate(ctx context.Context, id string) (*model.Booking, error)
	PaymentForUpdate(ctx context.Context, id string) (*model.Payment, error)
	UpdateBookingStatus(ctx context.Context, bookingID, status, adminNote string) error
}

// SweepStore lists candidates and opens the transactions the sweep
// cancels them in.
type SweepStore interface {
	StalePending(ctx context.Context, cutoff time.Time) ([]model.Booking, error)
	Within(ctx context.Context, fn func(ctx context.Context, tx SweepTx) error) error
}

// JobRunner coordinates all scheduled jobs.
type JobRunner struct {
	store          SweepStore
	locker         lock.Locker
	log            *logrus.Logger
	now            func() time.Time
	pendingTimeout time.Duration
}

// NewJobRunner creates a job runner.  Bookings still pending payment
// after pendingTimeout are candidates for cancellation; zero selects the
// 30 minute default.
func NewJobRunner(store SweepStore, locker lock.Locker, log *logrus.Logger, pendingTimeout time.Duration) *JobRunner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if pendingTimeout <= 0 {
		pendingTimeout = 30 * time.Minute
	}
	return &JobRunner{
		store:          store,
		locker:         locker,
		log:            log,
		now:            time.Now,
		pendingTimeout: pendingTimeout,
	}
}

// WithClock overrides the runner's time source.
func (jr *JobRunner) WithClock(now func() time.Time) *JobRunner {
	jr.now = now
	return jr
}

// runWithRecovery wraps job execution with panic recovery so a bad job
// never kills the scheduler goroutine.
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			jr.log.WithField("job", jobName).Errorf("job panicked: %v", r)
		}
	}()

	jr.log.WithField("job", jobName).Debug("starting job")
	jobFunc()
	jr.log.WithField("job", jobName).Debug("job completed")
}
