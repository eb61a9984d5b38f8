package jobs

import (
	"context"
	"time"

	"github.com/iliyamo/studio-booking/internal/lifecycle"
	"github.com/iliyamo/studio-booking/internal/model"
)

// sweepLockTTL matches the advisory lock TTL used by payment
// reconciliation; the sweep takes the same per-order lock so it cannot
// race a success notification that is being applied right now.
const sweepLockTTL = 30 * time.Second

const sweepCancelNote = "cancelled automatically after unpaid timeout"

// SweepUnpaidBookings is the cron entry point: it cancels bookings that
// stayed in pending payment past the timeout and are confirmed unpaid.
func (jr *JobRunner) SweepUnpaidBookings() {
	jr.runWithRecovery("SweepUnpaidBookings", func() {
		ctx := context.Background()
		cancelled, err := jr.sweep(ctx)
		if err != nil {
			jr.log.WithError(err).Error("unpaid booking sweep failed")
			return
		}
		if cancelled > 0 {
			jr.log.WithField("cancelled", cancelled).Info("unpaid bookings swept")
		}
	})
}

// sweep walks the stale candidates one by one.  Each cancellation takes
// the order's advisory lock and then re-verifies status and paid flag
// under row locks, because a success notification may have landed
// between the candidate listing and this pass.
func (jr *JobRunner) sweep(ctx context.Context) (int, error) {
	cutoff := jr.now().Add(-jr.pendingTimeout)
	stale, err := jr.store.StalePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, b := range stale {
		key := sweepLockKey(&b)
		token, ok, err := jr.locker.TryAcquire(ctx, key, sweepLockTTL)
		if err != nil {
			jr.log.WithError(err).WithField("booking_id", b.ID).Warn("sweep lock unavailable, relying on row locks")
		} else if !ok {
			// A notification for this order is being reconciled; it will
			// either pay or cancel the booking itself.
			continue
		}

		did, cancelErr := jr.cancelIfStillUnpaid(ctx, b.ID)
		if token != "" {
			if relErr := jr.locker.Release(ctx, key, token); relErr != nil {
				jr.log.WithError(relErr).WithField("booking_id", b.ID).Warn("failed to release sweep lock")
			}
		}
		if cancelErr != nil {
			jr.log.WithError(cancelErr).WithField("booking_id", b.ID).Error("failed to sweep booking")
			continue
		}
		if did {
			cancelled++
		}
	}
	return cancelled, nil
}

// sweepLockKey mirrors the reconciler's per-order lock key.  A booking
// that never got a payment row falls back to its own id.
func sweepLockKey(b *model.Booking) string {
	if b.PaymentID != nil {
		return "payment:" + *b.PaymentID
	}
	return "booking:" + b.ID
}

func (jr *JobRunner) cancelIfStillUnpaid(ctx context.Context, bookingID string) (bool, error) {
	cancelled := false
	err := jr.store.Within(ctx, func(ctx context.Context, tx SweepTx) error {
		b, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != string(lifecycle.StatusPendingPayment) {
			return nil
		}
		if b.PaymentID != nil {
			p, err := tx.PaymentForUpdate(ctx, *b.PaymentID)
			if err != nil {
				return err
			}
			if p.IsPaid {
				// A late success arrived; reconciliation owns this one.
				return nil
			}
		}
		next, err := lifecycle.Transition(lifecycle.StatusPendingPayment, lifecycle.StatusCancelled)
		if err != nil {
			return err
		}
		if err := tx.UpdateBookingStatus(ctx, b.ID, string(next), sweepCancelNote); err != nil {
			return err
		}
		cancelled = true
		return nil
	})
	return cancelled, err
}
