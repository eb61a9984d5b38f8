package jobs

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/lifecycle"
	"github.com/iliyamo/studio-booking/internal/model"
)

type fakeSweepStore struct {
	bookings map[string]*model.Booking
	payments map[string]*model.Payment
	stale    []string
}

func (s *fakeSweepStore) StalePending(_ context.Context, cutoff time.Time) ([]model.Booking, error) {
	var out []model.Booking
	for _, id := range s.stale {
		if b := s.bookings[id]; b != nil && !b.CreatedAt.After(cutoff) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *fakeSweepStore) Within(ctx context.Context, fn func(ctx context.Context, tx SweepTx) error) error {
	return fn(ctx, s)
}

func (s *fakeSweepStore) BookingForUpdate(_ context.Context, id string) (*model.Booking, error) {
	cp := *s.bookings[id]
	return &cp, nil
}

func (s *fakeSweepStore) PaymentForUpdate(_ context.Context, id string) (*model.Payment, error) {
	cp := *s.payments[id]
	return &cp, nil
}

func (s *fakeSweepStore) UpdateBookingStatus(_ context.Context, bookingID, status, adminNote string) error {
	b := s.bookings[bookingID]
	b.Status = status
	if adminNote != "" {
		b.AdminNotes = adminNote
	}
	return nil
}

type fakeLocker struct {
	held     map[string]bool
	acquired []string
}

func (l *fakeLocker) TryAcquire(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	if l.held[key] {
		return "", false, nil
	}
	l.acquired = append(l.acquired, key)
	return "tok", true, nil
}

func (l *fakeLocker) Release(_ context.Context, key, token string) error { return nil }

func pendingBooking(id, orderID string, age time.Duration) (*model.Booking, *model.Payment) {
	pid := orderID
	return &model.Booking{
			ID:            id,
			Status:        string(lifecycle.StatusPendingPayment),
			PaymentID:     &pid,
			DepositAmount: decimal.RequireFromString("250.00"),
			CreatedAt:     time.Now().Add(-age),
		}, &model.Payment{
			ID:     orderID,
			Amount: decimal.RequireFromString("250.00"),
		}
}

func newSweepRunner(store *fakeSweepStore, locker *fakeLocker) *JobRunner {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewJobRunner(store, locker, log, 30*time.Minute)
}

func TestSweepCancelsStaleUnpaidBooking(t *testing.T) {
	b, p := pendingBooking("bk-1", "ord-1", 31*time.Minute)
	store := &fakeSweepStore{
		bookings: map[string]*model.Booking{"bk-1": b},
		payments: map[string]*model.Payment{"ord-1": p},
		stale:    []string{"bk-1"},
	}
	locker := &fakeLocker{}

	cancelled, err := newSweepRunner(store, locker).sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)
	assert.Equal(t, string(lifecycle.StatusCancelled), b.Status)
	assert.Equal(t, sweepCancelNote, b.AdminNotes)
	assert.Equal(t, []string{"payment:ord-1"}, locker.acquired)
}

func TestSweepSkipsBookingPaidInTheMeantime(t *testing.T) {
	// The candidate listing saw it pending, but a success notification
	// flipped the payment before the sweep took its locks.
	b, p := pendingBooking("bk-1", "ord-1", 31*time.Minute)
	p.IsPaid = true
	store := &fakeSweepStore{
		bookings: map[string]*model.Booking{"bk-1": b},
		payments: map[string]*model.Payment{"ord-1": p},
		stale:    []string{"bk-1"},
	}

	cancelled, err := newSweepRunner(store, &fakeLocker{}).sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cancelled)
	assert.Equal(t, string(lifecycle.StatusPendingPayment), b.Status)
}

func TestSweepIgnoresYoungBookings(t *testing.T) {
	b, p := pendingBooking("bk-1", "ord-1", 29*time.Minute)
	store := &fakeSweepStore{
		bookings: map[string]*model.Booking{"bk-1": b},
		payments: map[string]*model.Payment{"ord-1": p},
		stale:    []string{"bk-1"},
	}

	cancelled, err := newSweepRunner(store, &fakeLocker{}).sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cancelled)
	assert.Equal(t, string(lifecycle.StatusPendingPayment), b.Status)
}

func TestSweepSkipsOrderUnderReconciliation(t *testing.T) {
	b, p := pendingBooking("bk-1", "ord-1", 45*time.Minute)
	store := &fakeSweepStore{
		bookings: map[string]*model.Booking{"bk-1": b},
		payments: map[string]*model.Payment{"ord-1": p},
		stale:    []string{"bk-1"},
	}
	locker := &fakeLocker{held: map[string]bool{"payment:ord-1": true}}

	cancelled, err := newSweepRunner(store, locker).sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cancelled)
	assert.Equal(t, string(lifecycle.StatusPendingPayment), b.Status)
}

func TestSweepStatusChangedUnderLock(t *testing.T) {
	// A concurrent operator cancel landed between listing and locking.
	b, p := pendingBooking("bk-1", "ord-1", 40*time.Minute)
	store := &fakeSweepStore{
		bookings: map[string]*model.Booking{"bk-1": b},
		payments: map[string]*model.Payment{"ord-1": p},
		stale:    []string{"bk-1"},
	}
	b.Status = string(lifecycle.StatusCancelled)

	cancelled, err := newSweepRunner(store, &fakeLocker{}).sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cancelled)
	assert.Empty(t, b.AdminNotes)
}
