package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/studio-booking/internal/jobs"
	"github.com/iliyamo/studio-booking/internal/model"
)

// SweepStore adapts the booking and payment repositories to the store
// the unpaid-booking sweep drives.
type SweepStore struct {
	uow      *UnitOfWork
	bookings *BookingRepo
	payments *PaymentRepo
}

// NewSweepStore wires the adapter.
func NewSweepStore(uow *UnitOfWork, bookingRepo *BookingRepo, paymentRepo *PaymentRepo) *SweepStore {
	return &SweepStore{uow: uow, bookings: bookingRepo, payments: paymentRepo}
}

// StalePending lists bookings still pending payment at or before cutoff.
func (s *SweepStore) StalePending(ctx context.Context, cutoff time.Time) ([]model.Booking, error) {
	return s.bookings.StalePending(ctx, cutoff)
}

// Within opens one transaction and hands the sweep a row-locking view.
func (s *SweepStore) Within(ctx context.Context, fn func(ctx context.Context, tx jobs.SweepTx) error) error {
	return s.uow.Within(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &sweepTx{tx: tx, store: s})
	})
}

type sweepTx struct {
	tx    *sql.Tx
	store *SweepStore
}

func (t *sweepTx) BookingForUpdate(ctx context.Context, id string) (*model.Booking, error) {
	return t.store.bookings.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sweepTx) PaymentForUpdate(ctx context.Context, id string) (*model.Payment, error) {
	return t.store.payments.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sweepTx) UpdateBookingStatus(ctx context.Context, bookingID, status, adminNote string) error {
	return t.store.bookings.UpdateStatusTx(ctx, t.tx, bookingID, status, adminNote)
}
