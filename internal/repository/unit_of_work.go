package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/payments"
)

// UnitOfWork owns the begin/commit/rollback cycle for multi-row
// mutations.  Callers pass a function that does all its reads and writes
// through the supplied transaction; any error rolls the whole unit back
// so partially applied state never becomes visible.
type UnitOfWork struct {
	db *sql.DB
}

// NewUnitOfWork returns a UnitOfWork bound to the given database.
func NewUnitOfWork(db *sql.DB) *UnitOfWork { return &UnitOfWork{db: db} }

// Within runs fn inside one transaction.
func (u *UnitOfWork) Within(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// ReconciliationStore adapts the payment and booking repositories to the
// store interface the payment reconciler drives.  It exists so the
// reconciler stays free of SQL while still getting real row locks.
type ReconciliationStore struct {
	uow      *UnitOfWork
	payments *PaymentRepo
	bookings *BookingRepo
}

// NewReconciliationStore wires the adapter.
func NewReconciliationStore(uow *UnitOfWork, paymentRepo *PaymentRepo, bookingRepo *BookingRepo) *ReconciliationStore {
	return &ReconciliationStore{uow: uow, payments: paymentRepo, bookings: bookingRepo}
}

// Within opens one transaction and hands the reconciler a row-locking
// view of it.
func (s *ReconciliationStore) Within(ctx context.Context, fn func(ctx context.Context, tx payments.TxStore) error) error {
	return s.uow.Within(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &reconciliationTx{tx: tx, store: s})
	})
}

// Payment returns one payment without locking.
func (s *ReconciliationStore) Payment(ctx context.Context, orderID string) (*model.Payment, error) {
	return s.payments.GetByID(ctx, orderID)
}

// SaveReceipt records an issued fiscal receipt.
func (s *ReconciliationStore) SaveReceipt(ctx context.Context, orderID string, rec *payments.Receipt) error {
	return s.payments.SaveReceipt(ctx, orderID, rec.ID, rec.FiscalCode, rec.Status)
}

type reconciliationTx struct {
	tx    *sql.Tx
	store *ReconciliationStore
}

func (t *reconciliationTx) PaymentForUpdate(ctx context.Context, orderID string) (*model.Payment, error) {
	return t.store.payments.GetForUpdateTx(ctx, t.tx, orderID)
}

func (t *reconciliationTx) BookingForUpdateByPayment(ctx context.Context, paymentID string) (*model.Booking, error) {
	return t.store.bookings.GetByPaymentForUpdateTx(ctx, t.tx, paymentID)
}

func (t *reconciliationTx) UpdatePayment(ctx context.Context, p *model.Payment) error {
	return t.store.payments.UpdateTx(ctx, t.tx, p)
}

func (t *reconciliationTx) UpdateBookingStatus(ctx context.Context, bookingID, status, adminNote string) error {
	return t.store.bookings.UpdateStatusTx(ctx, t.tx, bookingID, status, adminNote)
}
