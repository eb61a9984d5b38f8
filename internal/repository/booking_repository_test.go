package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/lifecycle"
)

func bookingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "location_id", "first_name", "last_name", "phone_number", "email",
		"booking_date", "start_minute", "duration_minutes",
		"hourly_rate", "addons_total", "inventory_total", "total_amount", "deposit_amount",
		"status", "notes", "admin_notes", "payment_id", "created_at", "updated_at",
	})
}

func TestBookingGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ?`)).
		WithArgs("bk-1").
		WillReturnRows(bookingRows().AddRow(
			"bk-1", "loc-1", "Olena", "Shevchenko", "+380501112233", "olena@example.com",
			date, 600, 120,
			"500.00", "0", "0", "1000.00", "500.00",
			"pending_payment", nil, nil, "ord-1", now, now,
		))

	repo := NewBookingRepo(db)
	b, err := repo.GetByID(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Equal(t, "loc-1", b.LocationID)
	assert.Equal(t, 600, b.StartMinute)
	assert.Equal(t, "1000.00", b.TotalAmount.StringFixed(2))
	require.NotNil(t, b.PaymentID)
	assert.Equal(t, "ord-1", *b.PaymentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ?`)).
		WithArgs("missing").
		WillReturnRows(bookingRows())

	repo := NewBookingRepo(db)
	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingActiveByLocationAndDateFiltersTerminal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	mock.ExpectQuery(`FROM bookings\s+WHERE location_id = \? AND booking_date = \? AND status IN \(\?,\?,\?\)`).
		WithArgs("loc-1", "2026-03-14", "pending_payment", "paid", "confirmed").
		WillReturnRows(bookingRows().AddRow(
			"bk-1", "loc-1", "Olena", "Shevchenko", "+380501112233", nil,
			date, 810, 90,
			"500.00", "0", "0", "750.00", "375.00",
			"paid", nil, nil, nil, now, now,
		))

	repo := NewBookingRepo(db)
	got, err := repo.ActiveByLocationAndDate(context.Background(), "loc-1", date)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 810, got[0].StartMinute)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingUpdateStatusAppendsNote(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE bookings\s+SET status = \?,\s+admin_notes = TRIM`).
		WithArgs("cancelled", "payment window expired", "bk-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewBookingRepo(db)
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatusTx(context.Background(), tx, "bk-1", "cancelled", "payment window expired"))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingAttachPaymentConflictWhenAlreadyLinked(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET payment_id = ? WHERE id = ? AND payment_id IS NULL`)).
		WithArgs("ord-2", "bk-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	repo := NewBookingRepo(db)
	tx, err := db.Begin()
	require.NoError(t, err)
	err = repo.AttachPaymentTx(context.Background(), tx, "bk-1", "ord-2")
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingStalePending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cutoff := time.Date(2026, 3, 14, 11, 30, 0, 0, time.UTC)
	date := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	created := cutoff.Add(-time.Minute)
	mock.ExpectQuery(`FROM bookings\s+WHERE status = \? AND created_at <= \?`).
		WithArgs(string(lifecycle.StatusPendingPayment), cutoff).
		WillReturnRows(bookingRows().AddRow(
			"bk-stale", "loc-1", "Olena", "Shevchenko", "+380501112233", nil,
			date, 600, 60,
			"500.00", "0", "0", "500.00", "250.00",
			"pending_payment", nil, nil, "ord-9", created, created,
		))

	repo := NewBookingRepo(db)
	got, err := repo.StalePending(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bk-stale", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
