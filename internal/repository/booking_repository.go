package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/studio-booking/internal/lifecycle"
	"github.com/iliyamo/studio-booking/internal/model"
)

// BookingRepo provides CRUD operations for bookings.  A booking's
// monetary columns are snapshots computed at creation; only the status,
// notes and payment link mutate afterwards.  All timestamps are stored
// in UTC and booking_date is a DATE column.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, location_id, first_name, last_name, phone_number, email,
               booking_date, start_minute, duration_minutes,
               hourly_rate, addons_total, inventory_total, total_amount, deposit_amount,
               status, notes, admin_notes, payment_id, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var b model.Booking
	var email, notes, adminNotes, paymentID sql.NullString
	err := row.Scan(
		&b.ID, &b.LocationID, &b.FirstName, &b.LastName, &b.PhoneNumber, &email,
		&b.Date, &b.StartMinute, &b.DurationMinutes,
		&b.HourlyRate, &b.AddOnsTotal, &b.InventoryTotal, &b.TotalAmount, &b.DepositAmount,
		&b.Status, &notes, &adminNotes, &paymentID, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Email = email.String
	b.Notes = notes.String
	b.AdminNotes = adminNotes.String
	if paymentID.Valid {
		pid := paymentID.String
		b.PaymentID = &pid
	}
	return &b, nil
}

// CreateTx inserts a new booking within the scope of an existing
// transaction.  The caller supplies the UUID and all monetary snapshots
// and must commit or roll back the transaction.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings
               (id, location_id, first_name, last_name, phone_number, email,
                booking_date, start_minute, duration_minutes,
                hourly_rate, addons_total, inventory_total, total_amount, deposit_amount,
                status, notes, admin_notes, payment_id)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		b.ID, b.LocationID, b.FirstName, b.LastName, b.PhoneNumber, nullable(b.Email),
		b.Date.Format("2006-01-02"), b.StartMinute, b.DurationMinutes,
		b.HourlyRate, b.AddOnsTotal, b.InventoryTotal, b.TotalAmount, b.DepositAmount,
		b.Status, nullable(b.Notes), nullable(b.AdminNotes), b.PaymentID,
	)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetByID returns one booking or ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// GetForUpdateTx loads one booking under an exclusive row lock.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`
	b, err := scanBooking(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// GetByPaymentForUpdateTx loads the booking linked to a payment under an
// exclusive row lock.  Used by payment reconciliation, which joins from
// the provider's order id.
func (r *BookingRepo) GetByPaymentForUpdateTx(ctx context.Context, tx *sql.Tx, paymentID string) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_id = ? FOR UPDATE`
	b, err := scanBooking(tx.QueryRowContext(ctx, q, paymentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// GetByPayment is the unlocked variant of the payment join, used after
// reconciliation commits to render or announce the updated booking.
func (r *BookingRepo) GetByPayment(ctx context.Context, paymentID string) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, paymentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func activeBookingsQuery(forUpdate bool) (string, []any) {
	statuses := lifecycle.NonTerminalStrings()
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	q := `SELECT ` + bookingColumns + ` FROM bookings
               WHERE location_id = ? AND booking_date = ? AND status IN (` + placeholders + `)
               ORDER BY start_minute`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	args := make([]any, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, s)
	}
	return q, args
}

func (r *BookingRepo) collectBookings(rows *sql.Rows) ([]model.Booking, error) {
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// ActiveByLocationAndDate returns the non-terminal bookings occupying a
// location on one date, ordered by start time.  This is the advisory
// (unlocked) read behind slot rendering and pre-validation.
func (r *BookingRepo) ActiveByLocationAndDate(ctx context.Context, locationID string, date time.Time) ([]model.Booking, error) {
	q, statusArgs := activeBookingsQuery(false)
	args := append([]any{locationID, date.Format("2006-01-02")}, statusArgs...)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return r.collectBookings(rows)
}

// TxSource binds the conflict read to an open transaction with FOR
// UPDATE, for the locked re-validation that runs right before insert.
func (r *BookingRepo) TxSource(tx *sql.Tx) *BookingTxSource {
	return &BookingTxSource{repo: r, tx: tx}
}

// BookingTxSource is the transaction-scoped, locking view of a
// location's active bookings.
type BookingTxSource struct {
	repo *BookingRepo
	tx   *sql.Tx
}

// ActiveByLocationAndDate returns the same rows as the unlocked read but
// holds exclusive locks on them until the transaction ends.
func (s *BookingTxSource) ActiveByLocationAndDate(ctx context.Context, locationID string, date time.Time) ([]model.Booking, error) {
	q, statusArgs := activeBookingsQuery(true)
	args := append([]any{locationID, date.Format("2006-01-02")}, statusArgs...)
	rows, err := s.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return s.repo.collectBookings(rows)
}

// UpdateStatusTx moves a booking to the given status, appending a note
// to admin_notes when one is supplied.  Lifecycle guards run before this
// is called; the repository only persists the decision.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id, status, adminNote string) error {
	if adminNote == "" {
		_, err := tx.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, status, id)
		return err
	}
	const q = `UPDATE bookings
               SET status = ?,
                   admin_notes = TRIM(LEADING '\n' FROM CONCAT(COALESCE(admin_notes, ''), '\n', ?))
               WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, status, adminNote, id)
	return err
}

// AttachPaymentTx links a freshly created payment to its booking.  A
// booking that already has a payment is left untouched and ErrConflict
// is returned.
func (r *BookingRepo) AttachPaymentTx(ctx context.Context, tx *sql.Tx, bookingID, paymentID string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET payment_id = ? WHERE id = ? AND payment_id IS NULL`,
		paymentID, bookingID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// StalePending returns bookings still pending payment that were created
// at or before the cutoff.  The sweep re-checks each one under locks
// before cancelling, so this read is deliberately unlocked.
func (r *BookingRepo) StalePending(ctx context.Context, cutoff time.Time) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
               WHERE status = ? AND created_at <= ?
               ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, string(lifecycle.StatusPendingPayment), cutoff.UTC())
	if err != nil {
		return nil, err
	}
	return r.collectBookings(rows)
}

// ListOptions filters the operator's booking listing.
type ListOptions struct {
	Date   *time.Time
	Status string
	Limit  int
	Offset int
}

// List returns bookings for the operator dashboard, newest first.
func (r *BookingRepo) List(ctx context.Context, opts ListOptions) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE 1=1`
	var args []any
	if opts.Date != nil {
		q += ` AND booking_date = ?`
		args = append(args, opts.Date.Format("2006-01-02"))
	}
	if opts.Status != "" {
		q += ` AND status = ?`
		args = append(args, opts.Status)
	}
	q += ` ORDER BY created_at DESC`
	if opts.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return r.collectBookings(rows)
}
