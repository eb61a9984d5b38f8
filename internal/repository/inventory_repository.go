package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/studio-booking/internal/inventory"
	"github.com/iliyamo/studio-booking/internal/lifecycle"
	"github.com/iliyamo/studio-booking/internal/model"
)

// InventoryRepo provides access to the pooled rental catalog
// (inventory_items) and the booking_items allocations that consume the
// pool.  It satisfies the item and allocation source interfaces the
// inventory pool validates against; the Tx variants take the row locks
// used during commit-time re-validation.
type InventoryRepo struct {
	db *sql.DB
}

// NewInventoryRepo returns a new InventoryRepo bound to the given database.
func NewInventoryRepo(db *sql.DB) *InventoryRepo { return &InventoryRepo{db: db} }

const itemColumns = `id, kind, name, size, price, quantity, is_active, is_available, created_at`

func scanItem(row interface{ Scan(...any) error }) (model.InventoryItem, error) {
	var it model.InventoryItem
	var size sql.NullString
	err := row.Scan(&it.ID, &it.Kind, &it.Name, &size, &it.Price, &it.Quantity, &it.IsActive, &it.IsAvailable, &it.CreatedAt)
	if err != nil {
		return model.InventoryItem{}, err
	}
	it.Size = size.String
	return it, nil
}

// GetItem returns one catalog item.  A missing row is reported as the
// inventory package's not-found sentinel so validation can phrase the
// rejection per line.
func (r *InventoryRepo) GetItem(ctx context.Context, id string) (model.InventoryItem, error) {
	const q = `SELECT ` + itemColumns + ` FROM inventory_items WHERE id = ?`
	it, err := scanItem(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.InventoryItem{}, fmt.Errorf("item %s: %w", id, inventory.ErrItemNotFound)
	}
	return it, err
}

// ListActive returns the browsable catalog, optionally filtered to one
// kind.  Inactive items are hidden; temporarily unavailable items are
// included so the storefront can show them as paused.
func (r *InventoryRepo) ListActive(ctx context.Context, kind model.ItemKind) ([]model.InventoryItem, error) {
	q := `SELECT ` + itemColumns + ` FROM inventory_items WHERE is_active = 1`
	var args []any
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, string(kind))
	}
	q += ` ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.InventoryItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// allocationsQuery joins booking_items to their bookings so only
// allocations held by non-terminal bookings count against the pool.
func allocationsQuery(forUpdate bool) (string, []any) {
	statuses := lifecycle.NonTerminalStrings()
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	q := `SELECT bi.booking_id, b.start_minute, b.duration_minutes, bi.quantity
               FROM booking_items bi
               JOIN bookings b ON b.id = bi.booking_id
               WHERE bi.item_id = ? AND b.booking_date = ? AND b.status IN (` + placeholders + `)`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	args := make([]any, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, s)
	}
	return q, args
}

func collectAllocations(rows *sql.Rows) ([]inventory.AllocatedInterval, error) {
	defer rows.Close()
	var out []inventory.AllocatedInterval
	for rows.Next() {
		var a inventory.AllocatedInterval
		if err := rows.Scan(&a.BookingID, &a.StartMinute, &a.DurationMinutes, &a.Quantity); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AllocationsOn returns the item's allocations held by non-terminal
// bookings on the given date.  This is the advisory (unlocked) read used
// when rendering availability to customers.
func (r *InventoryRepo) AllocationsOn(ctx context.Context, itemID string, date time.Time) ([]inventory.AllocatedInterval, error) {
	q, statusArgs := allocationsQuery(false)
	args := append([]any{itemID, date.Format("2006-01-02")}, statusArgs...)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectAllocations(rows)
}

// AllocateTx persists a booking's inventory allocations with per-unit
// prices snapshotted at booking time.  Passing an empty slice has no
// effect and returns nil.  The caller must commit or roll back the
// transaction.
func (r *InventoryRepo) AllocateTx(ctx context.Context, tx *sql.Tx, allocations []model.ItemAllocation) error {
	if len(allocations) == 0 {
		return nil
	}
	query := `INSERT INTO booking_items (booking_id, item_id, quantity, price) VALUES `
	args := make([]any, 0, len(allocations)*4)
	for i, a := range allocations {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, a.BookingID, a.ItemID, a.Quantity, a.Price)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ListByBooking returns a booking's allocations with their price
// snapshots, for rendering booking details.
func (r *InventoryRepo) ListByBooking(ctx context.Context, bookingID string) ([]model.ItemAllocation, error) {
	const q = `SELECT id, booking_id, item_id, quantity, price, created_at
               FROM booking_items WHERE booking_id = ?`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ItemAllocation
	for rows.Next() {
		var a model.ItemAllocation
		if err := rows.Scan(&a.ID, &a.BookingID, &a.ItemID, &a.Quantity, &a.Price, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// TxSource binds the repo's reads to an open transaction with FOR UPDATE
// locking.  Commit-time re-validation runs the same pool logic as the
// advisory read, but against locked rows so a concurrent booking cannot
// slip between check and insert.
func (r *InventoryRepo) TxSource(tx *sql.Tx) *InventoryTxSource {
	return &InventoryTxSource{tx: tx}
}

// InventoryTxSource is the transaction-scoped, locking view of the
// inventory catalog and its allocations.
type InventoryTxSource struct {
	tx *sql.Tx
}

// GetItem loads one catalog item under an exclusive row lock.
func (s *InventoryTxSource) GetItem(ctx context.Context, id string) (model.InventoryItem, error) {
	const q = `SELECT ` + itemColumns + ` FROM inventory_items WHERE id = ? FOR UPDATE`
	it, err := scanItem(s.tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.InventoryItem{}, fmt.Errorf("item %s: %w", id, inventory.ErrItemNotFound)
	}
	return it, err
}

// AllocationsOn returns the item's non-terminal allocations on the date,
// locking the matched booking rows.
func (s *InventoryTxSource) AllocationsOn(ctx context.Context, itemID string, date time.Time) ([]inventory.AllocatedInterval, error) {
	q, statusArgs := allocationsQuery(true)
	args := append([]any{itemID, date.Format("2006-01-02")}, statusArgs...)
	rows, err := s.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectAllocations(rows)
}
