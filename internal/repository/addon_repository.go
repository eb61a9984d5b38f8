package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/studio-booking/internal/model"
)

// AddOnRepo provides access to the flat-priced add-on services catalog
// and the booking_addons join table that snapshots prices per booking.
type AddOnRepo struct {
	db *sql.DB
}

// NewAddOnRepo returns a new AddOnRepo bound to the given database.
func NewAddOnRepo(db *sql.DB) *AddOnRepo { return &AddOnRepo{db: db} }

// ListActive returns all orderable add-ons sorted by name.
func (r *AddOnRepo) ListActive(ctx context.Context) ([]model.AddOn, error) {
	const q = `SELECT id, name, price, is_active FROM addons WHERE is_active = 1 ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AddOn
	for rows.Next() {
		var a model.AddOn
		if err := rows.Scan(&a.ID, &a.Name, &a.Price, &a.IsActive); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetActiveByIDs resolves the requested add-on ids to catalog rows,
// skipping ids that do not exist or are inactive.  Callers compare the
// returned length against the request to detect unknown ids.  Passing an
// empty slice returns an empty slice.
func (r *AddOnRepo) GetActiveByIDs(ctx context.Context, ids []string) ([]model.AddOn, error) {
	if len(ids) == 0 {
		return []model.AddOn{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	q := `SELECT id, name, price, is_active FROM addons WHERE is_active = 1 AND id IN (` + placeholders + `)`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AddOn
	for rows.Next() {
		var a model.AddOn
		if err := rows.Scan(&a.ID, &a.Name, &a.Price, &a.IsActive); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AttachTx records the add-ons sold with a booking, snapshotting each
// price at booking time.  Passing an empty slice has no effect and
// returns nil.  The caller must commit or roll back the transaction.
func (r *AddOnRepo) AttachTx(ctx context.Context, tx *sql.Tx, bookingID string, addOns []model.AddOn) error {
	if len(addOns) == 0 {
		return nil
	}
	query := `INSERT INTO booking_addons (booking_id, addon_id, price) VALUES `
	args := make([]any, 0, len(addOns)*3)
	for i, a := range addOns {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, bookingID, a.ID, a.Price)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ListByBooking returns the add-ons attached to a booking with their
// snapshotted prices.
func (r *AddOnRepo) ListByBooking(ctx context.Context, bookingID string) ([]model.AddOn, error) {
	const q = `SELECT a.id, a.name, ba.price, a.is_active
               FROM booking_addons ba
               JOIN addons a ON a.id = ba.addon_id
               WHERE ba.booking_id = ?
               ORDER BY a.name`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AddOn
	for rows.Next() {
		var a model.AddOn
		if err := rows.Scan(&a.ID, &a.Name, &a.Price, &a.IsActive); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
