package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/studio-booking/internal/model"
)

// LocationRepo provides read access to the studio locations catalog and
// the row lock used to serialize bookings against one location.  All
// timestamp columns are stored in UTC.
type LocationRepo struct {
	db *sql.DB
}

// NewLocationRepo returns a new LocationRepo bound to the given database.
func NewLocationRepo(db *sql.DB) *LocationRepo { return &LocationRepo{db: db} }

const locationColumns = `id, name, description, hourly_rate, is_active, created_at, updated_at`

func scanLocation(row interface{ Scan(...any) error }) (*model.Location, error) {
	var loc model.Location
	var description sql.NullString
	err := row.Scan(&loc.ID, &loc.Name, &description, &loc.HourlyRate, &loc.IsActive, &loc.CreatedAt, &loc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	loc.Description = description.String
	return &loc, nil
}

// GetByID returns one location regardless of its active flag.  When no
// such location exists, ErrNotFound is returned.
func (r *LocationRepo) GetByID(ctx context.Context, id string) (*model.Location, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations WHERE id = ?`
	loc, err := scanLocation(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return loc, err
}

// ListActive returns all bookable locations ordered by name.
func (r *LocationRepo) ListActive(ctx context.Context) ([]model.Location, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations WHERE is_active = 1 ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *loc)
	}
	return out, rows.Err()
}

// GetForUpdateTx loads a location under an exclusive row lock.  Booking
// creation and cancellation both lock the location row first, so two
// concurrent requests for the same location serialize before either
// re-validates the slot.  The caller must commit or roll back the
// transaction.
func (r *LocationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (*model.Location, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations WHERE id = ? FOR UPDATE`
	loc, err := scanLocation(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return loc, err
}
