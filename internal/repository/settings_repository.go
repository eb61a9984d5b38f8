package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/studio-booking/internal/model"
)

// SettingsRepo manages the booking_settings singleton row.  The row is
// read at the start of every booking operation so administrator changes
// apply without a restart; before the first save, DefaultSettings is
// served.
type SettingsRepo struct {
	db *sql.DB
}

// NewSettingsRepo returns a new SettingsRepo bound to the given database.
func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

const settingsColumns = `opening_minute, closing_minute, granularity_minutes,
               min_duration_minutes, max_duration_minutes, advance_booking_days,
               deposit_percentage, is_booking_enabled, is_rental_enabled,
               max_items_per_booking, maintenance_message, updated_at`

// Get returns the current settings, falling back to defaults when the
// singleton row has not been created yet.
func (r *SettingsRepo) Get(ctx context.Context) (*model.Settings, error) {
	const q = `SELECT ` + settingsColumns + ` FROM booking_settings WHERE id = 1`
	var s model.Settings
	var message sql.NullString
	err := r.db.QueryRowContext(ctx, q).Scan(
		&s.OpeningMinute, &s.ClosingMinute, &s.GranularityMinutes,
		&s.MinDurationMinutes, &s.MaxDurationMinutes, &s.AdvanceBookingDays,
		&s.DepositPercentage, &s.BookingEnabled, &s.RentalEnabled,
		&s.MaxItemsPerBooking, &message, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		def := model.DefaultSettings()
		return &def, nil
	}
	if err != nil {
		return nil, err
	}
	s.MaintenanceMessage = message.String
	return &s, nil
}

// Update writes the settings row, creating it on first save.  The id is
// fixed at 1 so there can never be more than one row.
func (r *SettingsRepo) Update(ctx context.Context, s *model.Settings) error {
	const q = `INSERT INTO booking_settings
               (id, opening_minute, closing_minute, granularity_minutes,
                min_duration_minutes, max_duration_minutes, advance_booking_days,
                deposit_percentage, is_booking_enabled, is_rental_enabled,
                max_items_per_booking, maintenance_message)
               VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
               ON DUPLICATE KEY UPDATE
                opening_minute = VALUES(opening_minute),
                closing_minute = VALUES(closing_minute),
                granularity_minutes = VALUES(granularity_minutes),
                min_duration_minutes = VALUES(min_duration_minutes),
                max_duration_minutes = VALUES(max_duration_minutes),
                advance_booking_days = VALUES(advance_booking_days),
                deposit_percentage = VALUES(deposit_percentage),
                is_booking_enabled = VALUES(is_booking_enabled),
                is_rental_enabled = VALUES(is_rental_enabled),
                max_items_per_booking = VALUES(max_items_per_booking),
                maintenance_message = VALUES(maintenance_message)`
	_, err := r.db.ExecContext(ctx, q,
		s.OpeningMinute, s.ClosingMinute, s.GranularityMinutes,
		s.MinDurationMinutes, s.MaxDurationMinutes, s.AdvanceBookingDays,
		s.DepositPercentage, s.BookingEnabled, s.RentalEnabled,
		s.MaxItemsPerBooking, s.MaintenanceMessage,
	)
	return err
}
