package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-booking/internal/calendar"
)

// Settings is the studio-wide booking configuration.  It is stored as a
// single row and re-read at the start of every operation so that admin
// changes apply to new requests without a restart, while one operation
// never observes two different versions mid-flight.
type Settings struct {
	OpeningMinute       int             // booking_settings.opening_minute (minutes from midnight)
	ClosingMinute       int             // booking_settings.closing_minute
	GranularityMinutes  int             // booking_settings.granularity_minutes (slot step)
	MinDurationMinutes  int             // booking_settings.min_duration_minutes
	MaxDurationMinutes  int             // booking_settings.max_duration_minutes
	AdvanceBookingDays  int             // booking_settings.advance_booking_days
	DepositPercentage   decimal.Decimal // booking_settings.deposit_percentage (retained for reporting)
	BookingEnabled      bool            // booking_settings.is_booking_enabled
	RentalEnabled       bool            // booking_settings.is_rental_enabled (inventory switch)
	MaxItemsPerBooking  int             // booking_settings.max_items_per_booking
	MaintenanceMessage  string          // booking_settings.maintenance_message
	UpdatedAt           time.Time       // booking_settings.updated_at
}

// DefaultSettings returns the configuration used before an administrator
// has saved a row: 09:00-21:00, 30-minute slots, bookings of 1h-8h up to
// 60 days out, half-deposit model with rentals enabled.
func DefaultSettings() Settings {
	return Settings{
		OpeningMinute:      9 * 60,
		ClosingMinute:      21 * 60,
		GranularityMinutes: calendar.DefaultGranularityMinutes,
		MinDurationMinutes: 60,
		MaxDurationMinutes: 8 * 60,
		AdvanceBookingDays: 60,
		DepositPercentage:  decimal.NewFromInt(50),
		BookingEnabled:     true,
		RentalEnabled:      true,
		MaxItemsPerBooking: 10,
	}
}
