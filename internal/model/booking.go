package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-booking/internal/calendar"
)

// Booking is a time-bounded reservation of one location, optionally
// carrying inventory allocations and add-ons.  Bookings are never
// deleted; terminal states are cancelled and completed.
//
// Fields mirror the bookings table.  Monetary fields are exact decimals
// snapshotted at booking time: HourlyRate is copied from the location so
// later rate changes do not alter an existing booking's price.
type Booking struct {
	ID              string          // bookings.id (UUID)
	LocationID      string          // bookings.location_id
	FirstName       string          // bookings.first_name
	LastName        string          // bookings.last_name
	PhoneNumber     string          // bookings.phone_number
	Email           string          // bookings.email (optional)
	Date            time.Time       // bookings.booking_date (midnight UTC)
	StartMinute     int             // bookings.start_minute (minutes from midnight)
	DurationMinutes int             // bookings.duration_minutes
	HourlyRate      decimal.Decimal // bookings.hourly_rate (snapshot)
	AddOnsTotal     decimal.Decimal // bookings.addons_total
	InventoryTotal  decimal.Decimal // bookings.inventory_total
	TotalAmount     decimal.Decimal // bookings.total_amount
	DepositAmount   decimal.Decimal // bookings.deposit_amount
	Status          string          // bookings.status (lifecycle.Status value)
	Notes           string          // bookings.notes (customer supplied)
	AdminNotes      string          // bookings.admin_notes (operator/system appended)
	PaymentID       *string         // bookings.payment_id (nullable)
	CreatedAt       time.Time       // bookings.created_at
	UpdatedAt       time.Time       // bookings.updated_at
}

// Interval returns the half-open interval the booking occupies.
func (b *Booking) Interval() calendar.Interval {
	return calendar.NewInterval(b.Date, b.StartMinute, b.DurationMinutes)
}

// EndMinute returns the clock offset at which the booking ends.
func (b *Booking) EndMinute() int {
	return calendar.EndMinute(b.StartMinute, b.DurationMinutes)
}
