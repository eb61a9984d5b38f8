// Package inventory answers how many units of a pooled item remain free
// during an interval, and validates a booking's full item selection.
// Like availability reads, these checks are advisory until re-run inside
// the commit transaction under the location lock.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/studio-booking/internal/calendar"
	"github.com/iliyamo/studio-booking/internal/model"
)

// ErrItemNotFound is returned by ItemSource implementations for unknown
// ids; ValidateBatch reports it as a line violation rather than an
// infrastructure failure.
var ErrItemNotFound = errors.New("inventory item not found")

// ItemSource looks up catalog items.
type ItemSource interface {
	GetItem(ctx context.Context, id string) (model.InventoryItem, error)
}

// AllocationSource yields the allocations of one item held by
// non-terminal bookings whose interval overlaps the given one.
// Implementations fetch candidate rows by date and let the pool apply
// the canonical overlap test.
type AllocationSource interface {
	AllocationsOn(ctx context.Context, itemID string, date time.Time) ([]AllocatedInterval, error)
}

// AllocatedInterval is one existing allocation with the interval of the
// booking that holds it.
type AllocatedInterval struct {
	BookingID       string
	StartMinute     int
	DurationMinutes int
	Quantity        int
}

// BatchError aggregates every violation found while validating a
// selection, so the customer sees the full list at once.
type BatchError struct {
	Messages []string
}

func (e *BatchError) Error() string {
	return "inventory validation failed: " + strings.Join(e.Messages, "; ")
}

// Pool computes pooled-item availability.
type Pool struct {
	items  ItemSource
	allocs AllocationSource
}

// NewPool builds a Pool over the given sources.
func NewPool(items ItemSource, allocs AllocationSource) *Pool {
	return &Pool{items: items, allocs: allocs}
}

// AvailableQuantity returns how many units of the item are free during
// [start, start+duration): the item's total quantity minus everything
// allocated by overlapping non-terminal bookings.  Never negative.
func (p *Pool) AvailableQuantity(ctx context.Context, itemID string, date time.Time, startMinute, durationMinutes int, excludeBookingID string) (int, error) {
	item, err := p.items.GetItem(ctx, itemID)
	if err != nil {
		return 0, err
	}
	return p.availableQuantity(ctx, item, date, startMinute, durationMinutes, excludeBookingID)
}

func (p *Pool) availableQuantity(ctx context.Context, item model.InventoryItem, date time.Time, startMinute, durationMinutes int, excludeBookingID string) (int, error) {
	allocs, err := p.allocs.AllocationsOn(ctx, item.ID, date)
	if err != nil {
		return 0, err
	}

	want := calendar.NewInterval(date, startMinute, durationMinutes)
	taken := 0
	for _, a := range allocs {
		if excludeBookingID != "" && a.BookingID == excludeBookingID {
			continue
		}
		if want.Overlaps(calendar.NewInterval(date, a.StartMinute, a.DurationMinutes)) {
			taken += a.Quantity
		}
	}

	free := item.Quantity - taken
	if free < 0 {
		free = 0
	}
	return free, nil
}

// ValidateBatch checks a full selection: the rental switch, the
// per-booking item cap, and availability of every line.  All violations
// are collected; nil means the whole selection fits.
func (p *Pool) ValidateBatch(ctx context.Context, cfg model.Settings, requested []model.ItemRequest, date time.Time, startMinute, durationMinutes int, excludeBookingID string) error {
	if len(requested) == 0 {
		return nil
	}

	berr := &BatchError{}
	if !cfg.RentalEnabled {
		berr.Messages = append(berr.Messages, "inventory rental is currently disabled")
	}
	if cfg.MaxItemsPerBooking > 0 && len(requested) > cfg.MaxItemsPerBooking {
		berr.Messages = append(berr.Messages,
			fmt.Sprintf("cannot add more than %d items per booking", cfg.MaxItemsPerBooking))
	}

	for _, line := range requested {
		msg, err := p.validateLine(ctx, line, date, startMinute, durationMinutes, excludeBookingID)
		if err != nil {
			return err
		}
		if msg != "" {
			berr.Messages = append(berr.Messages, msg)
		}
	}

	if len(berr.Messages) == 0 {
		return nil
	}
	return berr
}

// validateLine returns a human-readable violation for one line, or ""
// when the line fits.  Infrastructure errors are returned separately.
func (p *Pool) validateLine(ctx context.Context, line model.ItemRequest, date time.Time, startMinute, durationMinutes int, excludeBookingID string) (string, error) {
	if line.Quantity <= 0 {
		return fmt.Sprintf("item %s: quantity must be positive", line.ItemID), nil
	}
	item, err := p.items.GetItem(ctx, line.ItemID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return fmt.Sprintf("item %s not found", line.ItemID), nil
		}
		return "", err
	}
	if !item.IsActive {
		return fmt.Sprintf("%s is no longer available", item.Name), nil
	}
	if !item.IsAvailable {
		return fmt.Sprintf("%s is currently unavailable", item.Name), nil
	}

	free, err := p.availableQuantity(ctx, item, date, startMinute, durationMinutes, excludeBookingID)
	if err != nil {
		return "", err
	}
	if line.Quantity > free {
		return fmt.Sprintf("only %d unit(s) of %s available for this time slot", free, item.Name), nil
	}
	return "", nil
}
