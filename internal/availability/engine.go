// Package availability computes free/busy slots for a location and
// validates booking candidates against existing non-terminal bookings.
//
// Reads used to render slot pickers are advisory: they run without any
// lock.  The same ValidateCandidate must be re-executed at commit time
// with the location row locked; handlers go through the repository's
// unit of work for that.
package availability

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/studio-booking/internal/calendar"
	"github.com/iliyamo/studio-booking/internal/lifecycle"
	"github.com/iliyamo/studio-booking/internal/model"
)

// BookingSource yields the non-terminal bookings of one location on one
// date.  Implementations exist for plain reads and for transaction-scoped
// reads under a held location lock.
type BookingSource interface {
	ActiveByLocationAndDate(ctx context.Context, locationID string, date time.Time) ([]model.Booking, error)
}

// Slot is one step of the availability grid returned to slot pickers.
type Slot struct {
	Start string `json:"start_time"` // "HH:MM"
	End   string `json:"end_time"`   // "HH:MM"
	Free  bool   `json:"available"`
}

// Candidate is a booking attempt to validate.
type Candidate struct {
	LocationID       string
	Date             time.Time // midnight UTC
	StartMinute      int
	DurationMinutes  int
	ExcludeBookingID string // set when editing an existing booking
}

// Engine answers availability questions for exclusive locations.
type Engine struct {
	bookings BookingSource
	now      func() time.Time
}

// NewEngine builds an Engine over the given booking source.
func NewEngine(bookings BookingSource) *Engine {
	return &Engine{bookings: bookings, now: time.Now}
}

// WithClock overrides the engine's notion of now.  Tests use it; the
// zero behavior is time.Now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// FindFreeSlots slides a granularity-sized step across the operating
// window and marks each candidate interval free or busy.  Dates in the
// past produce an empty grid.
func (e *Engine) FindFreeSlots(ctx context.Context, cfg model.Settings, locationID string, date time.Time, durationMinutes int) ([]Slot, error) {
	if err := calendar.ValidateDuration(durationMinutes, cfg.GranularityMinutes); err != nil {
		return nil, &ValidationErrors{Errors: []FieldError{{Field: "duration_minutes", Message: err.Error()}}}
	}
	if beforeToday(date, e.now()) {
		return []Slot{}, nil
	}

	existing, err := e.bookings.ActiveByLocationAndDate(ctx, locationID, date)
	if err != nil {
		return nil, err
	}

	step := cfg.GranularityMinutes
	if step <= 0 {
		step = calendar.DefaultGranularityMinutes
	}

	var slots []Slot
	for start := cfg.OpeningMinute; calendar.EndMinute(start, durationMinutes) <= cfg.ClosingMinute; start += step {
		iv := calendar.NewInterval(date, start, durationMinutes)
		free := true
		for i := range existing {
			if iv.Overlaps(existing[i].Interval()) {
				free = false
				break
			}
		}
		slots = append(slots, Slot{
			Start: calendar.FormatClock(start),
			End:   calendar.FormatClock(calendar.EndMinute(start, durationMinutes)),
			Free:  free,
		})
	}
	if slots == nil {
		slots = []Slot{}
	}
	return slots, nil
}

// NextFreeSlot scans up to daysToCheck days starting at from and returns
// the first free slot, or nil when none exists in the window.
func (e *Engine) NextFreeSlot(ctx context.Context, cfg model.Settings, locationID string, from time.Time, durationMinutes, daysToCheck int) (date time.Time, slot *Slot, err error) {
	for d := 0; d <= daysToCheck; d++ {
		day := from.AddDate(0, 0, d)
		slots, err := e.FindFreeSlots(ctx, cfg, locationID, day, durationMinutes)
		if err != nil {
			return time.Time{}, nil, err
		}
		for i := range slots {
			if slots[i].Free {
				return day, &slots[i], nil
			}
		}
	}
	return time.Time{}, nil, nil
}

// ValidateCandidate runs the fixed validation pipeline and collects all
// applicable errors: booking switch, duration granularity and bounds,
// date window, operating hours, then the conflict scan.  A conflict is
// reported against the earliest-starting overlapping booking.
func (e *Engine) ValidateCandidate(ctx context.Context, cfg model.Settings, cand Candidate) error {
	verr := &ValidationErrors{}

	if !cfg.BookingEnabled {
		msg := cfg.MaintenanceMessage
		if msg == "" {
			msg = "booking is currently disabled"
		}
		verr.add("booking", "%s", msg)
	}

	if err := calendar.ValidateDuration(cand.DurationMinutes, cfg.GranularityMinutes); err != nil {
		verr.add("duration_minutes", "%s", err.Error())
	} else {
		if cand.DurationMinutes < cfg.MinDurationMinutes {
			verr.add("duration_minutes", "minimum booking duration is %s", calendar.FormatClock(cfg.MinDurationMinutes))
		}
		if cfg.MaxDurationMinutes > 0 && cand.DurationMinutes > cfg.MaxDurationMinutes {
			verr.add("duration_minutes", "maximum booking duration is %s", calendar.FormatClock(cfg.MaxDurationMinutes))
		}
	}

	now := e.now()
	if beforeToday(cand.Date, now) {
		verr.add("date", "cannot book dates in the past")
	} else if cfg.AdvanceBookingDays > 0 {
		horizon := midnight(now).AddDate(0, 0, cfg.AdvanceBookingDays)
		if midnight(cand.Date).After(horizon) {
			verr.add("date", "cannot book more than %d days in advance", cfg.AdvanceBookingDays)
		}
	}

	if cand.StartMinute < cfg.OpeningMinute {
		verr.add("start_time", "studio opens at %s", calendar.FormatClock(cfg.OpeningMinute))
	}
	end := calendar.EndMinute(cand.StartMinute, cand.DurationMinutes)
	if end > cfg.ClosingMinute {
		verr.add("duration_minutes", "booking would extend past closing time (%s)", calendar.FormatClock(cfg.ClosingMinute))
	}

	// The conflict scan still runs when only soft errors were recorded
	// above, so the caller sees every problem in one response.  It is
	// skipped when the interval itself is unusable.
	if cand.DurationMinutes > 0 {
		conflict, err := e.findConflict(ctx, cand)
		if err != nil {
			return err
		}
		if conflict != nil {
			verr.Conflict = conflict
			verr.add("start_time", "%s", conflict.Error())
		}
	}

	if verr.empty() {
		return nil
	}
	return verr
}

// findConflict returns the earliest-starting non-terminal booking that
// overlaps the candidate, or nil.
func (e *Engine) findConflict(ctx context.Context, cand Candidate) (*ConflictError, error) {
	existing, err := e.bookings.ActiveByLocationAndDate(ctx, cand.LocationID, cand.Date)
	if err != nil {
		return nil, err
	}
	sort.Slice(existing, func(i, j int) bool { return existing[i].StartMinute < existing[j].StartMinute })

	iv := calendar.NewInterval(cand.Date, cand.StartMinute, cand.DurationMinutes)
	for i := range existing {
		b := &existing[i]
		if cand.ExcludeBookingID != "" && b.ID == cand.ExcludeBookingID {
			continue
		}
		if !lifecycle.Status(b.Status).Terminal() && iv.Overlaps(b.Interval()) {
			return &ConflictError{
				BookingID: b.ID,
				StartsAt:  calendar.FormatClock(b.StartMinute),
				EndsAt:    calendar.FormatClock(b.EndMinute()),
			}, nil
		}
	}
	return nil, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func beforeToday(date, now time.Time) bool {
	return midnight(date).Before(midnight(now))
}
