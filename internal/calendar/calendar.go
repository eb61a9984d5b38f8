// Package calendar provides the interval arithmetic shared by the
// availability and inventory engines.  All timestamps are UTC; a booking
// occupies a half-open interval [start, end) so that back-to-back
// bookings touching at an endpoint never conflict.
package calendar

import (
	"fmt"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds an interval from a calendar date (midnight UTC), a
// start offset in minutes from midnight and a duration in minutes.
func NewInterval(date time.Time, startMinute, durationMinutes int) Interval {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	start := day.Add(time.Duration(startMinute) * time.Minute)
	return Interval{Start: start, End: start.Add(time.Duration(durationMinutes) * time.Minute)}
}

// Overlaps reports whether two half-open intervals intersect.  Intervals
// that merely touch (a.End == b.Start) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Overlaps is the symmetric free-function form of Interval.Overlaps.
func Overlaps(startA, endA, startB, endB time.Time) bool {
	return Interval{Start: startA, End: endA}.Overlaps(Interval{Start: startB, End: endB})
}

// EndMinute returns the clock offset, in minutes from midnight, at which
// a booking starting at startMinute with the given duration ends.  The
// value may exceed 24*60 when the booking would run past midnight;
// callers compare it against the closing time to reject such candidates.
func EndMinute(startMinute, durationMinutes int) int {
	return startMinute + durationMinutes
}

// ValidateDuration checks that a duration, expressed in minutes, is
// positive and a whole multiple of the configured slot granularity.
func ValidateDuration(durationMinutes, granularityMinutes int) error {
	if granularityMinutes <= 0 {
		granularityMinutes = DefaultGranularityMinutes
	}
	if durationMinutes <= 0 {
		return fmt.Errorf("duration must be positive, got %d minutes", durationMinutes)
	}
	if durationMinutes%granularityMinutes != 0 {
		return fmt.Errorf("duration must be a multiple of %d minutes, got %d", granularityMinutes, durationMinutes)
	}
	return nil
}

// DefaultGranularityMinutes is the slot step used when settings carry no
// explicit granularity.
const DefaultGranularityMinutes = 30

// ParseClock converts an "HH:MM" string into minutes from midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes from midnight as "HH:MM".  Offsets past
// midnight wrap, matching how closing-time comparisons are presented.
func FormatClock(minute int) string {
	minute %= 24 * 60
	if minute < 0 {
		minute += 24 * 60
	}
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// Today returns the current date truncated to midnight UTC, the form
// every booking date is stored in.
func Today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate converts a "YYYY-MM-DD" string into a midnight-UTC time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
