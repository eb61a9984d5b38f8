package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/lifecycle"
	"github.com/iliyamo/studio-booking/internal/model"
)

type fakeSource struct {
	bookings []model.Booking
	err      error
}

func (f *fakeSource) ActiveByLocationAndDate(_ context.Context, locationID string, date time.Time) ([]model.Booking, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Booking
	for _, b := range f.bookings {
		if b.LocationID == locationID && b.Date.Equal(date) {
			out = append(out, b)
		}
	}
	return out, nil
}

var testDay = time.Date(2025, time.November, 15, 0, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2025, time.November, 1, 10, 0, 0, 0, time.UTC) }
}

func booking(id string, startMinute, durationMinutes int, status lifecycle.Status) model.Booking {
	return model.Booking{
		ID:              id,
		LocationID:      "loc-1",
		Date:            testDay,
		StartMinute:     startMinute,
		DurationMinutes: durationMinutes,
		Status:          string(status),
	}
}

func settings() model.Settings {
	cfg := model.DefaultSettings()
	cfg.OpeningMinute = 9 * 60
	cfg.ClosingMinute = 21 * 60
	return cfg
}

func TestFindFreeSlotsGrid(t *testing.T) {
	src := &fakeSource{bookings: []model.Booking{
		booking("b1", 14*60, 120, lifecycle.StatusPendingPayment), // 14:00-16:00
	}}
	eng := NewEngine(src).WithClock(fixedClock())

	slots, err := eng.FindFreeSlots(context.Background(), settings(), "loc-1", testDay, 60)
	require.NoError(t, err)

	// 09:00 through 20:00 starts, 30-minute steps -> 23 slots
	require.Len(t, slots, 23)
	assert.Equal(t, "09:00", slots[0].Start)
	assert.Equal(t, "10:00", slots[0].End)
	assert.Equal(t, "20:00", slots[22].Start)

	byStart := map[string]bool{}
	for _, s := range slots {
		byStart[s.Start] = s.Free
	}
	assert.True(t, byStart["12:00"])
	assert.False(t, byStart["13:30"], "13:30-14:30 overlaps 14:00")
	assert.False(t, byStart["14:00"])
	assert.False(t, byStart["15:30"], "15:30-16:30 overlaps up to 16:00")
	assert.True(t, byStart["16:00"], "touching 16:00 endpoint does not overlap")
}

func TestFindFreeSlotsPastDateEmpty(t *testing.T) {
	eng := NewEngine(&fakeSource{}).WithClock(func() time.Time {
		return time.Date(2025, time.December, 1, 8, 0, 0, 0, time.UTC)
	})
	slots, err := eng.FindFreeSlots(context.Background(), settings(), "loc-1", testDay, 60)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestFindFreeSlotsRejectsBadGranularity(t *testing.T) {
	eng := NewEngine(&fakeSource{}).WithClock(fixedClock())
	_, err := eng.FindFreeSlots(context.Background(), settings(), "loc-1", testDay, 45)
	var verr *ValidationErrors
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "duration_minutes", verr.Errors[0].Field)
}

func TestValidateCandidateConflictReportsEarliest(t *testing.T) {
	src := &fakeSource{bookings: []model.Booking{
		booking("late", 15*60+30, 60, lifecycle.StatusConfirmed), // 15:30-16:30
		booking("early", 14*60, 120, lifecycle.StatusPaid),       // 14:00-16:00
	}}
	eng := NewEngine(src).WithClock(fixedClock())

	err := eng.ValidateCandidate(context.Background(), settings(), Candidate{
		LocationID:      "loc-1",
		Date:            testDay,
		StartMinute:     15 * 60,
		DurationMinutes: 60,
	})
	var verr *ValidationErrors
	require.ErrorAs(t, err, &verr)
	require.NotNil(t, verr.Conflict)
	assert.Equal(t, "early", verr.Conflict.BookingID, "earliest-starting overlap wins")
	assert.Equal(t, "14:00", verr.Conflict.StartsAt)
	assert.Equal(t, "16:00", verr.Conflict.EndsAt)
}

func TestValidateCandidateTouchingIsFree(t *testing.T) {
	src := &fakeSource{bookings: []model.Booking{
		booking("b1", 14*60, 120, lifecycle.StatusPaid), // 14:00-16:00
	}}
	eng := NewEngine(src).WithClock(fixedClock())

	err := eng.ValidateCandidate(context.Background(), settings(), Candidate{
		LocationID:      "loc-1",
		Date:            testDay,
		StartMinute:     16 * 60,
		DurationMinutes: 60,
	})
	assert.NoError(t, err)
}

func TestValidateCandidateIgnoresTerminalAndExcluded(t *testing.T) {
	src := &fakeSource{bookings: []model.Booking{
		booking("cancelled", 14*60, 120, lifecycle.StatusCancelled),
		booking("completed", 14*60, 120, lifecycle.StatusCompleted),
		booking("mine", 15*60, 60, lifecycle.StatusPendingPayment),
	}}
	eng := NewEngine(src).WithClock(fixedClock())

	err := eng.ValidateCandidate(context.Background(), settings(), Candidate{
		LocationID:       "loc-1",
		Date:             testDay,
		StartMinute:      14 * 60,
		DurationMinutes:  120,
		ExcludeBookingID: "mine",
	})
	assert.NoError(t, err, "terminal bookings and the edited booking release capacity")
}

func TestValidateCandidateCollectsAllErrors(t *testing.T) {
	cfg := settings()
	eng := NewEngine(&fakeSource{}).WithClock(fixedClock())

	err := eng.ValidateCandidate(context.Background(), cfg, Candidate{
		LocationID:      "loc-1",
		Date:            testDay,
		StartMinute:     8 * 60,  // before opening
		DurationMinutes: 14 * 60, // over the max and past closing
	})
	var verr *ValidationErrors
	require.ErrorAs(t, err, &verr)

	fields := map[string]int{}
	for _, fe := range verr.Errors {
		fields[fe.Field]++
	}
	assert.GreaterOrEqual(t, fields["start_time"], 1, "opening violation reported")
	assert.GreaterOrEqual(t, fields["duration_minutes"], 2, "max duration and closing violations reported together")
}

func TestValidateCandidateWindows(t *testing.T) {
	cfg := settings()
	eng := NewEngine(&fakeSource{}).WithClock(fixedClock())

	past := eng.ValidateCandidate(context.Background(), cfg, Candidate{
		LocationID: "loc-1", Date: time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC),
		StartMinute: 10 * 60, DurationMinutes: 60,
	})
	var verr *ValidationErrors
	require.ErrorAs(t, past, &verr)
	assert.Contains(t, verr.Error(), "past")

	farOut := eng.ValidateCandidate(context.Background(), cfg, Candidate{
		LocationID: "loc-1", Date: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		StartMinute: 10 * 60, DurationMinutes: 60,
	})
	require.ErrorAs(t, farOut, &verr)
	assert.Contains(t, verr.Error(), "days in advance")
}

func TestValidateCandidateDisabledBooking(t *testing.T) {
	cfg := settings()
	cfg.BookingEnabled = false
	cfg.MaintenanceMessage = "closed for renovation"
	eng := NewEngine(&fakeSource{}).WithClock(fixedClock())

	err := eng.ValidateCandidate(context.Background(), cfg, Candidate{
		LocationID: "loc-1", Date: testDay, StartMinute: 10 * 60, DurationMinutes: 60,
	})
	var verr *ValidationErrors
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "closed for renovation")
}

func TestValidateCandidateSourceErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	eng := NewEngine(&fakeSource{err: boom}).WithClock(fixedClock())
	err := eng.ValidateCandidate(context.Background(), settings(), Candidate{
		LocationID: "loc-1", Date: testDay, StartMinute: 10 * 60, DurationMinutes: 60,
	})
	assert.ErrorIs(t, err, boom)
}

func TestNextFreeSlot(t *testing.T) {
	src := &fakeSource{}
	// fill 2025-11-15 completely: one booking across the whole day
	src.bookings = append(src.bookings, booking("all-day", 9*60, 12*60, lifecycle.StatusConfirmed))
	eng := NewEngine(src).WithClock(fixedClock())

	day, slot, err := eng.NextFreeSlot(context.Background(), settings(), "loc-1", testDay, 60, 7)
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, testDay.AddDate(0, 0, 1), day)
	assert.Equal(t, "09:00", slot.Start)
}
