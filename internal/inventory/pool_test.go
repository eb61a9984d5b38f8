package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/model"
)

type fakeCatalog struct {
	items map[string]model.InventoryItem
}

func (f *fakeCatalog) GetItem(_ context.Context, id string) (model.InventoryItem, error) {
	it, ok := f.items[id]
	if !ok {
		return model.InventoryItem{}, ErrItemNotFound
	}
	return it, nil
}

type fakeAllocs struct {
	byItem map[string][]AllocatedInterval
	err    error
}

func (f *fakeAllocs) AllocationsOn(_ context.Context, itemID string, _ time.Time) ([]AllocatedInterval, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byItem[itemID], nil
}

var day = time.Date(2025, time.November, 15, 0, 0, 0, 0, time.UTC)

func newItem(id string, qty int) model.InventoryItem {
	return model.InventoryItem{
		ID: id, Kind: model.ItemKindClothing, Name: "dress " + id,
		Price: decimal.NewFromInt(100), Quantity: qty,
		IsActive: true, IsAvailable: true,
	}
}

func TestAvailableQuantityCountsOverlapsOnly(t *testing.T) {
	catalog := &fakeCatalog{items: map[string]model.InventoryItem{"d1": newItem("d1", 3)}}
	allocs := &fakeAllocs{byItem: map[string][]AllocatedInterval{
		"d1": {
			{BookingID: "b1", StartMinute: 14 * 60, DurationMinutes: 120, Quantity: 1}, // overlaps
			{BookingID: "b2", StartMinute: 15 * 60, DurationMinutes: 60, Quantity: 1},  // overlaps
			{BookingID: "b3", StartMinute: 9 * 60, DurationMinutes: 60, Quantity: 3},   // disjoint
			{BookingID: "b4", StartMinute: 16 * 60, DurationMinutes: 60, Quantity: 3},  // touches 16:00, no overlap
		},
	}}
	pool := NewPool(catalog, allocs)

	free, err := pool.AvailableQuantity(context.Background(), "d1", day, 15*60, 60, "")
	require.NoError(t, err)
	assert.Equal(t, 1, free, "3 total - 2 overlapping units")
}

func TestAvailableQuantityExcludesEditedBooking(t *testing.T) {
	catalog := &fakeCatalog{items: map[string]model.InventoryItem{"d1": newItem("d1", 2)}}
	allocs := &fakeAllocs{byItem: map[string][]AllocatedInterval{
		"d1": {{BookingID: "mine", StartMinute: 14 * 60, DurationMinutes: 120, Quantity: 2}},
	}}
	pool := NewPool(catalog, allocs)

	free, err := pool.AvailableQuantity(context.Background(), "d1", day, 14*60, 60, "mine")
	require.NoError(t, err)
	assert.Equal(t, 2, free)
}

func TestAvailableQuantityNeverNegative(t *testing.T) {
	catalog := &fakeCatalog{items: map[string]model.InventoryItem{"d1": newItem("d1", 1)}}
	allocs := &fakeAllocs{byItem: map[string][]AllocatedInterval{
		"d1": {{BookingID: "b1", StartMinute: 14 * 60, DurationMinutes: 60, Quantity: 5}},
	}}
	pool := NewPool(catalog, allocs)

	free, err := pool.AvailableQuantity(context.Background(), "d1", day, 14*60, 30, "")
	require.NoError(t, err)
	assert.Equal(t, 0, free)
}

func TestValidateBatchShortage(t *testing.T) {
	catalog := &fakeCatalog{items: map[string]model.InventoryItem{"d1": newItem("d1", 3)}}
	allocs := &fakeAllocs{byItem: map[string][]AllocatedInterval{
		"d1": {
			{BookingID: "b1", StartMinute: 14 * 60, DurationMinutes: 120, Quantity: 1},
			{BookingID: "b2", StartMinute: 15 * 60, DurationMinutes: 120, Quantity: 1},
		},
	}}
	pool := NewPool(catalog, allocs)

	err := pool.ValidateBatch(context.Background(), model.DefaultSettings(),
		[]model.ItemRequest{{ItemID: "d1", Quantity: 2}},
		day, 15*60, 60, "")

	var berr *BatchError
	require.ErrorAs(t, err, &berr)
	require.Len(t, berr.Messages, 1)
	assert.Contains(t, berr.Messages[0], "only 1 unit(s)")
}

func TestValidateBatchCollectsEveryViolation(t *testing.T) {
	inactive := newItem("gone", 5)
	inactive.IsActive = false
	paused := newItem("paused", 5)
	paused.IsAvailable = false

	catalog := &fakeCatalog{items: map[string]model.InventoryItem{
		"ok": newItem("ok", 5), "gone": inactive, "paused": paused,
	}}
	pool := NewPool(catalog, &fakeAllocs{})

	cfg := model.DefaultSettings()
	cfg.MaxItemsPerBooking = 2

	err := pool.ValidateBatch(context.Background(), cfg,
		[]model.ItemRequest{
			{ItemID: "ok", Quantity: 1},
			{ItemID: "gone", Quantity: 1},
			{ItemID: "paused", Quantity: 1},
			{ItemID: "missing", Quantity: 1},
		},
		day, 10*60, 60, "")

	var berr *BatchError
	require.ErrorAs(t, err, &berr)
	assert.Len(t, berr.Messages, 4, "cap + inactive + paused + missing, the ok line passes")
	joined := berr.Error()
	assert.Contains(t, joined, "more than 2 items")
	assert.Contains(t, joined, "no longer available")
	assert.Contains(t, joined, "currently unavailable")
	assert.Contains(t, joined, "not found")
}

func TestValidateBatchRentalDisabled(t *testing.T) {
	catalog := &fakeCatalog{items: map[string]model.InventoryItem{"d1": newItem("d1", 3)}}
	pool := NewPool(catalog, &fakeAllocs{})

	cfg := model.DefaultSettings()
	cfg.RentalEnabled = false

	err := pool.ValidateBatch(context.Background(), cfg,
		[]model.ItemRequest{{ItemID: "d1", Quantity: 1}}, day, 10*60, 60, "")

	var berr *BatchError
	require.ErrorAs(t, err, &berr)
	assert.Contains(t, berr.Error(), "rental is currently disabled")
}

func TestValidateBatchEmptySelection(t *testing.T) {
	pool := NewPool(&fakeCatalog{}, &fakeAllocs{})
	cfg := model.DefaultSettings()
	cfg.RentalEnabled = false // irrelevant when nothing is requested
	assert.NoError(t, pool.ValidateBatch(context.Background(), cfg, nil, day, 10*60, 60, ""))
}

func TestValidateBatchInfrastructureErrorPropagates(t *testing.T) {
	catalog := &fakeCatalog{items: map[string]model.InventoryItem{"d1": newItem("d1", 3)}}
	boom := errors.New("db down")
	pool := NewPool(catalog, &fakeAllocs{err: boom})

	err := pool.ValidateBatch(context.Background(), model.DefaultSettings(),
		[]model.ItemRequest{{ItemID: "d1", Quantity: 1}}, day, 10*60, 60, "")
	assert.ErrorIs(t, err, boom)
}

func TestValidateBatchNonPositiveQuantity(t *testing.T) {
	pool := NewPool(&fakeCatalog{items: map[string]model.InventoryItem{}}, &fakeAllocs{})
	err := pool.ValidateBatch(context.Background(), model.DefaultSettings(),
		[]model.ItemRequest{{ItemID: "d1", Quantity: 0}}, day, 10*60, 60, "")
	var berr *BatchError
	require.ErrorAs(t, err, &berr)
	assert.Contains(t, berr.Error(), "must be positive")
}
