// Package pricing computes booking quotes.  All arithmetic uses exact
// decimals; the reconciliation engine compares provider amounts against
// these values with strict equality, so floats are never used.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-booking/internal/model"
)

var (
	sixty = decimal.NewFromInt(60)
	half  = decimal.NewFromFloat(0.5)
)

// Quote is the cost breakdown for one booking.
type Quote struct {
	HourlyRate    decimal.Decimal `json:"hourly_rate"`
	BaseCost      decimal.Decimal `json:"base_cost"`
	AddOnsCost    decimal.Decimal `json:"addons_cost"`
	InventoryCost decimal.Decimal `json:"inventory_cost"`
	Total         decimal.Decimal `json:"total"`
	Deposit       decimal.Decimal `json:"deposit"`
}

// ItemLine is one priced inventory selection used for quoting.
type ItemLine struct {
	Item     model.InventoryItem
	Quantity int
}

// Build computes a quote from scratch.  Base cost scales with duration;
// add-ons and inventory rentals are flat per booking.  Whenever items
// are attached to an existing booking the caller re-runs Build with the
// full selection rather than adjusting a stored total incrementally.
func Build(durationMinutes int, hourlyRate decimal.Decimal, addOns []model.AddOn, items []ItemLine) Quote {
	hours := decimal.NewFromInt(int64(durationMinutes)).Div(sixty)
	base := hourlyRate.Mul(hours)

	addOnsCost := decimal.Zero
	for _, a := range addOns {
		addOnsCost = addOnsCost.Add(a.Price)
	}

	inventoryCost := decimal.Zero
	for _, line := range items {
		inventoryCost = inventoryCost.Add(line.Item.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	total := base.Add(addOnsCost).Add(inventoryCost)

	return Quote{
		HourlyRate:    hourlyRate,
		BaseCost:      base.Round(2),
		AddOnsCost:    addOnsCost.Round(2),
		InventoryCost: inventoryCost.Round(2),
		Total:         total.Round(2),
		Deposit:       Deposit(total, hourlyRate),
	}
}

// Deposit is half the total, capped at one hour's rate, rounded half-up
// to currency precision.  The cap uses the location's hourly rate even
// when add-ons or inventory dominate the total.
func Deposit(total, hourlyRate decimal.Decimal) decimal.Decimal {
	d := total.Mul(half)
	if d.GreaterThan(hourlyRate) {
		d = hourlyRate
	}
	return d.Round(2)
}
