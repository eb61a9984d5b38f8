package model

import "github.com/shopspring/decimal"

// AddOn is an additional studio service (lighting assistant, backdrop
// change and so on) sold at a flat price per booking, independent of the
// booking duration.
type AddOn struct {
	ID       string          // addons.id
	Name     string          // addons.name
	Price    decimal.Decimal // addons.price
	IsActive bool            // addons.is_active
}
