package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemKind distinguishes the two pooled rental catalogs.  Both kinds
// share the same availability semantics.
type ItemKind string

const (
	ItemKindClothing ItemKind = "clothing"
	ItemKindProp     ItemKind = "prop"
)

// InventoryItem is a quantity-pooled rentable item (a clothing piece or
// a prop).  Overlapping bookings may share the pool up to Quantity.
//
// Fields:
//  ID          – primary key (UUID).
//  Kind        – clothing or prop.
//  Name        – display name.
//  Size        – optional size label (clothing only).
//  Price       – flat rental price per unit per booking, in UAH.
//  Quantity    – total units owned by the studio.
//  IsActive    – soft-delete flag; inactive items are hidden.
//  IsAvailable – temporary availability switch (cleaning, repair).
type InventoryItem struct {
	ID          string          // inventory_items.id
	Kind        ItemKind        // inventory_items.kind
	Name        string          // inventory_items.name
	Size        string          // inventory_items.size
	Price       decimal.Decimal // inventory_items.price
	Quantity    int             // inventory_items.quantity
	IsActive    bool            // inventory_items.is_active
	IsAvailable bool            // inventory_items.is_available
	CreatedAt   time.Time       // inventory_items.created_at
}

// ItemRequest is one requested line of a booking's inventory selection.
type ItemRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// ItemAllocation links a booking to an inventory item with the quantity
// taken and the per-unit price snapshotted at booking time.  The price
// snapshot is immutable; later catalog price changes never affect an
// existing booking.
type ItemAllocation struct {
	ID        uint64          // booking_items.id
	BookingID string          // booking_items.booking_id
	ItemID    string          // booking_items.item_id
	Quantity  int             // booking_items.quantity
	Price     decimal.Decimal // booking_items.price (per unit, at booking time)
	CreatedAt time.Time       // booking_items.created_at
}
