package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Location is an exclusive bookable studio room.  At most one
// non-terminal booking may occupy a location during any interval.
//
// Fields:
//  ID         – primary key (UUID).
//  Name       – display name.
//  Description – optional marketing text.
//  HourlyRate – rental rate per hour in UAH.
//  IsActive   – inactive locations are hidden and unbookable.
type Location struct {
	ID          string          // locations.id
	Name        string          // locations.name
	Description string          // locations.description
	HourlyRate  decimal.Decimal // locations.hourly_rate
	IsActive    bool            // locations.is_active
	CreatedAt   time.Time       // locations.created_at
	UpdatedAt   time.Time       // locations.updated_at
}
