// Package models contains the domain models for the application.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Homestay is a bookable property with its own rate configuration and
// inventory counter. The booking core only writes RoomsAtThisPrice.
type Homestay struct {
	ID               string              `db:"id" json:"id"`
	HostID           string              `db:"host_id" json:"host_id"`
	Name             string              `db:"name" json:"name"`
	BasePrice        decimal.Decimal     `db:"base_price" json:"base_price"`
	WeekendPrice     decimal.NullDecimal `db:"weekend_price" json:"weekend_price"`
	WeeklyDiscount   decimal.NullDecimal `db:"weekly_discount" json:"weekly_discount"`
	MonthlyDiscount  decimal.NullDecimal `db:"monthly_discount" json:"monthly_discount"`
	MinimumNights    int                 `db:"minimum_nights" json:"minimum_nights"`
	MaximumNights    int                 `db:"maximum_nights" json:"maximum_nights"` // 0 means unlimited
	MaximumGuests    int                 `db:"maximum_guests" json:"maximum_guests"`
	RoomsAtThisPrice int                 `db:"rooms_at_this_price" json:"rooms_at_this_price"`
	IsActive         bool                `db:"is_active" json:"is_active"`
	IsApproved       bool                `db:"is_approved" json:"is_approved"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updated_at"`
}

// IsBookable returns true if the homestay accepts reservations.
func (h *Homestay) IsBookable() bool {
	return h.IsActive && h.IsApproved
}
