package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalendarEntry overrides default availability, price and minimum stay for
// one homestay on one date. A date without an entry is available at the
// homestay's default price.
type CalendarEntry struct {
	ID            string              `db:"id" json:"id"`
	HomestayID    string              `db:"homestay_id" json:"homestay_id"`
	Date          time.Time           `db:"date" json:"date"`
	IsAvailable   bool                `db:"is_available" json:"is_available"`
	IsBlocked     bool                `db:"is_blocked" json:"is_blocked"`
	BlockReason   *string             `db:"block_reason" json:"block_reason,omitempty"`
	CustomPrice   decimal.NullDecimal `db:"custom_price" json:"custom_price"`
	MinimumNights *int                `db:"minimum_nights" json:"minimum_nights,omitempty"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `db:"updated_at" json:"updated_at"`
}

// Block labels written into CalendarEntry.BlockReason ahead of the booking code.
const (
	BlockLabelPending   = "Pending Booking"
	BlockLabelConfirmed = "Confirmed Booking"
)

// IsOpen returns true if the date can be booked.
func (e *CalendarEntry) IsOpen() bool {
	return e.IsAvailable && !e.IsBlocked
}
