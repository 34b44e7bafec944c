package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment status constants
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Payment is the payment subsystem's record of money received for a booking.
type Payment struct {
	ID        string          `db:"id" json:"id"`
	BookingID string          `db:"booking_id" json:"booking_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
