package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

// Booking status constants
const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusCheckedIn  BookingStatus = "checked_in"
	BookingStatusCheckedOut BookingStatus = "checked_out"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusRejected   BookingStatus = "rejected"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusNoShow     BookingStatus = "no_show"
)

// DateBlockingStatuses are the statuses whose nights must never overlap.
var DateBlockingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusCheckedIn,
}

// IsTerminal returns true if no further transitions are possible.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusRejected, BookingStatusCancelled, BookingStatusNoShow:
		return true
	}
	return false
}

// BlocksDates returns true if a booking in this status occupies its nights.
func (s BookingStatus) BlocksDates() bool {
	for _, blocking := range DateBlockingStatuses {
		if s == blocking {
			return true
		}
	}
	return false
}

// Booking is a guest's reservation of a homestay for [CheckIn, CheckOut).
type Booking struct {
	ID                 string          `db:"id" json:"id"`
	Code               string          `db:"code" json:"code"`
	GuestID            string          `db:"guest_id" json:"guest_id"`
	HomestayID         string          `db:"homestay_id" json:"homestay_id"`
	CheckIn            time.Time       `db:"check_in" json:"check_in"`
	CheckOut           time.Time       `db:"check_out" json:"check_out"`
	NumAdults          int             `db:"num_adults" json:"num_adults"`
	NumChildren        int             `db:"num_children" json:"num_children"`
	BaseAmount         decimal.Decimal `db:"base_amount" json:"base_amount"`
	StayDiscountAmount decimal.Decimal `db:"stay_discount_amount" json:"stay_discount_amount"`
	DiscountAmount     decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	CleaningFee        decimal.Decimal `db:"cleaning_fee" json:"cleaning_fee"`
	ServiceFee         decimal.Decimal `db:"service_fee" json:"service_fee"`
	TaxAmount          decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	TotalAmount        decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status             BookingStatus   `db:"status" json:"status"`
	Notes              *string         `db:"notes" json:"notes,omitempty"`
	CancellationReason *string         `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledBy        *string         `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	PaymentDeadline    time.Time       `db:"payment_deadline" json:"payment_deadline"`
	InventoryReleased  bool            `db:"inventory_released" json:"-"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// GuestCount returns the number of guests counted against capacity.
func (b *Booking) GuestCount() int {
	return b.NumAdults + b.NumChildren
}

// Nights returns the number of nights in the stay.
func (b *Booking) Nights() int {
	return int(b.CheckOut.Sub(b.CheckIn).Hours() / 24)
}

// RecalculateTotal applies total = base - discount + cleaning + service + tax,
// clamped at zero.
func (b *Booking) RecalculateTotal() {
	total := b.BaseAmount.Sub(b.DiscountAmount).Add(b.CleaningFee).Add(b.ServiceFee).Add(b.TaxAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	b.TotalAmount = total.Round(2)
}

// AppendNote adds a line to the booking notes.
func (b *Booking) AppendNote(note string) {
	if b.Notes == nil || *b.Notes == "" {
		b.Notes = &note
		return
	}
	joined := *b.Notes + "\n" + note
	b.Notes = &joined
}
