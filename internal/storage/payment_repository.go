package storage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/homestay-reservations/backend/internal/storage/models"
)

// PaymentRepository reads the payment subsystem's records.
type PaymentRepository struct {
	BaseRepository
}

// NewPaymentRepository creates a new payment repository.
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{}
}

// Create inserts a payment record.
func (r *PaymentRepository) Create(ctx context.Context, q Queryable, p *models.Payment) error {
	if p.ID == "" {
		p.ID = GenerateID()
	}
	p.CreatedAt = r.Now()

	if _, err := r.exec(ctx, q, `
		INSERT INTO payments (id, booking_id, amount, status, created_at) VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.BookingID, p.Amount, p.Status, p.CreatedAt); err != nil {
		return fmt.Errorf("inserting payment: %w", err)
	}

	return nil
}

// TotalPaid sums the completed payments recorded for a booking.
func (r *PaymentRepository) TotalPaid(ctx context.Context, q Queryable, bookingID string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.get(ctx, q, &total, `
		SELECT SUM(amount) FROM payments WHERE booking_id = ? AND status = ?
	`, bookingID, models.PaymentStatusCompleted)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing payments: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal.Round(2), nil
}
