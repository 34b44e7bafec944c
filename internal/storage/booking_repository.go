package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/homestay-reservations/backend/internal/storage/models"
)

const bookingColumns = `
	id, code, guest_id, homestay_id, check_in, check_out, num_adults, num_children,
	base_amount, stay_discount_amount, discount_amount, cleaning_fee, service_fee,
	tax_amount, total_amount, status, notes, cancellation_reason, cancelled_by,
	cancelled_at, payment_deadline, inventory_released, created_at, updated_at`

// BookingRepository provides data access for bookings and the nights they occupy.
type BookingRepository struct {
	BaseRepository
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository() *BookingRepository {
	return &BookingRepository{}
}

// Create inserts a new booking.
func (r *BookingRepository) Create(ctx context.Context, q Queryable, b *models.Booking) error {
	if b.ID == "" {
		b.ID = GenerateID()
	}
	b.CreatedAt = r.Now()
	b.UpdatedAt = b.CreatedAt

	_, err := r.exec(ctx, q, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID, b.Code, b.GuestID, b.HomestayID, b.CheckIn, b.CheckOut, b.NumAdults, b.NumChildren,
		b.BaseAmount, b.StayDiscountAmount, b.DiscountAmount, b.CleaningFee, b.ServiceFee,
		b.TaxAmount, b.TotalAmount, b.Status, b.Notes, b.CancellationReason, b.CancelledBy,
		b.CancelledAt, b.PaymentDeadline, b.InventoryReleased, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting booking: %w", err)
	}

	return nil
}

// GetByID retrieves a booking by its ID.
func (r *BookingRepository) GetByID(ctx context.Context, q Queryable, id string) (*models.Booking, error) {
	return r.getOne(ctx, q, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
}

// GetByCode retrieves a booking by its human-facing code.
func (r *BookingRepository) GetByCode(ctx context.Context, q Queryable, code string) (*models.Booking, error) {
	return r.getOne(ctx, q, `SELECT `+bookingColumns+` FROM bookings WHERE code = ?`, code)
}

func (r *BookingRepository) getOne(ctx context.Context, q Queryable, query string, arg any) (*models.Booking, error) {
	b := &models.Booking{}

	err := r.get(ctx, q, b, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying booking: %w", err)
	}

	return b, nil
}

// CodeExists reports whether a booking code is already taken.
func (r *BookingRepository) CodeExists(ctx context.Context, q Queryable, code string) (bool, error) {
	var count int
	if err := r.get(ctx, q, &count, `SELECT COUNT(*) FROM bookings WHERE code = ?`, code); err != nil {
		return false, fmt.Errorf("checking booking code: %w", err)
	}
	return count > 0, nil
}

// Update persists every mutable field of a booking.
func (r *BookingRepository) Update(ctx context.Context, q Queryable, b *models.Booking) error {
	b.UpdatedAt = r.Now()

	n, err := r.exec(ctx, q, `
		UPDATE bookings SET
			check_in = ?, check_out = ?, num_adults = ?, num_children = ?,
			base_amount = ?, stay_discount_amount = ?, discount_amount = ?, cleaning_fee = ?,
			service_fee = ?, tax_amount = ?, total_amount = ?, status = ?, notes = ?,
			cancellation_reason = ?, cancelled_by = ?, cancelled_at = ?,
			payment_deadline = ?, inventory_released = ?, updated_at = ?
		WHERE id = ?
	`,
		b.CheckIn, b.CheckOut, b.NumAdults, b.NumChildren,
		b.BaseAmount, b.StayDiscountAmount, b.DiscountAmount, b.CleaningFee,
		b.ServiceFee, b.TaxAmount, b.TotalAmount, b.Status, b.Notes,
		b.CancellationReason, b.CancelledBy, b.CancelledAt,
		b.PaymentDeadline, b.InventoryReleased, b.UpdatedAt,
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("updating booking: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("updating booking: %s not found", b.ID)
	}

	return nil
}

// FindOverlapping returns bookings of the homestay in a date-blocking status
// whose stay intersects [start, end). A non-empty excludeCode skips that booking.
func (r *BookingRepository) FindOverlapping(ctx context.Context, q Queryable, homestayID string, start, end time.Time, excludeCode string) ([]models.Booking, error) {
	query, args, err := sqlx.In(`
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE homestay_id = ? AND status IN (?) AND check_in < ? AND check_out > ? AND code <> ?
		ORDER BY check_in
	`, homestayID, models.DateBlockingStatuses, end, start, excludeCode)
	if err != nil {
		return nil, fmt.Errorf("building overlap query: %w", err)
	}

	var bookings []models.Booking
	if err := r.selectAll(ctx, q, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("querying overlapping bookings: %w", err)
	}

	return bookings, nil
}

// ListExpiredPending returns pending bookings whose payment deadline is before
// now and that have no completed payment. Partly paid bookings wait for a
// top-up or a cancellation instead.
func (r *BookingRepository) ListExpiredPending(ctx context.Context, q Queryable, now time.Time) ([]models.Booking, error) {
	var bookings []models.Booking

	err := r.selectAll(ctx, q, &bookings, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = ? AND payment_deadline < ?
			AND NOT EXISTS (
				SELECT 1 FROM payments p
				WHERE p.booking_id = bookings.id AND p.status = ? AND p.amount > 0
			)
		ORDER BY payment_deadline
	`, models.BookingStatusPending, now, models.PaymentStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("querying expired bookings: %w", err)
	}

	return bookings, nil
}

// HasCompletedBooking reports whether the guest has any completed booking.
func (r *BookingRepository) HasCompletedBooking(ctx context.Context, q Queryable, guestID string) (bool, error) {
	var count int
	err := r.get(ctx, q, &count, `
		SELECT COUNT(*) FROM bookings WHERE guest_id = ? AND status = ?
	`, guestID, models.BookingStatusCompleted)
	if err != nil {
		return false, fmt.Errorf("counting completed bookings: %w", err)
	}
	return count > 0, nil
}

// ReserveNights claims every night in [start, end) for the booking. A night
// already held by another booking fails with a unique-constraint violation,
// which callers detect with IsUniqueViolation.
func (r *BookingRepository) ReserveNights(ctx context.Context, q Queryable, homestayID, bookingID string, start, end time.Time) error {
	for night := start; night.Before(end); night = night.AddDate(0, 0, 1) {
		if _, err := r.exec(ctx, q, `
			INSERT INTO booking_nights (homestay_id, night, booking_id) VALUES (?, ?, ?)
		`, homestayID, night, bookingID); err != nil {
			return fmt.Errorf("reserving night %s: %w", night.Format(time.DateOnly), err)
		}
	}
	return nil
}

// ReleaseNights frees every night held by the booking.
func (r *BookingRepository) ReleaseNights(ctx context.Context, q Queryable, bookingID string) error {
	if _, err := r.exec(ctx, q, `DELETE FROM booking_nights WHERE booking_id = ?`, bookingID); err != nil {
		return fmt.Errorf("releasing nights: %w", err)
	}
	return nil
}

// CountNights returns how many nights the booking currently holds.
func (r *BookingRepository) CountNights(ctx context.Context, q Queryable, bookingID string) (int, error) {
	var count int
	if err := r.get(ctx, q, &count, `SELECT COUNT(*) FROM booking_nights WHERE booking_id = ?`, bookingID); err != nil {
		return 0, fmt.Errorf("counting nights: %w", err)
	}
	return count, nil
}
