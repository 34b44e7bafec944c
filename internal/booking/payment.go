package booking

import (
	"context"

	"github.com/homestay-reservations/backend/internal/storage/models"
)

// ReconcilePayment confirms a pending booking once the payment subsystem
// reports it fully paid. It reports whether the booking was confirmed; a
// booking in any other state, or not yet fully paid, is left untouched.
func (s *Service) ReconcilePayment(ctx context.Context, bookingID string) (bool, error) {
	confirmed := false
	err := s.withTransaction(ctx, "reconcile_payment", func(sc *txScope) error {
		b, _, err := s.loadBooking(ctx, sc.tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != models.BookingStatusPending {
			return nil
		}

		paid, err := s.payments.TotalPaid(ctx, sc.tx, b.ID)
		if err != nil {
			return err
		}
		if paid.LessThan(b.TotalAmount) {
			return nil
		}

		if err := s.calendar.Block(ctx, sc.tx, b.HomestayID, b.CheckIn, b.CheckOut, models.BlockLabelConfirmed, b.Code); err != nil {
			return err
		}
		previous := b.Status
		b.Status = models.BookingStatusConfirmed
		if err := s.bookings.Update(ctx, sc.tx, b); err != nil {
			return err
		}

		sc.emit(EventConfirmed, b, previous, SystemActor, "Payment received")
		confirmed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return confirmed, nil
}
