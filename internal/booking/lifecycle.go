package booking

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/homestay-reservations/backend/internal/apperr"
	"github.com/homestay-reservations/backend/internal/calendar"
	"github.com/homestay-reservations/backend/internal/metrics"
	"github.com/homestay-reservations/backend/internal/pricing"
	"github.com/homestay-reservations/backend/internal/storage/models"
)

// CreateRequest is a guest's reservation request.
type CreateRequest struct {
	HomestayID  string
	CheckIn     time.Time
	CheckOut    time.Time
	NumAdults   int
	NumChildren int
	Notes       string
	CouponCode  string
}

// UpdateRequest changes a booking's stay. Nil fields keep their value.
type UpdateRequest struct {
	CheckIn     *time.Time
	CheckOut    *time.Time
	NumAdults   *int
	NumChildren *int
	Notes       *string
}

// CreateBooking prices the stay, claims its nights, blocks the calendar,
// takes a room and stores a pending booking with a payment deadline.
func (s *Service) CreateBooking(ctx context.Context, actorID string, req CreateRequest) (*models.Booking, error) {
	a, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var created *models.Booking
	err = s.withTransaction(ctx, "create", func(sc *txScope) error {
		h, err := s.loadHomestay(ctx, sc.tx, req.HomestayID)
		if err != nil {
			return err
		}
		if err := canCreate(a, h); err != nil {
			return err
		}

		checkIn, checkOut := calendar.Date(req.CheckIn), calendar.Date(req.CheckOut)
		if checkIn.Before(s.today()) {
			return apperr.Invalid("check-in date cannot be in the past")
		}
		if err := validateGuests(req.NumAdults, req.NumChildren); err != nil {
			return err
		}

		quote, err := s.quote(ctx, sc, h, checkIn, checkOut, req.NumAdults+req.NumChildren)
		if err != nil {
			return err
		}

		available, err := s.calendar.IsRangeAvailable(ctx, sc.tx, h.ID, checkIn, checkOut, "")
		if err != nil {
			return err
		}
		if !available {
			return errNotAvailable()
		}

		code, err := s.generateCode(ctx, sc.tx)
		if err != nil {
			return err
		}

		b := &models.Booking{
			Code:            code,
			GuestID:         a.id,
			HomestayID:      h.ID,
			CheckIn:         checkIn,
			CheckOut:        checkOut,
			NumAdults:       req.NumAdults,
			NumChildren:     req.NumChildren,
			Status:          models.BookingStatusPending,
			PaymentDeadline: sc.now.Add(s.paymentWindow),
		}
		if req.Notes != "" {
			b.Notes = &req.Notes
		}
		applyQuote(b, quote)
		b.DiscountAmount = b.StayDiscountAmount
		b.RecalculateTotal()

		if err := s.bookings.Create(ctx, sc.tx, b); err != nil {
			return err
		}
		if err := s.reserve(ctx, sc.tx, b); err != nil {
			return err
		}
		if err := s.inventory.Take(ctx, sc.tx, h.ID); err != nil {
			return err
		}

		if req.CouponCode != "" {
			if _, err := s.coupons.Apply(ctx, sc.tx, b, req.CouponCode, a.id); err != nil {
				return err
			}
			if err := s.bookings.Update(ctx, sc.tx, b); err != nil {
				return err
			}
		}

		sc.emit(EventCreated, b, "", a.id, "")
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// UpdateBooking changes dates, guest counts or notes of a pending or
// confirmed booking. New dates are re-checked and re-blocked in the same
// transaction as the old ones are released, so a failure leaves the old
// dates held. A confirmed booking whose new total exceeds what was paid
// goes back to pending.
func (s *Service) UpdateBooking(ctx context.Context, actorID, bookingID string, req UpdateRequest) (*models.Booking, error) {
	a, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var updated *models.Booking
	err = s.withTransaction(ctx, "update", func(sc *txScope) error {
		b, h, err := s.loadBooking(ctx, sc.tx, bookingID)
		if err != nil {
			return err
		}
		if err := updateTransition.authorize(a, b, h); err != nil {
			return err
		}

		previous := b.Status
		oldCheckIn, oldCheckOut := b.CheckIn, b.CheckOut
		oldTotal := b.TotalAmount

		checkIn, checkOut := b.CheckIn, b.CheckOut
		if req.CheckIn != nil {
			checkIn = calendar.Date(*req.CheckIn)
		}
		if req.CheckOut != nil {
			checkOut = calendar.Date(*req.CheckOut)
		}
		adults, children := b.NumAdults, b.NumChildren
		if req.NumAdults != nil {
			adults = *req.NumAdults
		}
		if req.NumChildren != nil {
			children = *req.NumChildren
		}

		datesChanged := !checkIn.Equal(oldCheckIn) || !checkOut.Equal(oldCheckOut)
		if datesChanged && !checkIn.Equal(oldCheckIn) && checkIn.Before(s.today()) {
			return apperr.Invalid("check-in date cannot be in the past")
		}
		if err := validateGuests(adults, children); err != nil {
			return err
		}

		quote, err := s.quote(ctx, sc, h, checkIn, checkOut, adults+children)
		if err != nil {
			return err
		}

		if datesChanged {
			if err := s.unreserve(ctx, sc.tx, b, true); err != nil {
				return err
			}
			available, err := s.calendar.IsRangeAvailable(ctx, sc.tx, h.ID, checkIn, checkOut, b.Code)
			if err != nil {
				return err
			}
			if !available {
				return errNotAvailable()
			}
		}

		b.CheckIn, b.CheckOut = checkIn, checkOut
		b.NumAdults, b.NumChildren = adults, children
		if req.Notes != nil {
			b.Notes = req.Notes
		}
		applyQuote(b, quote)
		if err := s.coupons.Recalculate(ctx, sc.tx, b); err != nil {
			return err
		}

		if b.Status == models.BookingStatusConfirmed && b.TotalAmount.GreaterThan(oldTotal) {
			paid, err := s.payments.TotalPaid(ctx, sc.tx, b.ID)
			if err != nil {
				return err
			}
			if b.TotalAmount.GreaterThan(paid) {
				b.Status = models.BookingStatusPending
				b.PaymentDeadline = sc.now.Add(s.paymentWindow)
				b.AppendNote("Additional payment of " + formatMoney(b.TotalAmount.Sub(paid)) + " required")
			}
		}

		if datesChanged {
			if err := s.reserve(ctx, sc.tx, b); err != nil {
				return err
			}
		} else if b.Status != previous {
			if err := s.calendar.Block(ctx, sc.tx, b.HomestayID, b.CheckIn, b.CheckOut, blockLabel(b.Status), b.Code); err != nil {
				return err
			}
		}

		if err := s.bookings.Update(ctx, sc.tx, b); err != nil {
			return err
		}

		sc.emit(EventUpdated, b, previous, a.id, "")
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// ConfirmBooking moves a pending booking to confirmed. Hosts have the
// dates re-checked; admins do not.
func (s *Service) ConfirmBooking(ctx context.Context, actorID, bookingID string) (*models.Booking, error) {
	return s.transition(ctx, actorID, bookingID, confirmTransition, func(sc *txScope, a actor, b *models.Booking) error {
		if !a.isAdmin() {
			available, err := s.calendar.IsRangeAvailable(ctx, sc.tx, b.HomestayID, b.CheckIn, b.CheckOut, b.Code)
			if err != nil {
				return err
			}
			if !available {
				return errNotAvailable()
			}
		}
		return s.calendar.Block(ctx, sc.tx, b.HomestayID, b.CheckIn, b.CheckOut, models.BlockLabelConfirmed, b.Code)
	}, EventConfirmed, "")
}

// RejectBooking lets the host turn down a pending booking.
func (s *Service) RejectBooking(ctx context.Context, actorID, bookingID, reason string) (*models.Booking, error) {
	return s.transition(ctx, actorID, bookingID, rejectTransition, func(sc *txScope, a actor, b *models.Booking) error {
		return s.release(ctx, sc, b, a.id, reason, true)
	}, EventRejected, reason)
}

// CancelBooking lets the guest withdraw a pending or confirmed booking.
func (s *Service) CancelBooking(ctx context.Context, actorID, bookingID, reason string) (*models.Booking, error) {
	return s.transition(ctx, actorID, bookingID, cancelTransition, func(sc *txScope, a actor, b *models.Booking) error {
		return s.release(ctx, sc, b, a.id, reason, true)
	}, EventCancelled, reason)
}

// CheckIn records the guest's arrival. Hosts cannot check in early.
func (s *Service) CheckIn(ctx context.Context, actorID, bookingID string) (*models.Booking, error) {
	return s.transition(ctx, actorID, bookingID, checkInTransition, func(sc *txScope, a actor, b *models.Booking) error {
		if !a.isAdmin() && s.today().Before(b.CheckIn) {
			return apperr.Invalid("cannot check in before %s", calendar.Key(b.CheckIn))
		}
		return nil
	}, EventCheckedIn, "")
}

// CheckOut records the guest's departure and frees the stay's nights.
func (s *Service) CheckOut(ctx context.Context, actorID, bookingID string) (*models.Booking, error) {
	return s.transition(ctx, actorID, bookingID, checkOutTransition, func(sc *txScope, a actor, b *models.Booking) error {
		return s.bookings.ReleaseNights(ctx, sc.tx, b.ID)
	}, EventCheckedOut, "")
}

// Complete closes a checked-out booking and returns its room.
func (s *Service) Complete(ctx context.Context, actorID, bookingID string) (*models.Booking, error) {
	return s.transition(ctx, actorID, bookingID, completeTransition, func(sc *txScope, a actor, b *models.Booking) error {
		return s.release(ctx, sc, b, "", "", false)
	}, EventCompleted, "")
}

// MarkNoShow records that the guest never arrived. Hosts may only do so
// from the check-in date on.
func (s *Service) MarkNoShow(ctx context.Context, actorID, bookingID string) (*models.Booking, error) {
	return s.transition(ctx, actorID, bookingID, noShowTransition, func(sc *txScope, a actor, b *models.Booking) error {
		if !a.isAdmin() && s.today().Before(b.CheckIn) {
			return apperr.Invalid("cannot mark a no-show before %s", calendar.Key(b.CheckIn))
		}
		return s.release(ctx, sc, b, "", "", false)
	}, EventNoShow, "")
}

// ExpireBooking cancels a pending booking whose payment deadline has passed
// without any payment. It reports false, without error, when the booking no
// longer qualifies, which makes repeated sweeps harmless.
func (s *Service) ExpireBooking(ctx context.Context, bookingID string) (bool, error) {
	expired := false
	err := s.withTransaction(ctx, "expire", func(sc *txScope) error {
		b, err := s.bookings.GetByID(ctx, sc.tx, bookingID)
		if err != nil {
			return err
		}
		if b == nil {
			return apperr.NotFound("booking %s not found", bookingID)
		}
		if b.Status != models.BookingStatusPending || !sc.now.After(b.PaymentDeadline) {
			return nil
		}

		paid, err := s.payments.TotalPaid(ctx, sc.tx, b.ID)
		if err != nil {
			return err
		}
		if paid.IsPositive() {
			return nil
		}

		previous := b.Status
		const reason = "Payment deadline expired"
		if err := s.release(ctx, sc, b, SystemActor, reason, true); err != nil {
			return err
		}
		b.Status = models.BookingStatusCancelled
		if err := s.bookings.Update(ctx, sc.tx, b); err != nil {
			return err
		}

		sc.emit(EventExpired, b, previous, SystemActor, reason)
		expired = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if expired {
		metrics.Expired.Inc()
	}

	return expired, nil
}

// transition runs the shared load-authorize-mutate-persist sequence for a
// status change. apply performs the transition-specific side effects.
func (s *Service) transition(
	ctx context.Context,
	actorID, bookingID string,
	t transition,
	apply func(sc *txScope, a actor, b *models.Booking) error,
	kind EventKind,
	reason string,
) (*models.Booking, error) {
	a, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var result *models.Booking
	err = s.withTransaction(ctx, string(t.to), func(sc *txScope) error {
		b, h, err := s.loadBooking(ctx, sc.tx, bookingID)
		if err != nil {
			return err
		}
		if err := t.authorize(a, b, h); err != nil {
			return err
		}

		previous := b.Status
		if err := apply(sc, a, b); err != nil {
			return err
		}
		b.Status = t.to
		if err := s.bookings.Update(ctx, sc.tx, b); err != nil {
			return err
		}

		s.logger.WithFields(logrus.Fields{
			"booking_code": b.Code,
			"from":         previous,
			"to":           b.Status,
			"actor_id":     a.id,
		}).Debug("Booking transition applied")

		sc.emit(kind, b, previous, a.id, reason)
		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// release performs the terminal-state side effects: nights freed, calendar
// optionally unblocked, room returned once, and cancellation metadata set
// when cancelledBy is given.
func (s *Service) release(ctx context.Context, sc *txScope, b *models.Booking, cancelledBy, reason string, unblock bool) error {
	if err := s.unreserve(ctx, sc.tx, b, unblock); err != nil {
		return err
	}
	if err := s.inventory.Release(ctx, sc.tx, b); err != nil {
		return err
	}

	if cancelledBy != "" {
		at := sc.now
		b.CancelledBy = &cancelledBy
		b.CancelledAt = &at
		if reason != "" {
			b.CancellationReason = &reason
		}
	}
	return nil
}

func (s *Service) quote(ctx context.Context, sc *txScope, h *models.Homestay, checkIn, checkOut time.Time, guests int) (*pricing.Quote, error) {
	overrides, err := s.calendar.Overrides(ctx, sc.tx, h.ID, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	return s.pricing.Calculate(h, pricing.Request{CheckIn: checkIn, CheckOut: checkOut, Guests: guests}, overrides)
}

// applyQuote copies the price breakdown onto the booking. The coupon part of
// the discount is left to the coupon engine.
func applyQuote(b *models.Booking, q *pricing.Quote) {
	b.BaseAmount = q.BaseAmount
	b.StayDiscountAmount = q.DiscountAmount
	b.CleaningFee = q.CleaningFee
	b.ServiceFee = q.ServiceFee
	b.TaxAmount = q.TaxAmount
}

func validateGuests(adults, children int) error {
	if adults < 1 {
		return apperr.Invalid("at least one adult is required")
	}
	if children < 0 {
		return apperr.Invalid("number of children cannot be negative")
	}
	return nil
}
