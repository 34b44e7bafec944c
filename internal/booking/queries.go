package booking

import (
	"context"
	"io"
	"time"

	"github.com/homestay-reservations/backend/internal/apperr"
	"github.com/homestay-reservations/backend/internal/calendar"
	"github.com/homestay-reservations/backend/internal/coupon"
	"github.com/homestay-reservations/backend/internal/pricing"
	"github.com/homestay-reservations/backend/internal/storage/models"
)

// GetBooking returns a booking to its guest, its host or an admin.
func (s *Service) GetBooking(ctx context.Context, actorID, bookingID string) (*models.Booking, error) {
	a, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	b, h, err := s.loadBooking(ctx, s.db, bookingID)
	if err != nil {
		return nil, err
	}
	if !canView(a, b, h) {
		// Hide the booking from callers who may not see it
		return nil, apperr.NotFound("booking %s not found", bookingID)
	}
	return b, nil
}

// CalculatePrice quotes a stay without reserving anything.
func (s *Service) CalculatePrice(ctx context.Context, homestayID string, checkIn, checkOut time.Time, guests int) (*pricing.Quote, error) {
	start := time.Now()

	quote, err := func() (*pricing.Quote, error) {
		h, err := s.loadHomestay(ctx, s.db, homestayID)
		if err != nil {
			return nil, err
		}
		checkIn, checkOut := calendar.Date(checkIn), calendar.Date(checkOut)
		overrides, err := s.calendar.Overrides(ctx, s.db, h.ID, checkIn, checkOut)
		if err != nil {
			return nil, err
		}
		return s.pricing.Calculate(h, pricing.Request{CheckIn: checkIn, CheckOut: checkOut, Guests: guests}, overrides)
	}()

	s.observe("calculate_price", start, err)
	return quote, err
}

// IsAvailable reports whether every night of [checkIn, checkOut) is free.
func (s *Service) IsAvailable(ctx context.Context, homestayID string, checkIn, checkOut time.Time) (bool, error) {
	if _, err := s.loadHomestay(ctx, s.db, homestayID); err != nil {
		return false, err
	}
	if !calendar.Date(checkOut).After(calendar.Date(checkIn)) {
		return false, apperr.Invalid("check-out date must be after check-in date")
	}
	return s.calendar.IsRangeAvailable(ctx, s.db, homestayID, checkIn, checkOut, "")
}

// ValidateCoupon checks a code against a prospective booking. An invalid
// coupon is a result, not an error.
func (s *Service) ValidateCoupon(ctx context.Context, req coupon.Request) (*coupon.Result, error) {
	if req.Code == "" {
		return nil, apperr.Invalid("coupon code is required")
	}
	return s.coupons.Validate(ctx, s.db, req)
}

// ListApplicableCoupons lists the coupons usable for a homestay, best first.
func (s *Service) ListApplicableCoupons(ctx context.Context, f coupon.Filter) ([]coupon.Applicable, error) {
	if f.HomestayID != "" {
		if _, err := s.loadHomestay(ctx, s.db, f.HomestayID); err != nil {
			return nil, err
		}
	}
	return s.coupons.ListApplicable(ctx, s.db, f)
}

// ApplyCoupon attaches a coupon to the guest's pending booking.
func (s *Service) ApplyCoupon(ctx context.Context, actorID, bookingID, code string) (*models.Booking, error) {
	return s.changeCoupon(ctx, "apply_coupon", actorID, bookingID, func(sc *txScope, a actor, b *models.Booking) error {
		_, err := s.coupons.Apply(ctx, sc.tx, b, code, b.GuestID)
		return err
	})
}

// RemoveCoupon detaches a coupon from the guest's pending booking.
func (s *Service) RemoveCoupon(ctx context.Context, actorID, bookingID, code string) (*models.Booking, error) {
	return s.changeCoupon(ctx, "remove_coupon", actorID, bookingID, func(sc *txScope, a actor, b *models.Booking) error {
		return s.coupons.Remove(ctx, sc.tx, b, code)
	})
}

func (s *Service) changeCoupon(ctx context.Context, operation, actorID, bookingID string, change func(sc *txScope, a actor, b *models.Booking) error) (*models.Booking, error) {
	a, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var result *models.Booking
	err = s.withTransaction(ctx, operation, func(sc *txScope) error {
		b, h, err := s.loadBooking(ctx, sc.tx, bookingID)
		if err != nil {
			return err
		}
		if err := couponTransition.authorize(a, b, h); err != nil {
			return err
		}

		if err := change(sc, a, b); err != nil {
			return err
		}
		if err := s.bookings.Update(ctx, sc.tx, b); err != nil {
			return err
		}

		sc.emit(EventUpdated, b, b.Status, a.id, "")
		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CalendarFeed writes the homestay's blocked nights in [from, to) as an
// iCalendar feed.
func (s *Service) CalendarFeed(ctx context.Context, w io.Writer, homestayID string, from, to time.Time) error {
	h, err := s.loadHomestay(ctx, s.db, homestayID)
	if err != nil {
		return err
	}
	if !calendar.Date(to).After(calendar.Date(from)) {
		return apperr.Invalid("feed end must be after its start")
	}

	events, err := s.calendar.FeedEvents(ctx, s.db, h.ID, from, to)
	if err != nil {
		return err
	}
	return calendar.WriteFeed(w, h.Name, events, s.now())
}
