// Package coupon validates coupon codes against a booking context, computes
// bounded discounts and keeps coupon usages in step with their bookings.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/homestay-reservations/backend/internal/apperr"
	"github.com/homestay-reservations/backend/internal/storage"
	"github.com/homestay-reservations/backend/internal/storage/models"
)

var hundred = decimal.NewFromInt(100)

// Request is the booking context a coupon is validated against.
type Request struct {
	Code          string
	UserID        string
	HomestayID    string
	BookingAmount decimal.Decimal
	Nights        int
	BookingID     string
}

// Result is the outcome of a validation. Reason is set when Valid is false.
type Result struct {
	Valid          bool            `json:"valid"`
	Coupon         *models.Coupon  `json:"coupon,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Reason         string          `json:"reason,omitempty"`
}

// Applicable is a coupon that can be used in a given context.
type Applicable struct {
	models.Coupon
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// Filter narrows ListApplicable. Zero values mean "unknown" and skip the
// corresponding gate.
type Filter struct {
	HomestayID    string
	UserID        string
	BookingAmount *decimal.Decimal
	Nights        *int
}

// Engine validates and applies coupons.
type Engine struct {
	coupons  *storage.CouponRepository
	bookings *storage.BookingRepository
	logger   logrus.FieldLogger
	now      func() time.Time
}

// NewEngine creates a new coupon engine.
func NewEngine(coupons *storage.CouponRepository, bookings *storage.BookingRepository, logger logrus.FieldLogger) *Engine {
	return &Engine{
		coupons:  coupons,
		bookings: bookings,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the engine's time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Discount computes what the coupon takes off amount. Percentage coupons are
// capped by their maximum discount; every discount is capped at amount.
func Discount(c *models.Coupon, amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch c.Type {
	case models.CouponTypePercentage:
		discount = amount.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscountAmount.Valid && discount.GreaterThan(c.MaxDiscountAmount.Decimal) {
			discount = c.MaxDiscountAmount.Decimal
		}
	default:
		discount = c.DiscountValue
	}

	if discount.GreaterThan(amount) {
		discount = amount
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	return discount.Round(2)
}

// Validate runs the eligibility checks in order and stops at the first
// failure. Failures are reported in the Result; the error is reserved for
// storage problems.
func (e *Engine) Validate(ctx context.Context, q storage.Queryable, req Request) (*Result, error) {
	c, err := e.coupons.GetByCode(ctx, q, req.Code)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return invalid(nil, "coupon not found"), nil
	}

	reason, err := e.check(ctx, q, c, checkContext{
		userID:        req.UserID,
		homestayID:    req.HomestayID,
		bookingAmount: &req.BookingAmount,
		nights:        &req.Nights,
		bookingID:     req.BookingID,
	})
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return invalid(c, reason), nil
	}

	return &Result{
		Valid:          true,
		Coupon:         c,
		DiscountAmount: Discount(c, req.BookingAmount),
	}, nil
}

type checkContext struct {
	userID        string
	homestayID    string
	bookingAmount *decimal.Decimal
	nights        *int
	bookingID     string
}

// check returns the first failed eligibility rule, or "" when c is usable.
func (e *Engine) check(ctx context.Context, q storage.Queryable, c *models.Coupon, cc checkContext) (string, error) {
	now := e.now()

	if !c.IsActive {
		return "coupon is not active", nil
	}
	if now.Before(c.StartDate) {
		return "coupon is not yet valid", nil
	}
	if now.After(c.EndDate) {
		return "coupon has expired", nil
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return "coupon usage limit reached", nil
	}

	if c.UsageLimitPerUser != nil && cc.userID != "" {
		used, err := e.coupons.CountUserUsages(ctx, q, c.ID, cc.userID)
		if err != nil {
			return "", err
		}
		if used >= *c.UsageLimitPerUser {
			return "coupon usage limit per user reached", nil
		}
	}

	if c.MinimumAmount.Valid && cc.bookingAmount != nil && cc.bookingAmount.LessThan(c.MinimumAmount.Decimal) {
		return fmt.Sprintf("minimum booking amount is %s", c.MinimumAmount.Decimal.StringFixed(2)), nil
	}
	if c.MinimumNights != nil && cc.nights != nil && *cc.nights < *c.MinimumNights {
		return fmt.Sprintf("minimum stay is %d nights", *c.MinimumNights), nil
	}

	if cc.bookingID != "" {
		usage, err := e.coupons.GetUsage(ctx, q, c.ID, cc.bookingID)
		if err != nil {
			return "", err
		}
		if usage != nil {
			return "coupon already applied to this booking", nil
		}
	}

	if c.IsFirstBookingOnly && cc.userID != "" {
		completed, err := e.bookings.HasCompletedBooking(ctx, q, cc.userID)
		if err != nil {
			return "", err
		}
		if completed {
			return "coupon is only valid for a first booking", nil
		}
	}

	inScope, err := e.inScope(ctx, q, c, cc.homestayID)
	if err != nil {
		return "", err
	}
	if !inScope {
		return "coupon does not apply to this homestay", nil
	}

	return "", nil
}

func (e *Engine) inScope(ctx context.Context, q storage.Queryable, c *models.Coupon, homestayID string) (bool, error) {
	switch c.Scope {
	case models.CouponScopeAll, "":
		return true, nil
	case models.CouponScopeHomestay:
		return c.HomestayID != nil && *c.HomestayID == homestayID, nil
	case models.CouponScopeSelected:
		return e.coupons.InHomestaySet(ctx, q, c.ID, homestayID)
	}
	return false, nil
}

func invalid(c *models.Coupon, reason string) *Result {
	return &Result{Valid: false, Coupon: c, DiscountAmount: decimal.Zero, Reason: reason}
}

// ListApplicable returns every coupon currently usable in the given context,
// ordered by priority then discount value, both descending.
func (e *Engine) ListApplicable(ctx context.Context, q storage.Queryable, f Filter) ([]Applicable, error) {
	active, err := e.coupons.ListActive(ctx, q, e.now())
	if err != nil {
		return nil, err
	}

	applicable := make([]Applicable, 0, len(active))
	for i := range active {
		c := &active[i]
		reason, err := e.check(ctx, q, c, checkContext{
			userID:        f.UserID,
			homestayID:    f.HomestayID,
			bookingAmount: f.BookingAmount,
			nights:        f.Nights,
		})
		if err != nil {
			return nil, err
		}
		if reason != "" {
			continue
		}

		a := Applicable{Coupon: *c, DiscountAmount: decimal.Zero}
		if f.BookingAmount != nil {
			a.DiscountAmount = Discount(c, *f.BookingAmount)
		}
		applicable = append(applicable, a)
	}

	sort.SliceStable(applicable, func(i, j int) bool {
		if applicable[i].Priority != applicable[j].Priority {
			return applicable[i].Priority > applicable[j].Priority
		}
		return applicable[i].DiscountValue.GreaterThan(applicable[j].DiscountValue)
	})

	return applicable, nil
}

// Apply attaches the coupon to the booking, bumps its usage counter and
// refreshes the booking's discount and total in memory. The caller persists
// the booking.
func (e *Engine) Apply(ctx context.Context, q storage.Queryable, b *models.Booking, code, userID string) (*models.CouponUsage, error) {
	existing, err := e.coupons.ListUsagesByBooking(ctx, q, b.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, apperr.Invalid("booking already has a coupon applied")
	}

	result, err := e.Validate(ctx, q, Request{
		Code:          code,
		UserID:        userID,
		HomestayID:    b.HomestayID,
		BookingAmount: b.BaseAmount,
		Nights:        b.Nights(),
		BookingID:     b.ID,
	})
	if err != nil {
		return nil, err
	}
	if result.Coupon == nil {
		return nil, apperr.NotFound("coupon %s not found", code)
	}
	if !result.Valid {
		return nil, apperr.Invalid("%s", result.Reason)
	}

	usage := &models.CouponUsage{
		CouponID:       result.Coupon.ID,
		UserID:         userID,
		BookingID:      b.ID,
		DiscountAmount: capDiscount(result.DiscountAmount, b),
	}
	if err := e.coupons.CreateUsage(ctx, q, usage); err != nil {
		switch {
		case errors.Is(err, storage.ErrCouponLimitReached),
			errors.Is(err, storage.ErrCouponUserLimitReached),
			errors.Is(err, storage.ErrBookingHasCoupon):
			return nil, apperr.Invalid("%s", err.Error())
		}
		return nil, err
	}

	if err := e.refreshBooking(ctx, q, b); err != nil {
		return nil, err
	}

	return usage, nil
}

// Remove detaches the coupon from the booking and reverts its usage counter.
func (e *Engine) Remove(ctx context.Context, q storage.Queryable, b *models.Booking, code string) error {
	c, err := e.coupons.GetByCode(ctx, q, code)
	if err != nil {
		return err
	}
	if c == nil {
		return apperr.NotFound("coupon %s not found", code)
	}

	usage, err := e.coupons.GetUsage(ctx, q, c.ID, b.ID)
	if err != nil {
		return err
	}
	if usage == nil {
		return apperr.Invalid("coupon %s is not applied to this booking", code)
	}

	if err := e.coupons.DeleteUsage(ctx, q, usage); err != nil {
		return err
	}

	return e.refreshBooking(ctx, q, b)
}

// Recalculate recomputes every coupon usage of the booking against its
// current base amount. Coupons that expired, were deactivated or no longer
// meet their minimums are dropped and their usage counter reverted.
func (e *Engine) Recalculate(ctx context.Context, q storage.Queryable, b *models.Booking) error {
	usages, err := e.coupons.ListUsagesByBooking(ctx, q, b.ID)
	if err != nil {
		return err
	}

	now := e.now()
	nights := b.Nights()
	for i := range usages {
		usage := &usages[i]

		c, err := e.coupons.GetByID(ctx, q, usage.CouponID)
		if err != nil {
			return err
		}

		if reason := stillValid(c, now, b.BaseAmount, nights); reason != "" {
			e.logger.WithFields(logrus.Fields{
				"booking_code": b.Code,
				"coupon_id":    usage.CouponID,
			}).Infof("Dropping coupon from booking: %s", reason)

			if err := e.coupons.DeleteUsage(ctx, q, usage); err != nil {
				return err
			}
			continue
		}

		discount := capDiscount(Discount(c, b.BaseAmount), b)
		if !discount.Equal(usage.DiscountAmount) {
			if err := e.coupons.UpdateUsageDiscount(ctx, q, usage.ID, discount); err != nil {
				return err
			}
		}
	}

	return e.refreshBooking(ctx, q, b)
}

// capDiscount keeps a coupon discount within what is left of the base amount
// after the stay discount.
func capDiscount(discount decimal.Decimal, b *models.Booking) decimal.Decimal {
	remaining := b.BaseAmount.Sub(b.StayDiscountAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(discount, remaining)
}

func stillValid(c *models.Coupon, now time.Time, amount decimal.Decimal, nights int) string {
	switch {
	case c == nil:
		return "coupon no longer exists"
	case !c.IsActive:
		return "coupon is not active"
	case !c.InWindow(now):
		return "coupon has expired"
	case c.MinimumAmount.Valid && amount.LessThan(c.MinimumAmount.Decimal):
		return "booking below coupon minimum amount"
	case c.MinimumNights != nil && nights < *c.MinimumNights:
		return "stay below coupon minimum nights"
	}
	return ""
}

// refreshBooking sets discount = stay discount + coupon discounts and
// recomputes the total.
func (e *Engine) refreshBooking(ctx context.Context, q storage.Queryable, b *models.Booking) error {
	couponDiscount, err := e.coupons.SumBookingDiscounts(ctx, q, b.ID)
	if err != nil {
		return err
	}

	b.DiscountAmount = b.StayDiscountAmount.Add(couponDiscount).Round(2)
	b.RecalculateTotal()
	return nil
}
