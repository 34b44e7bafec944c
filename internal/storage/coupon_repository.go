package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/homestay-reservations/backend/internal/storage/models"
)

const couponColumns = `
	id, code, name, type, discount_value, max_discount_amount, start_date, end_date,
	usage_limit, usage_limit_per_user, used_count, minimum_amount, minimum_nights,
	is_first_booking_only, scope, homestay_id, priority, is_active, created_at, updated_at`

const couponUsageColumns = `id, coupon_id, user_id, booking_id, discount_amount, created_at, updated_at`

// Errors returned by CreateUsage when a coupon can no longer be used.
var (
	ErrCouponLimitReached     = errors.New("coupon usage limit reached")
	ErrCouponUserLimitReached = errors.New("coupon usage limit per user reached")
	ErrBookingHasCoupon       = errors.New("booking already has a coupon applied")
)

// CouponRepository provides data access for coupons and their usages.
type CouponRepository struct {
	BaseRepository
}

// NewCouponRepository creates a new coupon repository.
func NewCouponRepository() *CouponRepository {
	return &CouponRepository{}
}

// Create inserts a new coupon.
func (r *CouponRepository) Create(ctx context.Context, q Queryable, c *models.Coupon) error {
	if c.ID == "" {
		c.ID = GenerateID()
	}
	if c.Scope == "" {
		c.Scope = models.CouponScopeAll
	}
	c.CreatedAt = r.Now()
	c.UpdatedAt = c.CreatedAt

	_, err := r.exec(ctx, q, `
		INSERT INTO coupons (`+couponColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.Code, c.Name, c.Type, c.DiscountValue, c.MaxDiscountAmount, c.StartDate, c.EndDate,
		c.UsageLimit, c.UsageLimitPerUser, c.UsedCount, c.MinimumAmount, c.MinimumNights,
		c.IsFirstBookingOnly, c.Scope, c.HomestayID, c.Priority, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting coupon: %w", err)
	}

	return nil
}

// GetByID retrieves a coupon by its ID.
func (r *CouponRepository) GetByID(ctx context.Context, q Queryable, id string) (*models.Coupon, error) {
	return r.getOne(ctx, q, `SELECT `+couponColumns+` FROM coupons WHERE id = ?`, id)
}

// GetByCode retrieves a coupon by its code.
func (r *CouponRepository) GetByCode(ctx context.Context, q Queryable, code string) (*models.Coupon, error) {
	return r.getOne(ctx, q, `SELECT `+couponColumns+` FROM coupons WHERE code = ?`, code)
}

func (r *CouponRepository) getOne(ctx context.Context, q Queryable, query string, arg any) (*models.Coupon, error) {
	c := &models.Coupon{}

	err := r.get(ctx, q, c, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying coupon: %w", err)
	}

	return c, nil
}

// ListActive returns active coupons whose validity window contains at.
func (r *CouponRepository) ListActive(ctx context.Context, q Queryable, at time.Time) ([]models.Coupon, error) {
	var coupons []models.Coupon

	err := r.selectAll(ctx, q, &coupons, `
		SELECT `+couponColumns+`
		FROM coupons
		WHERE is_active = ? AND start_date <= ? AND end_date >= ?
		ORDER BY priority DESC, code
	`, true, at, at)
	if err != nil {
		return nil, fmt.Errorf("querying active coupons: %w", err)
	}

	return coupons, nil
}

// AddHomestay adds a homestay to the coupon's explicit set.
func (r *CouponRepository) AddHomestay(ctx context.Context, q Queryable, couponID, homestayID string) error {
	if _, err := r.exec(ctx, q, `
		INSERT INTO coupon_homestays (coupon_id, homestay_id) VALUES (?, ?)
	`, couponID, homestayID); err != nil {
		return fmt.Errorf("adding coupon homestay: %w", err)
	}
	return nil
}

// InHomestaySet reports whether the homestay is in the coupon's explicit set.
func (r *CouponRepository) InHomestaySet(ctx context.Context, q Queryable, couponID, homestayID string) (bool, error) {
	var count int
	err := r.get(ctx, q, &count, `
		SELECT COUNT(*) FROM coupon_homestays WHERE coupon_id = ? AND homestay_id = ?
	`, couponID, homestayID)
	if err != nil {
		return false, fmt.Errorf("checking coupon homestay: %w", err)
	}
	return count > 0, nil
}

// CountUserUsages returns how many times the user has used the coupon.
func (r *CouponRepository) CountUserUsages(ctx context.Context, q Queryable, couponID, userID string) (int, error) {
	var count int
	err := r.get(ctx, q, &count, `
		SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = ? AND user_id = ?
	`, couponID, userID)
	if err != nil {
		return 0, fmt.Errorf("counting coupon usages: %w", err)
	}
	return count, nil
}

// GetUsage retrieves the usage of a coupon on a booking.
func (r *CouponRepository) GetUsage(ctx context.Context, q Queryable, couponID, bookingID string) (*models.CouponUsage, error) {
	usage := &models.CouponUsage{}

	err := r.get(ctx, q, usage, `
		SELECT `+couponUsageColumns+` FROM coupon_usages WHERE coupon_id = ? AND booking_id = ?
	`, couponID, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying coupon usage: %w", err)
	}

	return usage, nil
}

// ListUsagesByBooking returns every coupon usage attached to a booking.
func (r *CouponRepository) ListUsagesByBooking(ctx context.Context, q Queryable, bookingID string) ([]models.CouponUsage, error) {
	var usages []models.CouponUsage

	err := r.selectAll(ctx, q, &usages, `
		SELECT `+couponUsageColumns+` FROM coupon_usages WHERE booking_id = ? ORDER BY created_at
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("querying coupon usages: %w", err)
	}

	return usages, nil
}

// SumBookingDiscounts totals the coupon discounts granted to a booking.
func (r *CouponRepository) SumBookingDiscounts(ctx context.Context, q Queryable, bookingID string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.get(ctx, q, &total, `
		SELECT SUM(discount_amount) FROM coupon_usages WHERE booking_id = ?
	`, bookingID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing coupon discounts: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal.Round(2), nil
}

// CreateUsage records a coupon usage and bumps the coupon's global counter.
// The counter is only bumped while it is below usage_limit; that update also
// locks the coupon row, so the per-user count that follows cannot race a
// concurrent usage of the same coupon.
func (r *CouponRepository) CreateUsage(ctx context.Context, q Queryable, usage *models.CouponUsage) error {
	n, err := r.exec(ctx, q, `
		UPDATE coupons SET used_count = used_count + 1, updated_at = ?
		WHERE id = ? AND (usage_limit IS NULL OR used_count < usage_limit)
	`, r.Now(), usage.CouponID)
	if err != nil {
		return fmt.Errorf("incrementing coupon usage count: %w", err)
	}
	if n == 0 {
		return ErrCouponLimitReached
	}

	var perUser *int
	if err := r.get(ctx, q, &perUser, `SELECT usage_limit_per_user FROM coupons WHERE id = ?`, usage.CouponID); err != nil {
		return fmt.Errorf("querying coupon per-user limit: %w", err)
	}
	if perUser != nil {
		used, err := r.CountUserUsages(ctx, q, usage.CouponID, usage.UserID)
		if err != nil {
			return err
		}
		if used >= *perUser {
			return ErrCouponUserLimitReached
		}
	}

	usage.ID = GenerateID()
	usage.CreatedAt = r.Now()
	usage.UpdatedAt = usage.CreatedAt

	if _, err := r.exec(ctx, q, `
		INSERT INTO coupon_usages (`+couponUsageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		usage.ID, usage.CouponID, usage.UserID, usage.BookingID,
		usage.DiscountAmount, usage.CreatedAt, usage.UpdatedAt,
	); err != nil {
		if IsUniqueViolation(err) {
			return ErrBookingHasCoupon
		}
		return fmt.Errorf("inserting coupon usage: %w", err)
	}

	return nil
}

// UpdateUsageDiscount rewrites the discount granted by a usage.
func (r *CouponRepository) UpdateUsageDiscount(ctx context.Context, q Queryable, usageID string, amount decimal.Decimal) error {
	if _, err := r.exec(ctx, q, `
		UPDATE coupon_usages SET discount_amount = ?, updated_at = ? WHERE id = ?
	`, amount, r.Now(), usageID); err != nil {
		return fmt.Errorf("updating coupon usage: %w", err)
	}
	return nil
}

// DeleteUsage removes a usage and reverts the coupon's global counter.
func (r *CouponRepository) DeleteUsage(ctx context.Context, q Queryable, usage *models.CouponUsage) error {
	if _, err := r.exec(ctx, q, `DELETE FROM coupon_usages WHERE id = ?`, usage.ID); err != nil {
		return fmt.Errorf("deleting coupon usage: %w", err)
	}

	if _, err := r.exec(ctx, q, `
		UPDATE coupons SET used_count = used_count - 1, updated_at = ? WHERE id = ? AND used_count > 0
	`, r.Now(), usage.CouponID); err != nil {
		return fmt.Errorf("decrementing coupon usage count: %w", err)
	}

	return nil
}
