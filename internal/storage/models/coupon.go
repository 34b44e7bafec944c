package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CouponType determines how a coupon's discount is computed.
type CouponType string

const (
	CouponTypePercentage  CouponType = "percentage"
	CouponTypeFixedAmount CouponType = "fixed_amount"
	CouponTypePromotional CouponType = "promotional"
)

// CouponScope determines which homestays a coupon applies to.
type CouponScope string

const (
	CouponScopeAll      CouponScope = "all"
	CouponScopeHomestay CouponScope = "homestay"
	CouponScopeSelected CouponScope = "selected"
)

// Coupon is a discount rule.
type Coupon struct {
	ID                 string              `db:"id" json:"id"`
	Code               string              `db:"code" json:"code"`
	Name               string              `db:"name" json:"name"`
	Type               CouponType          `db:"type" json:"type"`
	DiscountValue      decimal.Decimal     `db:"discount_value" json:"discount_value"`
	MaxDiscountAmount  decimal.NullDecimal `db:"max_discount_amount" json:"max_discount_amount"`
	StartDate          time.Time           `db:"start_date" json:"start_date"`
	EndDate            time.Time           `db:"end_date" json:"end_date"`
	UsageLimit         *int                `db:"usage_limit" json:"usage_limit,omitempty"`
	UsageLimitPerUser  *int                `db:"usage_limit_per_user" json:"usage_limit_per_user,omitempty"`
	UsedCount          int                 `db:"used_count" json:"used_count"`
	MinimumAmount      decimal.NullDecimal `db:"minimum_amount" json:"minimum_amount"`
	MinimumNights      *int                `db:"minimum_nights" json:"minimum_nights,omitempty"`
	IsFirstBookingOnly bool                `db:"is_first_booking_only" json:"is_first_booking_only"`
	Scope              CouponScope         `db:"scope" json:"scope"`
	HomestayID         *string             `db:"homestay_id" json:"homestay_id,omitempty"`
	Priority           int                 `db:"priority" json:"priority"`
	IsActive           bool                `db:"is_active" json:"is_active"`
	CreatedAt          time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updated_at"`
}

// InWindow returns true if at lies within [StartDate, EndDate].
func (c *Coupon) InWindow(at time.Time) bool {
	return !at.Before(c.StartDate) && !at.After(c.EndDate)
}

// CouponUsage records the discount a coupon granted to one booking.
type CouponUsage struct {
	ID             string          `db:"id" json:"id"`
	CouponID       string          `db:"coupon_id" json:"coupon_id"`
	UserID         string          `db:"user_id" json:"user_id"`
	BookingID      string          `db:"booking_id" json:"booking_id"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}
