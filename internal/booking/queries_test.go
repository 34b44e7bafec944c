package booking

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homestay-reservations/backend/internal/apperr"
	"github.com/homestay-reservations/backend/internal/coupon"
	"github.com/homestay-reservations/backend/internal/storage"
	"github.com/homestay-reservations/backend/internal/storage/models"
	"github.com/homestay-reservations/backend/internal/storage/storagetest"
)

func TestCalculatePrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	quote, err := f.svc.CalculatePrice(ctx, f.homestay.ID, storagetest.Day(t, "2030-01-12"), storagetest.Day(t, "2030-01-14"), 2)
	require.NoError(t, err)
	assert.Equal(t, "2400000.00", quote.BaseAmount.StringFixed(2))
	assert.Equal(t, "2980800.00", quote.TotalAmount.StringFixed(2))

	_, err = f.svc.CalculatePrice(ctx, "missing", storagetest.Day(t, "2030-01-12"), storagetest.Day(t, "2030-01-14"), 2)
	assert.True(t, apperr.IsNotFound(err))

	_, err = f.svc.CalculatePrice(ctx, f.homestay.ID, storagetest.Day(t, "2030-01-12"), storagetest.Day(t, "2030-01-14"), 9)
	assert.True(t, apperr.IsInvalid(err))
}

func TestIsAvailable(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.available(t, "2030-01-09", "2030-01-11"))
	f.create(t, f.guest.ID, "2030-01-09", "2030-01-11")
	assert.False(t, f.available(t, "2030-01-10", "2030-01-12"))
	assert.True(t, f.available(t, "2030-01-11", "2030-01-12"))

	_, err := f.svc.IsAvailable(context.Background(), f.homestay.ID, storagetest.Day(t, "2030-01-11"), storagetest.Day(t, "2030-01-11"))
	assert.True(t, apperr.IsInvalid(err))
}

func TestCouponQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coupons := storage.NewCouponRepository()

	for _, c := range []*models.Coupon{
		{Code: "TENPCT", Type: models.CouponTypePercentage, DiscountValue: decimal.NewFromInt(10), Priority: 1},
		{Code: "FLAT50K", Type: models.CouponTypeFixedAmount, DiscountValue: decimal.NewFromInt(50000), Priority: 5},
	} {
		c.Name = c.Code
		c.StartDate = start.Add(-time.Hour)
		c.EndDate = start.Add(30 * 24 * time.Hour)
		c.Scope = models.CouponScopeAll
		c.IsActive = true
		require.NoError(t, coupons.Create(ctx, f.db, c))
	}

	result, err := f.svc.ValidateCoupon(ctx, coupon.Request{
		Code:          "TENPCT",
		UserID:        f.guest.ID,
		HomestayID:    f.homestay.ID,
		BookingAmount: decimal.NewFromInt(2000000),
		Nights:        2,
	})
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "200000.00", result.DiscountAmount.StringFixed(2))

	_, err = f.svc.ValidateCoupon(ctx, coupon.Request{})
	assert.True(t, apperr.IsInvalid(err))

	list, err := f.svc.ListApplicableCoupons(ctx, coupon.Filter{HomestayID: f.homestay.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "FLAT50K", list[0].Code)

	b := f.create(t, f.guest.ID, "2030-01-09", "2030-01-11")

	_, err = f.svc.ApplyCoupon(ctx, f.host.ID, b.ID, "TENPCT")
	assert.True(t, apperr.IsInvalid(err), "hosts cannot apply coupons")

	b, err = f.svc.ApplyCoupon(ctx, f.guest.ID, b.ID, "TENPCT")
	require.NoError(t, err)
	assert.Equal(t, "200000.00", b.DiscountAmount.StringFixed(2))
	assert.Equal(t, "2284000.00", b.TotalAmount.StringFixed(2))

	_, err = f.svc.ApplyCoupon(ctx, f.guest.ID, b.ID, "FLAT50K")
	assert.True(t, apperr.IsInvalid(err), "one coupon per booking")
}

func TestCalendarFeed(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, f.guest.ID, "2030-01-09", "2030-01-11")

	var buf bytes.Buffer
	err := f.svc.CalendarFeed(context.Background(), &buf, f.homestay.ID, storagetest.Day(t, "2030-01-01"), storagetest.Day(t, "2030-02-01"))
	require.NoError(t, err)

	feed := buf.String()
	assert.Contains(t, feed, "BEGIN:VCALENDAR\r\n")
	assert.Contains(t, feed, "DTSTART;VALUE=DATE:20300109\r\n")
	assert.Contains(t, feed, "DTEND;VALUE=DATE:20300111\r\n")
	assert.Contains(t, feed, "SUMMARY:Pending Booking - "+b.Code+"\r\n")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("BEGIN:VEVENT")))
}
