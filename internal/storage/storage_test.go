package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homestay-reservations/backend/internal/storage/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger, _ := test.NewNullLogger()
	require.NoError(t, RunMigrations(db, logger))

	return db
}

func day(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedHomestay(t *testing.T, db *DB, rooms int) *models.Homestay {
	t.Helper()
	ctx := context.Background()

	host := &models.User{Email: GenerateID() + "@example.com", FullName: "Host"}
	require.NoError(t, NewUserRepository().Create(ctx, db, host, models.RoleHost))

	h := &models.Homestay{
		HostID:           host.ID,
		Name:             "Riverside",
		BasePrice:        decimal.NewFromInt(1000000),
		MinimumNights:    1,
		MaximumGuests:    4,
		RoomsAtThisPrice: rooms,
		IsActive:         true,
		IsApproved:       true,
	}
	require.NoError(t, NewHomestayRepository().Create(ctx, db, h))
	return h
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, RunMigrations(db, logrus.New()))

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM _migrations"))
	assert.Equal(t, 2, count)
}

func TestHomestayRoomsNeverNegative(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewHomestayRepository()
	h := seedHomestay(t, db, 1)

	ok, err := repo.DecrementRooms(ctx, db, h.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DecrementRooms(ctx, db, h.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.IncrementRooms(ctx, db, h.ID))
	got, err := repo.GetByID(ctx, db, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RoomsAtThisPrice)
	assert.True(t, got.BasePrice.Equal(decimal.NewFromInt(1000000)))
}

func TestHomestayGetByIDMissing(t *testing.T) {
	db := newTestDB(t)

	h, err := NewHomestayRepository().GetByID(context.Background(), db, "nope")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestCalendarBlockKeepsPriceOverride(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewCalendarRepository()
	h := seedHomestay(t, db, 1)

	require.NoError(t, repo.Upsert(ctx, db, &models.CalendarEntry{
		HomestayID:  h.ID,
		Date:        day("2030-01-05"),
		IsAvailable: true,
		CustomPrice: decimal.NewNullDecimal(decimal.NewFromInt(1500000)),
	}))

	require.NoError(t, repo.Block(ctx, db, h.ID, day("2030-01-05"), "Pending Booking - BK-20300101-AAAAA"))
	require.NoError(t, repo.Block(ctx, db, h.ID, day("2030-01-06"), "Pending Booking - BK-20300101-AAAAA"))

	entries, err := repo.ListRange(ctx, db, h.ID, day("2030-01-01"), day("2030-01-10"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].IsBlocked)
	assert.False(t, entries[0].IsAvailable)
	assert.True(t, entries[0].CustomPrice.Valid)
	assert.True(t, entries[0].CustomPrice.Decimal.Equal(decimal.NewFromInt(1500000)))
	assert.True(t, day("2030-01-05").Equal(entries[0].Date))
}

func TestCalendarUnblockOnlyMatchingCode(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewCalendarRepository()
	h := seedHomestay(t, db, 2)

	require.NoError(t, repo.Block(ctx, db, h.ID, day("2030-01-05"), "Pending Booking - BK-20300101-AAAAA"))
	require.NoError(t, repo.Block(ctx, db, h.ID, day("2030-01-06"), "Confirmed Booking - BK-20300101-BBBBB"))

	n, err := repo.Unblock(ctx, db, h.ID, day("2030-01-01"), day("2030-01-10"), "BK-20300101-AAAAA")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	first, err := repo.GetByDate(ctx, db, h.ID, day("2030-01-05"))
	require.NoError(t, err)
	assert.True(t, first.IsOpen())
	assert.Nil(t, first.BlockReason)

	second, err := repo.GetByDate(ctx, db, h.ID, day("2030-01-06"))
	require.NoError(t, err)
	assert.True(t, second.IsBlocked)
}

func newBooking(guestID, homestayID, code string, checkIn, checkOut time.Time) *models.Booking {
	return &models.Booking{
		Code:            code,
		GuestID:         guestID,
		HomestayID:      homestayID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		NumAdults:       2,
		BaseAmount:      decimal.NewFromInt(2000000),
		TotalAmount:     decimal.NewFromInt(2000000),
		Status:          models.BookingStatusPending,
		PaymentDeadline: time.Now().UTC().Add(30 * time.Minute),
	}
}

func TestBookingOverlapAndNights(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewBookingRepository()
	h := seedHomestay(t, db, 2)

	guest := &models.User{Email: "guest@example.com"}
	require.NoError(t, NewUserRepository().Create(ctx, db, guest, models.RoleGuest))

	b := newBooking(guest.ID, h.ID, "BK-20300101-AAAAA", day("2030-01-05"), day("2030-01-07"))
	require.NoError(t, repo.Create(ctx, db, b))
	require.NoError(t, repo.ReserveNights(ctx, db, h.ID, b.ID, b.CheckIn, b.CheckOut))

	overlapping, err := repo.FindOverlapping(ctx, db, h.ID, day("2030-01-06"), day("2030-01-08"), "")
	require.NoError(t, err)
	require.Len(t, overlapping, 1)
	assert.Equal(t, b.Code, overlapping[0].Code)

	adjacent, err := repo.FindOverlapping(ctx, db, h.ID, day("2030-01-07"), day("2030-01-09"), "")
	require.NoError(t, err)
	assert.Empty(t, adjacent)

	excluded, err := repo.FindOverlapping(ctx, db, h.ID, day("2030-01-05"), day("2030-01-07"), b.Code)
	require.NoError(t, err)
	assert.Empty(t, excluded)

	other := newBooking(guest.ID, h.ID, "BK-20300101-BBBBB", day("2030-01-06"), day("2030-01-08"))
	require.NoError(t, repo.Create(ctx, db, other))
	err = repo.ReserveNights(ctx, db, h.ID, other.ID, other.CheckIn, other.CheckOut)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	require.NoError(t, repo.ReleaseNights(ctx, db, b.ID))
	count, err := repo.CountNights(ctx, db, b.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBookingUpdateAndExpiredList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewBookingRepository()
	h := seedHomestay(t, db, 1)

	guest := &models.User{Email: "guest@example.com"}
	require.NoError(t, NewUserRepository().Create(ctx, db, guest, models.RoleGuest))

	b := newBooking(guest.ID, h.ID, "BK-20300101-CCCCC", day("2030-01-05"), day("2030-01-07"))
	b.PaymentDeadline = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, repo.Create(ctx, db, b))

	expired, err := repo.ListExpiredPending(ctx, db, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, expired, 1)

	b.Status = models.BookingStatusCompleted
	b.AppendNote("stayed")
	require.NoError(t, repo.Update(ctx, db, b))

	expired, err = repo.ListExpiredPending(ctx, db, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, expired)

	done, err := repo.HasCompletedBooking(ctx, db, guest.ID)
	require.NoError(t, err)
	assert.True(t, done)

	got, err := repo.GetByCode(ctx, db, b.Code)
	require.NoError(t, err)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "stayed", *got.Notes)

	exists, err := repo.CodeExists(ctx, db, b.Code)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCouponUsageCounters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	coupons := NewCouponRepository()
	bookings := NewBookingRepository()
	h := seedHomestay(t, db, 1)

	guest := &models.User{Email: "guest@example.com"}
	require.NoError(t, NewUserRepository().Create(ctx, db, guest, models.RoleGuest))
	b := newBooking(guest.ID, h.ID, "BK-20300101-DDDDD", day("2030-01-05"), day("2030-01-07"))
	require.NoError(t, bookings.Create(ctx, db, b))

	c := &models.Coupon{
		Code:          "SAVE20",
		Type:          models.CouponTypePercentage,
		DiscountValue: decimal.NewFromInt(20),
		StartDate:     time.Now().UTC().Add(-time.Hour),
		EndDate:       time.Now().UTC().Add(time.Hour),
		Scope:         models.CouponScopeSelected,
		IsActive:      true,
	}
	require.NoError(t, coupons.Create(ctx, db, c))
	require.NoError(t, coupons.AddHomestay(ctx, db, c.ID, h.ID))

	in, err := coupons.InHomestaySet(ctx, db, c.ID, h.ID)
	require.NoError(t, err)
	assert.True(t, in)

	usage := &models.CouponUsage{CouponID: c.ID, UserID: guest.ID, BookingID: b.ID, DiscountAmount: decimal.NewFromInt(400000)}
	require.NoError(t, coupons.CreateUsage(ctx, db, usage))

	got, err := coupons.GetByCode(ctx, db, "SAVE20")
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsedCount)

	n, err := coupons.CountUserUsages(ctx, db, c.ID, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sum, err := coupons.SumBookingDiscounts(ctx, db, b.ID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(400000)))

	active, err := coupons.ListActive(ctx, db, time.Now().UTC())
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, coupons.DeleteUsage(ctx, db, usage))
	got, err = coupons.GetByID(ctx, db, c.ID)
	require.NoError(t, err)
	assert.Zero(t, got.UsedCount)

	sum, err = coupons.SumBookingDiscounts(ctx, db, b.ID)
	require.NoError(t, err)
	assert.True(t, sum.IsZero())
}

func TestCreateUsageEnforcesLimits(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	coupons := NewCouponRepository()
	bookings := NewBookingRepository()
	users := NewUserRepository()
	h := seedHomestay(t, db, 3)

	alice := &models.User{Email: "alice@example.com"}
	bob := &models.User{Email: "bob@example.com"}
	require.NoError(t, users.Create(ctx, db, alice, models.RoleGuest))
	require.NoError(t, users.Create(ctx, db, bob, models.RoleGuest))

	first := newBooking(alice.ID, h.ID, "BK-20300101-AAAA1", day("2030-01-05"), day("2030-01-07"))
	second := newBooking(alice.ID, h.ID, "BK-20300101-AAAA2", day("2030-01-10"), day("2030-01-12"))
	third := newBooking(bob.ID, h.ID, "BK-20300101-BBBB1", day("2030-01-15"), day("2030-01-17"))
	for _, b := range []*models.Booking{first, second, third} {
		require.NoError(t, bookings.Create(ctx, db, b))
	}

	limit, perUser := 2, 1
	c := &models.Coupon{
		Code:              "TWICE",
		Type:              models.CouponTypeFixedAmount,
		DiscountValue:     decimal.NewFromInt(1000),
		StartDate:         time.Now().UTC().Add(-time.Hour),
		EndDate:           time.Now().UTC().Add(time.Hour),
		UsageLimit:        &limit,
		UsageLimitPerUser: &perUser,
		IsActive:          true,
	}
	require.NoError(t, coupons.Create(ctx, db, c))

	use := func(userID, bookingID string) error {
		return db.Transaction(ctx, func(tx *sqlx.Tx) error {
			return coupons.CreateUsage(ctx, tx, &models.CouponUsage{
				CouponID:       c.ID,
				UserID:         userID,
				BookingID:      bookingID,
				DiscountAmount: decimal.NewFromInt(1000),
			})
		})
	}

	require.NoError(t, use(alice.ID, first.ID))
	assert.ErrorIs(t, use(bob.ID, first.ID), ErrBookingHasCoupon)
	assert.ErrorIs(t, use(alice.ID, second.ID), ErrCouponUserLimitReached)
	require.NoError(t, use(bob.ID, third.ID))
	assert.ErrorIs(t, use(alice.ID, second.ID), ErrCouponLimitReached)

	got, err := coupons.GetByID(ctx, db, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsedCount)

	n, err := coupons.CountUserUsages(ctx, db, c.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExpiredListSkipsPaidBookings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewBookingRepository()
	payments := NewPaymentRepository()
	h := seedHomestay(t, db, 2)

	guest := &models.User{Email: "guest@example.com"}
	require.NoError(t, NewUserRepository().Create(ctx, db, guest, models.RoleGuest))

	unpaid := newBooking(guest.ID, h.ID, "BK-20300101-UNPD1", day("2030-01-05"), day("2030-01-07"))
	topUp := newBooking(guest.ID, h.ID, "BK-20300101-TOPUP", day("2030-01-10"), day("2030-01-12"))
	for _, b := range []*models.Booking{unpaid, topUp} {
		b.PaymentDeadline = time.Now().UTC().Add(-time.Minute)
		require.NoError(t, repo.Create(ctx, db, b))
	}

	require.NoError(t, payments.Create(ctx, db, &models.Payment{BookingID: unpaid.ID, Amount: decimal.NewFromInt(500), Status: models.PaymentStatusFailed}))
	require.NoError(t, payments.Create(ctx, db, &models.Payment{BookingID: topUp.ID, Amount: decimal.NewFromInt(500), Status: models.PaymentStatusCompleted}))

	expired, err := repo.ListExpiredPending(ctx, db, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, unpaid.ID, expired[0].ID)
}

func TestPaymentTotalPaidCountsCompletedOnly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	payments := NewPaymentRepository()
	h := seedHomestay(t, db, 1)

	guest := &models.User{Email: "guest@example.com"}
	require.NoError(t, NewUserRepository().Create(ctx, db, guest, models.RoleGuest))
	b := newBooking(guest.ID, h.ID, "BK-20300101-EEEEE", day("2030-01-05"), day("2030-01-07"))
	require.NoError(t, NewBookingRepository().Create(ctx, db, b))

	total, err := payments.TotalPaid(ctx, db, b.ID)
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	require.NoError(t, payments.Create(ctx, db, &models.Payment{BookingID: b.ID, Amount: decimal.RequireFromString("1000.50"), Status: models.PaymentStatusCompleted}))
	require.NoError(t, payments.Create(ctx, db, &models.Payment{BookingID: b.ID, Amount: decimal.NewFromInt(500), Status: models.PaymentStatusFailed}))

	total, err = payments.TotalPaid(ctx, db, b.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("1000.50")), total.String())
}

func TestUserRoles(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := NewUserRepository()

	u := &models.User{Email: "admin@example.com"}
	require.NoError(t, users.Create(ctx, db, u, models.RoleAdmin, models.RoleHost))

	roles, err := users.ListRoles(ctx, db, u.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.Role{models.RoleAdmin, models.RoleHost}, roles)

	missing, err := users.GetByID(ctx, db, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
