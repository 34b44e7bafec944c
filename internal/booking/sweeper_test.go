package booking

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homestay-reservations/backend/internal/storage/models"
	"github.com/homestay-reservations/backend/internal/storage/storagetest"
)

func TestSweepExpiresUnpaidBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unpaid := f.create(t, f.guest.ID, "2030-01-09", "2030-01-11")
	partlyPaid := f.create(t, f.guest.ID, "2030-01-14", "2030-01-16")
	f.pay(t, partlyPaid, "100000")
	assert.Equal(t, 1, storagetest.Rooms(t, f.db, f.homestay.ID))

	result, err := f.svc.SweepExpiredBookings(ctx)
	require.NoError(t, err)
	assert.Equal(t, &SweepResult{}, result, "nothing is due yet")

	f.clock.Advance(31 * time.Minute)

	result, err = f.svc.SweepExpiredBookings(ctx)
	require.NoError(t, err)
	assert.Equal(t, &SweepResult{Candidates: 1, Expired: 1}, result)

	b := f.reload(t, unpaid.ID)
	assert.Equal(t, models.BookingStatusCancelled, b.Status)
	require.NotNil(t, b.CancelledBy)
	assert.Equal(t, SystemActor, *b.CancelledBy)
	require.NotNil(t, b.CancellationReason)
	assert.Equal(t, "Payment deadline expired", *b.CancellationReason)
	assert.Empty(t, f.blockReason(t, "2030-01-09"))
	assert.True(t, f.available(t, "2030-01-09", "2030-01-11"))
	assert.Equal(t, 2, storagetest.Rooms(t, f.db, f.homestay.ID))

	assert.Equal(t, models.BookingStatusPending, f.reload(t, partlyPaid.ID).Status)

	// A second run changes nothing, and the partly paid booking is not
	// picked up again
	result, err = f.svc.SweepExpiredBookings(ctx)
	require.NoError(t, err)
	assert.Equal(t, &SweepResult{}, result)
	assert.Equal(t, 2, storagetest.Rooms(t, f.db, f.homestay.ID))

	expired, err := f.svc.ExpireBooking(ctx, unpaid.ID)
	require.NoError(t, err)
	assert.False(t, expired)

	assert.Equal(t, []EventKind{EventCreated, EventCreated, EventExpired}, f.events.Kinds())
}

func TestExpireBookingIgnoresConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.create(t, f.guest.ID, "2030-01-09", "2030-01-11")
	_, err := f.svc.ConfirmBooking(ctx, f.host.ID, b.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	expired, err := f.svc.ExpireBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, models.BookingStatusConfirmed, f.reload(t, b.ID).Status)

	_, err = f.svc.ExpireBooking(ctx, "missing")
	assert.Error(t, err)
}

func TestSweeperRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	logger, _ := test.NewNullLogger()

	sw := NewSweeper(f.svc, "not a schedule", logger)
	assert.Error(t, sw.Start())
}

func TestSweeperRuns(t *testing.T) {
	f := newFixture(t)
	logger, _ := test.NewNullLogger()

	b := f.create(t, f.guest.ID, "2030-01-09", "2030-01-11")
	f.clock.Advance(time.Hour)

	sw := NewSweeper(f.svc, "@every 1s", logger)
	require.NoError(t, sw.Start())
	defer sw.Stop()

	assert.Eventually(t, func() bool {
		got, err := f.bookings.GetByID(context.Background(), f.db, b.ID)
		return err == nil && got != nil && got.Status == models.BookingStatusCancelled
	}, 5*time.Second, 50*time.Millisecond)
}
