package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/homestay-reservations/backend/internal/identity"
	"github.com/homestay-reservations/backend/internal/storage"
	"github.com/homestay-reservations/backend/internal/storage/models"
	"github.com/homestay-reservations/backend/internal/storage/storagetest"
)

// 2030-01-01 is a Tuesday; 2030-01-12 is a Saturday.
var start = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

type fixture struct {
	db       *storage.DB
	svc      *Service
	clock    *clock
	events   *recorder
	payments *storage.PaymentRepository
	calendar *storage.CalendarRepository
	bookings *storage.BookingRepository

	host     *models.User
	guest    *models.User
	admin    *models.User
	homestay *models.Homestay
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := storagetest.NewDB(t)
	logger, _ := test.NewNullLogger()

	f := &fixture{
		db:       db,
		clock:    &clock{now: start},
		events:   &recorder{},
		payments: storage.NewPaymentRepository(),
		calendar: storage.NewCalendarRepository(),
		bookings: storage.NewBookingRepository(),
		host:     storagetest.User(t, db, "host", models.RoleHost),
		guest:    storagetest.User(t, db, "guest", models.RoleGuest),
		admin:    storagetest.User(t, db, "admin", models.RoleAdmin),
	}
	f.homestay = storagetest.Homestay(t, db, f.host.ID, 3, func(h *models.Homestay) {
		h.WeekendPrice = decimal.NewNullDecimal(decimal.NewFromInt(1200000))
	})

	roles := identity.NewSQLProvider(db, storage.NewUserRepository())
	f.svc = NewService(db, roles, f.payments, logger,
		WithClock(f.clock.Now),
		WithSinks(f.events),
	)
	return f
}

func (f *fixture) create(t *testing.T, guestID, checkIn, checkOut string) *models.Booking {
	t.Helper()

	b, err := f.svc.CreateBooking(context.Background(), guestID, CreateRequest{
		HomestayID: f.homestay.ID,
		CheckIn:    storagetest.Day(t, checkIn),
		CheckOut:   storagetest.Day(t, checkOut),
		NumAdults:  2,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) pay(t *testing.T, b *models.Booking, amount string) {
	t.Helper()

	require.NoError(t, f.payments.Create(context.Background(), f.db, &models.Payment{
		BookingID: b.ID,
		Amount:    storagetest.Money(t, amount),
		Status:    models.PaymentStatusCompleted,
	}))
}

func (f *fixture) reload(t *testing.T, id string) *models.Booking {
	t.Helper()

	b, err := f.bookings.GetByID(context.Background(), f.db, id)
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
}

func (f *fixture) available(t *testing.T, checkIn, checkOut string) bool {
	t.Helper()

	ok, err := f.svc.IsAvailable(context.Background(), f.homestay.ID, storagetest.Day(t, checkIn), storagetest.Day(t, checkOut))
	require.NoError(t, err)
	return ok
}

func (f *fixture) blockReason(t *testing.T, date string) string {
	t.Helper()

	e, err := f.calendar.GetByDate(context.Background(), f.db, f.homestay.ID, storagetest.Day(t, date))
	require.NoError(t, err)
	if e == nil || e.BlockReason == nil {
		return ""
	}
	return *e.BlockReason
}
