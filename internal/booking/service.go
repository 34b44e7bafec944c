// Package booking drives reservations through their lifecycle. Every
// operation runs in one database transaction spanning pricing, calendar
// blocks, inventory and the booking row; events are published only after
// the transaction commits.
package booking

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/homestay-reservations/backend/internal/apperr"
	"github.com/homestay-reservations/backend/internal/calendar"
	"github.com/homestay-reservations/backend/internal/coupon"
	"github.com/homestay-reservations/backend/internal/identity"
	"github.com/homestay-reservations/backend/internal/inventory"
	"github.com/homestay-reservations/backend/internal/metrics"
	"github.com/homestay-reservations/backend/internal/pricing"
	"github.com/homestay-reservations/backend/internal/storage"
	"github.com/homestay-reservations/backend/internal/storage/models"
)

// DefaultPaymentWindow is how long a new booking waits for payment.
const DefaultPaymentWindow = 30 * time.Minute

// SystemActor is recorded as the canceller of expired bookings.
const SystemActor = "system"

// PaymentReader reports how much has been paid towards a booking.
type PaymentReader interface {
	TotalPaid(ctx context.Context, q storage.Queryable, bookingID string) (decimal.Decimal, error)
}

// Service implements the booking lifecycle.
type Service struct {
	db        *storage.DB
	bookings  *storage.BookingRepository
	homestays *storage.HomestayRepository
	calendar  *calendar.Service
	pricing   *pricing.Engine
	coupons   *coupon.Engine
	inventory *inventory.Counter
	roles     identity.Provider
	payments  PaymentReader
	sinks     []Sink
	logger    logrus.FieldLogger

	paymentWindow time.Duration
	now           func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPaymentWindow sets how long a pending booking waits for payment.
func WithPaymentWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.paymentWindow = d
		}
	}
}

// WithClock replaces the service's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithSinks registers receivers for committed booking events.
func WithSinks(sinks ...Sink) Option {
	return func(s *Service) {
		s.sinks = append(s.sinks, sinks...)
	}
}

// NewService creates a booking service over the given database.
func NewService(db *storage.DB, roles identity.Provider, payments PaymentReader, logger logrus.FieldLogger, opts ...Option) *Service {
	bookings := storage.NewBookingRepository()
	homestays := storage.NewHomestayRepository()

	s := &Service{
		db:            db,
		bookings:      bookings,
		homestays:     homestays,
		calendar:      calendar.NewService(storage.NewCalendarRepository(), bookings),
		pricing:       pricing.NewEngine(),
		inventory:     inventory.NewCounter(homestays),
		roles:         roles,
		payments:      payments,
		logger:        logger,
		paymentWindow: DefaultPaymentWindow,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	s.coupons = coupon.NewEngine(storage.NewCouponRepository(), bookings, logger).WithClock(s.now)

	return s
}

// Subscribe registers an additional event sink. It is not safe to call
// concurrently with booking operations.
func (s *Service) Subscribe(sink Sink) {
	s.sinks = append(s.sinks, sink)
}

// txScope is the transaction handed to an operation together with the
// events it raises.
type txScope struct {
	tx     *sqlx.Tx
	now    time.Time
	events []Event
}

func (sc *txScope) emit(kind EventKind, b *models.Booking, previous models.BookingStatus, actorID, reason string) {
	sc.events = append(sc.events, Event{
		Kind:           kind,
		Booking:        *b,
		PreviousStatus: previous,
		ActorID:        actorID,
		Reason:         reason,
		OccurredAt:     sc.now,
	})
}

// withTransaction runs fn in a single transaction. Any error rolls back all
// of its work. Events raised by fn are published only after commit.
func (s *Service) withTransaction(ctx context.Context, operation string, fn func(sc *txScope) error) error {
	start := time.Now()
	scope := &txScope{now: s.now()}

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		scope.tx = tx
		return fn(scope)
	})
	s.observe(operation, start, err)
	if err != nil {
		return err
	}

	for _, e := range scope.events {
		s.publish(e)
	}
	return nil
}

func (s *Service) observe(operation string, start time.Time, err error) {
	status := "success"
	switch {
	case err == nil:
	case apperr.IsInvalid(err):
		status = "invalid"
	case apperr.IsNotFound(err):
		status = "not_found"
	default:
		status = "error"
		s.logger.WithField("operation", operation).Errorf("Booking operation failed: %v", err)
	}
	metrics.RecordOperation(operation, status, time.Since(start).Seconds())
}

func (s *Service) publish(e Event) {
	if e.StatusChanged() {
		metrics.RecordTransition(string(e.Booking.Status))
	}

	s.logger.WithFields(logrus.Fields{
		"booking_code": e.Booking.Code,
		"homestay_id":  e.Booking.HomestayID,
		"status":       e.Booking.Status,
	}).Infof("Booking event %s", e.Kind)

	for _, sink := range s.sinks {
		sink.Publish(e)
	}
}

// resolveActor loads the caller's roles before any transaction starts.
func (s *Service) resolveActor(ctx context.Context, actorID string) (actor, error) {
	if actorID == "" {
		return actor{}, apperr.Invalid("actor is required")
	}
	roles, err := s.roles.Roles(ctx, actorID)
	if err != nil {
		return actor{}, err
	}
	return actor{id: actorID, roles: roles}, nil
}

func (s *Service) loadHomestay(ctx context.Context, q storage.Queryable, id string) (*models.Homestay, error) {
	h, err := s.homestays.GetByID(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, apperr.NotFound("homestay %s not found", id)
	}
	return h, nil
}

func (s *Service) loadBooking(ctx context.Context, q storage.Queryable, id string) (*models.Booking, *models.Homestay, error) {
	b, err := s.bookings.GetByID(ctx, q, id)
	if err != nil {
		return nil, nil, err
	}
	if b == nil {
		return nil, nil, apperr.NotFound("booking %s not found", id)
	}

	h, err := s.loadHomestay(ctx, q, b.HomestayID)
	if err != nil {
		return nil, nil, err
	}
	return b, h, nil
}

func (s *Service) today() time.Time {
	return calendar.Date(s.now())
}

func blockLabel(status models.BookingStatus) string {
	if status == models.BookingStatusPending {
		return models.BlockLabelPending
	}
	return models.BlockLabelConfirmed
}

// reserve claims the booking's nights and blocks them on the calendar.
func (s *Service) reserve(ctx context.Context, q storage.Queryable, b *models.Booking) error {
	if err := s.bookings.ReserveNights(ctx, q, b.HomestayID, b.ID, b.CheckIn, b.CheckOut); err != nil {
		if storage.IsUniqueViolation(err) {
			return errNotAvailable()
		}
		return err
	}
	return s.calendar.Block(ctx, q, b.HomestayID, b.CheckIn, b.CheckOut, blockLabel(b.Status), b.Code)
}

// unreserve frees the booking's nights and, when unblock is set, restores
// the calendar entries blocked for it.
func (s *Service) unreserve(ctx context.Context, q storage.Queryable, b *models.Booking, unblock bool) error {
	if err := s.bookings.ReleaseNights(ctx, q, b.ID); err != nil {
		return err
	}
	if !unblock {
		return nil
	}
	if _, err := s.calendar.Unblock(ctx, q, b.HomestayID, b.CheckIn, b.CheckOut, b.Code); err != nil {
		return err
	}
	return nil
}

func errNotAvailable() error {
	return apperr.Invalid("homestay is not available for the selected dates")
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
