package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/homestay-reservations/backend/internal/booking"
	"github.com/homestay-reservations/backend/internal/storage/models"
)

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (f *fakeNotifier) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.fail {
		return errors.New("smtp unavailable")
	}
	return nil
}

func (f *fakeNotifier) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeNotifier) SendBookingConfirmation(_ context.Context, b models.Booking) error {
	return f.record("confirmation:" + b.Code)
}

func (f *fakeNotifier) SendBookingRejected(_ context.Context, b models.Booking, reason string) error {
	return f.record("rejected:" + b.Code + ":" + reason)
}

func (f *fakeNotifier) SendBookingCancelled(_ context.Context, b models.Booking, reason string) error {
	return f.record("cancelled:" + b.Code + ":" + reason)
}

func (f *fakeNotifier) SendNewBookingToHost(_ context.Context, b models.Booking) error {
	return f.record("host:" + b.Code)
}

func eventOf(kind booking.EventKind, reason string) booking.Event {
	return booking.Event{Kind: kind, Booking: models.Booking{Code: "BK-1"}, Reason: reason}
}

func TestDispatcherRoutesEvents(t *testing.T) {
	notifier := &fakeNotifier{}
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(notifier, logger, 0)
	d.Start(context.Background())
	defer d.Stop()

	for _, e := range []booking.Event{
		eventOf(booking.EventCreated, ""),
		eventOf(booking.EventUpdated, ""),
		eventOf(booking.EventConfirmed, ""),
		eventOf(booking.EventRejected, "full"),
		eventOf(booking.EventCancelled, "plans changed"),
		eventOf(booking.EventExpired, "Payment deadline expired"),
		eventOf(booking.EventCompleted, ""),
	} {
		d.Publish(e)
	}

	want := []string{
		"host:BK-1",
		"confirmation:BK-1",
		"rejected:BK-1:full",
		"cancelled:BK-1:plans changed",
		"cancelled:BK-1:Payment deadline expired",
	}
	assert.Eventually(t, func() bool { return len(notifier.Calls()) == len(want) }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, notifier.Calls())
}

func TestDispatcherLogsFailures(t *testing.T) {
	notifier := &fakeNotifier{fail: true}
	logger, hook := test.NewNullLogger()
	d := NewDispatcher(notifier, logger, 4)
	d.Start(context.Background())
	defer d.Stop()

	d.Publish(eventOf(booking.EventConfirmed, ""))

	assert.Eventually(t, func() bool {
		entry := hook.LastEntry()
		return entry != nil && entry.Level == logrus.ErrorLevel
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPublishNeverBlocks(t *testing.T) {
	notifier := &fakeNotifier{}
	logger, hook := test.NewNullLogger()
	d := NewDispatcher(notifier, logger, 1)

	// Not started: the second event overflows the queue
	d.Publish(eventOf(booking.EventCreated, ""))
	d.Publish(eventOf(booking.EventCreated, ""))

	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Empty(t, notifier.Calls())
}

func TestLogNotifier(t *testing.T) {
	logger, hook := test.NewNullLogger()
	n := NewLogNotifier(logger)
	b := models.Booking{Code: "BK-1", GuestID: "g-1", HomestayID: "h-1"}
	ctx := context.Background()

	assert.NoError(t, n.SendNewBookingToHost(ctx, b))
	assert.NoError(t, n.SendBookingConfirmation(ctx, b))
	assert.NoError(t, n.SendBookingRejected(ctx, b, "full"))
	assert.NoError(t, n.SendBookingCancelled(ctx, b, "plans changed"))

	assert.Len(t, hook.AllEntries(), 4)
	assert.Equal(t, "BK-1", hook.LastEntry().Data["booking_code"])
	assert.Equal(t, "plans changed", hook.LastEntry().Data["reason"])
}

func TestStopDeliversQueuedEvents(t *testing.T) {
	notifier := &fakeNotifier{}
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(notifier, logger, 8)

	d.Publish(eventOf(booking.EventConfirmed, ""))
	d.Publish(eventOf(booking.EventCreated, ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Start(ctx)
	d.Stop()

	assert.Len(t, notifier.Calls(), 2)
}

// slowNotifier blocks each send until released and keeps the context error
// it saw when the send finished.
type slowNotifier struct {
	fakeNotifier
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (s *slowNotifier) SendBookingConfirmation(ctx context.Context, b models.Booking) error {
	close(s.started)
	<-s.release
	s.ctxErr <- ctx.Err()
	return s.record("confirmation:" + b.Code)
}

func TestShutdownDoesNotAbortInFlightSend(t *testing.T) {
	notifier := &slowNotifier{
		started: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
	logger, hook := test.NewNullLogger()
	d := NewDispatcher(notifier, logger, 4)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	d.Publish(eventOf(booking.EventConfirmed, ""))

	<-notifier.started
	cancel()
	close(notifier.release)
	d.Stop()

	assert.NoError(t, <-notifier.ctxErr)
	assert.Equal(t, []string{"confirmation:BK-1"}, notifier.Calls())
	for _, entry := range hook.AllEntries() {
		assert.NotEqual(t, logrus.ErrorLevel, entry.Level)
	}
}
