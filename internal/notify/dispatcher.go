package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/homestay-reservations/backend/internal/booking"
	"github.com/homestay-reservations/backend/internal/metrics"
)

// DefaultQueueSize is the number of events buffered before new ones are dropped.
const DefaultQueueSize = 256

// sendTimeout bounds a single notifier call.
const sendTimeout = 10 * time.Second

// Dispatcher turns committed booking events into notifications on a
// background worker. It implements booking.Sink.
type Dispatcher struct {
	notifier Notifier
	logger   logrus.FieldLogger
	queue    chan booking.Event

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given queue size.
func NewDispatcher(notifier Notifier, logger logrus.FieldLogger, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		notifier: notifier,
		logger:   logger,
		queue:    make(chan booking.Event, queueSize),
	}
}

// Start launches the delivery worker. Cancelling ctx stops the worker once
// the queue is drained; a send already in flight is not interrupted.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				d.drain(ctx)
				return
			case e := <-d.queue:
				d.deliver(context.WithoutCancel(ctx), e)
			}
		}
	}()
}

// Stop delivers the events still queued and waits for the worker to exit.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case e := <-d.queue:
			d.deliver(context.WithoutCancel(ctx), e)
		default:
			return
		}
	}
}

// Publish queues the event without blocking. When the queue is full the
// event is dropped and counted.
func (d *Dispatcher) Publish(e booking.Event) {
	select {
	case d.queue <- e:
	default:
		metrics.RecordNotificationFailure("dropped")
		d.logger.WithField("booking_code", e.Booking.Code).Warn("Notification queue full, dropping event")
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e booking.Event) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	var (
		kind string
		err  error
	)
	switch e.Kind {
	case booking.EventCreated:
		kind = "new_booking"
		err = d.notifier.SendNewBookingToHost(ctx, e.Booking)
	case booking.EventConfirmed:
		kind = "confirmation"
		err = d.notifier.SendBookingConfirmation(ctx, e.Booking)
	case booking.EventRejected:
		kind = "rejected"
		err = d.notifier.SendBookingRejected(ctx, e.Booking, e.Reason)
	case booking.EventCancelled, booking.EventExpired:
		kind = "cancelled"
		err = d.notifier.SendBookingCancelled(ctx, e.Booking, e.Reason)
	default:
		return
	}

	if err != nil {
		metrics.RecordNotificationFailure(kind)
		d.logger.WithFields(logrus.Fields{
			"booking_code": e.Booking.Code,
			"kind":         kind,
		}).Errorf("Failed to send notification: %v", err)
	}
}
