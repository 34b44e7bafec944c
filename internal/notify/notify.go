// Package notify delivers booking notifications to guests and hosts after
// the booking change has committed.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/homestay-reservations/backend/internal/storage/models"
)

// Notifier sends booking messages. Delivery (mail, push) lives outside the
// booking core.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, b models.Booking) error
	SendBookingRejected(ctx context.Context, b models.Booking, reason string) error
	SendBookingCancelled(ctx context.Context, b models.Booking, reason string) error
	SendNewBookingToHost(ctx context.Context, b models.Booking) error
}

// LogNotifier writes each notification to the log.
type LogNotifier struct {
	logger logrus.FieldLogger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(logger logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) entry(b models.Booking) *logrus.Entry {
	return n.logger.WithFields(logrus.Fields{
		"booking_code": b.Code,
		"guest_id":     b.GuestID,
		"homestay_id":  b.HomestayID,
	})
}

func (n *LogNotifier) SendBookingConfirmation(_ context.Context, b models.Booking) error {
	n.entry(b).Info("Notify guest: booking confirmed")
	return nil
}

func (n *LogNotifier) SendBookingRejected(_ context.Context, b models.Booking, reason string) error {
	n.entry(b).WithField("reason", reason).Info("Notify guest: booking rejected")
	return nil
}

func (n *LogNotifier) SendBookingCancelled(_ context.Context, b models.Booking, reason string) error {
	n.entry(b).WithField("reason", reason).Info("Notify guest: booking cancelled")
	return nil
}

func (n *LogNotifier) SendNewBookingToHost(_ context.Context, b models.Booking) error {
	n.entry(b).Info("Notify host: new booking request")
	return nil
}
