package websocket

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/homestay-reservations/backend/internal/booking"
)

// EventBroadcaster relays committed booking events to connected clients.
// It implements booking.Sink.
type EventBroadcaster struct {
	hub    *Hub
	logger logrus.FieldLogger
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub, logger logrus.FieldLogger) *EventBroadcaster {
	return &EventBroadcaster{hub: hub, logger: logger}
}

// Publish broadcasts the event to clients watching its homestay.
func (b *EventBroadcaster) Publish(e booking.Event) {
	payload := BookingEventPayload{
		Kind:           string(e.Kind),
		BookingID:      e.Booking.ID,
		BookingCode:    e.Booking.Code,
		HomestayID:     e.Booking.HomestayID,
		Status:         string(e.Booking.Status),
		PreviousStatus: string(e.PreviousStatus),
		CheckIn:        e.Booking.CheckIn.Format(time.DateOnly),
		CheckOut:       e.Booking.CheckOut.Format(time.DateOnly),
		TotalAmount:    e.Booking.TotalAmount,
		Reason:         e.Reason,
		OccurredAt:     e.OccurredAt,
	}

	data, err := NewMessage(TypeBookingEvent, payload).JSON()
	if err != nil {
		b.logger.Errorf("Error encoding WebSocket message: %v", err)
		return
	}

	b.hub.Broadcast(e.Booking.HomestayID, data)
}

// HandleCommand applies a client command and returns the reply to send back.
func HandleCommand(client *Client, raw []byte) Message {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return NewMessage(TypeError, ErrorPayload{Code: "bad_request", Message: "invalid command"})
	}

	switch cmd.Type {
	case TypePing:
		return NewMessage(TypePong, nil)
	case TypeSubscribe, TypeUnsubscribe:
		if cmd.HomestayID == "" {
			return NewMessage(TypeError, ErrorPayload{
				Code:         "validation_error",
				Message:      "homestay_id is required",
				OriginalType: string(cmd.Type),
			})
		}
		if cmd.Type == TypeSubscribe {
			client.Subscribe(cmd.HomestayID)
			return NewMessage(TypeSubscribeAck, SubscriptionPayload{HomestayID: cmd.HomestayID})
		}
		client.Unsubscribe(cmd.HomestayID)
		return NewMessage(TypeUnsubscribeAck, SubscriptionPayload{HomestayID: cmd.HomestayID})
	default:
		return NewMessage(TypeError, ErrorPayload{
			Code:         "bad_request",
			Message:      "unknown command",
			OriginalType: string(cmd.Type),
		})
	}
}
