package websocket

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event type; the booking event kind is carried in the payload
	TypeBookingEvent MessageType = "booking.event"

	// Client -> Server command types
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypePing        MessageType = "ping"

	// Server -> Client response types
	TypeSubscribeAck   MessageType = "subscribe.ack"
	TypeUnsubscribeAck MessageType = "unsubscribe.ack"
	TypePong           MessageType = "pong"
	TypeError          MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// BookingEventPayload is the payload for booking.event messages.
type BookingEventPayload struct {
	Kind           string          `json:"kind"`
	BookingID      string          `json:"booking_id"`
	BookingCode    string          `json:"booking_code"`
	HomestayID     string          `json:"homestay_id"`
	Status         string          `json:"status"`
	PreviousStatus string          `json:"previous_status,omitempty"`
	CheckIn        string          `json:"check_in"`
	CheckOut       string          `json:"check_out"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Reason         string          `json:"reason,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// Command is a message sent by a client.
type Command struct {
	Type       MessageType `json:"type"`
	HomestayID string      `json:"homestay_id,omitempty"`
}

// SubscriptionPayload is the payload for subscription acknowledgements.
type SubscriptionPayload struct {
	HomestayID string `json:"homestay_id"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}
