package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homestay-reservations/backend/internal/booking"
	"github.com/homestay-reservations/backend/internal/storage/models"
)

func startHub(t *testing.T) *Hub {
	t.Helper()

	logger, _ := test.NewNullLogger()
	hub := NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()

	select {
	case data, ok := <-c.Send():
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()

	select {
	case data := <-c.Send():
		t.Fatalf("unexpected message: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func event(homestayID string) booking.Event {
	return booking.Event{
		Kind: booking.EventConfirmed,
		Booking: models.Booking{
			ID:          "b-1",
			Code:        "BK-20300101-ABCDE",
			HomestayID:  homestayID,
			CheckIn:     time.Date(2030, 1, 9, 0, 0, 0, 0, time.UTC),
			CheckOut:    time.Date(2030, 1, 11, 0, 0, 0, 0, time.UTC),
			Status:      models.BookingStatusConfirmed,
			TotalAmount: decimal.NewFromInt(2484000),
		},
		PreviousStatus: models.BookingStatusPending,
		OccurredAt:     time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBroadcasterRespectsSubscriptions(t *testing.T) {
	hub := startHub(t)
	logger, _ := test.NewNullLogger()
	broadcaster := NewEventBroadcaster(hub, logger)

	everything := NewClient(hub)
	riverside := NewClient(hub)
	riverside.Subscribe("h-riverside")
	hub.Register(everything)
	hub.Register(riverside)

	broadcaster.Publish(event("h-hillside"))

	msg := receive(t, everything)
	assert.Equal(t, TypeBookingEvent, msg.Type)
	payload, ok := msg.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "booking.confirmed", payload["kind"])
	assert.Equal(t, "h-hillside", payload["homestay_id"])
	assert.Equal(t, "2030-01-09", payload["check_in"])
	assert.Equal(t, "pending", payload["previous_status"])
	assertSilent(t, riverside)

	broadcaster.Publish(event("h-riverside"))
	receive(t, everything)
	receive(t, riverside)

	assert.Equal(t, 2, hub.ClientCount())
	hub.Unregister(riverside)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHandleCommand(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub)

	reply := HandleCommand(c, []byte(`{"type":"subscribe","homestay_id":"h-1"}`))
	assert.Equal(t, TypeSubscribeAck, reply.Type)
	assert.True(t, c.Wants("h-1"))
	assert.False(t, c.Wants("h-2"))
	assert.True(t, c.Wants(""), "untargeted messages reach everyone")

	reply = HandleCommand(c, []byte(`{"type":"unsubscribe","homestay_id":"h-1"}`))
	assert.Equal(t, TypeUnsubscribeAck, reply.Type)
	assert.True(t, c.Wants("h-2"))

	assert.Equal(t, TypePong, HandleCommand(c, []byte(`{"type":"ping"}`)).Type)
	assert.Equal(t, TypeError, HandleCommand(c, []byte(`{"type":"subscribe"}`)).Type)
	assert.Equal(t, TypeError, HandleCommand(c, []byte(`{"type":"dance"}`)).Type)
	assert.Equal(t, TypeError, HandleCommand(c, []byte(`not json`)).Type)
}
