package booking

import (
	"time"

	"github.com/homestay-reservations/backend/internal/storage/models"
)

// EventKind names what happened to a booking.
type EventKind string

const (
	EventCreated    EventKind = "booking.created"
	EventUpdated    EventKind = "booking.updated"
	EventConfirmed  EventKind = "booking.confirmed"
	EventRejected   EventKind = "booking.rejected"
	EventCancelled  EventKind = "booking.cancelled"
	EventExpired    EventKind = "booking.expired"
	EventCheckedIn  EventKind = "booking.checked_in"
	EventCheckedOut EventKind = "booking.checked_out"
	EventCompleted  EventKind = "booking.completed"
	EventNoShow     EventKind = "booking.no_show"
)

// Event is raised once per committed booking change.
type Event struct {
	Kind           EventKind            `json:"kind"`
	Booking        models.Booking       `json:"booking"`
	PreviousStatus models.BookingStatus `json:"previous_status"`
	ActorID        string               `json:"actor_id,omitempty"`
	Reason         string               `json:"reason,omitempty"`
	OccurredAt     time.Time            `json:"occurred_at"`
}

// StatusChanged returns true if the event moved the booking to a new status.
func (e Event) StatusChanged() bool {
	return e.PreviousStatus != e.Booking.Status
}

// Sink receives events after the transaction that raised them commits.
// Publish must not block.
type Sink interface {
	Publish(e Event)
}
