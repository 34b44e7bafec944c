// Package inventory maintains the per-homestay rooms-at-this-price counter.
package inventory

import (
	"context"

	"github.com/homestay-reservations/backend/internal/apperr"
	"github.com/homestay-reservations/backend/internal/storage"
	"github.com/homestay-reservations/backend/internal/storage/models"
)

// Counter takes and returns rooms. Both operations must run inside the
// transaction that changes the booking.
type Counter struct {
	homestays *storage.HomestayRepository
}

// NewCounter creates a new inventory counter.
func NewCounter(homestays *storage.HomestayRepository) *Counter {
	return &Counter{homestays: homestays}
}

// Take removes one room for a new booking. It fails with InvalidRequest when
// no room is left; the counter never goes negative.
func (c *Counter) Take(ctx context.Context, q storage.Queryable, homestayID string) error {
	ok, err := c.homestays.DecrementRooms(ctx, q, homestayID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Invalid("no rooms left at this price")
	}
	return nil
}

// Release returns the booking's room exactly once. It is a no-op when the
// booking already released its room.
func (c *Counter) Release(ctx context.Context, q storage.Queryable, b *models.Booking) error {
	if b.InventoryReleased {
		return nil
	}
	if err := c.homestays.IncrementRooms(ctx, q, b.HomestayID); err != nil {
		return err
	}
	b.InventoryReleased = true
	return nil
}
