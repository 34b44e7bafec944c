package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/homestay-reservations/backend/internal/storage/models"
)

const homestayColumns = `
	id, host_id, name, base_price, weekend_price, weekly_discount, monthly_discount,
	minimum_nights, maximum_nights, maximum_guests, rooms_at_this_price,
	is_active, is_approved, created_at, updated_at`

// HomestayRepository provides data access for homestays.
type HomestayRepository struct {
	BaseRepository
}

// NewHomestayRepository creates a new homestay repository.
func NewHomestayRepository() *HomestayRepository {
	return &HomestayRepository{}
}

// Create inserts a new homestay.
func (r *HomestayRepository) Create(ctx context.Context, q Queryable, h *models.Homestay) error {
	if h.ID == "" {
		h.ID = GenerateID()
	}
	h.CreatedAt = r.Now()
	h.UpdatedAt = r.Now()

	_, err := r.exec(ctx, q, `
		INSERT INTO homestays (`+homestayColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		h.ID, h.HostID, h.Name, h.BasePrice, h.WeekendPrice, h.WeeklyDiscount, h.MonthlyDiscount,
		h.MinimumNights, h.MaximumNights, h.MaximumGuests, h.RoomsAtThisPrice,
		h.IsActive, h.IsApproved, h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting homestay: %w", err)
	}

	return nil
}

// GetByID retrieves a homestay by its ID.
func (r *HomestayRepository) GetByID(ctx context.Context, q Queryable, id string) (*models.Homestay, error) {
	h := &models.Homestay{}

	err := r.get(ctx, q, h, `SELECT `+homestayColumns+` FROM homestays WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying homestay: %w", err)
	}

	return h, nil
}

// DecrementRooms takes one room from the inventory counter. It returns false
// without changing anything when the counter is already zero.
func (r *HomestayRepository) DecrementRooms(ctx context.Context, q Queryable, id string) (bool, error) {
	n, err := r.exec(ctx, q, `
		UPDATE homestays
		SET rooms_at_this_price = rooms_at_this_price - 1, updated_at = ?
		WHERE id = ? AND rooms_at_this_price > 0
	`, r.Now(), id)
	if err != nil {
		return false, fmt.Errorf("decrementing rooms: %w", err)
	}

	return n == 1, nil
}

// IncrementRooms returns one room to the inventory counter.
func (r *HomestayRepository) IncrementRooms(ctx context.Context, q Queryable, id string) error {
	n, err := r.exec(ctx, q, `
		UPDATE homestays
		SET rooms_at_this_price = rooms_at_this_price + 1, updated_at = ?
		WHERE id = ?
	`, r.Now(), id)
	if err != nil {
		return fmt.Errorf("incrementing rooms: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("incrementing rooms: homestay %s not found", id)
	}

	return nil
}
