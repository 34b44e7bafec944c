package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/homestay-reservations/backend/internal/storage/models"
)

const calendarColumns = `
	id, homestay_id, date, is_available, is_blocked, block_reason,
	custom_price, minimum_nights, created_at, updated_at`

// CalendarRepository provides data access for availability calendar entries.
type CalendarRepository struct {
	BaseRepository
}

// NewCalendarRepository creates a new calendar repository.
func NewCalendarRepository() *CalendarRepository {
	return &CalendarRepository{}
}

// ListRange returns the entries for dates in [start, end), ordered by date.
func (r *CalendarRepository) ListRange(ctx context.Context, q Queryable, homestayID string, start, end time.Time) ([]models.CalendarEntry, error) {
	var entries []models.CalendarEntry

	err := r.selectAll(ctx, q, &entries, `
		SELECT `+calendarColumns+`
		FROM availability_calendar
		WHERE homestay_id = ? AND date >= ? AND date < ?
		ORDER BY date
	`, homestayID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying calendar entries: %w", err)
	}

	return entries, nil
}

// GetByDate retrieves the entry for one date.
func (r *CalendarRepository) GetByDate(ctx context.Context, q Queryable, homestayID string, date time.Time) (*models.CalendarEntry, error) {
	entry := &models.CalendarEntry{}

	err := r.get(ctx, q, entry, `
		SELECT `+calendarColumns+`
		FROM availability_calendar
		WHERE homestay_id = ? AND date = ?
	`, homestayID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying calendar entry: %w", err)
	}

	return entry, nil
}

// Upsert writes every field of the entry, creating it if absent.
func (r *CalendarRepository) Upsert(ctx context.Context, q Queryable, entry *models.CalendarEntry) error {
	if entry.ID == "" {
		entry.ID = GenerateID()
	}
	now := r.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	_, err := r.exec(ctx, q, `
		INSERT INTO availability_calendar (`+calendarColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (homestay_id, date) DO UPDATE SET
			is_available = excluded.is_available,
			is_blocked = excluded.is_blocked,
			block_reason = excluded.block_reason,
			custom_price = excluded.custom_price,
			minimum_nights = excluded.minimum_nights,
			updated_at = excluded.updated_at
	`,
		entry.ID, entry.HomestayID, entry.Date, entry.IsAvailable, entry.IsBlocked,
		entry.BlockReason, entry.CustomPrice, entry.MinimumNights,
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting calendar entry: %w", err)
	}

	return nil
}

// Block marks one date blocked with the given reason. Price and minimum-stay
// overrides on an existing entry are left untouched.
func (r *CalendarRepository) Block(ctx context.Context, q Queryable, homestayID string, date time.Time, reason string) error {
	now := r.Now()

	_, err := r.exec(ctx, q, `
		INSERT INTO availability_calendar (
			id, homestay_id, date, is_available, is_blocked, block_reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (homestay_id, date) DO UPDATE SET
			is_available = excluded.is_available,
			is_blocked = excluded.is_blocked,
			block_reason = excluded.block_reason,
			updated_at = excluded.updated_at
	`, GenerateID(), homestayID, date, false, true, reason, now, now)
	if err != nil {
		return fmt.Errorf("blocking calendar date: %w", err)
	}

	return nil
}

// Unblock restores dates in [start, end) whose block reason contains marker.
// It returns the number of entries restored.
func (r *CalendarRepository) Unblock(ctx context.Context, q Queryable, homestayID string, start, end time.Time, marker string) (int64, error) {
	n, err := r.exec(ctx, q, `
		UPDATE availability_calendar
		SET is_available = ?, is_blocked = ?, block_reason = NULL, updated_at = ?
		WHERE homestay_id = ? AND date >= ? AND date < ? AND block_reason LIKE ?
	`, true, false, r.Now(), homestayID, start, end, "%"+marker+"%")
	if err != nil {
		return 0, fmt.Errorf("unblocking calendar dates: %w", err)
	}

	return n, nil
}

// ListBlocked returns blocked entries for dates in [start, end).
func (r *CalendarRepository) ListBlocked(ctx context.Context, q Queryable, homestayID string, start, end time.Time) ([]models.CalendarEntry, error) {
	var entries []models.CalendarEntry

	err := r.selectAll(ctx, q, &entries, `
		SELECT `+calendarColumns+`
		FROM availability_calendar
		WHERE homestay_id = ? AND date >= ? AND date < ? AND (is_blocked = ? OR is_available = ?)
		ORDER BY date
	`, homestayID, start, end, true, false)
	if err != nil {
		return nil, fmt.Errorf("querying blocked dates: %w", err)
	}

	return entries, nil
}
