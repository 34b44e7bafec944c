// Package calendar tracks per-night homestay availability, blocks and
// unblocks dates for bookings, and exports blocked dates as an iCal feed.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/homestay-reservations/backend/internal/storage"
	"github.com/homestay-reservations/backend/internal/storage/models"
)

// Service answers availability questions and writes booking blocks.
type Service struct {
	entries  *storage.CalendarRepository
	bookings *storage.BookingRepository
}

// NewService creates a new availability calendar service.
func NewService(entries *storage.CalendarRepository, bookings *storage.BookingRepository) *Service {
	return &Service{
		entries:  entries,
		bookings: bookings,
	}
}

// BlockReason builds the reason stored on a blocked date.
func BlockReason(label, bookingCode string) string {
	return label + " - " + bookingCode
}

// IsRangeAvailable reports whether every night in [start, end) is free.
// Dates blocked by excludeCode and the booking with that code are ignored,
// so a booking can be re-checked against its own dates.
func (s *Service) IsRangeAvailable(ctx context.Context, q storage.Queryable, homestayID string, start, end time.Time, excludeCode string) (bool, error) {
	start, end = Date(start), Date(end)
	if !end.After(start) {
		return false, nil
	}

	entries, err := s.entries.ListRange(ctx, q, homestayID, start, end)
	if err != nil {
		return false, fmt.Errorf("loading calendar: %w", err)
	}
	for _, e := range entries {
		if e.IsOpen() {
			continue
		}
		if excludeCode != "" && e.BlockReason != nil && strings.Contains(*e.BlockReason, excludeCode) {
			continue
		}
		return false, nil
	}

	overlapping, err := s.bookings.FindOverlapping(ctx, q, homestayID, start, end, excludeCode)
	if err != nil {
		return false, fmt.Errorf("checking booking overlap: %w", err)
	}

	return len(overlapping) == 0, nil
}

// Overrides returns the calendar entries for [start, end) keyed by Key(date).
func (s *Service) Overrides(ctx context.Context, q storage.Queryable, homestayID string, start, end time.Time) (map[string]models.CalendarEntry, error) {
	entries, err := s.entries.ListRange(ctx, q, homestayID, Date(start), Date(end))
	if err != nil {
		return nil, fmt.Errorf("loading calendar: %w", err)
	}

	overrides := make(map[string]models.CalendarEntry, len(entries))
	for _, e := range entries {
		overrides[Key(e.Date)] = e
	}
	return overrides, nil
}

// Block marks every night in [start, end) blocked as "<label> - <bookingCode>".
func (s *Service) Block(ctx context.Context, q storage.Queryable, homestayID string, start, end time.Time, label, bookingCode string) error {
	reason := BlockReason(label, bookingCode)
	for _, night := range EachNight(start, end) {
		if err := s.entries.Block(ctx, q, homestayID, night, reason); err != nil {
			return err
		}
	}
	return nil
}

// Unblock restores the nights in [start, end) that were blocked for bookingCode.
// Nights blocked for anything else are left alone.
func (s *Service) Unblock(ctx context.Context, q storage.Queryable, homestayID string, start, end time.Time, bookingCode string) (int64, error) {
	if bookingCode == "" {
		return 0, fmt.Errorf("unblocking dates: booking code required")
	}
	return s.entries.Unblock(ctx, q, homestayID, Date(start), Date(end), bookingCode)
}
