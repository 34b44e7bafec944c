// Package storagetest provides migrated SQLite databases and fixtures for tests.
package storagetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/homestay-reservations/backend/internal/storage"
	"github.com/homestay-reservations/backend/internal/storage/models"
)

// NewDB opens a fresh migrated SQLite database in a temp directory.
func NewDB(t testing.TB) *storage.DB {
	t.Helper()

	db, err := storage.NewSQLiteDB(filepath.Join(t.TempDir(), "homestay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger, _ := test.NewNullLogger()
	require.NoError(t, storage.RunMigrations(db, logger))

	return db
}

// Day parses a YYYY-MM-DD date, failing the test on error.
func Day(t testing.TB, s string) time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, s)
	require.NoError(t, err)
	return d
}

// Money parses a decimal amount, failing the test on error.
func Money(t testing.TB, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// User inserts a user holding the given roles.
func User(t testing.TB, db *storage.DB, name string, roles ...models.Role) *models.User {
	t.Helper()

	u := &models.User{Email: name + "-" + storage.GenerateID()[:8] + "@example.com", FullName: name}
	require.NoError(t, storage.NewUserRepository().Create(context.Background(), db, u, roles...))
	return u
}

// Homestay inserts an active, approved homestay owned by hostID priced at
// 1,000,000 per night with the given room inventory. Options tweak the
// homestay before it is inserted.
func Homestay(t testing.TB, db *storage.DB, hostID string, rooms int, opts ...func(*models.Homestay)) *models.Homestay {
	t.Helper()

	h := &models.Homestay{
		HostID:           hostID,
		Name:             "Riverside Homestay",
		BasePrice:        decimal.NewFromInt(1000000),
		MinimumNights:    1,
		MaximumGuests:    4,
		RoomsAtThisPrice: rooms,
		IsActive:         true,
		IsApproved:       true,
	}
	for _, opt := range opts {
		opt(h)
	}

	require.NoError(t, storage.NewHomestayRepository().Create(context.Background(), db, h))
	return h
}

// Rooms reads the homestay's current inventory counter.
func Rooms(t testing.TB, db *storage.DB, homestayID string) int {
	t.Helper()

	h, err := storage.NewHomestayRepository().GetByID(context.Background(), db, homestayID)
	require.NoError(t, err)
	require.NotNil(t, h)
	return h.RoomsAtThisPrice
}
