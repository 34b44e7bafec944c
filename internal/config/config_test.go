package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Booking.PaymentWindow)
	assert.Equal(t, "@every 1m", cfg.Booking.SweepSchedule)
	assert.Equal(t, "0.0.0.0:8099", cfg.Server.GetServerAddr())
	assert.False(t, cfg.App.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"DB_DRIVER":              "postgres",
		"DB_HOST":                "db",
		"DB_NAME":                "stays",
		"BOOKING_PAYMENT_WINDOW": "45m",
		"APP_ENVIRONMENT":        "production",
	}))
	require.NoError(t, err)

	assert.Equal(t, 45*time.Minute, cfg.Booking.PaymentWindow)
	assert.Contains(t, cfg.Database.GetDatabaseURL(), "host=db")
	assert.Contains(t, cfg.Database.GetDatabaseURL(), "dbname=stays")
	assert.True(t, cfg.App.IsProduction())
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	_, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"DB_DRIVER": "mysql",
	}))
	assert.Error(t, err)
}
