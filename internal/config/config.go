// Package config loads application configuration from the environment.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Database DatabaseConfig `env:",prefix=DB_"`
	Booking  BookingConfig  `env:",prefix=BOOKING_"`
	App      AppConfig      `env:",prefix=APP_"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `env:"HOST,default=0.0.0.0"`
	Port         string        `env:"PORT,default=8099"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=15s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT,default=60s"`
}

// DatabaseConfig selects the SQL driver and its connection settings.
// Driver is either "sqlite3" (Path is used) or "postgres".
type DatabaseConfig struct {
	Driver   string `env:"DRIVER,default=sqlite3"`
	Path     string `env:"PATH,default=/data/homestay.db"`
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=postgres"`
	Password string `env:"PASSWORD,default=postgres"`
	Name     string `env:"NAME,default=homestay"`
	SSLMode  string `env:"SSL_MODE,default=disable"`
	MaxConns int    `env:"MAX_CONNS,default=10"`
	MinConns int    `env:"MIN_CONNS,default=2"`
}

// BookingConfig holds booking lifecycle settings
type BookingConfig struct {
	PaymentWindow     time.Duration `env:"PAYMENT_WINDOW,default=30m"`
	SweepSchedule     string        `env:"SWEEP_SCHEDULE,default=@every 1m"`
	CreateRatePerSec  float64       `env:"CREATE_RATE_PER_SEC,default=20"`
	CreateRateBurst   int           `env:"CREATE_RATE_BURST,default=40"`
	NotificationQueue int           `env:"NOTIFICATION_QUEUE,default=256"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment string `env:"ENVIRONMENT,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith loads configuration using the given lookuper.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if cfg.Database.Driver != "sqlite3" && cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if cfg.Booking.PaymentWindow <= 0 {
		return nil, fmt.Errorf("payment window must be positive, got %s", cfg.Booking.PaymentWindow)
	}

	return &cfg, nil
}

// GetDatabaseURL returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}
