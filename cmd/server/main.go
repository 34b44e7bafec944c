// Package main is the entry point for the homestay reservation server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/homestay-reservations/backend/internal/config"
	"github.com/homestay-reservations/backend/internal/storage"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	// A missing .env file is fine; the environment may already be set
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "server",
		Short:        "Homestay reservation booking service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		sweepCmd(),
		healthCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the process logger: JSON in production, text otherwise.
func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	if cfg.App.IsProduction() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		logger.Warnf("Unknown log level %q, using info", cfg.App.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// bootstrap loads configuration, opens the database and applies migrations.
func bootstrap(ctx context.Context) (*config.Config, *logrus.Logger, *storage.DB, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg)

	db, err := storage.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}

	if err := storage.RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("Database migrations complete")

	return cfg, logger, db, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, db, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}

func healthCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running server's health endpoint (for container health checks)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.HasPrefix(addr, ":") {
				addr = "localhost" + addr
			}
			resp, err := http.Get("http://" + addr + "/api/health")
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("health check failed: status %d", resp.StatusCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8099", "Address of the running server")

	return cmd
}
