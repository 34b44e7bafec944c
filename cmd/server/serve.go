package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/time/rate"

	"github.com/homestay-reservations/backend/internal/api"
	"github.com/homestay-reservations/backend/internal/booking"
	"github.com/homestay-reservations/backend/internal/identity"
	"github.com/homestay-reservations/backend/internal/notify"
	"github.com/homestay-reservations/backend/internal/storage"
	"github.com/homestay-reservations/backend/internal/websocket"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the expiry sweeper and the live event hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger, db, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if addr == "" {
				addr = cfg.Server.GetServerAddr()
			}
			logger.Infof("Starting homestay reservation server (version: %s)...", version)

			// Live events
			hub := websocket.NewHub(logger)
			hubCtx, stopHub := context.WithCancel(context.Background())
			defer stopHub()
			go hub.Run(hubCtx)

			// Notifications
			dispatcher := notify.NewDispatcher(notify.NewLogNotifier(logger), logger, cfg.Booking.NotificationQueue)
			dispatcher.Start(context.Background())
			defer dispatcher.Stop()

			bookings := booking.NewService(
				db,
				identity.NewSQLProvider(db, storage.NewUserRepository()),
				storage.NewPaymentRepository(),
				logger,
				booking.WithPaymentWindow(cfg.Booking.PaymentWindow),
				booking.WithSinks(dispatcher, websocket.NewEventBroadcaster(hub, logger)),
			)

			sweeper := booking.NewSweeper(bookings, cfg.Booking.SweepSchedule, logger)
			if err := sweeper.Start(); err != nil {
				return err
			}
			defer sweeper.Stop()

			router := api.NewRouter(api.Deps{
				DB:            db,
				Bookings:      bookings,
				Hub:           hub,
				Logger:        logger,
				CreateLimiter: rate.NewLimiter(rate.Limit(cfg.Booking.CreateRatePerSec), cfg.Booking.CreateRateBurst),
			})

			server := &http.Server{
				Addr:         addr,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
				// Use h2c so we can serve HTTP/2 without TLS behind the gateway
				Handler: h2c.NewHandler(router, &http2.Server{}),
			}

			serverErr := make(chan error, 1)
			go func() {
				logger.Infof("Server listening on %s", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
				close(serverErr)
			}()

			select {
			case err := <-serverErr:
				return err
			case <-ctx.Done():
			}

			logger.Info("Shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}

			logger.Info("Server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP server address (overrides SERVER_HOST/SERVER_PORT)")

	return cmd
}
