package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/homestay-reservations/backend/internal/booking"
	"github.com/homestay-reservations/backend/internal/identity"
	"github.com/homestay-reservations/backend/internal/notify"
	"github.com/homestay-reservations/backend/internal/storage"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire unpaid bookings past their payment deadline once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, db, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			dispatcher := notify.NewDispatcher(notify.NewLogNotifier(logger), logger, cfg.Booking.NotificationQueue)
			dispatcher.Start(cmd.Context())
			defer dispatcher.Stop()

			bookings := booking.NewService(
				db,
				identity.NewSQLProvider(db, storage.NewUserRepository()),
				storage.NewPaymentRepository(),
				logger,
				booking.WithPaymentWindow(cfg.Booking.PaymentWindow),
				booking.WithSinks(dispatcher),
			)

			result, err := bookings.SweepExpiredBookings(cmd.Context())
			if err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{
				"candidates": result.Candidates,
				"expired":    result.Expired,
				"failed":     result.Failed,
			}).Info("Expiry sweep completed")
			return nil
		},
	}
}
