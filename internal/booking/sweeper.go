package booking

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/homestay-reservations/backend/internal/metrics"
)

// SweepResult summarises one expiry sweep.
type SweepResult struct {
	Candidates int `json:"candidates"`
	Expired    int `json:"expired"`
	Failed     int `json:"failed"`
}

// SweepExpiredBookings cancels every pending, unpaid booking whose payment
// deadline has passed. Each booking is expired in its own transaction; a
// failure on one does not stop the others.
func (s *Service) SweepExpiredBookings(ctx context.Context) (*SweepResult, error) {
	candidates, err := s.bookings.ListExpiredPending(ctx, s.db, s.now())
	if err != nil {
		metrics.RecordSweep("error")
		return nil, fmt.Errorf("listing expired bookings: %w", err)
	}

	result := &SweepResult{Candidates: len(candidates)}
	for _, b := range candidates {
		if err := ctx.Err(); err != nil {
			metrics.RecordSweep("cancelled")
			return result, err
		}

		expired, err := s.ExpireBooking(ctx, b.ID)
		if err != nil {
			result.Failed++
			s.logger.WithField("booking_code", b.Code).Warnf("Failed to expire booking: %v", err)
			continue
		}
		if expired {
			result.Expired++
		}
	}

	if result.Failed > 0 {
		metrics.RecordSweep("partial")
	} else {
		metrics.RecordSweep("success")
	}
	return result, nil
}

// Sweeper runs SweepExpiredBookings on a cron schedule.
type Sweeper struct {
	cron     *cron.Cron
	service  *Service
	schedule string
	logger   logrus.FieldLogger

	// Guards against overlapping runs when a sweep outlasts its interval
	running sync.Mutex
}

// NewSweeper creates a sweeper for the given schedule, e.g. "@every 1m".
func NewSweeper(service *Service, schedule string, logger logrus.FieldLogger) *Sweeper {
	return &Sweeper{
		cron:     cron.New(cron.WithSeconds()),
		service:  service,
		schedule: schedule,
		logger:   logger,
	}
}

// Start schedules the sweep and starts the cron runner.
func (sw *Sweeper) Start() error {
	if _, err := sw.cron.AddFunc(sw.schedule, sw.run); err != nil {
		return fmt.Errorf("scheduling expiry sweep %q: %w", sw.schedule, err)
	}

	sw.cron.Start()
	sw.logger.Infof("Expiry sweeper started (%s)", sw.schedule)
	return nil
}

// Stop waits for a running sweep to finish and stops the scheduler.
func (sw *Sweeper) Stop() {
	sw.logger.Info("Stopping expiry sweeper...")
	ctx := sw.cron.Stop()
	<-ctx.Done()
	sw.logger.Info("Expiry sweeper stopped")
}

func (sw *Sweeper) run() {
	if !sw.running.TryLock() {
		sw.logger.Debug("Previous expiry sweep still running, skipping")
		return
	}
	defer sw.running.Unlock()

	result, err := sw.service.SweepExpiredBookings(context.Background())
	if err != nil {
		sw.logger.Errorf("Expiry sweep failed: %v", err)
		return
	}
	if result.Candidates > 0 {
		sw.logger.WithFields(logrus.Fields{
			"candidates": result.Candidates,
			"expired":    result.Expired,
			"failed":     result.Failed,
		}).Info("Expiry sweep completed")
	}
}
