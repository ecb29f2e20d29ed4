// Package inbound drains the durable inbound update queue.
//
// The worker is a polling loop, not an event listener: each pass claims a
// bounded batch of due NEW updates (the claim is an atomic conditional
// update, so concurrent workers never share a row), hands each one to the
// Router, and converts the outcome into a state transition. A failure on one
// row never prevents the rest of the batch from being attempted, and no
// update is ever deleted on failure.
package inbound

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/venuedesk/go-venue-relay/internal/repo"
	"github.com/venuedesk/go-venue-relay/internal/router"
)

// Worker polls the inbound queue and routes claimed updates.
type Worker struct {
	DB     *gorm.DB
	Router router.Router

	// BatchSize bounds how many updates one pass may claim. Zero means 50.
	BatchSize int
	// MaxAttempts is the attempt budget before an update goes DEAD.
	// Zero means 5.
	MaxAttempts int
	// RetryDelay holds a failed update back before it becomes claimable
	// again. Zero means 30s.
	RetryDelay time.Duration
	// PollInterval is the pause between passes. Zero means 1s.
	PollInterval time.Duration
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 50
	}
	return w.BatchSize
}

func (w *Worker) maxAttempts() int {
	if w.MaxAttempts <= 0 {
		return 5
	}
	return w.MaxAttempts
}

func (w *Worker) retryDelay() time.Duration {
	if w.RetryDelay <= 0 {
		return 30 * time.Second
	}
	return w.RetryDelay
}

// Run schedules ProcessOnce until ctx is done. Shutdown is cooperative: the
// pass that is underway finishes naturally, no new pass is started.
func (w *Worker) Run(ctx context.Context) error {
	interval := w.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	log.Info().
		Dur("poll_interval", interval).
		Int("batch_size", w.batchSize()).
		Int("max_attempts", w.maxAttempts()).
		Msg("inbound worker starting")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessOnce(ctx); err != nil {
			log.Warn().Err(err).Msg("inbound pass failed")
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("inbound worker shutting down")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce claims one batch of due updates and routes each of them,
// returning the number of updates handled. The error return covers only the
// claim query itself; per-update failures are recorded against their rows.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	claimed, err := repo.ClaimUpdates(ctx, w.DB, w.batchSize())
	if err != nil {
		return 0, err
	}

	for i := range claimed {
		upd := &claimed[i]
		lg := log.With().Int64("update_id", upd.UpdateID).Int("attempts", upd.Attempts).Logger()

		procErr := w.Router.Process(ctx, upd)
		switch {
		case procErr == nil:
			if err := repo.MarkUpdateProcessed(ctx, w.DB, upd.UpdateID); err != nil {
				lg.Error().Err(err).Msg("mark processed failed")
				continue
			}
			updatesProcessed.WithLabelValues("processed").Inc()

		case router.IsNonRetryable(procErr):
			lg.Warn().Err(procErr).Msg("update permanently failed")
			if err := repo.MarkUpdateDead(ctx, w.DB, upd.UpdateID, procErr.Error()); err != nil {
				lg.Error().Err(err).Msg("mark dead failed")
				continue
			}
			updatesProcessed.WithLabelValues("dead").Inc()

		case upd.Attempts+1 >= w.maxAttempts():
			lg.Warn().Err(procErr).Msg("update attempt budget exhausted")
			if err := repo.MarkUpdateDead(ctx, w.DB, upd.UpdateID, procErr.Error()); err != nil {
				lg.Error().Err(err).Msg("mark dead failed")
				continue
			}
			updatesProcessed.WithLabelValues("dead").Inc()

		default:
			lg.Warn().Err(procErr).Msg("update failed, will retry")
			if err := repo.MarkUpdateRetry(ctx, w.DB, upd.UpdateID, procErr.Error(), w.retryDelay()); err != nil {
				lg.Error().Err(err).Msg("mark retry failed")
				continue
			}
			updatesProcessed.WithLabelValues("retried").Inc()
		}
	}
	return len(claimed), nil
}
