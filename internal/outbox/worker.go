// Package outbox delivers persisted outbound messages to the provider.
//
// The worker is a polling loop over the outbox table. Each pass claims a
// bounded batch of due NEW rows (claiming pushes the row's schedule forward
// atomically, so no row is ever dispatched twice concurrently), fans them
// out to a bounded number of dispatch goroutines, gates every provider call
// through the local rate limiter, and reconciles each outcome:
//
//   - success: SENT, terminal
//   - provider throttling: stays NEW, rescheduled at now + retry-after
//     (the provider's instruction takes precedence over local backoff)
//   - other retryable failure: stays NEW, rescheduled by exponential backoff
//   - permanent rejection or attempt exhaustion: FAILED, terminal
package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/venuedesk/go-venue-relay/internal/domain"
	"github.com/venuedesk/go-venue-relay/internal/provider"
	"github.com/venuedesk/go-venue-relay/internal/repo"
)

// Worker drains the outbox against the provider API.
type Worker struct {
	DB     *gorm.DB
	Client provider.Client

	// Limiter is the local admission gate for outbound calls. A nil
	// limiter means no local throttle (tests).
	Limiter *rate.Limiter

	// BatchSize bounds how many rows one pass may claim. Zero means 50.
	BatchSize int
	// Concurrency bounds in-flight dispatches within a pass. Zero means 4.
	Concurrency int
	// MaxAttempts is the delivery budget before a row goes FAILED.
	// Zero means 8.
	MaxAttempts int
	// ClaimHold is how far a claimed row's schedule is pushed while its
	// dispatch is in flight. Must exceed the provider call timeout so a
	// crashed worker's rows simply become due again. Zero means 2m.
	ClaimHold time.Duration
	// PollInterval is the pause between passes. Zero means 1s.
	PollInterval time.Duration
	// Backoff is the retry scheduling policy.
	Backoff Backoff
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 50
	}
	return w.BatchSize
}

func (w *Worker) concurrency() int {
	if w.Concurrency <= 0 {
		return 4
	}
	return w.Concurrency
}

func (w *Worker) maxAttempts() int {
	if w.MaxAttempts <= 0 {
		return 8
	}
	return w.MaxAttempts
}

func (w *Worker) claimHold() time.Duration {
	if w.ClaimHold <= 0 {
		return 2 * time.Minute
	}
	return w.ClaimHold
}

// Run schedules ProcessOnce until ctx is done. In-flight dispatches finish
// naturally on shutdown; their rows are reconciled before the pass returns.
func (w *Worker) Run(ctx context.Context) error {
	interval := w.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	log.Info().
		Dur("poll_interval", interval).
		Int("batch_size", w.batchSize()).
		Int("concurrency", w.concurrency()).
		Int("max_attempts", w.maxAttempts()).
		Msg("outbox worker starting")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessOnce(ctx); err != nil {
			log.Warn().Err(err).Msg("outbox pass failed")
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox worker shutting down")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce claims one batch of due rows and dispatches them with bounded
// concurrency, returning the number of rows attempted. The error return
// covers only the claim query; per-row outcomes are recorded on their rows.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	claimed, err := repo.ClaimDueOutbox(ctx, w.DB, w.batchSize(), w.claimHold())
	if err != nil {
		return 0, err
	}
	if len(claimed) == 0 {
		return 0, nil
	}

	sem := make(chan struct{}, w.concurrency())
	var wg sync.WaitGroup
	for i := range claimed {
		msg := claimed[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			w.dispatch(ctx, &msg)
		}()
	}
	wg.Wait()
	return len(claimed), nil
}

// dispatch sends one claimed row and reconciles its state.
func (w *Worker) dispatch(ctx context.Context, msg *domain.OutboxMessage) {
	lg := log.With().
		Str("outbox_id", msg.ID).
		Int64("chat_id", msg.ChatID).
		Str("method", msg.Method).
		Int("attempts", msg.Attempts).
		Logger()

	if w.Limiter != nil {
		waitStart := time.Now()
		if err := w.Limiter.Wait(ctx); err != nil {
			// Shutdown while queued for admission: leave the row claimed,
			// it becomes due again after the hold expires.
			lg.Debug().Err(err).Msg("rate admission aborted")
			return
		}
		rateWait.Observe(time.Since(waitStart).Seconds())
	}

	res, err := w.Client.Call(ctx, msg.Method, msg.Payload)
	if err != nil {
		// Transport failure: retryable infrastructure error.
		w.reschedule(ctx, lg, msg, err.Error(), time.Now().UTC().Add(w.Backoff.Next(msg.Attempts)))
		return
	}

	switch {
	case res.OK:
		if err := repo.MarkOutboxSent(ctx, w.DB, msg.ID); err != nil {
			lg.Error().Err(err).Msg("mark sent failed")
			return
		}
		sendsTotal.WithLabelValues("sent").Inc()

	case res.RetryAfter > 0:
		// The provider told us exactly when to come back.
		lg.Info().Dur("retry_after", res.RetryAfter).Msg("provider throttled send")
		next := time.Now().UTC().Add(res.RetryAfter)
		if msg.Attempts+1 >= w.maxAttempts() {
			w.fail(ctx, lg, msg, res.Description)
			return
		}
		if err := repo.RescheduleOutbox(ctx, w.DB, msg.ID, next, res.Description); err != nil {
			lg.Error().Err(err).Msg("reschedule failed")
			return
		}
		sendsTotal.WithLabelValues("throttled").Inc()

	case res.Retryable():
		w.reschedule(ctx, lg, msg, res.Description, time.Now().UTC().Add(w.Backoff.Next(msg.Attempts)))

	default:
		// Permanent rejection.
		lg.Warn().
			Int("error_code", res.ErrorCode).
			Str("description", res.Description).
			Msg("send permanently rejected")
		w.fail(ctx, lg, msg, res.Description)
	}
}

// reschedule applies the retryable-failure transition, escalating to FAILED
// when the attempt budget is exhausted.
func (w *Worker) reschedule(ctx context.Context, lg zerolog.Logger, msg *domain.OutboxMessage, sendErr string, next time.Time) {
	if msg.Attempts+1 >= w.maxAttempts() {
		w.fail(ctx, lg, msg, sendErr)
		return
	}
	lg.Warn().Str("error", sendErr).Time("next_attempt_at", next).Msg("send failed, will retry")
	if err := repo.RescheduleOutbox(ctx, w.DB, msg.ID, next, sendErr); err != nil {
		lg.Error().Err(err).Msg("reschedule failed")
		return
	}
	sendsTotal.WithLabelValues("retried").Inc()
}

// fail applies the terminal FAILED transition.
func (w *Worker) fail(ctx context.Context, lg zerolog.Logger, msg *domain.OutboxMessage, sendErr string) {
	if err := repo.MarkOutboxFailed(ctx, w.DB, msg.ID, sendErr); err != nil {
		lg.Error().Err(err).Msg("mark failed failed")
		return
	}
	sendsTotal.WithLabelValues("failed").Inc()
}
