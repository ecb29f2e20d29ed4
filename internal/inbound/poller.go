// Package inbound drains the durable inbound update queue.
// This file implements the pull-style transport: a long-poll loop that
// fetches update batches from the provider and enqueues each one. The
// enqueue boundary is idempotent, so overlapping fetches after a crash are
// harmless.
package inbound

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/venuedesk/go-venue-relay/internal/provider"
	"github.com/venuedesk/go-venue-relay/internal/repo"
)

// UpdateFetcher is the slice of the provider client the poller needs.
type UpdateFetcher interface {
	GetUpdates(ctx context.Context, offset int64, limit int, pollTimeout time.Duration) ([]provider.Update, error)
}

// Poller long-polls the provider update feed and feeds the inbound queue.
// The offset is recovered from storage on every fetch (max stored update id
// plus one), so the poller carries no state a restart could lose.
type Poller struct {
	DB      *gorm.DB
	Fetcher UpdateFetcher

	// BatchSize bounds one fetch. Zero means 100.
	BatchSize int
	// PollTimeout is the server-side long-poll wait. Zero means 25s.
	PollTimeout time.Duration
	// IdleDelay is the pause after an empty or failed fetch. Zero means 2s.
	IdleDelay time.Duration
}

// Run fetches and enqueues until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	batch := p.BatchSize
	if batch <= 0 {
		batch = 100
	}
	pollTimeout := p.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 25 * time.Second
	}
	idle := p.IdleDelay
	if idle <= 0 {
		idle = 2 * time.Second
	}

	log.Info().
		Int("batch_size", batch).
		Dur("poll_timeout", pollTimeout).
		Msg("update poller starting")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("update poller shutting down")
			return ctx.Err()
		default:
		}

		n, err := p.FetchOnce(ctx, batch, pollTimeout)
		if err != nil {
			log.Warn().Err(err).Msg("update fetch failed")
		}
		if n == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idle):
			}
		}
	}
}

// FetchOnce performs one long-poll fetch and enqueues every returned update,
// returning the number of updates newly stored.
func (p *Poller) FetchOnce(ctx context.Context, batch int, pollTimeout time.Duration) (int, error) {
	maxID, err := repo.MaxUpdateID(ctx, p.DB)
	if err != nil {
		return 0, err
	}

	updates, err := p.Fetcher.GetUpdates(ctx, maxID+1, batch, pollTimeout)
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, u := range updates {
		inserted, err := repo.EnqueueUpdate(ctx, p.DB, u.UpdateID, string(u.Raw))
		if err != nil {
			return stored, err
		}
		if inserted {
			stored++
			MarkEnqueued("poll")
		}
	}
	return stored, nil
}
