// Package router decodes inbound provider updates into chat interactions and
// executes them. It is the inbound worker's sole collaborator.
//
// The contract with the worker is a plain error with a typed classification:
// nil means the update is fully handled (including "handled before", which is
// deliberately indistinguishable); an error wrapped with ErrNonRetryable
// means the update can never succeed and must go DEAD immediately; any other
// error is transient and the worker retries it.
//
// Every externally visible side effect is gated by an idempotency claim
// derived from the update id, taken inside the same transaction as the
// effects themselves. Re-delivery of an already-claimed update is a no-op.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/venuedesk/go-venue-relay/internal/domain"
)

// ErrNonRetryable marks a processing failure that will never succeed no
// matter how often it is retried (malformed payload, unroutable chat).
// Wrap with NonRetryable and test with IsNonRetryable.
var ErrNonRetryable = errors.New("non-retryable")

// NonRetryable wraps err so that IsNonRetryable reports true for it.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrNonRetryable, err)
}

// IsNonRetryable reports whether err is classified as permanently failed.
func IsNonRetryable(err error) bool {
	return errors.Is(err, ErrNonRetryable)
}

// Router handles one claimed inbound update. Implementations must be safe
// for concurrent use and must honor the provided context.
type Router interface {
	// Process handles upd to completion. See the package documentation for
	// the error contract.
	Process(ctx context.Context, upd *domain.InboundUpdate) error
}
