// Package notify implements business-event notifications: the claim guard
// that makes a given chat hear about a given event exactly once, and the
// batch notifier that fans an event out to every interested staff chat
// through the outbox.
package notify

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/venuedesk/go-venue-relay/internal/repo"
)

// ClaimOutcome is the result of a notification claim attempt.
type ClaimOutcome int

const (
	// Claimed means the caller won the claim and must enqueue the
	// notification.
	Claimed ClaimOutcome = iota
	// Already means another caller owns this (event, chat) pair and the
	// notification must not be enqueued again.
	Already
)

// String implements fmt.Stringer for log output.
func (o ClaimOutcome) String() string {
	if o == Claimed {
		return "claimed"
	}
	return "already"
}

// claimKey derives the idempotency key for an (event, chat) pair.
func claimKey(eventID, chatID int64) string {
	return fmt.Sprintf("notify:%d:%d", eventID, chatID)
}

// TryClaim atomically decides whether the caller should notify chatID about
// eventID. Exactly one of any number of concurrent callers for the same pair
// receives Claimed; the rest receive Already.
//
// Storage errors are propagated and must be treated as a hard failure —
// never as Already.
func TryClaim(ctx context.Context, db *gorm.DB, eventID, chatID int64) (ClaimOutcome, error) {
	ok, err := repo.TryAcquireClaim(ctx, db, claimKey(eventID, chatID))
	if err != nil {
		return Already, err
	}
	if !ok {
		return Already, nil
	}
	return Claimed, nil
}
