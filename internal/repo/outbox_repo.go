// Package repo implements the data persistence layer for the relay, backed
// by GORM. This file provides the outbound message outbox.
//
// Producers insert rows (ideally inside the transaction that performs the
// triggering business mutation); the outbox worker owns every mutation after
// that. SENT and FAILED are terminal: every transition is a conditional
// UPDATE guarded on the current status, so a terminal row can never regress
// and no row can be dispatched twice concurrently.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/venuedesk/go-venue-relay/internal/domain"
)

// EnqueueOutbox inserts a NEW outbox row due immediately and returns it.
// Pass the transaction handle when the notification must commit atomically
// with the business change that justifies it.
func EnqueueOutbox(ctx context.Context, db *gorm.DB, chatID int64, method, payload string) (*domain.OutboxMessage, error) {
	now := time.Now().UTC()
	rec := &domain.OutboxMessage{
		ID:            uuid.NewString(),
		ChatID:        chatID,
		Method:        method,
		Payload:       payload,
		Status:        domain.OutboxStatusNew,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// ClaimDueOutbox returns up to limit NEW rows whose next_attempt_at has
// passed, oldest first, with each row's schedule pushed forward by holdFor so
// that a concurrent pass (or a crashed worker's successor) does not pick the
// same row up again while it is in flight.
//
// The push is a conditional UPDATE per row; rows lost to a faster claimant
// are skipped. A row whose dispatch outcome is never reconciled (process
// crash mid-flight) simply becomes due again after holdFor.
func ClaimDueOutbox(ctx context.Context, db *gorm.DB, limit int, holdFor time.Duration) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	now := time.Now().UTC()

	var candidates []domain.OutboxMessage
	err := db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", domain.OutboxStatusNew, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	hold := now.Add(holdFor)
	claimed := candidates[:0]
	for i := range candidates {
		res := db.WithContext(ctx).
			Model(&domain.OutboxMessage{}).
			Where("id = ? AND status = ? AND next_attempt_at <= ?",
				candidates[i].ID, domain.OutboxStatusNew, now).
			Update("next_attempt_at", hold)
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected == 0 {
			continue // lost the race, another claimant owns it
		}
		candidates[i].NextAttemptAt = hold
		claimed = append(claimed, candidates[i])
	}
	return claimed, nil
}

// MarkOutboxSent finalizes a delivered row. Conditional on the row still
// being NEW; once SENT, no later pass can touch it again.
func MarkOutboxSent(ctx context.Context, db *gorm.DB, id string) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.OutboxMessage{}).
		Where("id = ? AND status = ?", id, domain.OutboxStatusNew).
		Updates(map[string]interface{}{
			"status":  domain.OutboxStatusSent,
			"sent_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RescheduleOutbox records a retryable failure: the row stays NEW, its
// attempt counter advances, and it becomes eligible again at nextAttemptAt
// (either the provider's stated retry-after or the local backoff value).
func RescheduleOutbox(ctx context.Context, db *gorm.DB, id string, nextAttemptAt time.Time, sendErr string) error {
	res := db.WithContext(ctx).
		Model(&domain.OutboxMessage{}).
		Where("id = ? AND status = ?", id, domain.OutboxStatusNew).
		Updates(map[string]interface{}{
			"attempts":        gorm.Expr("attempts + 1"),
			"next_attempt_at": nextAttemptAt.UTC(),
			"last_error":      sendErr,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkOutboxFailed retires a row after a permanent rejection or attempt
// exhaustion. Terminal; conditional on the row still being NEW.
func MarkOutboxFailed(ctx context.Context, db *gorm.DB, id string, sendErr string) error {
	res := db.WithContext(ctx).
		Model(&domain.OutboxMessage{}).
		Where("id = ? AND status = ?", id, domain.OutboxStatusNew).
		Updates(map[string]interface{}{
			"status":     domain.OutboxStatusFailed,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": sendErr,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplayOutbox returns a FAILED row to NEW with a fresh attempt budget, due
// immediately. Only terminal FAILED rows can be replayed.
func ReplayOutbox(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.OutboxMessage{}).
		Where("id = ? AND status = ?", id, domain.OutboxStatusFailed).
		Updates(map[string]interface{}{
			"status":          domain.OutboxStatusNew,
			"attempts":        0,
			"last_error":      nil,
			"next_attempt_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOutbox fetches a single outbox row by id, or ErrNotFound.
func GetOutbox(ctx context.Context, db *gorm.DB, id string) (*domain.OutboxMessage, error) {
	var rec domain.OutboxMessage
	err := db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListOutboxByStatus returns a page of outbox rows in the given status,
// oldest first. Used by the ops surface.
func ListOutboxByStatus(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.OutboxMessage, error) {
	var out []domain.OutboxMessage
	err := db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountOutboxForChat returns the number of outbox rows targeting chatID,
// optionally filtered by status ("" means all).
func CountOutboxForChat(ctx context.Context, db *gorm.DB, chatID int64, status string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.OutboxMessage{}).Where("chat_id = ?", chatID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// OutboxStats returns the number of outbox rows per status.
func OutboxStats(ctx context.Context, db *gorm.DB) (map[string]int64, error) {
	return statusCounts(ctx, db.Model(&domain.OutboxMessage{}))
}

// statusCounts groups an already-scoped model query by status.
func statusCounts(ctx context.Context, q *gorm.DB) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	if err := q.WithContext(ctx).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
