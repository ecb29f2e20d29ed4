// Package repo implements the data persistence layer for the relay, backed
// by GORM. This file provides the durable inbound update queue.
//
// The queue is append-only: rows are inserted once per provider update id and
// never deleted. All state transitions are expressed as single conditional
// UPDATEs so that concurrent workers (or a worker racing a crashed
// predecessor) can never double-claim a row.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/venuedesk/go-venue-relay/internal/domain"
)

// EnqueueUpdate persists one raw provider update. Duplicate deliveries of the
// same updateID are ignored without error (insert-or-ignore, never upsert):
// the first stored payload wins and the row count stays at one.
//
// It returns true when a new row was inserted, false when the update was
// already known.
func EnqueueUpdate(ctx context.Context, db *gorm.DB, updateID int64, rawPayload string) (bool, error) {
	now := time.Now().UTC()
	rec := &domain.InboundUpdate{
		UpdateID:      updateID,
		RawPayload:    rawPayload,
		Status:        domain.UpdateStatusNew,
		ReceivedAt:    now,
		NextAttemptAt: now,
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClaimUpdates atomically claims up to limit NEW updates that are due for
// processing and returns them already marked PROCESSING.
//
// A NEW row is due when its next_attempt_at has passed. The claim itself is a
// conditional UPDATE per row ("status = NEW"), so if another worker claims the
// same row first, this call simply skips it.
func ClaimUpdates(ctx context.Context, db *gorm.DB, limit int) ([]domain.InboundUpdate, error) {
	if limit <= 0 {
		limit = 50
	}
	now := time.Now().UTC()

	var candidates []domain.InboundUpdate
	err := db.WithContext(ctx).
		Where("status = ?", domain.UpdateStatusNew).
		Where("next_attempt_at <= ?", now).
		Order("update_id ASC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	claimed := candidates[:0]
	for i := range candidates {
		res := db.WithContext(ctx).
			Model(&domain.InboundUpdate{}).
			Where("update_id = ? AND status = ?", candidates[i].UpdateID, domain.UpdateStatusNew).
			Update("status", domain.UpdateStatusProcessing)
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected == 0 {
			continue // lost the race, another claimant owns it
		}
		candidates[i].Status = domain.UpdateStatusProcessing
		claimed = append(claimed, candidates[i])
	}
	return claimed, nil
}

// MarkUpdateProcessed finalizes a successfully handled update. The transition
// is conditional on the row still being PROCESSING; a zero row count means the
// claim was lost and is reported as ErrNotFound.
func MarkUpdateProcessed(ctx context.Context, db *gorm.DB, updateID int64) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.InboundUpdate{}).
		Where("update_id = ? AND status = ?", updateID, domain.UpdateStatusProcessing).
		Updates(map[string]interface{}{
			"status":       domain.UpdateStatusProcessed,
			"processed_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkUpdateRetry records a failed attempt and returns the row to NEW with
// next_attempt_at pushed retryDelay into the future, so ClaimUpdates holds it
// back until then. ReceivedAt is the audit receipt timestamp and is never
// touched.
func MarkUpdateRetry(ctx context.Context, db *gorm.DB, updateID int64, handlerErr string, retryDelay time.Duration) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.InboundUpdate{}).
		Where("update_id = ? AND status = ?", updateID, domain.UpdateStatusProcessing).
		Updates(map[string]interface{}{
			"status":          domain.UpdateStatusNew,
			"attempts":        gorm.Expr("attempts + 1"),
			"last_error":      handlerErr,
			"next_attempt_at": now.Add(retryDelay),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkUpdateDead retires an update whose attempt budget is exhausted or whose
// handler reported a non-retryable failure. The row is kept for audit and
// manual replay.
func MarkUpdateDead(ctx context.Context, db *gorm.DB, updateID int64, handlerErr string) error {
	res := db.WithContext(ctx).
		Model(&domain.InboundUpdate{}).
		Where("update_id = ? AND status = ?", updateID, domain.UpdateStatusProcessing).
		Updates(map[string]interface{}{
			"status":     domain.UpdateStatusDead,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": handlerErr,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplayUpdate returns a DEAD update to NEW with a fresh attempt budget.
// Only terminal rows can be replayed; anything else reports ErrNotFound.
func ReplayUpdate(ctx context.Context, db *gorm.DB, updateID int64) error {
	res := db.WithContext(ctx).
		Model(&domain.InboundUpdate{}).
		Where("update_id = ? AND status = ?", updateID, domain.UpdateStatusDead).
		Updates(map[string]interface{}{
			"status":          domain.UpdateStatusNew,
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

// MaxUpdateID returns the highest stored provider update id, or 0 when the
// queue is empty. The long-poll transport resumes from MaxUpdateID+1.
func MaxUpdateID(ctx context.Context, db *gorm.DB) (int64, error) {
	var row struct {
		UpdateID int64
	}
	err := db.WithContext(ctx).
		Model(&domain.InboundUpdate{}).
		Select("update_id").
		Order("update_id DESC").
		Limit(1).
		Scan(&row).Error
	return row.UpdateID, err
}

// ListUpdatesByStatus returns a page of updates in the given status, oldest
// first. Used by the ops surface.
func ListUpdatesByStatus(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.InboundUpdate, error) {
	var out []domain.InboundUpdate
	err := db.WithContext(ctx).
		Where("status = ?", status).
		Order("update_id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// InboundStats returns the number of queue rows per status.
func InboundStats(ctx context.Context, db *gorm.DB) (map[string]int64, error) {
	return statusCounts(ctx, db.Model(&domain.InboundUpdate{}))
}
