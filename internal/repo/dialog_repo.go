// Package repo implements the data persistence layer for the relay, backed
// by GORM. This file provides the per-chat dialog state record.
//
// Dialog state is deliberately not in-memory: every worker replica must see
// the same position in a chat's conversation. Saves are optimistic — the
// UPDATE is conditional on the version the caller read, so two concurrent
// handlers racing on the same chat cannot silently overwrite each other.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/venuedesk/go-venue-relay/internal/domain"
)

// ErrStaleDialog indicates that the dialog row changed since it was read.
// The caller should re-read and re-apply its mutation.
var ErrStaleDialog = errors.New("dialog state is stale")

// GetDialogState loads the dialog record for chatID, creating an idle one on
// first contact. The create tolerates a concurrent first contact by falling
// back to a re-read on unique violation.
func GetDialogState(ctx context.Context, db *gorm.DB, chatID int64) (*domain.DialogState, error) {
	var rec domain.DialogState
	err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&rec).Error
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	rec = domain.DialogState{
		ChatID:    chatID,
		State:     "idle",
		Data:      "{}",
		UpdatedAt: time.Now().UTC(),
	}
	if cerr := db.WithContext(ctx).Create(&rec).Error; cerr != nil {
		if isUniqueViolation(cerr) {
			err = db.WithContext(ctx).Where("chat_id = ?", chatID).First(&rec).Error
			return &rec, err
		}
		return nil, cerr
	}
	return &rec, nil
}

// SaveDialogState persists a mutated dialog record. The write succeeds only
// when the stored version still matches the version the caller read;
// otherwise ErrStaleDialog is returned and the caller must retry.
func SaveDialogState(ctx context.Context, db *gorm.DB, rec *domain.DialogState) error {
	res := db.WithContext(ctx).
		Model(&domain.DialogState{}).
		Where("chat_id = ? AND version = ?", rec.ChatID, rec.Version).
		Updates(map[string]interface{}{
			"state":      rec.State,
			"data":       rec.Data,
			"version":    rec.Version + 1,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleDialog
	}
	rec.Version++
	return nil
}
