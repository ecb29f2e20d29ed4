// Package repo implements the data persistence layer for the relay, backed
// by GORM. This file provides the idempotency claim store used to guarantee
// at-most-once execution of guarded side effects.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/venuedesk/go-venue-relay/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the worker and handler layers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a row with the same unique key already exists.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation reports whether err is a unique-constraint violation.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations, so
// the gorm sentinel check is backed by error-string sniffing.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// TryAcquireClaim attempts to insert key into the idempotency claim table.
//
// It returns true when the insert succeeded: the caller is first and must
// perform the guarded side effect. It returns false when a claim with that
// key already exists: the side effect has been (or is being) handled and the
// caller must skip it but still acknowledge success upstream.
//
// Any other storage error is propagated. Callers must treat such an error as
// a hard failure and retry the whole operation later; assuming "not claimed"
// on an unreachable store would break the at-most-once guarantee.
func TryAcquireClaim(ctx context.Context, db *gorm.DB, key string) (bool, error) {
	rec := &domain.IdempotencyClaim{
		Key:       key,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// HasClaim reports whether a claim with key exists. Used by tests and the
// ops surface; the workers rely solely on TryAcquireClaim.
func HasClaim(ctx context.Context, db *gorm.DB, key string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.IdempotencyClaim{}).
		Where("key = ?", key).
		Count(&n).Error
	return n > 0, err
}

// PruneClaims deletes claims created before the cutoff and returns the number
// of rows removed. Claims only need to outlive the window in which the
// provider can redeliver the triggering event.
func PruneClaims(ctx context.Context, db *gorm.DB, before time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&domain.IdempotencyClaim{})
	return res.RowsAffected, res.Error
}
