// Package domain defines the core persistence models for the relay.
// This file holds the idempotency claim model backing the at-most-once
// guarantees of the inbound router and the notification guard.
package domain

import "time"

// IdempotencyClaim is a uniqueness-constrained row used as an atomic
// first-writer-wins gate. Whichever caller inserts the key first owns the
// right to perform the guarded side effect; everyone else observes a
// uniqueness violation and must skip it.
//
// Claims are never updated. They may be pruned by age once the window in
// which a duplicate trigger can realistically arrive has passed.
type IdempotencyClaim struct {
	Key       string    `gorm:"type:varchar(255) NOT NULL;primaryKey"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (IdempotencyClaim) TableName() string { return "idempotency_claims" }
