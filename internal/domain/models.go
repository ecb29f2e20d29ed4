// Package domain defines the core persistence models for the relay: the
// durable inbound update queue, the outbound message outbox, per-chat dialog
// state, and the minimal venue-ordering entities needed to describe
// notification payloads. These types are mapped with GORM and are shared
// across the repository, worker, and service layers.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Inbound update statuses. An update is NEW on receipt, PROCESSING while a
// worker holds the claim, PROCESSED on success, and DEAD once the attempt
// budget is exhausted. Updates are never deleted; DEAD rows remain for audit
// and operational replay.
const (
	UpdateStatusNew        = "NEW"
	UpdateStatusProcessing = "PROCESSING"
	UpdateStatusProcessed  = "PROCESSED"
	UpdateStatusDead       = "DEAD"
)

// Outbox message statuses. A row is NEW until delivered (SENT) or terminally
// rejected / out of attempts (FAILED). SENT and FAILED never regress.
const (
	OutboxStatusNew    = "NEW"
	OutboxStatusSent   = "SENT"
	OutboxStatusFailed = "FAILED"
)

// InboundUpdate is one raw event received from the messaging provider,
// persisted before any processing begins. The primary key is the
// provider-assigned update identifier, which makes duplicate deliveries a
// storage-level no-op.
//
// Fields:
//   - UpdateID: provider-assigned, globally unique, monotonically increasing.
//   - RawPayload: the opaque serialized event exactly as received.
//   - Status: NEW | PROCESSING | PROCESSED | DEAD.
//   - Attempts: number of processing attempts so far.
//   - LastError: most recent handler error, nil when none.
//   - ReceivedAt: receipt timestamp, written once and never modified.
//   - NextAttemptAt: earliest time the update is eligible for (re)processing.
//   - ProcessedAt: completion timestamp.
type InboundUpdate struct {
	UpdateID      int64      `json:"update_id"       gorm:"primaryKey;autoIncrement:false"`
	RawPayload    string     `json:"raw_payload"     gorm:"type:text;not null"`
	Status        string     `json:"status"          gorm:"type:varchar(16);not null;default:'NEW';index:idx_updates_status_due,priority:1"`
	Attempts      int        `json:"attempts"        gorm:"not null;default:0"`
	LastError     *string    `json:"last_error,omitempty" gorm:"type:text"`
	ReceivedAt    time.Time  `json:"received_at"     gorm:"not null"`
	NextAttemptAt time.Time  `json:"next_attempt_at" gorm:"not null;index:idx_updates_status_due,priority:2"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

// TableName returns the database table name for InboundUpdate.
func (InboundUpdate) TableName() string { return "inbound_updates" }

// OutboxMessage is one intended outbound provider call, persisted before any
// network I/O. Producers insert rows (ideally in the same transaction as the
// business mutation that justifies them); only the outbox worker mutates them
// afterwards.
//
// Fields:
//   - ID: store-assigned surrogate key (UUID).
//   - ChatID: destination chat.
//   - Method: logical provider operation (e.g. "sendMessage").
//   - Payload: serialized request body.
//   - Status: NEW | SENT | FAILED.
//   - Attempts: delivery attempts so far.
//   - NextAttemptAt: rows scheduled in the future are not eligible for dispatch.
//   - LastError: most recent delivery error, nil when none.
//   - CreatedAt / SentAt: enqueue and delivery timestamps.
type OutboxMessage struct {
	ID            string     `json:"id"              gorm:"type:char(36);primaryKey"`
	ChatID        int64      `json:"chat_id"         gorm:"not null;index"`
	Method        string     `json:"method"          gorm:"type:varchar(64);not null"`
	Payload       string     `json:"payload"         gorm:"type:text;not null"`
	Status        string     `json:"status"          gorm:"type:varchar(16);not null;default:'NEW';index:idx_outbox_status_due,priority:1"`
	Attempts      int        `json:"attempts"        gorm:"not null;default:0"`
	NextAttemptAt time.Time  `json:"next_attempt_at" gorm:"not null;index:idx_outbox_status_due,priority:2"`
	LastError     *string    `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt     time.Time  `json:"created_at"      gorm:"not null"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

// TableName returns the database table name for OutboxMessage.
func (OutboxMessage) TableName() string { return "outbox_messages" }

// DialogState is the persisted per-chat dialog record. Any worker replica
// reads and writes the same row, so dialog position survives restarts and is
// shared across instances. The Version column supports optimistic
// read-modify-write.
type DialogState struct {
	ChatID    int64     `json:"chat_id"   gorm:"primaryKey;autoIncrement:false"`
	State     string    `json:"state"     gorm:"type:varchar(32);not null;default:'idle'"`
	Data      string    `json:"data"      gorm:"type:text;not null;default:'{}'"`
	Version   int64     `json:"version"   gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for DialogState.
func (DialogState) TableName() string { return "dialog_states" }

// StaffChat registers a venue staff chat as an interested recipient of
// order-batch notifications for a venue.
type StaffChat struct {
	ID        string         `json:"id"       gorm:"type:char(36);primaryKey"`
	VenueID   string         `json:"venue_id" gorm:"type:varchar(64);not null;index;uniqueIndex:ux_staff_venue_chat,priority:1"`
	ChatID    int64          `json:"chat_id"  gorm:"not null;uniqueIndex:ux_staff_venue_chat,priority:2"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-"        gorm:"index"`
}

// TableName returns the database table name for StaffChat.
func (StaffChat) TableName() string { return "staff_chats" }

// Order is the minimal guest order entity backing the notification producer.
// Each committed order forms one "order batch" business event whose numeric
// sequence is used as the notification claim event id.
type Order struct {
	ID         string    `json:"id"         gorm:"type:char(36);primaryKey"`
	BatchSeq   int64     `json:"batch_seq"  gorm:"not null;uniqueIndex"`
	VenueID    string    `json:"venue_id"   gorm:"type:varchar(64);not null;index"`
	GuestChat  int64     `json:"guest_chat" gorm:"not null"`
	TableLabel string    `json:"table"      gorm:"type:varchar(32);not null"`
	CreatedAt  time.Time `json:"created_at"`

	Items []OrderItem `json:"items" gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// OrderItem is one line of a guest order.
type OrderItem struct {
	ID       string `json:"id"       gorm:"type:char(36);primaryKey"`
	OrderID  string `json:"order_id" gorm:"type:char(36);not null;index"`
	Name     string `json:"name"     gorm:"type:varchar(255);not null"`
	Quantity int    `json:"quantity" gorm:"not null;default:1"`
}

// TableName returns the database table name for OrderItem.
func (OrderItem) TableName() string { return "order_items" }
