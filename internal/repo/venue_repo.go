// Package repo implements the data persistence layer for the relay, backed
// by GORM. This file provides staff chat registration and the minimal order
// persistence used by the notification producer.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/venuedesk/go-venue-relay/internal/domain"
)

// RegisterStaffChat records chatID as an order-notification recipient for
// venueID. Registering the same pair twice returns ErrDuplicate.
func RegisterStaffChat(ctx context.Context, db *gorm.DB, venueID string, chatID int64) (*domain.StaffChat, error) {
	rec := &domain.StaffChat{
		ID:        uuid.NewString(),
		VenueID:   venueID,
		ChatID:    chatID,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// ListStaffChats returns every staff chat registered for venueID, oldest
// registration first.
func ListStaffChats(ctx context.Context, db *gorm.DB, venueID string) ([]domain.StaffChat, error) {
	var out []domain.StaffChat
	err := db.WithContext(ctx).
		Where("venue_id = ?", venueID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// CreateOrder inserts an order and its items. Call it with a transaction
// handle: the batch sequence is read-then-write and the order must commit
// atomically with the notifications it triggers.
func CreateOrder(ctx context.Context, db *gorm.DB, venueID string, guestChat int64, tableLabel string, items []domain.OrderItem) (*domain.Order, error) {
	// Next value of the venue-wide batch counter. SQLite serializes writers,
	// so inside a write transaction this cannot collide.
	var lastSeq int64
	if err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Select("COALESCE(MAX(batch_seq), 0)").
		Scan(&lastSeq).Error; err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:         uuid.NewString(),
		BatchSeq:   lastSeq + 1,
		VenueID:    venueID,
		GuestChat:  guestChat,
		TableLabel: tableLabel,
		CreatedAt:  time.Now().UTC(),
	}
	for i := range items {
		items[i].ID = uuid.NewString()
		items[i].OrderID = order.ID
		if items[i].Quantity <= 0 {
			items[i].Quantity = 1
		}
	}
	order.Items = items
	if err := db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}
