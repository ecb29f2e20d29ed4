// Package notify implements business-event notifications.
// This file provides the staff-chat fan-out used by order producers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/venuedesk/go-venue-relay/internal/domain"
	"github.com/venuedesk/go-venue-relay/internal/repo"
)

// MethodSendMessage is the logical provider operation for a plain text send.
const MethodSendMessage = "sendMessage"

// sendMessagePayload is the serialized request body for MethodSendMessage.
type sendMessagePayload struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// EnqueueText serializes a plain text send for chatID into the outbox. Pass
// the transaction handle when the send must commit atomically with the
// business mutation that triggered it.
func EnqueueText(ctx context.Context, db *gorm.DB, chatID int64, text string) (*domain.OutboxMessage, error) {
	body, err := json.Marshal(sendMessagePayload{ChatID: chatID, Text: text})
	if err != nil {
		return nil, err
	}
	return repo.EnqueueOutbox(ctx, db, chatID, MethodSendMessage, string(body))
}

// NotifyOrderBatch fans the "new order batch" event for order out to every
// staff chat of the order's venue. Each (batch, chat) pair is gated by
// TryClaim, so concurrent triggers of the same batch produce exactly one
// outbox row per chat. The claim and the enqueue share db, so run inside the
// order's transaction they commit or roll back together.
//
// It returns the number of chats actually enqueued.
func NotifyOrderBatch(ctx context.Context, db *gorm.DB, order *domain.Order) (int, error) {
	staff, err := repo.ListStaffChats(ctx, db, order.VenueID)
	if err != nil {
		return 0, err
	}

	text := orderBatchText(order)
	enqueued := 0
	for _, s := range staff {
		outcome, err := TryClaim(ctx, db, order.BatchSeq, s.ChatID)
		if err != nil {
			return enqueued, err
		}
		if outcome == Already {
			log.Debug().
				Int64("batch_seq", order.BatchSeq).
				Int64("chat_id", s.ChatID).
				Msg("order batch already notified")
			continue
		}
		if _, err := EnqueueText(ctx, db, s.ChatID, text); err != nil {
			return enqueued, err
		}
		enqueued++
	}
	return enqueued, nil
}

// orderBatchText renders the staff-facing notification body.
func orderBatchText(order *domain.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New order #%d, table %s\n", order.BatchSeq, order.TableLabel)
	for _, it := range order.Items {
		fmt.Fprintf(&b, "%d× %s\n", it.Quantity, it.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}
