// Package router decodes inbound provider updates into chat interactions.
// This file implements DialogRouter, the command and dialog-state handler
// for guest ordering chats.
//
// Supported interactions:
//   - /start <venue>  binds the chat to a venue and greets the guest
//   - /order          opens an order; the next free-text message lists items
//   - free text       while ordering: one item per line, optional "2x " count
//   - /status         reports queued/sent notification counts for the chat
//   - /cancel         abandons the open order
//
// Dialog position lives in the persisted per-chat DialogState record, so any
// worker replica continues the conversation where the last one left off.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/venuedesk/go-venue-relay/internal/domain"
	"github.com/venuedesk/go-venue-relay/internal/notify"
	"github.com/venuedesk/go-venue-relay/internal/repo"
)

// Dialog states.
const (
	stateIdle     = "idle"
	stateOrdering = "ordering"
)

// dialogData is the JSON document stored in DialogState.Data.
type dialogData struct {
	VenueID    string `json:"venue_id,omitempty"`
	TableLabel string `json:"table,omitempty"`
}

// inboundEvent is the subset of the raw provider payload the router
// interprets. Everything else in the payload is ignored.
type inboundEvent struct {
	Message *struct {
		Chat *struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// DialogRouter routes decoded updates through the per-chat dialog machine.
type DialogRouter struct {
	DB *gorm.DB

	// MaxItemsPerOrder caps the number of lines accepted in one order.
	// Zero means 20.
	MaxItemsPerOrder int
}

// NewDialogRouter constructs a DialogRouter bound to db.
func NewDialogRouter(db *gorm.DB) *DialogRouter {
	return &DialogRouter{
		DB:               db,
		MaxItemsPerOrder: 20,
	}
}

// Process implements Router. It decodes upd, takes the per-update
// idempotency claim, and runs the dialog transition plus all of its outbox
// enqueues in a single transaction.
func (r *DialogRouter) Process(ctx context.Context, upd *domain.InboundUpdate) error {
	tr := otel.Tracer("router/DialogRouter")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithAttributes(attribute.Int64("update.id", upd.UpdateID)),
	)
	defer span.End()

	// Decode before claiming: a payload that cannot be interpreted will
	// never succeed, and discovering that must not consume the claim.
	var ev inboundEvent
	if err := json.Unmarshal([]byte(upd.RawPayload), &ev); err != nil {
		return NonRetryable(fmt.Errorf("decode update %d: %w", upd.UpdateID, err))
	}
	if ev.Message == nil || ev.Message.Chat == nil || ev.Message.Chat.ID == 0 {
		return NonRetryable(fmt.Errorf("update %d has no routable chat", upd.UpdateID))
	}
	chatID := ev.Message.Chat.ID
	text := strings.TrimSpace(ev.Message.Text)

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// At-most-once gate. Losing the claim means a previous delivery of
		// this update already ran (or is running) the side effects; ack.
		won, err := repo.TryAcquireClaim(ctx, tx, updateClaimKey(upd.UpdateID))
		if err != nil {
			return err
		}
		if !won {
			log.Debug().Int64("update_id", upd.UpdateID).Msg("update already claimed")
			return nil
		}

		state, err := repo.GetDialogState(ctx, tx, chatID)
		if err != nil {
			return err
		}
		var data dialogData
		if err := json.Unmarshal([]byte(state.Data), &data); err != nil {
			data = dialogData{} // unreadable state is reset, not fatal
		}

		reply, err := r.step(ctx, tx, chatID, text, state, &data)
		if err != nil {
			return err
		}

		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		state.Data = string(raw)
		if err := repo.SaveDialogState(ctx, tx, state); err != nil {
			return err
		}

		if reply != "" {
			if _, err := notify.EnqueueText(ctx, tx, chatID, reply); err != nil {
				return err
			}
		}
		return nil
	})
}

// step applies one dialog transition and returns the guest-facing reply.
func (r *DialogRouter) step(ctx context.Context, tx *gorm.DB, chatID int64, text string, state *domain.DialogState, data *dialogData) (string, error) {
	cmd, arg := splitCommand(text)

	switch {
	case cmd == "/start":
		venueID := strings.TrimSpace(arg)
		if venueID == "" {
			return "Welcome! Scan the venue code again or send /start <venue>.", nil
		}
		data.VenueID = venueID
		state.State = stateIdle
		return fmt.Sprintf("Welcome to %s! Send /order to start an order.", venueID), nil

	case cmd == "/order":
		if data.VenueID == "" {
			return "This chat is not linked to a venue yet. Send /start <venue> first.", nil
		}
		state.State = stateOrdering
		return "What would you like? One item per line, e.g.\n2x Flat White\nCroissant", nil

	case cmd == "/cancel":
		state.State = stateIdle
		return "Order cancelled.", nil

	case cmd == "/status":
		queued, err := repo.CountOutboxForChat(ctx, tx, chatID, domain.OutboxStatusNew)
		if err != nil {
			return "", err
		}
		sent, err := repo.CountOutboxForChat(ctx, tx, chatID, domain.OutboxStatusSent)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Messages for this chat: %d queued, %d delivered.", queued, sent), nil

	case strings.HasPrefix(cmd, "/"):
		return "I don't know that command. Try /order, /status or /cancel.", nil

	case state.State == stateOrdering:
		items := r.parseItems(text)
		if len(items) == 0 {
			return "Couldn't read any items. One item per line, e.g. \"2x Flat White\".", nil
		}
		order, err := repo.CreateOrder(ctx, tx, data.VenueID, chatID, data.TableLabel, items)
		if err != nil {
			return "", err
		}
		if _, err := notify.NotifyOrderBatch(ctx, tx, order); err != nil {
			return "", err
		}
		state.State = stateIdle
		return fmt.Sprintf("Order #%d placed with %d item(s). The staff has been notified.", order.BatchSeq, len(order.Items)), nil

	default:
		return "Send /order to start an order, or /status to check your messages.", nil
	}
}

// parseItems turns free text into order items. Each non-empty line is one
// item, with an optional leading count ("2x Flat White", "2 Flat White").
func (r *DialogRouter) parseItems(text string) []domain.OrderItem {
	max := r.MaxItemsPerOrder
	if max <= 0 {
		max = 20
	}
	// A cases.Caser is stateful, so build one per call rather than sharing
	// it across concurrent Process invocations.
	titler := cases.Title(language.English)
	var items []domain.OrderItem
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		qty := 1
		fields := strings.Fields(line)
		if len(fields) > 1 {
			head := strings.TrimSuffix(strings.ToLower(fields[0]), "x")
			if n, err := strconv.Atoi(head); err == nil && n > 0 {
				qty = n
				line = strings.Join(fields[1:], " ")
			}
		}
		items = append(items, domain.OrderItem{
			Name:     titler.String(line),
			Quantity: qty,
		})
		if len(items) >= max {
			break
		}
	}
	return items
}

// splitCommand separates a leading slash-command from its argument.
// Non-command text returns ("", text).
func splitCommand(text string) (cmd, arg string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	parts := strings.SplitN(text, " ", 2)
	cmd = strings.ToLower(parts[0])
	if len(parts) == 2 {
		arg = parts[1]
	}
	return cmd, arg
}

// updateClaimKey derives the idempotency key guarding one provider update.
func updateClaimKey(updateID int64) string {
	return fmt.Sprintf("update:%d", updateID)
}
