// Package services – OrderService
//
// This file implements OrderService, the application-level producer of
// order-batch notifications. It persists a guest order and enqueues the
// staff notifications in one transaction, so a committed order and its
// notification intent can never diverge: either both commit or neither does.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// venue and chat identifiers.
package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/venuedesk/go-venue-relay/internal/domain"
	"github.com/venuedesk/go-venue-relay/internal/notify"
	"github.com/venuedesk/go-venue-relay/internal/repo"
)

// OrderService persists orders and fans out staff notifications through the
// outbox, gated by the notification claim guard.
type OrderService struct {
	DB *gorm.DB
}

// PlaceOrder records a guest order for venueID and enqueues one staff
// notification per registered staff chat, all inside a single transaction.
// It returns the persisted order.
func (s *OrderService) PlaceOrder(ctx context.Context, venueID string, guestChat int64, tableLabel string, items []domain.OrderItem) (*domain.Order, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "PlaceOrder",
		trace.WithAttributes(
			attribute.String("venue.id", venueID),
			attribute.Int64("chat.id", guestChat),
			attribute.Int("order.items", len(items)),
		),
	)
	defer span.End()

	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	var order *domain.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		staff, err := repo.ListStaffChats(ctx, tx, venueID)
		if err != nil {
			return err
		}
		if len(staff) == 0 {
			return ErrUnknownVenue
		}

		order, err = repo.CreateOrder(ctx, tx, venueID, guestChat, tableLabel, items)
		if err != nil {
			return err
		}
		_, err = notify.NotifyOrderBatch(ctx, tx, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// RegisterStaffChat subscribes chatID to order notifications for venueID.
func (s *OrderService) RegisterStaffChat(ctx context.Context, venueID string, chatID int64) (*domain.StaffChat, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "RegisterStaffChat",
		trace.WithAttributes(
			attribute.String("venue.id", venueID),
			attribute.Int64("chat.id", chatID),
		),
	)
	defer span.End()

	rec, err := repo.RegisterStaffChat(ctx, s.DB, venueID, chatID)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrDuplicateStaffChat
	}
	return rec, err
}
