// Venue HTTP handlers.
//
// This file exposes the producer-facing endpoints used by venue back offices
// and POS integrations:
//   - POST /venues/{venue}/staff-chats   register a staff chat for notifications
//   - POST /venues/{venue}/orders        place an order on behalf of a guest
//
// Both are unsafe operations; clients may send an Idempotency-Key header and
// retry freely. The key is claimed through the same claim table that guards
// the relay's internal side effects.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/venuedesk/go-venue-relay/internal/domain"
	"github.com/venuedesk/go-venue-relay/internal/http/middleware"
	"github.com/venuedesk/go-venue-relay/internal/repo"
	"github.com/venuedesk/go-venue-relay/internal/services"
)

// OrderPlacer is the service contract consumed by the venue handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type OrderPlacer interface {
	// PlaceOrder records a guest order and enqueues staff notifications
	// in one transaction.
	PlaceOrder(ctx context.Context, venueID string, guestChat int64, tableLabel string, items []domain.OrderItem) (*domain.Order, error)
	// RegisterStaffChat subscribes a chat to a venue's order notifications.
	RegisterStaffChat(ctx context.Context, venueID string, chatID int64) (*domain.StaffChat, error)
}

// VenueHandlers groups the producer-facing endpoints.
type VenueHandlers struct {
	DB     *gorm.DB
	Orders OrderPlacer
}

// RegisterStaffChatRequest is the JSON payload for staff chat registration.
type RegisterStaffChatRequest struct {
	ChatID int64 `json:"chat_id" binding:"required" example:"777000111"`
}

// PlaceOrderRequest is the JSON payload for order placement.
type PlaceOrderRequest struct {
	GuestChat  int64  `json:"guest_chat" binding:"required" example:"55500042"`
	TableLabel string `json:"table"      example:"12"`
	Items      []struct {
		Name     string `json:"name" binding:"required" example:"Flat White"`
		Quantity int    `json:"quantity" example:"2"`
	} `json:"items" binding:"required,min=1"`
}

// claimHTTPKey claims an Idempotency-Key for this request, when one was
// provided. It returns done=true when the request is a replay and has
// already been acknowledged.
func claimHTTPKey(c *gin.Context, db *gorm.DB) (done bool) {
	key, present := middleware.GetIdempotencyKey(c)
	if !present {
		return false
	}
	won, err := repo.TryAcquireClaim(c.Request.Context(), db, "http:"+key)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "idempotency check failed")
		return true
	}
	if !won {
		ok(c, http.StatusOK, gin.H{"code": "replayed", "message": "request already executed"})
		return true
	}
	return false
}

// RegisterStaffChat handles POST /venues/:venue/staff-chats.
//
// @Summary     Register a staff chat
// @Description Subscribes a chat to order-batch notifications for the venue.
// @Tags        venues
// @Accept      json
// @Produce     json
// @Param       venue path string true "venue id"
// @Param       body body RegisterStaffChatRequest true "staff chat"
// @Success     201 {object} domain.StaffChat
// @Failure     400 {object} ErrorResponse
// @Failure     409 {object} ErrorResponse
// @Failure     500 {object} ErrorResponse
// @Router      /venues/{venue}/staff-chats [post]
func (h *VenueHandlers) RegisterStaffChat(c *gin.Context) {
	venueID := strings.TrimSpace(c.Param("venue"))
	if venueID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "venue id is required")
		return
	}
	var req RegisterStaffChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat_id is required")
		return
	}
	if claimHTTPKey(c, h.DB) {
		return
	}

	rec, err := h.Orders.RegisterStaffChat(c.Request.Context(), venueID, req.ChatID)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, rec)
	case err == services.ErrDuplicateStaffChat:
		fail(c, http.StatusConflict, ErrCodeConflict, "staff chat already registered")
	default:
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Str("venue_id", venueID).Msg("staff chat registration failed")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "registration failed")
	}
}

// PlaceOrder handles POST /venues/:venue/orders.
//
// @Summary     Place a guest order
// @Description Persists the order and enqueues staff notifications atomically.
// @Tags        venues
// @Accept      json
// @Produce     json
// @Param       venue path string true "venue id"
// @Param       body body PlaceOrderRequest true "order"
// @Success     201 {object} domain.Order
// @Failure     400 {object} ErrorResponse
// @Failure     404 {object} ErrorResponse
// @Failure     500 {object} ErrorResponse
// @Router      /venues/{venue}/orders [post]
func (h *VenueHandlers) PlaceOrder(c *gin.Context) {
	venueID := strings.TrimSpace(c.Param("venue"))
	if venueID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "venue id is required")
		return
	}
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "guest_chat and at least one item are required")
		return
	}
	if claimHTTPKey(c, h.DB) {
		return
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.OrderItem{Name: it.Name, Quantity: it.Quantity})
	}

	order, err := h.Orders.PlaceOrder(c.Request.Context(), venueID, req.GuestChat, req.TableLabel, items)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, order)
	case err == services.ErrEmptyOrder:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order has no items")
	case err == services.ErrUnknownVenue:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "venue has no registered staff chats")
	default:
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Str("venue_id", venueID).Msg("order placement failed")
		fail(c, http.StatusInternalServerError, ErrCodeOrderFailed, "order placement failed")
	}
}
