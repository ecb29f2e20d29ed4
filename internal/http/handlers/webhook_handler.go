// Webhook HTTP handler.
//
// This file exposes the push-style inbound transport: the provider delivers
// raw updates to POST /webhook/{token}, and the handler's only job is to get
// the payload durably into the inbound queue. No routing, no side effects;
// duplicate deliveries are absorbed by the idempotent enqueue, so the
// provider can redeliver freely.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/venuedesk/go-venue-relay/internal/http/middleware"
	"github.com/venuedesk/go-venue-relay/internal/inbound"
	"github.com/venuedesk/go-venue-relay/internal/repo"
)

// WebhookHandler accepts raw provider updates over HTTP.
type WebhookHandler struct {
	DB *gorm.DB
	// Token is the shared secret expected as the URL path segment. An
	// empty token disables the check (tests).
	Token string
}

// webhookUpdate is the minimal shape the handler needs from the payload:
// just the provider-assigned identifier. Everything else stays opaque.
type webhookUpdate struct {
	UpdateID int64 `json:"update_id"`
}

// Receive handles POST /webhook/:token.
//
// @Summary     Receive a provider update
// @Description Durably enqueues one raw provider update. Duplicate deliveries of the same update_id are acknowledged without creating a second row.
// @Tags        webhook
// @Accept      json
// @Produce     json
// @Param       token path string true "webhook secret token"
// @Success     200 {object} map[string]any
// @Failure     400 {object} ErrorResponse
// @Failure     401 {object} ErrorResponse
// @Failure     500 {object} ErrorResponse
// @Router      /webhook/{token} [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	if h.Token != "" && c.Param("token") != h.Token {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "unknown webhook token")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "empty or unreadable body")
		return
	}

	var upd webhookUpdate
	if err := json.Unmarshal(body, &upd); err != nil || upd.UpdateID == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "payload has no update_id")
		return
	}

	inserted, err := repo.EnqueueUpdate(c.Request.Context(), h.DB, upd.UpdateID, string(body))
	if err != nil {
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Int64("update_id", upd.UpdateID).Msg("enqueue update failed")
		fail(c, http.StatusInternalServerError, ErrCodeEnqueueFailed, "could not store update")
		return
	}
	if inserted {
		inbound.MarkEnqueued("webhook")
	}

	ok(c, http.StatusOK, gin.H{"update_id": upd.UpdateID, "stored": inserted})
}
