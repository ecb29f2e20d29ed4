// Operational HTTP handlers.
//
// This file exposes the operator-facing surface of the relay: queue and
// outbox statistics, listings of terminal rows, and the manual replay hooks
// that put a DEAD update or a FAILED outbox row back into circulation.
// Terminal rows represent silently dropped interactions, so they must be
// observable and recoverable even though end users never see them.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/venuedesk/go-venue-relay/internal/domain"
	"github.com/venuedesk/go-venue-relay/internal/repo"
	"github.com/venuedesk/go-venue-relay/internal/utils"
)

// OpsHandlers groups the operational endpoints.
type OpsHandlers struct {
	DB *gorm.DB
}

// RelayStats is the response body for GET /ops/stats.
type RelayStats struct {
	Inbound map[string]int64 `json:"inbound"`
	Outbox  map[string]int64 `json:"outbox"`
}

// Stats handles GET /ops/stats.
//
// @Summary     Relay queue statistics
// @Description Row counts per status for the inbound queue and the outbox.
// @Tags        ops
// @Produce     json
// @Success     200 {object} RelayStats
// @Failure     500 {object} ErrorResponse
// @Router      /ops/stats [get]
func (h *OpsHandlers) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	in, err := repo.InboundStats(ctx, h.DB)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, "could not read inbound stats")
		return
	}
	out, err := repo.OutboxStats(ctx, h.DB)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, "could not read outbox stats")
		return
	}
	ok(c, http.StatusOK, RelayStats{Inbound: in, Outbox: out})
}

// pageParams reads ?page / ?page_size with sane bounds.
func pageParams(c *gin.Context) (offset, limit int) {
	page := utils.ClampInt(utils.AtoiDefault(c.Query("page"), 1), 1, 1<<30)
	size := utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), 50), 1, 200)
	return (page - 1) * size, size
}

// DeadUpdates handles GET /ops/updates/dead.
//
// @Summary     List DEAD inbound updates
// @Tags        ops
// @Produce     json
// @Param       page query int false "page (1-based)"
// @Param       page_size query int false "page size (max 200)"
// @Success     200 {array} domain.InboundUpdate
// @Failure     500 {object} ErrorResponse
// @Router      /ops/updates/dead [get]
func (h *OpsHandlers) DeadUpdates(c *gin.Context) {
	offset, limit := pageParams(c)
	rows, err := repo.ListUpdatesByStatus(c.Request.Context(), h.DB, domain.UpdateStatusDead, offset, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, "could not list updates")
		return
	}
	ok(c, http.StatusOK, rows)
}

// FailedOutbox handles GET /ops/outbox/failed.
//
// @Summary     List FAILED outbox rows
// @Tags        ops
// @Produce     json
// @Param       page query int false "page (1-based)"
// @Param       page_size query int false "page size (max 200)"
// @Success     200 {array} domain.OutboxMessage
// @Failure     500 {object} ErrorResponse
// @Router      /ops/outbox/failed [get]
func (h *OpsHandlers) FailedOutbox(c *gin.Context) {
	offset, limit := pageParams(c)
	rows, err := repo.ListOutboxByStatus(c.Request.Context(), h.DB, domain.OutboxStatusFailed, offset, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, "could not list outbox rows")
		return
	}
	ok(c, http.StatusOK, rows)
}

// ReplayUpdate handles POST /ops/updates/:id/replay.
//
// @Summary     Replay a DEAD inbound update
// @Description Returns the update to NEW with a fresh attempt budget. Only DEAD rows can be replayed.
// @Tags        ops
// @Produce     json
// @Param       id path int true "provider update id"
// @Success     204
// @Failure     400 {object} ErrorResponse
// @Failure     404 {object} ErrorResponse
// @Failure     500 {object} ErrorResponse
// @Router      /ops/updates/{id}/replay [post]
func (h *OpsHandlers) ReplayUpdate(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid update id")
		return
	}
	switch err := repo.ReplayUpdate(c.Request.Context(), h.DB, id); err {
	case nil:
		noContent(c)
	case repo.ErrNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no DEAD update with that id")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeReplayFailed, "replay failed")
	}
}

// ReplayOutbox handles POST /ops/outbox/:id/replay.
//
// @Summary     Replay a FAILED outbox row
// @Description Returns the row to NEW, due immediately, with a fresh attempt budget. Only FAILED rows can be replayed.
// @Tags        ops
// @Produce     json
// @Param       id path string true "outbox row id"
// @Success     204
// @Failure     404 {object} ErrorResponse
// @Failure     500 {object} ErrorResponse
// @Router      /ops/outbox/{id}/replay [post]
func (h *OpsHandlers) ReplayOutbox(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid outbox id")
		return
	}
	switch err := repo.ReplayOutbox(c.Request.Context(), h.DB, id); err {
	case nil:
		noContent(c)
	case repo.ErrNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no FAILED outbox row with that id")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeReplayFailed, "replay failed")
	}
}
