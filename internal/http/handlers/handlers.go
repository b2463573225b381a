package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/crewplan/backend/internal/command"
	"github.com/crewplan/backend/internal/db"
	"github.com/crewplan/backend/internal/llm"
)

type Handler struct {
	Store          *db.Store
	Engine         *command.Engine
	Validator      *validator.Validate
	Logger         zerolog.Logger
	OrgID          string
	LookaheadWeeks int
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type CommandRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
	// Context carries optional caller hints, e.g. {"as_of": "2026-01-05"}
	// to anchor week resolution at a specific day.
	Context map[string]string `json:"context"`
}

// @Summary Run a natural-language command
// @Description Turns one free-text utterance into an answer, a clarifying question, or a previewable change set
// @Tags command
// @Accept json
// @Produce json
// @Param request body CommandRequest true "command text"
// @Success 200 {object} command.CommandResponse
// @Failure 400 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /api/command [post]
func (h *Handler) Command(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	resp, err := h.Engine.Handle(c.Request.Context(), req.Text, req.Context)
	if err != nil {
		var verr command.ValidationError
		if errors.As(err, &verr) {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", verr.Reason, nil)
			return
		}
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type ConfirmRequest struct {
	Candidate string `json:"candidate"`
}

// @Summary Confirm a pending change set
// @Tags command
// @Accept json
// @Produce json
// @Param id path string true "envelope id"
// @Param request body ConfirmRequest false "candidate label for suggestions"
// @Success 200 {object} command.ExecutionResponse
// @Failure 404 {object} map[string]any
// @Router /api/command/{id}/confirm [post]
func (h *Handler) Confirm(c *gin.Context) {
	var req ConfirmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
			return
		}
	}

	resp, err := h.Engine.Confirm(c.Request.Context(), c.Param("id"), req.Candidate)
	if errors.Is(err, command.ErrEnvelopeNotFound) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "No pending command with that id; it may have expired", nil)
		return
	}
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Cancel(c *gin.Context) {
	if err := h.Engine.Cancel(c.Param("id")); err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "No pending command with that id; it may have expired", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// @Summary Allocation-health insights for the planning horizon
// @Tags insights
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/insights [get]
func (h *Handler) Insights(c *gin.Context) {
	insights, err := h.Engine.SnapshotInsights(c.Request.Context())
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	if insights == nil {
		insights = []command.ResourceInsight{}
	}
	c.JSON(http.StatusOK, gin.H{"items": insights})
}

func (h *Handler) UsersList(c *gin.Context) {
	items, err := h.Store.ListUsers(c.Request.Context(), h.OrgID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list users", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) ProjectsList(c *gin.Context) {
	items, err := h.Store.ListProjects(c.Request.Context(), h.OrgID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list projects", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) AllocationsList(c *gin.Context) {
	now := time.Now()
	var weeks []string
	if q := strings.TrimSpace(c.Query("week")); q != "" {
		week, err := command.NormalizeWeek(q, now)
		if err != nil {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "week must be a YYYY-MM-DD date", nil)
			return
		}
		weeks = []string{week}
	} else {
		weeks = command.WeeksFrom(now, h.LookaheadWeeks+1)
	}

	items, err := h.Store.ListAllocations(c.Request.Context(), h.OrgID, weeks)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list allocations", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "weeks": weeks})
}

func (h *Handler) writeEngineError(c *gin.Context, err error) {
	var rateErr llm.RateLimitError
	switch {
	case errors.Is(err, command.ErrContextUnavailable):
		writeError(c, http.StatusServiceUnavailable, "CONTEXT_UNAVAILABLE", "I can't see the current plan right now; nothing was changed. Try again in a moment.", nil)
	case errors.Is(err, command.ErrProtocolViolation):
		h.Logger.Error().Err(err).Msg("completion protocol violation")
		writeError(c, http.StatusBadGateway, "PROTOCOL_VIOLATION", "I couldn't work out a safe way to do that; nothing was changed. Try rephrasing.", nil)
	case errors.As(err, &rateErr):
		c.Header("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds())))
		writeError(c, http.StatusTooManyRequests, "RATE_LIMITED", "The assistant is busy; try again shortly.", nil)
	default:
		h.Logger.Error().Err(err).Msg("command failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong; nothing was changed.", nil)
	}
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
