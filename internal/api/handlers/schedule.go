package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"focuslock/internal/api/middleware"

	"github.com/gin-gonic/gin"
)

// Evaluator re-runs the schedule evaluation for one user
type Evaluator interface {
	Evaluate(ctx context.Context, userID string) error
}

// Reconciler resolves drift between stored state and the enforcement engine
type Reconciler interface {
	Run(ctx context.Context, userID string) error
}

// ScheduleHandler handles device callbacks that drive schedule evaluation:
// alarm firings and app-foreground wakeups
type ScheduleHandler struct {
	evaluator  Evaluator
	reconciler Reconciler
	logger     *slog.Logger
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(evaluator Evaluator, reconciler Reconciler, logger *slog.Logger) *ScheduleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleHandler{
		evaluator:  evaluator,
		reconciler: reconciler,
		logger:     logger,
	}
}

type alarmFiredRequest struct {
	PresetID string `json:"preset_id" binding:"required"`
}

// AlarmFired handles a device alarm callback.
// The alarm is a hint; the evaluation itself re-derives what should happen
// from stored state, so a stale or duplicate alarm is harmless.
// POST /schedule/alarm-fired
func (h *ScheduleHandler) AlarmFired(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	var req alarmFiredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
			"code":  "INVALID_REQUEST",
		})
		return
	}

	h.logger.Info("Alarm fired",
		"component", "api",
		"user_id", userID,
		"preset_id", req.PresetID,
	)

	if err := h.evaluator.Evaluate(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AppForeground handles the app coming to the foreground: reconcile stored
// state against the enforcement engine, then re-evaluate schedules
// POST /app/foreground
func (h *ScheduleHandler) AppForeground(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	if err := h.reconciler.Run(c.Request.Context(), userID); err != nil {
		h.logger.Error("Reconciliation failed",
			"component", "api",
			"user_id", userID,
			"error", err,
		)
		respondError(c, err)
		return
	}

	if err := h.evaluator.Evaluate(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
