package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"focuslock/internal/api/middleware"
	"focuslock/internal/core"

	"github.com/gin-gonic/gin"
)

// SessionController is the slice of the session controller the session
// endpoints need
type SessionController interface {
	CurrentSession(ctx context.Context, userID string) (*core.Session, error)
	Activate(ctx context.Context, userID, presetID string, fromSchedule bool) (*core.Session, error)
	SlideUnlock(ctx context.Context, userID string) error
	TapoutUnlock(ctx context.Context, userID string) error
}

// TapoutReader exposes the current tapout balance with refills applied
type TapoutReader interface {
	Status(ctx context.Context, userID string) (*core.TapoutStatus, error)
}

// SessionHandler handles session lifecycle requests
type SessionHandler struct {
	controller SessionController
	tapouts    TapoutReader
	logger     *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(controller SessionController, tapouts TapoutReader, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		controller: controller,
		tapouts:    tapouts,
		logger:     logger,
	}
}

type sessionResponse struct {
	IsLocked         bool       `json:"is_locked"`
	PresetID         string     `json:"preset_id,omitempty"`
	PresetName       string     `json:"preset_name,omitempty"`
	StrictMode       bool       `json:"strict_mode,omitempty"`
	IsScheduled      bool       `json:"is_scheduled,omitempty"`
	LockStartedAt    *time.Time `json:"lock_started_at,omitempty"`
	LockEndsAt       *time.Time `json:"lock_ends_at,omitempty"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	NoTimeLimit      bool       `json:"no_time_limit"`
	TapoutsRemaining int        `json:"tapouts_remaining"`
}

// GetSession returns the derived session status
// GET /session
func (h *SessionHandler) GetSession(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	session, err := h.controller.CurrentSession(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to derive session",
			"component", "api",
			"user_id", userID,
			"error", err,
		)
		respondError(c, err)
		return
	}

	resp := sessionResponse{}
	if session != nil {
		resp.IsLocked = true
		resp.PresetID = session.Preset.ID
		resp.PresetName = session.Preset.Name
		resp.StrictMode = session.Preset.StrictMode
		resp.IsScheduled = session.Preset.IsScheduled
		resp.LockStartedAt = session.Lock.LockStartedAt
		resp.LockEndsAt = session.Lock.LockEndsAt
		resp.RemainingSeconds = int64(session.Remaining / time.Second)
		resp.NoTimeLimit = session.NoTimeOnly
	}

	if status, err := h.tapouts.Status(c.Request.Context(), userID); err == nil {
		resp.TapoutsRemaining = status.Remaining
	} else {
		h.logger.Warn("Failed to read tapout status",
			"component", "api",
			"user_id", userID,
			"error", err,
		)
	}

	c.JSON(http.StatusOK, resp)
}

type activateRequest struct {
	PresetID string `json:"preset_id" binding:"required"`
}

// Activate starts a blocking session for the given preset
// POST /session/activate
func (h *SessionHandler) Activate(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
			"code":  "INVALID_REQUEST",
		})
		return
	}

	session, err := h.controller.Activate(c.Request.Context(), userID, req.PresetID, false)
	if err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("Session activated",
		"component", "api",
		"user_id", userID,
		"preset_id", req.PresetID,
	)

	c.JSON(http.StatusOK, gin.H{
		"is_locked":    true,
		"preset_id":    session.Preset.ID,
		"lock_ends_at": session.Lock.LockEndsAt,
	})
}

// SlideUnlock ends a non-strict session early
// POST /session/slide-unlock
func (h *SessionHandler) SlideUnlock(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	if err := h.controller.SlideUnlock(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("Session ended by slide unlock",
		"component", "api",
		"user_id", userID,
	)
	c.JSON(http.StatusOK, gin.H{"is_locked": false})
}

// Tapout spends an emergency tapout to end a strict session
// POST /session/tapout
func (h *SessionHandler) Tapout(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	if err := h.controller.TapoutUnlock(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}

	remaining := 0
	if status, err := h.tapouts.Status(c.Request.Context(), userID); err == nil {
		remaining = status.Remaining
	}

	h.logger.Info("Session ended by emergency tapout",
		"component", "api",
		"user_id", userID,
		"tapouts_remaining", remaining,
	)
	c.JSON(http.StatusOK, gin.H{
		"is_locked":         false,
		"tapouts_remaining": remaining,
	})
}

// GetTapouts returns the tapout balance with refills applied
// GET /tapouts
func (h *SessionHandler) GetTapouts(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	status, err := h.tapouts.Status(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"remaining":      status.Remaining,
		"last_refill_at": status.LastRefillAt,
	})
}
