package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"focuslock/internal/api/middleware"
	"focuslock/internal/core"
	"focuslock/internal/idgen"
	"focuslock/internal/storage"

	"github.com/gin-gonic/gin"
)

// PresetController is the slice of the session controller the preset
// endpoints need: the enforced-preset guard plus schedule enable/disable.
type PresetController interface {
	CurrentSession(ctx context.Context, userID string) (*core.Session, error)
	EnableSchedule(ctx context.Context, userID, presetID string) (*core.Preset, error)
	DisableSchedule(ctx context.Context, userID, presetID string) error
}

// PresetsHandler handles preset CRUD requests
type PresetsHandler struct {
	storage    storage.Storage
	controller PresetController
	logger     *slog.Logger
}

// NewPresetsHandler creates a new presets handler
func NewPresetsHandler(storage storage.Storage, controller PresetController, logger *slog.Logger) *PresetsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PresetsHandler{
		storage:    storage,
		controller: controller,
		logger:     logger,
	}
}

type presetRequest struct {
	Name                 string     `json:"name" binding:"required"`
	Mode                 string     `json:"mode" binding:"required"`
	SelectedApps         []string   `json:"selected_apps"`
	BlockedWebsites      []string   `json:"blocked_websites"`
	DurationDays         int        `json:"duration_days"`
	DurationHours        int        `json:"duration_hours"`
	DurationMinutes      int        `json:"duration_minutes"`
	DurationSeconds      int        `json:"duration_seconds"`
	TargetDate           *time.Time `json:"target_date"`
	NoTimeLimit          bool       `json:"no_time_limit"`
	BlockSettings        bool       `json:"block_settings"`
	StrictMode           bool       `json:"strict_mode"`
	AllowEmergencyTapout bool       `json:"allow_emergency_tapout"`
	IsScheduled          bool       `json:"is_scheduled"`
	ScheduleStart        *time.Time `json:"schedule_start"`
	ScheduleEnd          *time.Time `json:"schedule_end"`
	RepeatEnabled        bool       `json:"repeat_enabled"`
	RepeatUnit           string     `json:"repeat_unit"`
	RepeatInterval       int        `json:"repeat_interval"`
	IsDefault            bool       `json:"is_default"`
}

type presetResponse struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Mode                 string     `json:"mode"`
	SelectedApps         []string   `json:"selected_apps"`
	BlockedWebsites      []string   `json:"blocked_websites"`
	DurationDays         int        `json:"duration_days"`
	DurationHours        int        `json:"duration_hours"`
	DurationMinutes      int        `json:"duration_minutes"`
	DurationSeconds      int        `json:"duration_seconds"`
	TargetDate           *time.Time `json:"target_date,omitempty"`
	NoTimeLimit          bool       `json:"no_time_limit"`
	BlockSettings        bool       `json:"block_settings"`
	StrictMode           bool       `json:"strict_mode"`
	AllowEmergencyTapout bool       `json:"allow_emergency_tapout"`
	IsScheduled          bool       `json:"is_scheduled"`
	ScheduleStart        *time.Time `json:"schedule_start,omitempty"`
	ScheduleEnd          *time.Time `json:"schedule_end,omitempty"`
	RepeatEnabled        bool       `json:"repeat_enabled"`
	RepeatUnit           string     `json:"repeat_unit,omitempty"`
	RepeatInterval       int        `json:"repeat_interval,omitempty"`
	IsActive             bool       `json:"is_active"`
	IsDefault            bool       `json:"is_default"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func toPresetResponse(p *core.Preset) presetResponse {
	return presetResponse{
		ID:                   p.ID,
		Name:                 p.Name,
		Mode:                 string(p.Mode),
		SelectedApps:         p.SelectedApps,
		BlockedWebsites:      p.BlockedWebsites,
		DurationDays:         p.DurationDays,
		DurationHours:        p.DurationHours,
		DurationMinutes:      p.DurationMinutes,
		DurationSeconds:      p.DurationSeconds,
		TargetDate:           p.TargetDate,
		NoTimeLimit:          p.NoTimeLimit,
		BlockSettings:        p.BlockSettings,
		StrictMode:           p.StrictMode,
		AllowEmergencyTapout: p.AllowEmergencyTapout,
		IsScheduled:          p.IsScheduled,
		ScheduleStart:        p.ScheduleStart,
		ScheduleEnd:          p.ScheduleEnd,
		RepeatEnabled:        p.RepeatEnabled,
		RepeatUnit:           string(p.RepeatUnit),
		RepeatInterval:       p.RepeatInterval,
		IsActive:             p.IsActive,
		IsDefault:            p.IsDefault,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

// applyRequest copies request content fields onto a preset, leaving the
// lifecycle fields (IsActive, timestamps) alone
func applyRequest(p *core.Preset, req *presetRequest) {
	p.Name = req.Name
	p.Mode = core.BlockMode(req.Mode)
	p.SelectedApps = req.SelectedApps
	p.BlockedWebsites = req.BlockedWebsites
	p.DurationDays = req.DurationDays
	p.DurationHours = req.DurationHours
	p.DurationMinutes = req.DurationMinutes
	p.DurationSeconds = req.DurationSeconds
	p.TargetDate = req.TargetDate
	p.NoTimeLimit = req.NoTimeLimit
	p.BlockSettings = req.BlockSettings
	p.StrictMode = req.StrictMode
	p.AllowEmergencyTapout = req.AllowEmergencyTapout
	p.IsScheduled = req.IsScheduled
	p.ScheduleStart = req.ScheduleStart
	p.ScheduleEnd = req.ScheduleEnd
	p.RepeatEnabled = req.RepeatEnabled
	p.RepeatUnit = core.RepeatUnit(req.RepeatUnit)
	p.RepeatInterval = req.RepeatInterval
	p.IsDefault = req.IsDefault
}

// ListPresets returns all presets for the user
// GET /presets
func (h *PresetsHandler) ListPresets(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	presets, err := h.storage.ListPresets(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list presets",
			"component", "api",
			"user_id", userID,
			"error", err,
		)
		respondError(c, err)
		return
	}

	out := make([]presetResponse, 0, len(presets))
	for _, p := range presets {
		out = append(out, toPresetResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"presets": out})
}

// CreatePreset creates a new preset
// POST /presets
func (h *PresetsHandler) CreatePreset(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	var req presetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
			"code":  "INVALID_REQUEST",
		})
		return
	}

	preset := &core.Preset{
		ID:     idgen.NewPreset(),
		UserID: userID,
	}
	applyRequest(preset, &req)

	if err := h.storage.CreatePreset(c.Request.Context(), preset); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toPresetResponse(preset))
}

// GetPreset returns one preset
// GET /presets/:id
func (h *PresetsHandler) GetPreset(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	preset, err := h.storage.GetPreset(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPresetResponse(preset))
}

// UpdatePreset replaces a preset's content. Editing the currently enforced
// preset is not permitted.
// PATCH /presets/:id
func (h *PresetsHandler) UpdatePreset(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	presetID := c.Param("id")

	var req presetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
			"code":  "INVALID_REQUEST",
		})
		return
	}

	if h.isEnforced(c, userID, presetID) {
		respondError(c, core.ErrPresetEnforced)
		return
	}

	preset, err := h.storage.GetPreset(c.Request.Context(), userID, presetID)
	if err != nil {
		respondError(c, err)
		return
	}

	applyRequest(preset, &req)

	if err := h.storage.SavePreset(c.Request.Context(), preset); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPresetResponse(preset))
}

// DeletePreset deletes a preset. The enforced preset cannot be deleted, and
// default presets require an explicit force flag.
// DELETE /presets/:id?force=
func (h *PresetsHandler) DeletePreset(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	presetID := c.Param("id")

	if h.isEnforced(c, userID, presetID) {
		respondError(c, core.ErrPresetEnforced)
		return
	}

	preset, err := h.storage.GetPreset(c.Request.Context(), userID, presetID)
	if err != nil {
		respondError(c, err)
		return
	}
	if preset.IsDefault && c.Query("force") != "true" {
		respondError(c, core.ErrDefaultPresetDelete)
		return
	}

	if err := h.storage.DeletePreset(c.Request.Context(), userID, presetID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// EnableSchedule enables a scheduled preset
// POST /presets/:id/enable
func (h *PresetsHandler) EnableSchedule(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	preset, err := h.controller.EnableSchedule(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPresetResponse(preset))
}

// DisableSchedule disables a scheduled preset
// POST /presets/:id/disable
func (h *PresetsHandler) DisableSchedule(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	if err := h.controller.DisableSchedule(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// isEnforced reports whether the preset is the one currently enforced
func (h *PresetsHandler) isEnforced(c *gin.Context, userID, presetID string) bool {
	session, err := h.controller.CurrentSession(c.Request.Context(), userID)
	if err != nil {
		h.logger.Warn("Failed to derive current session",
			"component", "api",
			"user_id", userID,
			"error", err,
		)
		return false
	}
	return session != nil && session.Preset.ID == presetID
}
