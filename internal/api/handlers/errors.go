package handlers

import (
	"errors"
	"net/http"

	"focuslock/internal/core"

	"github.com/gin-gonic/gin"
)

// respondError maps domain errors onto the API's {error, code} bodies.
// Conflict and tapout failures are user-correctable; backend failures get a
// retryable 502 after the controller has already rolled back.
func respondError(c *gin.Context, err error) {
	var conflict *core.ConflictError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, gin.H{
			"error":              conflict.Error(),
			"code":               "CONFLICT_REJECTED",
			"conflicting_preset": conflict.PresetName,
		})
		return
	}

	switch {
	case errors.Is(err, core.ErrTransitionInFlight):
		c.JSON(http.StatusConflict, gin.H{
			"error": "A transition is already in progress",
			"code":  "TRANSITION_IN_FLIGHT",
		})
	case errors.Is(err, core.ErrNotIdle):
		c.JSON(http.StatusConflict, gin.H{
			"error": "A session is already being enforced",
			"code":  "ALREADY_LOCKED",
		})
	case errors.Is(err, core.ErrNotLocked):
		c.JSON(http.StatusConflict, gin.H{
			"error": "No session is being enforced",
			"code":  "NOT_LOCKED",
		})
	case errors.Is(err, core.ErrStrictModeActive):
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Strict mode forbids early exit while the timer runs",
			"code":  "STRICT_MODE",
		})
	case errors.Is(err, core.ErrTapoutNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{
			"error": "This preset does not allow emergency tapout",
			"code":  "TAPOUT_NOT_ALLOWED",
		})
	case errors.Is(err, core.ErrTapoutExhausted):
		c.JSON(http.StatusConflict, gin.H{
			"error": "No emergency tapouts remaining",
			"code":  "TAPOUT_EXHAUSTED",
		})
	case errors.Is(err, core.ErrPresetEnforced):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Preset is currently being enforced",
			"code":  "PRESET_ENFORCED",
		})
	case errors.Is(err, core.ErrDefaultPresetDelete):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Deleting a default preset requires force=true",
			"code":  "DEFAULT_PRESET",
		})
	case errors.Is(err, core.ErrPresetNotFound), errors.Is(err, core.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Not found",
			"code":  "NOT_FOUND",
		})
	case errors.Is(err, core.ErrNotScheduledPreset),
		errors.Is(err, core.ErrWindowPassed),
		errors.Is(err, core.ErrInvalidPresetName),
		errors.Is(err, core.ErrInvalidBlockMode),
		errors.Is(err, core.ErrNothingSelected),
		errors.Is(err, core.ErrInvalidScheduleRange),
		errors.Is(err, core.ErrScheduleIncomplete),
		errors.Is(err, core.ErrInvalidRepeat),
		errors.Is(err, core.ErrInvalidDuration):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"code":  "VALIDATION_FAILED",
		})
	case errors.Is(err, core.ErrEnforcementFailed), errors.Is(err, core.ErrBackendWriteFailed):
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "The change could not be applied, please retry",
			"code":  "BACKEND_WRITE_FAILED",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
			"code":  "INTERNAL_ERROR",
		})
	}
}
