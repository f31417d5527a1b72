// Package enforce defines the gateway contract to the native device-level
// enforcement engine. The orchestrator is the engine's sole caller; drivers
// translate gateway commands into whatever the engine actually speaks.
package enforce

import (
	"context"
	"time"
)

// StartConfig describes one enforcement run
type StartConfig struct {
	Mode            string   `json:"mode"` // "all" or "specific"
	SelectedApps    []string `json:"selected_apps"`
	BlockedWebsites []string `json:"blocked_websites"`
	BlockSettings   bool     `json:"block_settings"`
	StrictMode      bool     `json:"strict_mode"`
	LockEndEpochMs  int64    `json:"lock_end_epoch_ms"` // 0 means no time limit
	PresetID        string   `json:"preset_id"`
	PresetName      string   `json:"preset_name"`
	IsScheduled     bool     `json:"is_scheduled"`
}

// SessionInfo is the engine's view of the current enforcement run, used by
// reconciliation as a secondary cross-check where available.
type SessionInfo struct {
	IsActive    bool          `json:"is_active"`
	Remaining   time.Duration `json:"remaining_ms"`
	NoTimeLimit bool          `json:"no_time_limit"`
}

// Gateway is the native enforcement engine seen from the orchestrator.
// All calls carry the owning user so one deployment can drive the engine
// instance of each registered device.
type Gateway interface {
	Name() string
	StartBlocking(ctx context.Context, userID string, cfg StartConfig) error
	ForceUnlock(ctx context.Context, userID string) error
	// GetSessionInfo may return (nil, nil) when the driver cannot report
	// live engine state.
	GetSessionInfo(ctx context.Context, userID string) (*SessionInfo, error)
	ScheduleAlarm(ctx context.Context, userID, presetID string, at time.Time) error
	CancelAlarm(ctx context.Context, userID, presetID string) error
}
