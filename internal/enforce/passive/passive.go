// Package passive provides a no-op enforcement gateway for deployments where
// the device engine is driven by an external agent. The driver records
// commands in memory and logs them but controls nothing.
package passive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"focuslock/internal/enforce"
)

const DriverName = "passive"

// Driver implements the enforce.Gateway interface with no-op behavior
type Driver struct {
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]enforce.StartConfig // userID -> last start config
	ends   map[string]time.Time           // userID -> lock end (zero = untimed)
	alarms map[string]time.Time           // userID + "/" + presetID -> firing time
}

// NewDriver creates a new passive driver
func NewDriver(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		logger: logger.With("driver", DriverName),
		active: make(map[string]enforce.StartConfig),
		ends:   make(map[string]time.Time),
		alarms: make(map[string]time.Time),
	}
}

// Name returns the driver name
func (d *Driver) Name() string {
	return DriverName
}

// StartBlocking records the start and logs it
func (d *Driver) StartBlocking(ctx context.Context, userID string, cfg enforce.StartConfig) error {
	d.mu.Lock()
	d.active[userID] = cfg
	if cfg.LockEndEpochMs > 0 {
		d.ends[userID] = time.UnixMilli(cfg.LockEndEpochMs)
	} else {
		delete(d.ends, userID)
	}
	d.mu.Unlock()

	d.logger.Info("passive driver: blocking started",
		"user_id", userID,
		"preset_id", cfg.PresetID,
		"strict_mode", cfg.StrictMode,
		"lock_end_epoch_ms", cfg.LockEndEpochMs,
	)
	return nil
}

// ForceUnlock records the stop and logs it
func (d *Driver) ForceUnlock(ctx context.Context, userID string) error {
	d.mu.Lock()
	delete(d.active, userID)
	delete(d.ends, userID)
	d.mu.Unlock()

	d.logger.Info("passive driver: enforcement stopped", "user_id", userID)
	return nil
}

// GetSessionInfo reports the recorded state
func (d *Driver) GetSessionInfo(ctx context.Context, userID string) (*enforce.SessionInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.active[userID]; !ok {
		return &enforce.SessionInfo{}, nil
	}

	info := &enforce.SessionInfo{IsActive: true}
	if end, ok := d.ends[userID]; ok {
		info.Remaining = time.Until(end)
	} else {
		info.NoTimeLimit = true
	}
	return info, nil
}

// ScheduleAlarm records the alarm and logs it
func (d *Driver) ScheduleAlarm(ctx context.Context, userID, presetID string, at time.Time) error {
	d.mu.Lock()
	d.alarms[userID+"/"+presetID] = at
	d.mu.Unlock()

	d.logger.Debug("passive driver: alarm scheduled",
		"user_id", userID,
		"preset_id", presetID,
		"at", at,
	)
	return nil
}

// CancelAlarm drops a recorded alarm
func (d *Driver) CancelAlarm(ctx context.Context, userID, presetID string) error {
	d.mu.Lock()
	delete(d.alarms, userID+"/"+presetID)
	d.mu.Unlock()

	d.logger.Debug("passive driver: alarm cancelled",
		"user_id", userID,
		"preset_id", presetID,
	)
	return nil
}
