package storage

import (
	"context"
	"time"

	"focuslock/internal/core"
)

// Storage defines the interface for data persistence
type Storage interface {
	// Presets
	CreatePreset(ctx context.Context, preset *core.Preset) error
	GetPreset(ctx context.Context, userID, id string) (*core.Preset, error)
	ListPresets(ctx context.Context, userID string) ([]*core.Preset, error)
	SavePreset(ctx context.Context, preset *core.Preset) error
	DeletePreset(ctx context.Context, userID, id string) error
	SetActiveExclusive(ctx context.Context, userID, presetID string) error
	SetPresetActive(ctx context.Context, userID, presetID string, active bool) error

	// Lock status
	GetLockStatus(ctx context.Context, userID string) (*core.LockStatus, error)
	SetLockStatus(ctx context.Context, userID string, isLocked bool, endsAt, startedAt *time.Time) error

	// Tapout ledger
	GetTapoutStatus(ctx context.Context, userID string) (*core.TapoutStatus, error)
	SaveTapoutStatus(ctx context.Context, status *core.TapoutStatus) error
	ConsumeTapout(ctx context.Context, userID string) (remaining int, err error)
	SetPendingTapout(ctx context.Context, pending *core.PendingTapout) error
	GetPendingTapout(ctx context.Context, userID string) (*core.PendingTapout, error)
	ClearPendingTapout(ctx context.Context, userID string) error

	// Users
	CreateUser(ctx context.Context, user *core.User) error
	GetUser(ctx context.Context, id string) (*core.User, error)
	ListUserIDs(ctx context.Context) ([]string, error)

	// Lifecycle
	Close() error
}
