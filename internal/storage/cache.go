package storage

import (
	"context"
	"sync"
	"time"

	"focuslock/internal/core"
)

// CachedStorage wraps a Storage with a short-lived per-user read cache over
// the hot reads (preset list, lock status). Every durable write invalidates
// the owning user's entries, so reads after a write are fresh. The cache is
// a collaborator only: correctness never depends on it.
type CachedStorage struct {
	Storage
	ttl time.Duration

	mu    sync.Mutex
	users map[string]*userCacheEntry
}

type userCacheEntry struct {
	presets   []*core.Preset
	presetsAt time.Time
	lock      *core.LockStatus
	lockAt    time.Time
}

// NewCachedStorage wraps backing with a read cache of the given TTL
func NewCachedStorage(backing Storage, ttl time.Duration) *CachedStorage {
	return &CachedStorage{
		Storage: backing,
		ttl:     ttl,
		users:   make(map[string]*userCacheEntry),
	}
}

// Invalidate drops all cached entries for a user
func (c *CachedStorage) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.users, userID)
	c.mu.Unlock()
}

func (c *CachedStorage) entry(userID string) *userCacheEntry {
	e, ok := c.users[userID]
	if !ok {
		e = &userCacheEntry{}
		c.users[userID] = e
	}
	return e
}

// ListPresets serves from cache within the TTL
func (c *CachedStorage) ListPresets(ctx context.Context, userID string) ([]*core.Preset, error) {
	now := time.Now()

	c.mu.Lock()
	e := c.entry(userID)
	if e.presets != nil && now.Sub(e.presetsAt) < c.ttl {
		cached := e.presets
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	presets, err := c.Storage.ListPresets(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	e = c.entry(userID)
	e.presets = presets
	e.presetsAt = now
	c.mu.Unlock()

	return presets, nil
}

// GetLockStatus serves from cache within the TTL
func (c *CachedStorage) GetLockStatus(ctx context.Context, userID string) (*core.LockStatus, error) {
	now := time.Now()

	c.mu.Lock()
	e := c.entry(userID)
	if e.lock != nil && now.Sub(e.lockAt) < c.ttl {
		cached := e.lock
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	lock, err := c.Storage.GetLockStatus(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	e = c.entry(userID)
	e.lock = lock
	e.lockAt = now
	c.mu.Unlock()

	return lock, nil
}

// Write-through operations invalidate before returning

func (c *CachedStorage) CreatePreset(ctx context.Context, preset *core.Preset) error {
	err := c.Storage.CreatePreset(ctx, preset)
	c.Invalidate(preset.UserID)
	return err
}

func (c *CachedStorage) SavePreset(ctx context.Context, preset *core.Preset) error {
	err := c.Storage.SavePreset(ctx, preset)
	c.Invalidate(preset.UserID)
	return err
}

func (c *CachedStorage) DeletePreset(ctx context.Context, userID, id string) error {
	err := c.Storage.DeletePreset(ctx, userID, id)
	c.Invalidate(userID)
	return err
}

func (c *CachedStorage) SetActiveExclusive(ctx context.Context, userID, presetID string) error {
	err := c.Storage.SetActiveExclusive(ctx, userID, presetID)
	c.Invalidate(userID)
	return err
}

func (c *CachedStorage) SetPresetActive(ctx context.Context, userID, presetID string, active bool) error {
	err := c.Storage.SetPresetActive(ctx, userID, presetID, active)
	c.Invalidate(userID)
	return err
}

func (c *CachedStorage) SetLockStatus(ctx context.Context, userID string, isLocked bool, endsAt, startedAt *time.Time) error {
	err := c.Storage.SetLockStatus(ctx, userID, isLocked, endsAt, startedAt)
	c.Invalidate(userID)
	return err
}
