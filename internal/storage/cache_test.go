package storage

import (
	"context"
	"testing"
	"time"

	"focuslock/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBacking counts reads so tests can observe cache hits
type fakeBacking struct {
	presets map[string][]*core.Preset
	locks   map[string]*core.LockStatus

	listCalls int
	lockCalls int
}

func newFakeBacking() *fakeBacking {
	return &fakeBacking{
		presets: make(map[string][]*core.Preset),
		locks:   make(map[string]*core.LockStatus),
	}
}

func (f *fakeBacking) CreatePreset(ctx context.Context, preset *core.Preset) error {
	f.presets[preset.UserID] = append(f.presets[preset.UserID], preset)
	return nil
}

func (f *fakeBacking) GetPreset(ctx context.Context, userID, id string) (*core.Preset, error) {
	for _, p := range f.presets[userID] {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, core.ErrPresetNotFound
}

func (f *fakeBacking) ListPresets(ctx context.Context, userID string) ([]*core.Preset, error) {
	f.listCalls++
	return f.presets[userID], nil
}

func (f *fakeBacking) SavePreset(ctx context.Context, preset *core.Preset) error {
	for i, p := range f.presets[preset.UserID] {
		if p.ID == preset.ID {
			f.presets[preset.UserID][i] = preset
			return nil
		}
	}
	return core.ErrPresetNotFound
}

func (f *fakeBacking) DeletePreset(ctx context.Context, userID, id string) error {
	kept := f.presets[userID][:0]
	for _, p := range f.presets[userID] {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	f.presets[userID] = kept
	return nil
}

func (f *fakeBacking) SetActiveExclusive(ctx context.Context, userID, presetID string) error {
	for _, p := range f.presets[userID] {
		if !p.IsScheduled {
			p.IsActive = p.ID == presetID
		}
	}
	return nil
}

func (f *fakeBacking) SetPresetActive(ctx context.Context, userID, presetID string, active bool) error {
	for _, p := range f.presets[userID] {
		if p.ID == presetID {
			p.IsActive = active
		}
	}
	return nil
}

func (f *fakeBacking) GetLockStatus(ctx context.Context, userID string) (*core.LockStatus, error) {
	f.lockCalls++
	lock, ok := f.locks[userID]
	if !ok {
		return &core.LockStatus{UserID: userID}, nil
	}
	return lock, nil
}

func (f *fakeBacking) SetLockStatus(ctx context.Context, userID string, isLocked bool, endsAt, startedAt *time.Time) error {
	f.locks[userID] = &core.LockStatus{
		UserID:        userID,
		IsLocked:      isLocked,
		LockEndsAt:    endsAt,
		LockStartedAt: startedAt,
	}
	return nil
}

func (f *fakeBacking) GetTapoutStatus(ctx context.Context, userID string) (*core.TapoutStatus, error) {
	return &core.TapoutStatus{UserID: userID}, nil
}

func (f *fakeBacking) SaveTapoutStatus(ctx context.Context, status *core.TapoutStatus) error {
	return nil
}

func (f *fakeBacking) ConsumeTapout(ctx context.Context, userID string) (int, error) {
	return 0, core.ErrTapoutExhausted
}

func (f *fakeBacking) SetPendingTapout(ctx context.Context, pending *core.PendingTapout) error {
	return nil
}

func (f *fakeBacking) GetPendingTapout(ctx context.Context, userID string) (*core.PendingTapout, error) {
	return nil, nil
}

func (f *fakeBacking) ClearPendingTapout(ctx context.Context, userID string) error {
	return nil
}

func (f *fakeBacking) CreateUser(ctx context.Context, user *core.User) error { return nil }

func (f *fakeBacking) GetUser(ctx context.Context, id string) (*core.User, error) {
	return nil, core.ErrUserNotFound
}

func (f *fakeBacking) ListUserIDs(ctx context.Context) ([]string, error) { return nil, nil }

func (f *fakeBacking) Close() error { return nil }

func TestCachedStorage_ListPresetsServedFromCache(t *testing.T) {
	backing := newFakeBacking()
	backing.presets["u1"] = []*core.Preset{{ID: "p1", UserID: "u1"}}
	cached := NewCachedStorage(backing, time.Minute)
	ctx := context.Background()

	first, err := cached.ListPresets(ctx, "u1")
	require.NoError(t, err)
	second, err := cached.ListPresets(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backing.listCalls)
}

func TestCachedStorage_ExpiredEntryRefetches(t *testing.T) {
	backing := newFakeBacking()
	backing.presets["u1"] = []*core.Preset{{ID: "p1", UserID: "u1"}}
	cached := NewCachedStorage(backing, time.Nanosecond)
	ctx := context.Background()

	_, err := cached.ListPresets(ctx, "u1")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = cached.ListPresets(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, 2, backing.listCalls)
}

func TestCachedStorage_WritesInvalidate(t *testing.T) {
	backing := newFakeBacking()
	backing.presets["u1"] = []*core.Preset{{ID: "p1", UserID: "u1"}}
	cached := NewCachedStorage(backing, time.Minute)
	ctx := context.Background()

	_, err := cached.ListPresets(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, backing.listCalls)

	require.NoError(t, cached.SetPresetActive(ctx, "u1", "p1", true))

	presets, err := cached.ListPresets(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, backing.listCalls)
	assert.True(t, presets[0].IsActive)
}

func TestCachedStorage_LockWriteInvalidatesLockRead(t *testing.T) {
	backing := newFakeBacking()
	cached := NewCachedStorage(backing, time.Minute)
	ctx := context.Background()

	lock, err := cached.GetLockStatus(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, lock.IsLocked)

	require.NoError(t, cached.SetLockStatus(ctx, "u1", true, nil, nil))

	lock, err = cached.GetLockStatus(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, lock.IsLocked)
	assert.Equal(t, 2, backing.lockCalls)
}

func TestCachedStorage_UsersAreIsolated(t *testing.T) {
	backing := newFakeBacking()
	backing.presets["u1"] = []*core.Preset{{ID: "p1", UserID: "u1"}}
	backing.presets["u2"] = []*core.Preset{{ID: "p2", UserID: "u2"}}
	cached := NewCachedStorage(backing, time.Minute)
	ctx := context.Background()

	_, err := cached.ListPresets(ctx, "u1")
	require.NoError(t, err)
	_, err = cached.ListPresets(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 2, backing.listCalls)

	// Writing for u2 leaves u1's cache entry warm
	require.NoError(t, cached.SetPresetActive(ctx, "u2", "p2", true))
	_, err = cached.ListPresets(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, backing.listCalls)
}
