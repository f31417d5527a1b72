package scheduler

import (
	"context"
	"testing"
	"time"

	"focuslock/internal/core"
	"focuslock/internal/enforce"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// liveStorage extends the scheduler mock with the write methods the real
// session controller needs, so a full activate/expire cycle can run against
// the real transition code.
type liveStorage struct {
	*mockStorage
	pending map[string]*core.PendingTapout
}

func newLiveStorage() *liveStorage {
	return &liveStorage{mockStorage: newMockStorage(), pending: make(map[string]*core.PendingTapout)}
}

func (s *liveStorage) GetPreset(ctx context.Context, userID, id string) (*core.Preset, error) {
	p, ok := s.presets[id]
	if !ok || p.UserID != userID {
		return nil, core.ErrPresetNotFound
	}
	return p, nil
}

func (s *liveStorage) SavePreset(ctx context.Context, preset *core.Preset) error {
	if _, ok := s.presets[preset.ID]; !ok {
		return core.ErrPresetNotFound
	}
	s.presets[preset.ID] = preset
	return nil
}

func (s *liveStorage) SetActiveExclusive(ctx context.Context, userID, presetID string) error {
	if _, ok := s.presets[presetID]; !ok {
		return core.ErrPresetNotFound
	}
	for _, p := range s.presets {
		if p.UserID == userID && !p.IsScheduled {
			p.IsActive = p.ID == presetID
		}
	}
	return nil
}

func (s *liveStorage) SetLockStatus(ctx context.Context, userID string, isLocked bool, endsAt, startedAt *time.Time) error {
	s.locks[userID] = &core.LockStatus{
		UserID:        userID,
		IsLocked:      isLocked,
		LockEndsAt:    endsAt,
		LockStartedAt: startedAt,
	}
	return nil
}

func (s *liveStorage) SetPendingTapout(ctx context.Context, pending *core.PendingTapout) error {
	s.pending[pending.UserID] = pending
	return nil
}

func (s *liveStorage) GetPendingTapout(ctx context.Context, userID string) (*core.PendingTapout, error) {
	return s.pending[userID], nil
}

func (s *liveStorage) ClearPendingTapout(ctx context.Context, userID string) error {
	delete(s.pending, userID)
	return nil
}

// liveGateway counts engine commands issued during the cycle
type liveGateway struct {
	startCalls  int
	unlockCalls int
}

func (g *liveGateway) Name() string { return "live" }

func (g *liveGateway) StartBlocking(ctx context.Context, userID string, cfg enforce.StartConfig) error {
	g.startCalls++
	return nil
}

func (g *liveGateway) ForceUnlock(ctx context.Context, userID string) error {
	g.unlockCalls++
	return nil
}

func (g *liveGateway) GetSessionInfo(ctx context.Context, userID string) (*enforce.SessionInfo, error) {
	return nil, nil
}

func (g *liveGateway) ScheduleAlarm(ctx context.Context, userID, presetID string, at time.Time) error {
	return nil
}

func (g *liveGateway) CancelAlarm(ctx context.Context, userID, presetID string) error {
	return nil
}

// The full cycle against the real controller: the window arrives, the
// scheduler activates it, and once the window ends the next passes expire
// the session with exactly one stop command and rearm the recurrence.
func TestScheduler_WindowActivateExpireRoundTrip(t *testing.T) {
	storage := newLiveStorage()
	gateway := &liveGateway{}
	controller := core.NewController(storage, gateway, nil, nil, nil)

	now := testBase
	clock := func() time.Time { return now }
	controller.SetClock(clock)

	s := NewScheduler(storage, controller, gateway, time.Second, nil)
	s.SetClock(clock)

	start := testBase
	end := testBase.Add(time.Hour)
	p := window("w1", "u1", start, end)
	p.Mode = core.BlockModeAll
	p.RepeatEnabled = true
	p.RepeatUnit = core.RepeatUnitDay
	p.RepeatInterval = 1
	storage.addPreset(p)

	// Window starts: activated through the real transition path
	require.NoError(t, s.Evaluate(context.Background(), "u1"))
	lock := storage.locks["u1"]
	require.True(t, lock.IsLocked)
	require.NotNil(t, lock.LockStartedAt)
	assert.Equal(t, 1, gateway.startCalls)
	assert.True(t, lock.LockEndsAt.Equal(end))

	// Window over: the next pass expires and unlocks
	now = end.Add(time.Minute)
	require.NoError(t, s.Evaluate(context.Background(), "u1"))
	assert.False(t, storage.locks["u1"].IsLocked)
	assert.Equal(t, 1, gateway.unlockCalls)

	// Recurrence rearmed one day forward, still enabled
	rearmed := storage.presets["w1"]
	assert.True(t, rearmed.IsActive)
	assert.Equal(t, start.AddDate(0, 0, 1), *rearmed.ScheduleStart)
	assert.Equal(t, end.AddDate(0, 0, 1), *rearmed.ScheduleEnd)

	// Further passes stay settled: no extra engine commands
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Evaluate(context.Background(), "u1"))
	}
	assert.False(t, storage.locks["u1"].IsLocked)
	assert.Equal(t, 1, gateway.unlockCalls)
	assert.Equal(t, 1, gateway.startCalls)
}
