package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"focuslock/internal/enforce"
)

// opTimeout bounds every storage write and gateway command issued inside a
// transition, so no transition can block the guard indefinitely.
const opTimeout = 10 * time.Second

// Storage defines the persistence operations the controller needs
type Storage interface {
	ListPresets(ctx context.Context, userID string) ([]*Preset, error)
	GetPreset(ctx context.Context, userID, id string) (*Preset, error)
	SavePreset(ctx context.Context, preset *Preset) error
	// SetActiveExclusive marks one non-scheduled preset active and every
	// other non-scheduled preset of the user inactive, atomically.
	SetActiveExclusive(ctx context.Context, userID, presetID string) error
	SetPresetActive(ctx context.Context, userID, presetID string, active bool) error

	GetLockStatus(ctx context.Context, userID string) (*LockStatus, error)
	SetLockStatus(ctx context.Context, userID string, isLocked bool, endsAt, startedAt *time.Time) error

	SetPendingTapout(ctx context.Context, pending *PendingTapout) error
	GetPendingTapout(ctx context.Context, userID string) (*PendingTapout, error)
	ClearPendingTapout(ctx context.Context, userID string) error
}

// Ledger is the emergency tapout counter consulted by TapoutUnlock
type Ledger interface {
	Consume(ctx context.Context, userID string) (remaining int, err error)
}

// Notifier receives best-effort session event notifications.
// Implementations must never block for long and never return the failure to
// the transition path.
type Notifier interface {
	SessionStarted(ctx context.Context, userID string, preset *Preset, endsAt *time.Time)
	SessionEnded(ctx context.Context, userID string, preset *Preset, reason string)
	Anomaly(ctx context.Context, userID, detail string)
}

// Controller is the session state machine: the single writer of LockStatus
// and of preset IsActive flags. One transition per user runs at a time.
type Controller struct {
	storage  Storage
	gateway  enforce.Gateway
	ledger   Ledger
	notifier Notifier
	logger   *slog.Logger
	clock    func() time.Time

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewController creates a new session controller. Notifier may be nil.
func NewController(storage Storage, gateway enforce.Gateway, ledger Ledger, notifier Notifier, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		storage:  storage,
		gateway:  gateway,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
		clock:    time.Now,
		inFlight: make(map[string]bool),
	}
}

// SetClock overrides the time source, for tests
func (c *Controller) SetClock(clock func() time.Time) {
	c.clock = clock
}

// begin marks a transition in flight for the user. A second trigger arriving
// while a transition runs is dropped, never queued.
func (c *Controller) begin(userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[userID] {
		return ErrTransitionInFlight
	}
	c.inFlight[userID] = true
	return nil
}

func (c *Controller) end(userID string) {
	c.mu.Lock()
	delete(c.inFlight, userID)
	c.mu.Unlock()
}

// DeriveSession computes the currently enforced session from the preset set
// and lock status. The enforced preset is the enabled scheduled preset whose
// window owns the lock, or failing that the active non-scheduled preset. A
// lock that started before the window opened still belongs to the
// non-scheduled preset: its displacement has not happened yet.
func DeriveSession(presets []*Preset, lock *LockStatus, now time.Time) *Session {
	if lock == nil || !lock.IsLocked {
		return nil
	}

	var enforced *Preset
	for _, p := range presets {
		if p.IsScheduled && p.IsActive && windowOwnsLock(p, lock, now) {
			enforced = p
			break
		}
	}
	if enforced == nil {
		for _, p := range presets {
			if !p.IsScheduled && p.IsActive {
				enforced = p
				break
			}
		}
	}
	if enforced == nil {
		return nil
	}

	s := &Session{Preset: enforced, Lock: lock}
	if lock.LockEndsAt != nil {
		s.Remaining = lock.LockEndsAt.Sub(now)
		if s.Remaining < 0 {
			s.Remaining = 0
		}
	} else {
		s.NoTimeOnly = true
	}
	return s
}

// windowOwnsLock reports whether a scheduled preset's window claims the
// current lock. A window owns a lock taken inside it, and keeps owning it
// after the window ends: expiry still has to attribute the teardown to the
// scheduled preset. A lock predating the window stays with the non-scheduled
// preset. When no lock start was recorded the lock end is matched against
// the window end, falling back to the live window.
func windowOwnsLock(p *Preset, lock *LockStatus, now time.Time) bool {
	if lock.LockStartedAt != nil {
		return p.WindowContains(*lock.LockStartedAt)
	}
	if lock.LockEndsAt != nil && p.ScheduleEnd != nil && lock.LockEndsAt.Equal(*p.ScheduleEnd) {
		return true
	}
	return p.WindowContains(now)
}

// CurrentSession returns the derived session for a user, nil when idle
func (c *Controller) CurrentSession(ctx context.Context, userID string) (*Session, error) {
	lock, err := c.storage.GetLockStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	presets, err := c.storage.ListPresets(ctx, userID)
	if err != nil {
		return nil, err
	}
	return DeriveSession(presets, lock, c.clock()), nil
}

// startConfig builds the gateway command for a preset
func startConfig(p *Preset, endsAt *time.Time) enforce.StartConfig {
	cfg := enforce.StartConfig{
		Mode:            string(p.Mode),
		SelectedApps:    p.SelectedApps,
		BlockedWebsites: p.BlockedWebsites,
		BlockSettings:   p.BlockSettings,
		StrictMode:      p.StrictMode,
		PresetID:        p.ID,
		PresetName:      p.Name,
		IsScheduled:     p.IsScheduled,
	}
	if endsAt != nil {
		cfg.LockEndEpochMs = endsAt.UnixMilli()
	}
	return cfg
}

// Activate starts enforcing a preset. Only legal from Idle. fromSchedule is
// set when the scheduler activates a preset for its own arriving window,
// which exempts that preset from the conflict checks.
func (c *Controller) Activate(ctx context.Context, userID, presetID string, fromSchedule bool) (*Session, error) {
	if err := c.begin(userID); err != nil {
		return nil, err
	}
	defer c.end(userID)

	now := c.clock()

	lock, err := c.storage.GetLockStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: read lock status: %v", ErrBackendWriteFailed, err)
	}
	if lock != nil && lock.IsLocked {
		return nil, ErrNotIdle
	}

	preset, err := c.storage.GetPreset(ctx, userID, presetID)
	if err != nil {
		return nil, err
	}

	presets, err := c.storage.ListPresets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list presets: %v", ErrBackendWriteFailed, err)
	}

	endsAt := preset.LockEnd(now)

	// Conflict checks; the preset producing the incoming window is exempt.
	if !fromSchedule {
		if preset.IsScheduled {
			if conflict := CheckScheduleConflict(preset.ID, *preset.ScheduleStart, *preset.ScheduleEnd, presets); conflict != nil {
				return nil, conflict
			}
		} else if endsAt != nil {
			if conflict := CheckTimedConflict(now, *endsAt, presets); conflict != nil {
				return nil, conflict
			}
		}
		// Untimed activation is exempt; an arriving scheduled window
		// displaces it instead.
	}

	// Stop-then-start ordering: the engine may still hold a command for a
	// preset that was superseded moments ago.
	gctx, cancel := context.WithTimeout(ctx, opTimeout)
	err = c.gateway.StartBlocking(gctx, userID, startConfig(preset, endsAt))
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnforcementFailed, err)
	}

	prior := lock
	startedAt := now

	sctx, cancel := context.WithTimeout(ctx, opTimeout)
	err = c.storage.SetLockStatus(sctx, userID, true, endsAt, &startedAt)
	cancel()
	if err != nil {
		c.compensateStop(ctx, userID)
		return nil, fmt.Errorf("%w: set lock status: %v", ErrBackendWriteFailed, err)
	}

	if preset.IsScheduled {
		err = c.storage.SetPresetActive(ctx, userID, preset.ID, true)
	} else {
		err = c.storage.SetActiveExclusive(ctx, userID, preset.ID)
	}
	if err != nil {
		c.rollbackLock(ctx, userID, prior)
		c.compensateStop(ctx, userID)
		return nil, fmt.Errorf("%w: mark preset active: %v", ErrBackendWriteFailed, err)
	}

	if endsAt != nil {
		actx, cancel := context.WithTimeout(ctx, opTimeout)
		if aerr := c.gateway.ScheduleAlarm(actx, userID, preset.ID, *endsAt); aerr != nil {
			c.logger.Warn("Failed to schedule expiry alarm",
				"user_id", userID, "preset_id", preset.ID, "error", aerr)
		}
		cancel()
	}

	c.logger.Info("Session activated",
		"user_id", userID,
		"preset_id", preset.ID,
		"preset_name", preset.Name,
		"scheduled", preset.IsScheduled,
		"strict", preset.StrictMode,
		"ends_at", endsAt,
	)
	if c.notifier != nil {
		c.notifier.SessionStarted(ctx, userID, preset, endsAt)
	}

	preset.IsActive = true
	lockRecord := &LockStatus{
		UserID:        userID,
		IsLocked:      true,
		LockEndsAt:    endsAt,
		LockStartedAt: &startedAt,
	}
	return DeriveSession(append([]*Preset{preset}, presets...), lockRecord, now), nil
}

// SlideUnlock ends the current session at the user's request. Strict mode
// forbids it while a timer is running; a pure no-time-limit strict lock can
// still be slid open.
func (c *Controller) SlideUnlock(ctx context.Context, userID string) error {
	if err := c.begin(userID); err != nil {
		return err
	}
	defer c.end(userID)

	session, err := c.enforcedSession(ctx, userID)
	if err != nil {
		return err
	}

	if session.Preset.StrictMode && session.Lock.LockEndsAt != nil {
		return ErrStrictModeActive
	}

	if err := c.teardown(ctx, userID, session, false); err != nil {
		return err
	}

	c.logger.Info("Session slide-unlocked", "user_id", userID, "preset_id", session.Preset.ID)
	if c.notifier != nil {
		c.notifier.SessionEnded(ctx, userID, session.Preset, "slide unlock")
	}
	return nil
}

// TapoutUnlock ends the current session by spending one emergency tapout.
// The ledger decrement is requested and confirmed before the unlock is
// treated as durable; the pending marker lets reconciliation resolve the
// case where the device unlocked but the decrement outcome was lost.
func (c *Controller) TapoutUnlock(ctx context.Context, userID string) error {
	if err := c.begin(userID); err != nil {
		return err
	}
	defer c.end(userID)

	session, err := c.enforcedSession(ctx, userID)
	if err != nil {
		return err
	}

	if !session.Preset.AllowEmergencyTapout {
		return ErrTapoutNotAllowed
	}

	now := c.clock()
	pending := &PendingTapout{UserID: userID, PresetID: session.Preset.ID, RequestedAt: now}
	if err := c.storage.SetPendingTapout(ctx, pending); err != nil {
		return fmt.Errorf("%w: set pending tapout: %v", ErrBackendWriteFailed, err)
	}

	lctx, cancel := context.WithTimeout(ctx, opTimeout)
	remaining, err := c.ledger.Consume(lctx, userID)
	cancel()
	if err != nil {
		// No ledger mutation happened; the marker is moot.
		if cerr := c.storage.ClearPendingTapout(ctx, userID); cerr != nil {
			c.logger.Warn("Failed to clear pending tapout marker", "user_id", userID, "error", cerr)
		}
		return err
	}

	if err := c.teardown(ctx, userID, session, false); err != nil {
		return err
	}

	if err := c.storage.ClearPendingTapout(ctx, userID); err != nil {
		c.logger.Warn("Failed to clear pending tapout marker", "user_id", userID, "error", err)
	}

	c.logger.Info("Session tapout-unlocked",
		"user_id", userID,
		"preset_id", session.Preset.ID,
		"tapouts_remaining", remaining,
	)
	if c.notifier != nil {
		c.notifier.SessionEnded(ctx, userID, session.Preset, "emergency tapout")
	}
	return nil
}

// Expire ends the current session because its timer ran out. Always
// permitted: the timer itself is the sanctioned exit, strict mode included.
func (c *Controller) Expire(ctx context.Context, userID string) error {
	if err := c.begin(userID); err != nil {
		return err
	}
	defer c.end(userID)
	return c.expireLocked(ctx, userID)
}

// expireLocked is Expire without guard acquisition, for callers already
// holding the in-flight guard.
func (c *Controller) expireLocked(ctx context.Context, userID string) error {
	session, err := c.enforcedSession(ctx, userID)
	if err != nil {
		return err
	}

	if err := c.teardown(ctx, userID, session, true); err != nil {
		return err
	}

	c.logger.Info("Session expired",
		"user_id", userID,
		"preset_id", session.Preset.ID,
		"elapsed", session.Lock.Elapsed(c.clock()).String(),
	)
	if c.notifier != nil {
		c.notifier.SessionEnded(ctx, userID, session.Preset, "timer expired")
	}
	return nil
}

// EnableSchedule turns a scheduled preset on after checking its window
// against every other enabled schedule. A recurring preset whose window has
// already passed is first rolled forward to its next free occurrence.
func (c *Controller) EnableSchedule(ctx context.Context, userID, presetID string) (*Preset, error) {
	if err := c.begin(userID); err != nil {
		return nil, err
	}
	defer c.end(userID)

	preset, err := c.storage.GetPreset(ctx, userID, presetID)
	if err != nil {
		return nil, err
	}
	if !preset.IsScheduled {
		return nil, ErrNotScheduledPreset
	}

	now := c.clock()
	presets, err := c.storage.ListPresets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list presets: %v", ErrBackendWriteFailed, err)
	}

	if preset.WindowEnded(now) {
		if !preset.IsRecurring() {
			return nil, ErrWindowPassed
		}
		nextStart, nextEnd, ok := NextFreeOccurrence(preset, presets, now)
		if !ok {
			return nil, ErrWindowPassed
		}
		preset.ScheduleStart = &nextStart
		preset.ScheduleEnd = &nextEnd
	}

	if conflict := CheckScheduleConflict(preset.ID, *preset.ScheduleStart, *preset.ScheduleEnd, presets); conflict != nil {
		return nil, conflict
	}
	// An enabled window must also clear the projected end of a running
	// timed lock.
	lock, err := c.storage.GetLockStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: read lock status: %v", ErrBackendWriteFailed, err)
	}
	if lock != nil && lock.IsLocked && lock.LockEndsAt != nil && lock.LockStartedAt != nil {
		if session := DeriveSession(presets, lock, now); session != nil && !session.Preset.IsScheduled {
			if WindowsOverlap(now, *lock.LockEndsAt, *preset.ScheduleStart, *preset.ScheduleEnd) {
				return nil, &ConflictError{PresetID: session.Preset.ID, PresetName: session.Preset.Name}
			}
		}
	}

	preset.IsActive = true
	if err := c.storage.SavePreset(ctx, preset); err != nil {
		return nil, fmt.Errorf("%w: save preset: %v", ErrBackendWriteFailed, err)
	}

	if preset.ScheduleStart.After(now) {
		actx, cancel := context.WithTimeout(ctx, opTimeout)
		if aerr := c.gateway.ScheduleAlarm(actx, userID, preset.ID, *preset.ScheduleStart); aerr != nil {
			c.logger.Warn("Failed to arm schedule alarm",
				"user_id", userID, "preset_id", preset.ID, "error", aerr)
		}
		cancel()
	}

	c.logger.Info("Scheduled preset enabled",
		"user_id", userID,
		"preset_id", preset.ID,
		"window_start", preset.ScheduleStart,
		"window_end", preset.ScheduleEnd,
	)
	return preset, nil
}

// DisableSchedule turns a scheduled preset off. The currently enforced
// preset cannot be disabled out from under its own session; the unlock
// transitions are the way out.
func (c *Controller) DisableSchedule(ctx context.Context, userID, presetID string) error {
	if err := c.begin(userID); err != nil {
		return err
	}
	defer c.end(userID)

	preset, err := c.storage.GetPreset(ctx, userID, presetID)
	if err != nil {
		return err
	}
	if !preset.IsScheduled {
		return ErrNotScheduledPreset
	}

	lock, err := c.storage.GetLockStatus(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: read lock status: %v", ErrBackendWriteFailed, err)
	}
	if lock != nil && lock.IsLocked && preset.WindowContains(c.clock()) && preset.IsActive {
		return ErrPresetEnforced
	}

	if err := c.storage.SetPresetActive(ctx, userID, presetID, false); err != nil {
		return fmt.Errorf("%w: deactivate preset: %v", ErrBackendWriteFailed, err)
	}

	actx, cancel := context.WithTimeout(ctx, opTimeout)
	if aerr := c.gateway.CancelAlarm(actx, userID, presetID); aerr != nil {
		c.logger.Warn("Failed to cancel schedule alarm",
			"user_id", userID, "preset_id", presetID, "error", aerr)
	}
	cancel()

	c.logger.Info("Scheduled preset disabled", "user_id", userID, "preset_id", presetID)
	return nil
}

// Rearm shifts a recurring preset's window to its next free occurrence.
// Used by the scheduler for occurrences that passed while no session was
// enforced (the live expiry path rearms on its own).
func (c *Controller) Rearm(ctx context.Context, userID, presetID string) error {
	if err := c.begin(userID); err != nil {
		return err
	}
	defer c.end(userID)

	preset, err := c.storage.GetPreset(ctx, userID, presetID)
	if err != nil {
		return err
	}
	if !preset.IsRecurring() {
		return ErrNotScheduledPreset
	}
	return c.rearmRecurring(ctx, userID, preset)
}

// Displace force-stops an untimed session so an arriving scheduled window
// can take over. The displaced preset is deactivated; commands are stopped
// before the scheduler issues the new start.
func (c *Controller) Displace(ctx context.Context, userID string) error {
	if err := c.begin(userID); err != nil {
		return err
	}
	defer c.end(userID)

	session, err := c.enforcedSession(ctx, userID)
	if err != nil {
		return err
	}
	if session.Lock.LockEndsAt != nil {
		// Timed sessions are never displaced; conflict checks keep
		// scheduled windows out of their way.
		return ErrNotDisplaceable
	}

	if err := c.teardown(ctx, userID, session, false); err != nil {
		return err
	}
	if err := c.storage.SetPresetActive(ctx, userID, session.Preset.ID, false); err != nil {
		return fmt.Errorf("%w: deactivate displaced preset: %v", ErrBackendWriteFailed, err)
	}

	c.logger.Info("Untimed session displaced by scheduled window",
		"user_id", userID, "preset_id", session.Preset.ID)
	if c.notifier != nil {
		c.notifier.SessionEnded(ctx, userID, session.Preset, "scheduled block starting")
	}
	return nil
}

// ClearOrphanedLock fails open when a lock exists with no enforced preset:
// the lock is cleared and the device force-unlocked, never re-locked.
func (c *Controller) ClearOrphanedLock(ctx context.Context, userID string) error {
	if err := c.begin(userID); err != nil {
		return err
	}
	defer c.end(userID)

	c.compensateStop(ctx, userID)
	if err := c.storage.SetLockStatus(ctx, userID, false, nil, nil); err != nil {
		return fmt.Errorf("%w: clear lock status: %v", ErrBackendWriteFailed, err)
	}

	c.logger.Error("Orphaned lock cleared: locked with no enforced preset", "user_id", userID)
	if c.notifier != nil {
		c.notifier.Anomaly(ctx, userID, "orphaned lock cleared")
	}
	return nil
}

// enforcedSession loads and derives the session, failing when idle
func (c *Controller) enforcedSession(ctx context.Context, userID string) (*Session, error) {
	lock, err := c.storage.GetLockStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: read lock status: %v", ErrBackendWriteFailed, err)
	}
	if lock == nil || !lock.IsLocked {
		return nil, ErrNotLocked
	}
	presets, err := c.storage.ListPresets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list presets: %v", ErrBackendWriteFailed, err)
	}
	session := DeriveSession(presets, lock, c.clock())
	if session == nil {
		return nil, ErrNotLocked
	}
	return session, nil
}

// teardown stops enforcement and clears the lock. expired selects the
// end-of-timer flag handling: non-recurring scheduled presets deactivate,
// recurring ones rearm, non-scheduled ones stay selected.
func (c *Controller) teardown(ctx context.Context, userID string, session *Session, expired bool) error {
	prior := session.Lock

	gctx, cancel := context.WithTimeout(ctx, opTimeout)
	err := c.gateway.ForceUnlock(gctx, userID)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEnforcementFailed, err)
	}

	actx, cancel := context.WithTimeout(ctx, opTimeout)
	if aerr := c.gateway.CancelAlarm(actx, userID, session.Preset.ID); aerr != nil {
		c.logger.Warn("Failed to cancel expiry alarm",
			"user_id", userID, "preset_id", session.Preset.ID, "error", aerr)
	}
	cancel()

	sctx, cancel := context.WithTimeout(ctx, opTimeout)
	err = c.storage.SetLockStatus(sctx, userID, false, nil, nil)
	cancel()
	if err != nil {
		// The device is already unlocked; restoring the lock record would
		// diverge the other way. Report and let reconciliation settle it.
		c.logger.Error("Failed to clear lock status after unlock",
			"user_id", userID, "error", err)
		return fmt.Errorf("%w: clear lock status: %v", ErrBackendWriteFailed, err)
	}

	if session.Preset.IsScheduled {
		if expired && session.Preset.IsRecurring() {
			if err := c.rearmRecurring(ctx, userID, session.Preset); err != nil {
				c.logger.Error("Failed to rearm recurring preset",
					"user_id", userID, "preset_id", session.Preset.ID, "error", err)
			}
		} else {
			if err := c.storage.SetPresetActive(ctx, userID, session.Preset.ID, false); err != nil {
				c.rollbackLock(ctx, userID, prior)
				return fmt.Errorf("%w: deactivate preset: %v", ErrBackendWriteFailed, err)
			}
		}
	}
	// Non-scheduled presets remain the selected current preset so the user
	// can re-lock without reconfiguring.

	return nil
}

// rearmRecurring shifts a recurring preset's window to its next free
// occurrence and keeps it enabled. An occurrence that would overlap another
// enabled schedule is skipped.
func (c *Controller) rearmRecurring(ctx context.Context, userID string, preset *Preset) error {
	presets, err := c.storage.ListPresets(ctx, userID)
	if err != nil {
		return err
	}

	now := c.clock()
	nextStart, nextEnd, ok := NextFreeOccurrence(preset, presets, now)
	if !ok {
		c.logger.Warn("Recurring preset has no reachable next occurrence, disabling",
			"user_id", userID, "preset_id", preset.ID)
		return c.storage.SetPresetActive(ctx, userID, preset.ID, false)
	}

	preset.ScheduleStart = &nextStart
	preset.ScheduleEnd = &nextEnd
	preset.IsActive = true
	if err := c.storage.SavePreset(ctx, preset); err != nil {
		return err
	}

	actx, cancel := context.WithTimeout(ctx, opTimeout)
	if aerr := c.gateway.ScheduleAlarm(actx, userID, preset.ID, nextStart); aerr != nil {
		c.logger.Warn("Failed to schedule rearm alarm",
			"user_id", userID, "preset_id", preset.ID, "error", aerr)
	}
	cancel()

	c.logger.Info("Recurring preset rearmed",
		"user_id", userID,
		"preset_id", preset.ID,
		"next_start", nextStart,
		"next_end", nextEnd,
	)
	return nil
}

// compensateStop issues a best-effort stop so the device never stays blocked
// when the backend record could not be written
func (c *Controller) compensateStop(ctx context.Context, userID string) {
	gctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := c.gateway.ForceUnlock(gctx, userID); err != nil {
		c.logger.Error("Compensating stop failed", "user_id", userID, "error", err)
	}
}

// rollbackLock restores the pre-transition lock record
func (c *Controller) rollbackLock(ctx context.Context, userID string, prior *LockStatus) {
	var (
		isLocked  bool
		endsAt    *time.Time
		startedAt *time.Time
	)
	if prior != nil {
		isLocked = prior.IsLocked
		endsAt = prior.LockEndsAt
		startedAt = prior.LockStartedAt
	}
	if err := c.storage.SetLockStatus(ctx, userID, isLocked, endsAt, startedAt); err != nil {
		c.logger.Error("Rollback of lock status failed", "user_id", userID, "error", err)
	}
}
