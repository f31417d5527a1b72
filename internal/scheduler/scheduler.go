// Package scheduler decides when scheduled presets enter and leave their
// windows. Every trigger — process start, the ticker, a foreground resume, a
// native alarm push — funnels into the same idempotent Evaluate call.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"focuslock/internal/core"
)

// markerTTL is how long an activation marker suppresses duplicate
// activations of the same occurrence from concurrent triggers
const markerTTL = 30 * time.Second

// Storage interface for scheduler operations
type Storage interface {
	ListUserIDs(ctx context.Context) ([]string, error)
	ListPresets(ctx context.Context, userID string) ([]*core.Preset, error)
	GetLockStatus(ctx context.Context, userID string) (*core.LockStatus, error)
	SetPresetActive(ctx context.Context, userID, presetID string, active bool) error
}

// Controller interface for driving session transitions
type Controller interface {
	Activate(ctx context.Context, userID, presetID string, fromSchedule bool) (*core.Session, error)
	Displace(ctx context.Context, userID string) error
	Expire(ctx context.Context, userID string) error
	Rearm(ctx context.Context, userID, presetID string) error
}

// AlarmScheduler is the slice of the enforcement gateway the scheduler uses
// to make the device self-trigger ticks
type AlarmScheduler interface {
	ScheduleAlarm(ctx context.Context, userID, presetID string, at time.Time) error
}

// Scheduler evaluates scheduled presets and drives the session controller
type Scheduler struct {
	storage    Storage
	controller Controller
	alarms     AlarmScheduler
	interval   time.Duration
	stopChan   chan struct{}
	logger     *slog.Logger
	clock      func() time.Time

	mu      sync.Mutex
	markers map[string]time.Time // occurrence key -> marker expiry
}

// NewScheduler creates a new scheduler
func NewScheduler(storage Storage, controller Controller, alarms AlarmScheduler, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		storage:    storage,
		controller: controller,
		alarms:     alarms,
		interval:   interval,
		stopChan:   make(chan struct{}),
		logger:     logger,
		clock:      time.Now,
		markers:    make(map[string]time.Time),
	}
}

// SetClock overrides the time source, for tests
func (s *Scheduler) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Start begins the scheduler loop
func (s *Scheduler) Start() {
	s.logger.Info("Scheduler started", "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stopChan:
			s.logger.Info("Scheduler stopped")
			return
		}
	}
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

// tick performs one cycle over all users
func (s *Scheduler) tick() {
	ctx := context.Background()

	userIDs, err := s.storage.ListUserIDs(ctx)
	if err != nil {
		s.logger.Error("Failed to list users", "error", err)
		return
	}

	for _, userID := range userIDs {
		if err := s.Evaluate(ctx, userID); err != nil {
			s.logger.Error("Evaluation failed", "user_id", userID, "error", err)
		}
	}
}

// Evaluate runs one scheduling pass for a user. Safe to invoke from any
// number of triggers concurrently: transitions serialize in the controller
// and occurrence markers make activation idempotent.
func (s *Scheduler) Evaluate(ctx context.Context, userID string) error {
	now := s.clock()

	lock, err := s.storage.GetLockStatus(ctx, userID)
	if err != nil {
		return err
	}
	presets, err := s.storage.ListPresets(ctx, userID)
	if err != nil {
		return err
	}

	// Timer ran out: the tick is allowed to detect this and expire once,
	// nothing else.
	if lock != nil && lock.Expired(now) {
		if err := s.controller.Expire(ctx, userID); err != nil {
			if errors.Is(err, core.ErrTransitionInFlight) || errors.Is(err, core.ErrNotLocked) {
				return nil
			}
			return err
		}
		// Reload state after the expiry settled
		lock, err = s.storage.GetLockStatus(ctx, userID)
		if err != nil {
			return err
		}
		presets, err = s.storage.ListPresets(ctx, userID)
		if err != nil {
			return err
		}
		now = s.clock()
	}

	session := core.DeriveSession(presets, lock, now)

	if err := s.sweepEndedWindows(ctx, userID, presets, session, now); err != nil {
		return err
	}

	incoming := findLiveWindow(presets, now)
	if incoming != nil {
		if err := s.enterWindow(ctx, userID, incoming, session, now); err != nil {
			return err
		}
	}

	s.armUpcomingAlarms(ctx, userID, presets, now)
	return nil
}

// findLiveWindow returns the enabled scheduled preset whose window contains
// now, if any. Invariant B guarantees at most one.
func findLiveWindow(presets []*core.Preset, now time.Time) *core.Preset {
	for _, p := range presets {
		if p.IsScheduled && p.IsActive && p.WindowContains(now) {
			return p
		}
	}
	return nil
}

// enterWindow drives the activation for an arriving scheduled window
func (s *Scheduler) enterWindow(ctx context.Context, userID string, incoming *core.Preset, session *core.Session, now time.Time) error {
	if session != nil && session.Preset.ID == incoming.ID {
		return nil // already enforcing this occurrence
	}

	if session != nil {
		if session.Lock.LockEndsAt != nil {
			// A different timed lock is running. The activate-time
			// conflict check should have made this unreachable; do not
			// override, just note it.
			s.logger.Warn("Scheduled window arrived under a foreign timed lock",
				"user_id", userID,
				"incoming_preset", incoming.ID,
				"enforced_preset", session.Preset.ID,
			)
			return nil
		}
		// An untimed lock yields to the scheduled window:
		// stop first, then start.
		if err := s.controller.Displace(ctx, userID); err != nil {
			if errors.Is(err, core.ErrTransitionInFlight) {
				return nil
			}
			return err
		}
	}

	if !s.claimOccurrence(incoming, now) {
		return nil // another trigger already activated this occurrence
	}

	if _, err := s.controller.Activate(ctx, userID, incoming.ID, true); err != nil {
		if errors.Is(err, core.ErrTransitionInFlight) || errors.Is(err, core.ErrNotIdle) {
			return nil
		}
		s.releaseOccurrence(incoming)
		return err
	}

	s.logger.Info("Scheduled preset activated",
		"user_id", userID,
		"preset_id", incoming.ID,
		"window_end", incoming.ScheduleEnd,
	)
	return nil
}

// sweepEndedWindows settles enabled scheduled presets whose window has
// passed: the enforced one expires, recurring ones rearm, and missed
// non-recurring ones deactivate.
func (s *Scheduler) sweepEndedWindows(ctx context.Context, userID string, presets []*core.Preset, session *core.Session, now time.Time) error {
	for _, p := range presets {
		if !p.IsScheduled || !p.IsActive || !p.WindowEnded(now) {
			continue
		}

		if session != nil && session.Preset.ID == p.ID {
			// Enforced and over: the live expiry path handles teardown
			// and rearming.
			if err := s.controller.Expire(ctx, userID); err != nil && !errors.Is(err, core.ErrTransitionInFlight) {
				return err
			}
			continue
		}

		if p.IsRecurring() {
			// Never activated for this occurrence (process was down);
			// rearm rather than letting it read as expired.
			if err := s.controller.Rearm(ctx, userID, p.ID); err != nil && !errors.Is(err, core.ErrTransitionInFlight) {
				return err
			}
			continue
		}

		s.logger.Info("Missed scheduled window, disabling preset",
			"user_id", userID,
			"preset_id", p.ID,
		)
		if err := s.storage.SetPresetActive(ctx, userID, p.ID, false); err != nil {
			return err
		}
	}
	return nil
}

// armUpcomingAlarms asks the device to self-trigger at the next window
// start of each enabled scheduled preset
func (s *Scheduler) armUpcomingAlarms(ctx context.Context, userID string, presets []*core.Preset, now time.Time) {
	for _, p := range presets {
		if !p.IsScheduled || !p.IsActive || p.ScheduleStart == nil {
			continue
		}
		if !p.ScheduleStart.After(now) {
			continue
		}
		if err := s.alarms.ScheduleAlarm(ctx, userID, p.ID, *p.ScheduleStart); err != nil {
			s.logger.Warn("Failed to arm schedule alarm",
				"user_id", userID,
				"preset_id", p.ID,
				"error", err,
			)
		}
	}
}

// claimOccurrence records an in-flight activation marker for one occurrence
// of a scheduled preset. Returns false when the occurrence is already
// claimed and still fresh.
func (s *Scheduler) claimOccurrence(p *core.Preset, now time.Time) bool {
	key := occurrenceKey(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.markers[key]; ok && now.Before(expiry) {
		return false
	}
	// Drop stale markers opportunistically
	for k, expiry := range s.markers {
		if !now.Before(expiry) {
			delete(s.markers, k)
		}
	}
	s.markers[key] = now.Add(markerTTL)
	return true
}

// releaseOccurrence drops a marker after a failed activation so a later
// trigger can retry
func (s *Scheduler) releaseOccurrence(p *core.Preset) {
	s.mu.Lock()
	delete(s.markers, occurrenceKey(p))
	s.mu.Unlock()
}

func occurrenceKey(p *core.Preset) string {
	key := p.UserID + "/" + p.ID
	if p.ScheduleStart != nil {
		key += "/" + p.ScheduleStart.UTC().Format(time.RFC3339)
	}
	return key
}
