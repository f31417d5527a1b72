package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"focuslock/internal/enforce"
)

// pendingTapoutGrace is how old a pending tapout marker must be before
// reconciliation treats its decrement as lost rather than merely slow
const pendingTapoutGrace = time.Minute

// Reconciler heals state drift left behind by process death: locks whose
// timers expired unobserved, locks with no matching preset, and tapout
// decrements whose outcome was lost. It must run before the scheduler's
// first tick for a user, since the scheduler assumes LockStatus is real.
type Reconciler struct {
	storage    Storage
	controller *Controller
	gateway    enforce.Gateway
	logger     *slog.Logger
	clock      func() time.Time
}

// NewReconciler creates a new reconciler
func NewReconciler(storage Storage, controller *Controller, gateway enforce.Gateway, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		storage:    storage,
		controller: controller,
		gateway:    gateway,
		logger:     logger,
		clock:      time.Now,
	}
}

// SetClock overrides the time source, for tests
func (r *Reconciler) SetClock(clock func() time.Time) {
	r.clock = clock
}

// Run performs one reconciliation pass for a user. Anomalies are resolved
// and logged, never surfaced as user errors.
func (r *Reconciler) Run(ctx context.Context, userID string) error {
	now := r.clock()

	lock, err := r.storage.GetLockStatus(ctx, userID)
	if err != nil {
		return err
	}

	if err := r.resolvePendingTapout(ctx, userID, lock, now); err != nil {
		r.logger.Error("Failed to resolve pending tapout", "user_id", userID, "error", err)
	}

	if lock == nil || !lock.IsLocked {
		return nil
	}

	presets, err := r.storage.ListPresets(ctx, userID)
	if err != nil {
		return err
	}

	// Lock expired while nobody was watching: run the live expiry path,
	// recurrence rearming included, before any UI reads "is locked".
	if lock.Expired(now) {
		r.logger.Info("Stale lock detected, expiring",
			"user_id", userID,
			"lock_ended_at", lock.LockEndsAt,
			"overdue", now.Sub(*lock.LockEndsAt).String(),
		)
		if err := r.controller.Expire(ctx, userID); err != nil {
			if errors.Is(err, ErrNotLocked) {
				// Lock record with no enforced preset; fall through to
				// the orphan path.
				return r.controller.ClearOrphanedLock(ctx, userID)
			}
			return err
		}
		return nil
	}

	// Locked with no derivable enforced preset: fail open to Idle rather
	// than leaving the UI stuck locked with no escape.
	if DeriveSession(presets, lock, now) == nil {
		return r.controller.ClearOrphanedLock(ctx, userID)
	}

	// Secondary cross-check against the engine where available: a lock the
	// engine is no longer enforcing is as stale as an expired one.
	info, err := r.gateway.GetSessionInfo(ctx, userID)
	if err != nil {
		r.logger.Warn("Engine session info unavailable", "user_id", userID, "error", err)
		return nil
	}
	if info != nil && !info.IsActive && lock.LockEndsAt == nil {
		r.logger.Error("Engine idle under an untimed lock, failing open", "user_id", userID)
		return r.controller.ClearOrphanedLock(ctx, userID)
	}

	return nil
}

// resolvePendingTapout settles a tapout whose ledger decrement was requested
// but never confirmed. The already-unlocked device wins over perfect
// counting: the marker is cleared and the anomaly logged, never re-locking.
func (r *Reconciler) resolvePendingTapout(ctx context.Context, userID string, lock *LockStatus, now time.Time) error {
	pending, err := r.storage.GetPendingTapout(ctx, userID)
	if err != nil {
		return err
	}
	if pending == nil {
		return nil
	}
	if now.Sub(pending.RequestedAt) < pendingTapoutGrace {
		// A transition may legitimately still be in flight
		return nil
	}

	if lock == nil || !lock.IsLocked {
		r.logger.Error("Tapout decrement outcome lost after device unlocked",
			"user_id", userID,
			"preset_id", pending.PresetID,
			"requested_at", pending.RequestedAt,
		)
	} else {
		r.logger.Warn("Stale pending tapout under a live lock, discarding marker",
			"user_id", userID,
			"preset_id", pending.PresetID,
		)
	}

	return r.storage.ClearPendingTapout(ctx, userID)
}
