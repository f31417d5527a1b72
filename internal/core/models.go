package core

import (
	"errors"
	"time"
)

// BlockMode selects what a preset blocks
type BlockMode string

const (
	BlockModeAll      BlockMode = "all"
	BlockModeSpecific BlockMode = "specific"
)

// RepeatUnit is the unit of a recurring preset's repeat interval
type RepeatUnit string

const (
	RepeatUnitHour  RepeatUnit = "hour"
	RepeatUnitDay   RepeatUnit = "day"
	RepeatUnitWeek  RepeatUnit = "week"
	RepeatUnitMonth RepeatUnit = "month"
)

// Preset is a named blocking configuration owned by a single user.
// IsActive means "currently enforced or selected" for non-scheduled presets
// and "enabled" for scheduled presets; it is mutated only by the session
// controller and the scheduler, never by a raw preset edit.
type Preset struct {
	ID              string
	UserID          string
	Name            string
	Mode            BlockMode
	SelectedApps    []string
	BlockedWebsites []string

	// Duration spec: timer fields, an absolute target date, or no limit.
	DurationDays    int
	DurationHours   int
	DurationMinutes int
	DurationSeconds int
	TargetDate      *time.Time
	NoTimeLimit     bool

	BlockSettings        bool
	StrictMode           bool
	AllowEmergencyTapout bool

	IsScheduled   bool
	ScheduleStart *time.Time
	ScheduleEnd   *time.Time

	RepeatEnabled  bool
	RepeatUnit     RepeatUnit
	RepeatInterval int

	IsActive  bool
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LockStatus is the single global enforcement record for a user
type LockStatus struct {
	UserID        string
	IsLocked      bool
	LockEndsAt    *time.Time // nil means no-time-limit lock
	LockStartedAt *time.Time
	UpdatedAt     time.Time
}

// TapoutStatus tracks a user's remaining emergency unlocks.
// Remaining is authoritative server-side; refills accrue on a fixed schedule.
type TapoutStatus struct {
	UserID       string
	Remaining    int
	LastRefillAt time.Time
	UpdatedAt    time.Time
}

// PendingTapout marks a tapout whose ledger decrement has been requested but
// not yet confirmed. Reconciliation resolves stale markers in favor of the
// already-unlocked device.
type PendingTapout struct {
	UserID      string
	PresetID    string
	RequestedAt time.Time
}

// User is an account that owns presets and a lock status
type User struct {
	ID        string
	Name      string
	TokenHash string // bcrypt hash of the API token
	ChatID    int64  // optional Telegram chat for notifications, 0 = none
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session is the derived enforcement tuple: the preset currently being
// enforced plus the lock record. It is never persisted as its own row.
type Session struct {
	Preset     *Preset
	Lock       *LockStatus
	Remaining  time.Duration // zero for untimed locks
	NoTimeOnly bool          // true when the lock has no end time
}

// Validation errors
var (
	ErrInvalidPresetName    = errors.New("preset name cannot be empty")
	ErrInvalidBlockMode     = errors.New("block mode must be all or specific")
	ErrNothingSelected      = errors.New("specific mode requires apps or websites")
	ErrInvalidScheduleRange = errors.New("schedule start must be before schedule end")
	ErrScheduleIncomplete   = errors.New("scheduled preset requires both start and end")
	ErrInvalidRepeat        = errors.New("invalid repeat configuration")
	ErrInvalidDuration      = errors.New("duration cannot be negative")
	ErrPresetNotFound       = errors.New("preset not found")
	ErrUserNotFound         = errors.New("user not found")
)

// Transition errors
var (
	ErrNotIdle             = errors.New("a session is already being enforced")
	ErrNotLocked           = errors.New("no session is being enforced")
	ErrTransitionInFlight  = errors.New("another transition is in flight")
	ErrStrictModeActive    = errors.New("strict mode forbids early exit while the timer runs")
	ErrTapoutNotAllowed    = errors.New("preset does not allow emergency tapout")
	ErrTapoutExhausted     = errors.New("no emergency tapouts remaining")
	ErrBackendWriteFailed  = errors.New("backend write failed")
	ErrEnforcementFailed   = errors.New("enforcement engine command failed")
	ErrPresetEnforced      = errors.New("preset is currently enforced")
	ErrNotDisplaceable     = errors.New("only an untimed session can be displaced")
	ErrWindowPassed        = errors.New("schedule window has already passed")
	ErrNotScheduledPreset  = errors.New("preset is not a scheduled preset")
	ErrDefaultPresetDelete = errors.New("default preset requires forced delete")
)

// Validate validates a Preset
func (p *Preset) Validate() error {
	if p.Name == "" {
		return ErrInvalidPresetName
	}
	if p.Mode != BlockModeAll && p.Mode != BlockModeSpecific {
		return ErrInvalidBlockMode
	}
	if p.Mode == BlockModeSpecific && len(p.SelectedApps) == 0 && len(p.BlockedWebsites) == 0 {
		return ErrNothingSelected
	}
	if p.DurationDays < 0 || p.DurationHours < 0 || p.DurationMinutes < 0 || p.DurationSeconds < 0 {
		return ErrInvalidDuration
	}
	if p.IsScheduled {
		if p.ScheduleStart == nil || p.ScheduleEnd == nil {
			return ErrScheduleIncomplete
		}
		if !p.ScheduleStart.Before(*p.ScheduleEnd) {
			return ErrInvalidScheduleRange
		}
	}
	if p.RepeatEnabled {
		if !p.IsScheduled {
			return ErrInvalidRepeat
		}
		if p.RepeatInterval < 1 {
			return ErrInvalidRepeat
		}
		switch p.RepeatUnit {
		case RepeatUnitHour, RepeatUnitDay, RepeatUnitWeek, RepeatUnitMonth:
		default:
			return ErrInvalidRepeat
		}
	}
	return nil
}

// TimerDuration returns the timer-fields duration
func (p *Preset) TimerDuration() time.Duration {
	return time.Duration(p.DurationDays)*24*time.Hour +
		time.Duration(p.DurationHours)*time.Hour +
		time.Duration(p.DurationMinutes)*time.Minute +
		time.Duration(p.DurationSeconds)*time.Second
}

// Untimed reports whether the preset locks with no end time.
// NoTimeLimit takes precedence only when no other duration source is set.
func (p *Preset) Untimed() bool {
	if p.IsScheduled {
		return false
	}
	if p.TargetDate != nil {
		return false
	}
	if p.TimerDuration() > 0 {
		return false
	}
	return p.NoTimeLimit
}

// LockEnd computes when a lock started at now would end.
// Precedence: schedule end for scheduled presets, then target date, then the
// timer fields. Returns nil for an untimed lock.
func (p *Preset) LockEnd(now time.Time) *time.Time {
	if p.IsScheduled && p.ScheduleEnd != nil {
		end := *p.ScheduleEnd
		return &end
	}
	if p.TargetDate != nil {
		end := *p.TargetDate
		return &end
	}
	if d := p.TimerDuration(); d > 0 {
		end := now.Add(d)
		return &end
	}
	return nil
}

// WindowContains reports whether a scheduled preset's window contains t.
// The window is half-open: [start, end).
func (p *Preset) WindowContains(t time.Time) bool {
	if !p.IsScheduled || p.ScheduleStart == nil || p.ScheduleEnd == nil {
		return false
	}
	return !t.Before(*p.ScheduleStart) && t.Before(*p.ScheduleEnd)
}

// WindowEnded reports whether a scheduled preset's window has passed
func (p *Preset) WindowEnded(t time.Time) bool {
	if !p.IsScheduled || p.ScheduleEnd == nil {
		return false
	}
	return !t.Before(*p.ScheduleEnd)
}

// IsRecurring reports whether the preset rearms after each occurrence
func (p *Preset) IsRecurring() bool {
	return p.IsScheduled && p.RepeatEnabled
}

// Expired reports whether the lock's deadline has passed
func (l *LockStatus) Expired(now time.Time) bool {
	if !l.IsLocked || l.LockEndsAt == nil {
		return false
	}
	return !now.Before(*l.LockEndsAt)
}

// Elapsed returns how long the lock has been held
func (l *LockStatus) Elapsed(now time.Time) time.Duration {
	if !l.IsLocked || l.LockStartedAt == nil {
		return 0
	}
	return now.Sub(*l.LockStartedAt)
}
