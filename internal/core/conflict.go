package core

import (
	"fmt"
	"time"
)

// ConflictError reports a rejected activation together with the preset whose
// window collides. It is user-correctable: nothing has been mutated when it
// is returned.
type ConflictError struct {
	PresetID   string
	PresetName string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schedule conflict with preset %q", e.PresetName)
}

// WindowsOverlap reports whether two half-open time windows [startA, endA)
// and [startB, endB) overlap. Touching boundaries do not overlap.
func WindowsOverlap(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && startB.Before(endA)
}

// CheckScheduleConflict compares a candidate scheduled window against every
// other enabled scheduled preset. The candidate's own ID is skipped so that
// re-enabling or rearming a preset never collides with itself.
func CheckScheduleConflict(candidateID string, start, end time.Time, presets []*Preset) *ConflictError {
	for _, p := range presets {
		if p.ID == candidateID {
			continue
		}
		if !p.IsScheduled || !p.IsActive || p.ScheduleStart == nil || p.ScheduleEnd == nil {
			continue
		}
		if WindowsOverlap(start, end, *p.ScheduleStart, *p.ScheduleEnd) {
			return &ConflictError{PresetID: p.ID, PresetName: p.Name}
		}
	}
	return nil
}

// CheckTimedConflict compares the projected run [now, projectedEnd) of a
// timed non-scheduled activation against every enabled scheduled preset's
// window. Untimed activations are exempt; the scheduler displaces them
// instead when a window arrives.
func CheckTimedConflict(now, projectedEnd time.Time, presets []*Preset) *ConflictError {
	for _, p := range presets {
		if !p.IsScheduled || !p.IsActive || p.ScheduleStart == nil || p.ScheduleEnd == nil {
			continue
		}
		if WindowsOverlap(now, projectedEnd, *p.ScheduleStart, *p.ScheduleEnd) {
			return &ConflictError{PresetID: p.ID, PresetName: p.Name}
		}
	}
	return nil
}
