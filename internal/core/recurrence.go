package core

import "time"

// maxRecurrenceSteps bounds the rollover loop against degenerate intervals
const maxRecurrenceSteps = 1000

// addPeriod shifts t forward by interval units
func addPeriod(t time.Time, unit RepeatUnit, interval int) time.Time {
	switch unit {
	case RepeatUnitHour:
		return t.Add(time.Duration(interval) * time.Hour)
	case RepeatUnitDay:
		return t.AddDate(0, 0, interval)
	case RepeatUnitWeek:
		return t.AddDate(0, 0, 7*interval)
	case RepeatUnitMonth:
		return t.AddDate(0, interval, 0)
	default:
		return t.AddDate(0, 0, interval)
	}
}

// NextOccurrence advances a recurring window by whole periods until its end
// is after now, returning the next non-past window. A window whose start has
// passed but whose end has not is returned as-is, so a live occurrence stays
// eligible for activation. ok is false when the interval never advances the
// window within the step bound.
func NextOccurrence(start, end time.Time, unit RepeatUnit, interval int, now time.Time) (nextStart, nextEnd time.Time, ok bool) {
	if interval < 1 {
		return start, end, false
	}

	nextStart, nextEnd = start, end
	for i := 0; i < maxRecurrenceSteps; i++ {
		if nextEnd.After(now) {
			return nextStart, nextEnd, true
		}
		shiftedStart := addPeriod(nextStart, unit, interval)
		shiftedEnd := addPeriod(nextEnd, unit, interval)
		if !shiftedStart.After(nextStart) {
			// Degenerate interval that does not move the window forward
			return start, end, false
		}
		nextStart, nextEnd = shiftedStart, shiftedEnd
	}
	return start, end, false
}

// NextFreeOccurrence behaves like NextOccurrence but additionally skips
// occurrences whose window would overlap another enabled scheduled preset.
// A recurring preset silently skips colliding occurrences rather than
// disabling itself or raising a conflict nobody is there to see.
func NextFreeOccurrence(p *Preset, others []*Preset, now time.Time) (nextStart, nextEnd time.Time, ok bool) {
	if p.ScheduleStart == nil || p.ScheduleEnd == nil {
		return time.Time{}, time.Time{}, false
	}

	nextStart, nextEnd, ok = NextOccurrence(*p.ScheduleStart, *p.ScheduleEnd, p.RepeatUnit, p.RepeatInterval, now)
	if !ok {
		return nextStart, nextEnd, false
	}

	for i := 0; i < maxRecurrenceSteps; i++ {
		if CheckScheduleConflict(p.ID, nextStart, nextEnd, others) == nil {
			return nextStart, nextEnd, true
		}
		nextStart = addPeriod(nextStart, p.RepeatUnit, p.RepeatInterval)
		nextEnd = addPeriod(nextEnd, p.RepeatUnit, p.RepeatInterval)
	}
	return nextStart, nextEnd, false
}
