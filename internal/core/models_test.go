package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreset_Validate(t *testing.T) {
	start := testBase.Add(time.Hour)
	end := testBase.Add(2 * time.Hour)

	tests := []struct {
		name    string
		mutate  func(p *Preset)
		wantErr error
	}{
		{
			name:   "valid all mode",
			mutate: func(p *Preset) {},
		},
		{
			name: "valid specific mode",
			mutate: func(p *Preset) {
				p.Mode = BlockModeSpecific
				p.SelectedApps = []string{"com.example.game"}
			},
		},
		{
			name:    "empty name",
			mutate:  func(p *Preset) { p.Name = "" },
			wantErr: ErrInvalidPresetName,
		},
		{
			name:    "unknown mode",
			mutate:  func(p *Preset) { p.Mode = "everything" },
			wantErr: ErrInvalidBlockMode,
		},
		{
			name:    "specific mode with nothing selected",
			mutate:  func(p *Preset) { p.Mode = BlockModeSpecific },
			wantErr: ErrNothingSelected,
		},
		{
			name:    "negative duration",
			mutate:  func(p *Preset) { p.DurationMinutes = -5 },
			wantErr: ErrInvalidDuration,
		},
		{
			name: "scheduled without end",
			mutate: func(p *Preset) {
				p.IsScheduled = true
				p.ScheduleStart = &start
			},
			wantErr: ErrScheduleIncomplete,
		},
		{
			name: "schedule start after end",
			mutate: func(p *Preset) {
				p.IsScheduled = true
				p.ScheduleStart = &end
				p.ScheduleEnd = &start
			},
			wantErr: ErrInvalidScheduleRange,
		},
		{
			name: "zero length window",
			mutate: func(p *Preset) {
				p.IsScheduled = true
				p.ScheduleStart = &start
				p.ScheduleEnd = &start
			},
			wantErr: ErrInvalidScheduleRange,
		},
		{
			name: "repeat on non-scheduled preset",
			mutate: func(p *Preset) {
				p.RepeatEnabled = true
				p.RepeatUnit = RepeatUnitDay
				p.RepeatInterval = 1
			},
			wantErr: ErrInvalidRepeat,
		},
		{
			name: "repeat with zero interval",
			mutate: func(p *Preset) {
				p.IsScheduled = true
				p.ScheduleStart = &start
				p.ScheduleEnd = &end
				p.RepeatEnabled = true
				p.RepeatUnit = RepeatUnitDay
			},
			wantErr: ErrInvalidRepeat,
		},
		{
			name: "repeat with unknown unit",
			mutate: func(p *Preset) {
				p.IsScheduled = true
				p.ScheduleStart = &start
				p.ScheduleEnd = &end
				p.RepeatEnabled = true
				p.RepeatUnit = "fortnight"
				p.RepeatInterval = 1
			},
			wantErr: ErrInvalidRepeat,
		},
		{
			name: "valid recurring schedule",
			mutate: func(p *Preset) {
				p.IsScheduled = true
				p.ScheduleStart = &start
				p.ScheduleEnd = &end
				p.RepeatEnabled = true
				p.RepeatUnit = RepeatUnitWeek
				p.RepeatInterval = 2
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Preset{Name: "Work", Mode: BlockModeAll}
			tt.mutate(p)
			err := p.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPreset_TimerDuration(t *testing.T) {
	p := &Preset{DurationDays: 1, DurationHours: 2, DurationMinutes: 3, DurationSeconds: 4}
	want := 24*time.Hour + 2*time.Hour + 3*time.Minute + 4*time.Second
	assert.Equal(t, want, p.TimerDuration())
	assert.Equal(t, time.Duration(0), (&Preset{}).TimerDuration())
}

func TestPreset_LockEnd(t *testing.T) {
	now := testBase
	target := now.Add(3 * time.Hour)
	schedEnd := now.Add(time.Hour)
	schedStart := now.Add(-time.Hour)

	// Schedule end wins over everything
	p := &Preset{
		IsScheduled:   true,
		ScheduleStart: &schedStart,
		ScheduleEnd:   &schedEnd,
		TargetDate:    &target,
		DurationHours: 5,
	}
	require.NotNil(t, p.LockEnd(now))
	assert.Equal(t, schedEnd, *p.LockEnd(now))

	// Target date wins over the timer fields
	p = &Preset{TargetDate: &target, DurationHours: 5}
	assert.Equal(t, target, *p.LockEnd(now))

	// Timer fields add to now
	p = &Preset{DurationMinutes: 45}
	assert.Equal(t, now.Add(45*time.Minute), *p.LockEnd(now))

	// Nothing set: open-ended
	p = &Preset{NoTimeLimit: true}
	assert.Nil(t, p.LockEnd(now))
}

func TestPreset_Untimed(t *testing.T) {
	target := testBase.Add(time.Hour)

	assert.True(t, (&Preset{NoTimeLimit: true}).Untimed())
	assert.False(t, (&Preset{NoTimeLimit: true, DurationMinutes: 10}).Untimed())
	assert.False(t, (&Preset{NoTimeLimit: true, TargetDate: &target}).Untimed())
	assert.False(t, (&Preset{}).Untimed())

	start := testBase
	p := &Preset{NoTimeLimit: true, IsScheduled: true, ScheduleStart: &start, ScheduleEnd: &target}
	assert.False(t, p.Untimed())
}

func TestPreset_WindowContains(t *testing.T) {
	start := testBase
	end := testBase.Add(time.Hour)
	p := &Preset{IsScheduled: true, ScheduleStart: &start, ScheduleEnd: &end}

	// Half-open: start inclusive, end exclusive
	assert.True(t, p.WindowContains(start))
	assert.True(t, p.WindowContains(end.Add(-time.Nanosecond)))
	assert.False(t, p.WindowContains(end))
	assert.False(t, p.WindowContains(start.Add(-time.Nanosecond)))

	assert.False(t, (&Preset{}).WindowContains(start))
}

func TestPreset_WindowEnded(t *testing.T) {
	start := testBase
	end := testBase.Add(time.Hour)
	p := &Preset{IsScheduled: true, ScheduleStart: &start, ScheduleEnd: &end}

	assert.False(t, p.WindowEnded(end.Add(-time.Second)))
	assert.True(t, p.WindowEnded(end))
	assert.True(t, p.WindowEnded(end.Add(time.Second)))
}

func TestLockStatus_Expired(t *testing.T) {
	end := testBase.Add(time.Hour)

	lock := &LockStatus{IsLocked: true, LockEndsAt: &end}
	assert.False(t, lock.Expired(testBase))
	assert.True(t, lock.Expired(end))
	assert.True(t, lock.Expired(end.Add(time.Minute)))

	// Open-ended locks never expire
	assert.False(t, (&LockStatus{IsLocked: true}).Expired(testBase.Add(1000*time.Hour)))
	// Unlocked records never expire either
	assert.False(t, (&LockStatus{LockEndsAt: &end}).Expired(end.Add(time.Hour)))
}
