package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/timeutil"
)

func loc(t *testing.T) *time.Location {
	t.Helper()
	l, err := timeutil.BusinessLocation("")
	require.NoError(t, err)
	return l
}

func TestCalculateWindowsForTechnician_Defaults(t *testing.T) {
	tech := &entity.Technician{
		ID: uuid.New(),
		DefaultHours: []entity.HoursEntry{
			{DayOfWeek: time.Thursday, StartTime: "09:00:00", EndTime: "18:30:00", IsAvailable: true},
		},
	}

	// 2026-07-30 is a Thursday.
	date := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	windows, err := CalculateWindowsForTechnician(tech, date, date, loc(t))
	require.NoError(t, err)

	got, ok := windows["2026-07-30"]
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.True(t, got[0].Start.Before(got[0].End))
}

func TestCalculateWindowsForTechnician_TimeOffException(t *testing.T) {
	tech := &entity.Technician{
		ID: uuid.New(),
		DefaultHours: []entity.HoursEntry{
			{DayOfWeek: time.Thursday, StartTime: "09:00:00", EndTime: "18:30:00", IsAvailable: true},
		},
		Exceptions: map[string]entity.AvailabilityException{
			"2026-07-30": {Date: "2026-07-30", Type: entity.ExceptionTimeOff, Available: false},
		},
	}

	date := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	windows, err := CalculateWindowsForTechnician(tech, date, date, loc(t))
	require.NoError(t, err)

	_, ok := windows["2026-07-30"]
	assert.False(t, ok, "time_off exception must omit the day entirely")
}

func TestCalculateWindowsForTechnician_CustomHoursReplacesDefaults(t *testing.T) {
	start, end := "07:00:00", "12:00:00"
	tech := &entity.Technician{
		ID: uuid.New(),
		DefaultHours: []entity.HoursEntry{
			{DayOfWeek: time.Thursday, StartTime: "09:00:00", EndTime: "18:30:00", IsAvailable: true},
		},
		Exceptions: map[string]entity.AvailabilityException{
			"2026-07-30": {Date: "2026-07-30", Type: entity.ExceptionCustomHours, Available: true, StartTime: &start, EndTime: &end},
		},
	}

	date := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	windows, err := CalculateWindowsForTechnician(tech, date, date, loc(t))
	require.NoError(t, err)

	got := windows["2026-07-30"]
	require.Len(t, got, 1)
	label, hhmmss := timeutil.FormatBusinessTime(got[0].Start, loc(t))
	assert.Equal(t, "2026-07-30", label)
	assert.Equal(t, "07:00:00", hhmmss)
}

func TestCalculateWindowsForTechnician_SortedNonOverlapping(t *testing.T) {
	tech := &entity.Technician{
		ID: uuid.New(),
		DefaultHours: []entity.HoursEntry{
			{DayOfWeek: time.Thursday, StartTime: "13:00:00", EndTime: "17:00:00", IsAvailable: true},
			{DayOfWeek: time.Thursday, StartTime: "08:00:00", EndTime: "12:00:00", IsAvailable: true},
		},
	}

	date := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	windows, err := CalculateWindowsForTechnician(tech, date, date, loc(t))
	require.NoError(t, err)

	got := windows["2026-07-30"]
	require.Len(t, got, 2)
	assert.True(t, got[0].Start.Before(got[1].Start))
	assert.False(t, got[0].Overlaps(got[1]))
}

func TestApplyLockedJobsToWindows_TighterTimingForOngoingJob(t *testing.T) {
	shift := []entity.TimeWindow{
		{Start: time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 7, 30, 18, 0, 0, 0, time.UTC)},
	}
	start := time.Date(2026, 7, 30, 13, 0, 0, 0, time.UTC)
	job := &entity.Job{
		ID:                 uuid.New(),
		Status:             entity.JobStatusInProgress,
		DurationMinutes:    120,
		EstimatedSchedTime: &start,
	}
	now := time.Date(2026, 7, 30, 14, 30, 0, 0, time.UTC)

	out := ApplyLockedJobsToWindows(shift, []*entity.Job{job}, "2026-07-30", now, true)

	require.Len(t, out, 2)
	assert.Equal(t, time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC), out[0].Start)
	assert.Equal(t, time.Date(2026, 7, 30, 14, 30, 0, 0, time.UTC), out[0].End)
	assert.Equal(t, time.Date(2026, 7, 30, 15, 0, 0, 0, time.UTC), out[1].Start)
	assert.Equal(t, time.Date(2026, 7, 30, 18, 0, 0, 0, time.UTC), out[1].End)
}

func TestApplyLockedJobsToWindows_AlreadyFinishedJobBlocksNothing(t *testing.T) {
	shift := []entity.TimeWindow{
		{Start: time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 7, 30, 18, 0, 0, 0, time.UTC)},
	}
	start := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	job := &entity.Job{
		ID:                 uuid.New(),
		Status:             entity.JobStatusInProgress,
		DurationMinutes:    120,
		EstimatedSchedTime: &start,
	}
	now := time.Date(2026, 7, 30, 14, 30, 0, 0, time.UTC)

	out := ApplyLockedJobsToWindows(shift, []*entity.Job{job}, "2026-07-30", now, true)

	require.Len(t, out, 1)
	assert.Equal(t, shift[0], out[0])
}

func TestApplyLockedJobsToWindows_FixedTimeBlocksExactSpan(t *testing.T) {
	shift := []entity.TimeWindow{
		{Start: time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 7, 30, 18, 0, 0, 0, time.UTC)},
	}
	fixed := time.Date(2026, 7, 30, 11, 0, 0, 0, time.UTC)
	job := &entity.Job{
		ID:                uuid.New(),
		Status:            entity.JobStatusFixedTime,
		DurationMinutes:   30,
		FixedScheduleTime: &fixed,
	}

	out := ApplyLockedJobsToWindows(shift, []*entity.Job{job}, "2026-07-30", time.Now(), false)

	require.Len(t, out, 2)
	assert.Equal(t, fixed, out[0].End)
	assert.Equal(t, fixed.Add(30*time.Minute), out[1].Start)
}

func TestFindAvailabilityGaps_CoversEnvelope(t *testing.T) {
	techID := uuid.New()
	envelopeStart := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	envelopeEnd := time.Date(2026, 7, 30, 18, 0, 0, 0, time.UTC)
	windows := []entity.TimeWindow{
		{Start: time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 7, 30, 11, 0, 0, 0, time.UTC)},
		{Start: time.Date(2026, 7, 30, 13, 0, 0, 0, time.UTC), End: time.Date(2026, 7, 30, 18, 0, 0, 0, time.UTC)},
	}

	gaps := FindAvailabilityGaps(techID, windows, envelopeStart, envelopeEnd)

	require.Len(t, gaps, 1)
	assert.Equal(t, time.Date(2026, 7, 30, 11, 0, 0, 0, time.UTC), gaps[0].Start)
	assert.Equal(t, time.Date(2026, 7, 30, 13, 0, 0, 0, time.UTC), gaps[0].End)
	assert.EqualValues(t, 2*60*60, gaps[0].DurationSeconds)
}

func TestFindAvailabilityGaps_EmptyWindowsProducesSingleGap(t *testing.T) {
	techID := uuid.New()
	start := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 7, 30, 18, 0, 0, 0, time.UTC)

	gaps := FindAvailabilityGaps(techID, nil, start, end)

	require.Len(t, gaps, 1)
	assert.Equal(t, start, gaps[0].Start)
	assert.Equal(t, end, gaps[0].End)
}
