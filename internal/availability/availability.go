// Package availability computes, for a technician and a date range,
// the windows of the day they are actually available to be dispatched
// to, after applying per-date exceptions and subtracting whatever time
// is already committed to locked jobs. It is the pure-function core of
// a pass: nothing here performs I/O, so every function is safe to call
// from any goroutine and trivial to unit test with literal inputs.
package availability

import (
	"sort"
	"time"

	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/timeutil"
)

// CalculateWindowsForTechnician builds the technician's DailyAvailability
// for every UTC calendar date in [startDate, endDate], inclusive.
//
// For each date:
//  1. The UTC day-of-week selects the technician's default hours rows.
//  2. A registered exception for that date, if any, overrides the
//     defaults entirely: a time_off exception (or a custom_hours
//     exception with Available=false) produces no windows for the day;
//     a custom_hours exception with Available=true and both times set
//     produces exactly one window for the day, parsed in the business
//     timezone.
//  3. Otherwise, every default-hours row for that weekday with
//     IsAvailable true produces one window, parsed in the business
//     timezone.
//  4. Windows whose start is not strictly before their end are
//     discarded. The surviving windows are sorted by start.
//
// A date with zero surviving windows is omitted from the returned map
// entirely — there is no empty-slice entry.
func CalculateWindowsForTechnician(tech *entity.Technician, startDate, endDate time.Time, loc *time.Location) (entity.DailyAvailability, error) {
	result := make(entity.DailyAvailability)

	start := startDate.UTC()
	end := endDate.UTC()
	for d := start; !d.After(end); d = timeutil.AddCalendarDaysUTC(d, 1) {
		label := timeutil.DateLabel(d)
		windows, err := windowsForDate(tech, d, label, loc)
		if err != nil {
			return nil, err
		}
		if len(windows) > 0 {
			result[label] = windows
		}
	}

	return result, nil
}

func windowsForDate(tech *entity.Technician, dateUTC time.Time, label string, loc *time.Location) ([]entity.TimeWindow, error) {
	if exc, ok := tech.ExceptionFor(label); ok {
		if exc.Type == entity.ExceptionTimeOff || !exc.Available {
			return nil, nil
		}
		if exc.StartTime == nil || exc.EndTime == nil {
			return nil, nil
		}
		start, err := timeutil.ParseBusinessTime(dateUTC, *exc.StartTime, loc)
		if err != nil {
			return nil, err
		}
		end, err := timeutil.ParseBusinessTime(dateUTC, *exc.EndTime, loc)
		if err != nil {
			return nil, err
		}
		if !start.Before(end) {
			return nil, nil
		}
		return []entity.TimeWindow{{Start: start, End: end}}, nil
	}

	var windows []entity.TimeWindow
	for _, h := range tech.HoursForWeekday(dateUTC.Weekday()) {
		if !h.IsAvailable {
			continue
		}
		start, err := timeutil.ParseBusinessTime(dateUTC, h.StartTime, loc)
		if err != nil {
			return nil, err
		}
		end, err := timeutil.ParseBusinessTime(dateUTC, h.EndTime, loc)
		if err != nil {
			return nil, err
		}
		if !start.Before(end) {
			continue
		}
		windows = append(windows, entity.TimeWindow{Start: start, End: end})
	}

	sort.Slice(windows, func(i, j int) bool { return windows[i].Start.Before(windows[j].Start) })
	return windows, nil
}

// ApplyLockedJobsToWindows subtracts the time committed to the
// technician's locked jobs on targetDate from windows, preserving the
// sorted, non-overlapping, positive-length invariant.
//
// A fixed_time job blocks [FixedScheduleTime, FixedScheduleTime+duration).
// An en_route or in_progress job blocks based on nowUTC relative to its
// own [start, start+duration) span: if nowUTC is at or past the job's
// end, the job is treated as finished and blocks nothing (it already
// happened); if nowUTC falls inside the span, only the remainder from
// now onward is blocked, so the optimizer can never be told to
// retroactively shorten work that is already underway; if nowUTC is
// still before the job's start, the original span is blocked
// unchanged. This "now-relative" narrowing applies only when
// targetDate is today — jobs locked on a future date use their
// original span.
func ApplyLockedJobsToWindows(windows []entity.TimeWindow, lockedJobs []*entity.Job, targetDate string, nowUTC time.Time, isToday bool) []entity.TimeWindow {
	out := append([]entity.TimeWindow(nil), windows...)

	for _, job := range lockedJobs {
		block, ok := blockingIntervalFor(job, targetDate, nowUTC, isToday)
		if !ok {
			continue
		}
		out = subtractInterval(out, block)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func blockingIntervalFor(job *entity.Job, targetDate string, nowUTC time.Time, isToday bool) (entity.TimeWindow, bool) {
	duration := time.Duration(job.DurationMinutes) * time.Minute

	switch job.Status {
	case entity.JobStatusFixedTime:
		if job.FixedScheduleTime == nil {
			return entity.TimeWindow{}, false
		}
		if timeutil.DateLabel(*job.FixedScheduleTime) != targetDate {
			return entity.TimeWindow{}, false
		}
		start := *job.FixedScheduleTime
		return entity.TimeWindow{Start: start, End: start.Add(duration)}, true

	case entity.JobStatusEnRoute, entity.JobStatusInProgress:
		if job.EstimatedSchedTime == nil {
			return entity.TimeWindow{}, false
		}
		start := *job.EstimatedSchedTime
		end := start.Add(duration)
		if timeutil.DateLabel(start) != targetDate {
			return entity.TimeWindow{}, false
		}
		if !isToday {
			return entity.TimeWindow{Start: start, End: end}, true
		}
		switch {
		case !nowUTC.Before(end):
			return entity.TimeWindow{}, false
		case nowUTC.Before(start):
			return entity.TimeWindow{Start: start, End: end}, true
		default:
			return entity.TimeWindow{Start: nowUTC, End: end}, true
		}

	default:
		return entity.TimeWindow{}, false
	}
}

// subtractInterval removes block from every window in windows,
// replacing each with its non-empty remaining pieces.
func subtractInterval(windows []entity.TimeWindow, block entity.TimeWindow) []entity.TimeWindow {
	var out []entity.TimeWindow
	for _, w := range windows {
		if !w.Overlaps(block) {
			out = append(out, w)
			continue
		}
		if block.Start.After(w.Start) {
			out = append(out, entity.TimeWindow{Start: w.Start, End: minTime(block.Start, w.End)})
		}
		if block.End.Before(w.End) {
			out = append(out, entity.TimeWindow{Start: maxTime(block.End, w.Start), End: w.End})
		}
	}
	return filterZeroLength(out)
}

func filterZeroLength(windows []entity.TimeWindow) []entity.TimeWindow {
	var out []entity.TimeWindow
	for _, w := range windows {
		if w.Start.Before(w.End) {
			out = append(out, w)
		}
	}
	return out
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// FindAvailabilityGaps derives the unavailable sub-intervals of a
// technician's shift envelope — [first window.Start, last window.End]
// — given the (already locked-job-subtracted) windows for one date.
// If windows is empty, the entire envelope [earliestStart, latestEnd]
// is returned as a single gap. Gaps of non-positive duration are
// elided.
func FindAvailabilityGaps(techID entity.TechnicianID, windows []entity.TimeWindow, earliestStart, latestEnd time.Time) []entity.AvailabilityGap {
	var gaps []entity.AvailabilityGap

	add := func(start, end time.Time) {
		if !start.Before(end) {
			return
		}
		gaps = append(gaps, entity.AvailabilityGap{
			TechnicianID:    techID,
			Start:           start,
			End:             end,
			DurationSeconds: int64(end.Sub(start).Seconds()),
		})
	}

	if len(windows) == 0 {
		add(earliestStart, latestEnd)
		return gaps
	}

	sorted := append([]entity.TimeWindow(nil), windows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	add(earliestStart, sorted[0].Start)
	for i := 0; i < len(sorted)-1; i++ {
		add(sorted[i].End, sorted[i+1].Start)
	}
	add(sorted[len(sorted)-1].End, latestEnd)

	return gaps
}

// ShiftEnvelope returns [windows[0].Start, windows[n-1].End] for a
// sorted, non-empty window list.
func ShiftEnvelope(windows []entity.TimeWindow) (start, end time.Time, ok bool) {
	if len(windows) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return windows[0].Start, windows[len(windows)-1].End, true
}
