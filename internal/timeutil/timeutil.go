// Package timeutil converts between the business timezone used by
// technician shift hours and the UTC instants used for every
// comparison and persisted timestamp elsewhere in the system.
//
// All functions here are pure: no I/O, no suspension points, safe to
// call from any goroutine. The only shared mutable state is the
// *time.Location cache built by BusinessLocation, which relies on
// time.LoadLocation's own internal caching and is safe for concurrent
// use.
package timeutil

import (
	"fmt"
	"time"
)

// DefaultBusinessTimezone is the shipped configuration: Calgary /
// America/Edmonton, observing the standard second-Sunday-of-March
// through first-Sunday-of-November DST window. Go's tzdata encodes
// this rule for America/Edmonton directly, so DST arithmetic never
// needs to be hand-rolled here.
const DefaultBusinessTimezone = "America/Edmonton"

// BusinessLocation loads the named IANA timezone, falling back to
// DefaultBusinessTimezone when name is empty.
func BusinessLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultBusinessTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load business timezone %q: %w", name, err)
	}
	return loc, nil
}

// ParseBusinessTime interprets hhmmss ("HH:MM:SS") as a wall-clock
// time in loc on the UTC calendar date carried by dateUTC, and returns
// the corresponding UTC instant. The offset applied is whichever is in
// effect for that wall-clock instant in loc (handled by time.Date),
// not the offset in effect for dateUTC itself — this is what makes
// ParseBusinessTime and FormatBusinessTime inverses across a DST
// transition.
func ParseBusinessTime(dateUTC time.Time, hhmmss string, loc *time.Location) (time.Time, error) {
	var h, m, s int
	if _, err := fmt.Sscanf(hhmmss, "%d:%d:%d", &h, &m, &s); err != nil {
		return time.Time{}, fmt.Errorf("invalid time string %q: %w", hhmmss, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || s < 0 || s > 59 {
		return time.Time{}, fmt.Errorf("invalid time string %q: out of range", hhmmss)
	}

	y, mo, d := dateUTC.UTC().Date()
	local := time.Date(y, mo, d, h, m, s, 0, loc)
	return local.UTC(), nil
}

// FormatBusinessTime renders instant as a business-timezone date
// label and "HH:MM:SS" wall-clock string, using the offset in effect
// at instant.
func FormatBusinessTime(instant time.Time, loc *time.Location) (dateLabel string, hhmmss string) {
	local := instant.In(loc)
	return local.Format("2006-01-02"), local.Format("15:04:05")
}

// DateLabel produces the canonical YYYY-MM-DD key for instant, read
// from its UTC calendar components. This is the "date key" used
// throughout the system to bucket windows, gaps, attempts, and
// passes — never the business-timezone date.
func DateLabel(instant time.Time) string {
	return instant.UTC().Format("2006-01-02")
}

// AddCalendarDaysUTC steps n whole days forward on the UTC calendar
// from instant, preserving its time-of-day components.
func AddCalendarDaysUTC(instant time.Time, n int) time.Time {
	return instant.UTC().AddDate(0, 0, n)
}

// SameUTCDate reports whether a and b fall on the same UTC calendar
// date.
func SameUTCDate(a, b time.Time) bool {
	return DateLabel(a) == DateLabel(b)
}
