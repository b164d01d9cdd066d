package utils

import "time"

const day = 24 * time.Hour

// DayOf returns the UTC calendar day containing t, as midnight UTC
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a calendar day by n days
func AddDays(d time.Time, n int) time.Time {
	return d.AddDate(0, 0, n)
}

// DaysBetween counts whole calendar days from a to b (negative when b is earlier)
func DaysBetween(a, b time.Time) int {
	return int(DayOf(b).Sub(DayOf(a)) / day)
}

// WindowStart returns the first day of a trailing window of n days ending on d
func WindowStart(d time.Time, n int) time.Time {
	return AddDays(DayOf(d), -(n - 1))
}

// InWindow reports whether x falls in the trailing n-day window ending on d
func InWindow(x, d time.Time, n int) bool {
	x = DayOf(x)
	return !x.Before(WindowStart(d, n)) && !x.After(DayOf(d))
}
