package calendar

import "time"

// Date truncates t to midnight UTC of the calendar day it falls on in its
// own location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}

// Nights returns the number of nights in the half-open range [start, end).
func Nights(start, end time.Time) int {
	return int(Date(end).Sub(Date(start)).Hours() / 24)
}

// EachNight returns every date in [start, end).
func EachNight(start, end time.Time) []time.Time {
	var nights []time.Time
	for d := Date(start); d.Before(Date(end)); d = d.AddDate(0, 0, 1) {
		nights = append(nights, d)
	}
	return nights
}

// IsWeekend returns true for Saturdays and Sundays.
func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Key formats a date for use as a map key.
func Key(d time.Time) string {
	return d.Format(time.DateOnly)
}
