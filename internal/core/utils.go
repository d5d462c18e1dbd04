package core

import (
	"fmt"
	"time"
)

// GetTZ returns a *time.Location for the given IANA name (DefaultTZ when
// empty), falling back to UTC when the name can't be resolved.
func GetTZ(name string) *time.Location {
	if name == "" {
		name = DefaultTZ
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseDate parses a YYYY-MM-DD string into a UTC time.Time at midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFmt, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	return t.UTC(), nil
}

// DateOnly truncates t to a UTC midnight instant, dropping time-of-day.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay expands a date-only instant to 23:59:59 UTC of the same day,
// so a midnight upper bound covers the whole day rather than excluding it.
func EndOfDay(t time.Time) time.Time {
	d := DateOnly(t)
	return d.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
}

// FormatDate formats t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateFmt)
}

// AddDays returns t shifted by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// DateKeyDaily formats t as a daily bundle date-key (YYYYMMDD).
func DateKeyDaily(t time.Time) string {
	return t.UTC().Format(DateKeyDay)
}

// DateKeyMonthly formats t as a monthly bundle date-key (YYYYMM).
func DateKeyMonthly(t time.Time) string {
	return t.UTC().Format(DateKeyMon)
}

// FirstOfMonth returns the first day of t's month, UTC midnight.
func FirstOfMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// LastOfMonth returns the last day of t's month, UTC midnight.
func LastOfMonth(t time.Time) time.Time {
	return FirstOfMonth(t).AddDate(0, 1, -1)
}
