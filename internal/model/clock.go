package model

import (
	"fmt"
	"time"
)

const (
	DateFormat  = "2006-01-02"
	ClockFormat = "15:04"

	MinutesPerDay = 24 * 60
)

// ParseClock parses an HH:MM string into minutes since midnight. "24:00" is
// accepted as the exclusive end-of-day boundary, matching the model's
// EndMinute == MinutesPerDay.
func ParseClock(s string) (int, error) {
	if s == "24:00" {
		return MinutesPerDay, nil
	}
	t, err := time.Parse(ClockFormat, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes since midnight as HH:MM.
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseDate parses a YYYY-MM-DD string into a normalized calendar date
// (midnight UTC). The engine compares dates by value, never by wall clock.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// NormalizeDate strips the time-of-day and location from t, keeping only the
// calendar date as midnight UTC.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
