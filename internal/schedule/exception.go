package schedule

import (
	"time"

	"github.com/advomarket/booking/internal/availability"
	"github.com/advomarket/booking/internal/fault"
	"github.com/advomarket/booking/internal/model"
)

// ValidateException checks a time exception against its invariants.
func ValidateException(e model.TimeException) error {
	if !e.Type.Valid() {
		return fault.Configf("exception %s: unknown type %q", e.ID, e.Type)
	}
	if !e.Recur().Valid() {
		return fault.Configf("exception %s: unknown recurrence %q", e.ID, e.Recurrence)
	}
	if e.StartDate.After(e.EndDate) {
		return fault.Configf("exception %s: start date after end date", e.ID)
	}
	if e.StartMinute < 0 || e.EndMinute > model.MinutesPerDay || e.StartMinute >= e.EndMinute {
		return fault.Configf("exception %s: invalid time window %s-%s",
			e.ID, model.FormatClock(e.StartMinute), model.FormatClock(e.EndMinute))
	}
	if e.Recur() == model.RecurWeekly && len(e.Weekdays) == 0 {
		return fault.Configf("exception %s: weekly recurrence requires weekdays", e.ID)
	}
	return nil
}

// AppliesOn reports whether the exception removes availability on the given
// date. Occurrences are computed lazily; nothing is ever materialized for
// "repeat forever" style ranges.
func AppliesOn(e model.TimeException, date time.Time) bool {
	d := model.NormalizeDate(date)
	if d.Before(model.NormalizeDate(e.StartDate)) || d.After(model.NormalizeDate(e.EndDate)) {
		return false
	}

	switch e.Recur() {
	case model.RecurNone, model.RecurDaily:
		// A one-off exception's validity range is its single occurrence
		// window; daily repeats on every date in range.
		return true
	case model.RecurWeekly:
		for _, wd := range e.Weekdays {
			if d.Weekday() == wd {
				return true
			}
		}
		return false
	case model.RecurMonthly:
		return d.Day() == e.StartDate.Day()
	}
	return false
}

// WindowsOn collects the time windows of every exception applying on the
// given date. Exceptions are validated as they are read: a malformed one is
// a configuration fault, not something to silently skip.
func WindowsOn(exceptions []model.TimeException, date time.Time) ([]availability.Window, error) {
	var windows []availability.Window
	for _, e := range exceptions {
		if err := ValidateException(e); err != nil {
			return nil, err
		}
		if AppliesOn(e, date) {
			windows = append(windows, availability.Window{Start: e.StartMinute, End: e.EndMinute})
		}
	}
	return windows, nil
}
