// Package schedule derives per-date availability windows from a
// professional's weekly hours and time exceptions. It is pure: all functions
// are deterministic over their inputs and report malformed configuration as
// fault.ConfigError rather than guessing.
package schedule

import (
	"time"

	"github.com/advomarket/booking/internal/availability"
	"github.com/advomarket/booking/internal/fault"
	"github.com/advomarket/booking/internal/model"
)

// ValidateDay checks a single weekday's hours against the schedule
// invariants. Closed days are always valid; their minute fields are ignored.
func ValidateDay(d model.DayHours) error {
	if !d.Open {
		return nil
	}
	if d.StartMinute < 0 || d.EndMinute > model.MinutesPerDay {
		return fault.Configf("%s: hours out of range [00:00, 24:00)", d.Weekday)
	}
	if d.StartMinute >= d.EndMinute {
		return fault.Configf("%s: start %s must be before end %s",
			d.Weekday, model.FormatClock(d.StartMinute), model.FormatClock(d.EndMinute))
	}
	if d.HasBreak() {
		if d.BreakStartMinute >= d.BreakEndMinute {
			return fault.Configf("%s: break start must be before break end", d.Weekday)
		}
		if d.BreakStartMinute < d.StartMinute || d.BreakEndMinute > d.EndMinute {
			return fault.Configf("%s: break must lie within working hours", d.Weekday)
		}
	}
	return nil
}

// ValidateWeek checks a full weekly schedule: at most one entry per weekday,
// each entry valid on its own.
func ValidateWeek(days []model.DayHours) error {
	seen := map[time.Weekday]bool{}
	for _, d := range days {
		if seen[d.Weekday] {
			return fault.Configf("duplicate entry for %s", d.Weekday)
		}
		seen[d.Weekday] = true
		if err := ValidateDay(d); err != nil {
			return err
		}
	}
	return nil
}

// BaseWindows returns the ordered, disjoint availability windows for one
// weekday: the working hours with the break subtracted. A closed or
// unconfigured day yields no windows, which is not an error.
func BaseWindows(days []model.DayHours, weekday time.Weekday) ([]availability.Window, error) {
	var rule model.DayHours
	found := false
	for _, d := range days {
		if d.Weekday == weekday {
			rule = d
			found = true
			break
		}
	}
	if !found || !rule.Open {
		return nil, nil
	}
	if err := ValidateDay(rule); err != nil {
		return nil, err
	}

	base := []availability.Window{{Start: rule.StartMinute, End: rule.EndMinute}}
	if !rule.HasBreak() {
		return base, nil
	}
	return availability.Subtract(base, []availability.Window{
		{Start: rule.BreakStartMinute, End: rule.BreakEndMinute},
	}), nil
}
