// Package slots turns a professional's schedule, exceptions, and existing
// appointments into the bookable slot grid for one date. Generation is
// deterministic and nothing is cached: every call re-derives from the store.
package slots

import (
	"context"
	"time"

	"github.com/advomarket/booking/internal/availability"
	"github.com/advomarket/booking/internal/model"
	"github.com/advomarket/booking/internal/schedule"
)

const (
	// DefaultStepMinutes is the grid the booking UI renders.
	DefaultStepMinutes = 30
	// DefaultDurationMinutes is used for calendar-overview queries where no
	// appointment type has been chosen yet.
	DefaultDurationMinutes = 30
)

// Source is the read-side store the generator derives slots from.
type Source interface {
	Professional(ctx context.Context, id string) (model.Professional, error)
	WeeklySchedule(ctx context.Context, professionalID string) ([]model.DayHours, error)
	ListExceptions(ctx context.Context, professionalID string) ([]model.TimeException, error)
	AppointmentType(ctx context.Context, professionalID, typeID string) (model.AppointmentType, error)
	AppointmentsOn(ctx context.Context, professionalID string, date time.Time) ([]model.Appointment, error)
}

type Generator struct {
	src  Source
	step int
	now  func() time.Time
}

func New(src Source) *Generator {
	return &Generator{src: src, step: DefaultStepMinutes, now: time.Now}
}

// WithClock replaces the wall clock; tests pin "now" with it.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// FreeWindows computes the date's free time: base windows minus applicable
// exceptions minus capacity-blocking appointments. A non-empty
// excludeAppointmentID leaves that appointment out of the booked set, so a
// reschedule can validate its own new position.
func (g *Generator) FreeWindows(ctx context.Context, professionalID string, date time.Time, excludeAppointmentID string) ([]availability.Window, error) {
	week, err := g.src.WeeklySchedule(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	base, err := schedule.BaseWindows(week, model.NormalizeDate(date).Weekday())
	if err != nil {
		return nil, err
	}
	if len(base) == 0 {
		return nil, nil
	}

	exceptions, err := g.src.ListExceptions(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	removals, err := schedule.WindowsOn(exceptions, date)
	if err != nil {
		return nil, err
	}

	appts, err := g.src.AppointmentsOn(ctx, professionalID, date)
	if err != nil {
		return nil, err
	}
	for _, a := range appts {
		if !a.Status.Blocks() || a.ID == excludeAppointmentID {
			continue
		}
		removals = append(removals, availability.Window{Start: a.StartMinute, End: a.EndMinute()})
	}

	return availability.Subtract(base, removals), nil
}

// Generate produces the ordered slot list for a date and appointment type.
// An empty typeID falls back to the default granularity (calendar-overview
// display). Slots starting at or before "now" in the professional's local
// time zone are kept but marked unavailable so the UI can grey them out.
func (g *Generator) Generate(ctx context.Context, professionalID string, date time.Time, typeID string) ([]model.Slot, error) {
	pro, err := g.src.Professional(ctx, professionalID)
	if err != nil {
		return nil, err
	}

	duration := DefaultDurationMinutes
	if typeID != "" {
		at, err := g.src.AppointmentType(ctx, professionalID, typeID)
		if err != nil {
			return nil, err
		}
		duration = at.DurationMinutes
	}

	free, err := g.FreeWindows(ctx, professionalID, date, "")
	if err != nil {
		return nil, err
	}

	day := model.NormalizeDate(date)
	loc := pro.Location()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	now := g.now()

	var out []model.Slot
	for _, w := range free {
		for _, start := range availability.SlotStarts(w, duration, g.step) {
			out = append(out, model.Slot{
				Date:            day,
				StartMinute:     start,
				DurationMinutes: duration,
				Available:       dayStart.Add(time.Duration(start) * time.Minute).After(now),
			})
		}
	}
	return out, nil
}
