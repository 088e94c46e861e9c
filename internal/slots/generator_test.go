package slots

import (
	"context"
	"testing"
	"time"

	"github.com/advomarket/booking/internal/model"
)

// stubSource is an in-memory Source for a single professional.
type stubSource struct {
	pro        model.Professional
	week       []model.DayHours
	exceptions []model.TimeException
	types      map[string]model.AppointmentType
	appts      []model.Appointment
}

func (s *stubSource) Professional(ctx context.Context, id string) (model.Professional, error) {
	return s.pro, nil
}

func (s *stubSource) WeeklySchedule(ctx context.Context, professionalID string) ([]model.DayHours, error) {
	return s.week, nil
}

func (s *stubSource) ListExceptions(ctx context.Context, professionalID string) ([]model.TimeException, error) {
	return s.exceptions, nil
}

func (s *stubSource) AppointmentType(ctx context.Context, professionalID, typeID string) (model.AppointmentType, error) {
	return s.types[typeID], nil
}

func (s *stubSource) AppointmentsOn(ctx context.Context, professionalID string, date time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range s.appts {
		if model.SameDate(a.Date, date) {
			out = append(out, a)
		}
	}
	return out, nil
}

// monday is a Monday well in the future so no slot is greyed by the clock.
var monday = time.Date(2099, time.July, 6, 0, 0, 0, 0, time.UTC)

func newStub() *stubSource {
	return &stubSource{
		pro: model.Professional{ID: "pro-1", Timezone: "UTC"},
		week: []model.DayHours{
			{
				Weekday:          time.Monday,
				Open:             true,
				StartMinute:      9 * 60,
				EndMinute:        18 * 60,
				BreakStartMinute: 12 * 60,
				BreakEndMinute:   13 * 60,
			},
		},
		types: map[string]model.AppointmentType{
			"consult-60": {ID: "consult-60", ProfessionalID: "pro-1", DurationMinutes: 60},
			"intro-30":   {ID: "intro-30", ProfessionalID: "pro-1", DurationMinutes: 30},
		},
	}
}

func starts(slots []model.Slot) []int {
	out := make([]int, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.StartMinute)
	}
	return out
}

func hasStart(slots []model.Slot, minute int) bool {
	for _, s := range slots {
		if s.StartMinute == minute {
			return true
		}
	}
	return false
}

func TestGenerateHourConsultWithLunchBreak(t *testing.T) {
	g := New(newStub())
	got, err := g.Generate(context.Background(), "pro-1", monday, "consult-60")
	if err != nil {
		t.Fatal(err)
	}

	// 09:00..11:00 every 30m, then 13:00..17:00 every 30m.
	want := []int{540, 570, 600, 630, 660, 780, 810, 840, 870, 900, 930, 960, 990, 1020}
	g2 := starts(got)
	if len(g2) != len(want) {
		t.Fatalf("got %d slots %v, want %d", len(g2), g2, len(want))
	}
	for i := range want {
		if g2[i] != want[i] {
			t.Fatalf("slot %d = %d, want %d", i, g2[i], want[i])
		}
	}
	for _, s := range got {
		if !s.Available {
			t.Fatalf("future slot at %d marked unavailable", s.StartMinute)
		}
	}
}

func TestGenerateMeetingExceptionTrimsStarts(t *testing.T) {
	src := newStub()
	src.exceptions = []model.TimeException{{
		ID:             "ex-1",
		ProfessionalID: "pro-1",
		Type:           model.ExceptionMeeting,
		StartDate:      monday,
		EndDate:        monday,
		StartMinute:    10 * 60,
		EndMinute:      11 * 60,
	}}
	g := New(src)
	got, err := g.Generate(context.Background(), "pro-1", monday, "consult-60")
	if err != nil {
		t.Fatal(err)
	}

	if !hasStart(got, 540) {
		t.Error("09:00 should survive: it ends exactly when the meeting starts")
	}
	for _, m := range []int{570, 600, 630} {
		if hasStart(got, m) {
			t.Errorf("start %d overlaps the 10:00-11:00 meeting", m)
		}
	}
	if !hasStart(got, 660) {
		t.Error("11:00 should be offered after the meeting")
	}
}

func TestGenerateBookedAppointmentBlocks(t *testing.T) {
	src := newStub()
	src.appts = []model.Appointment{{
		ID:              "appt-1",
		ProfessionalID:  "pro-1",
		Date:            monday,
		StartMinute:     14 * 60,
		DurationMinutes: 30,
		Status:          model.StatusConfirmed,
	}}
	g := New(src)

	got, err := g.Generate(context.Background(), "pro-1", monday, "consult-60")
	if err != nil {
		t.Fatal(err)
	}
	if hasStart(got, 840) {
		t.Error("14:00 is booked and must not be offered for a 60m type")
	}
	if hasStart(got, 810) {
		t.Error("13:30 consult would run into the 14:00 booking")
	}

	// A 30-minute type still fits right before the booking.
	got30, err := g.Generate(context.Background(), "pro-1", monday, "intro-30")
	if err != nil {
		t.Fatal(err)
	}
	if !hasStart(got30, 810) {
		t.Error("13:30 should fit a 30m type before the 14:00 booking")
	}
}

func TestGenerateCancelledAppointmentDoesNotBlock(t *testing.T) {
	src := newStub()
	src.appts = []model.Appointment{{
		ID:              "appt-1",
		ProfessionalID:  "pro-1",
		Date:            monday,
		StartMinute:     14 * 60,
		DurationMinutes: 60,
		Status:          model.StatusCancelled,
	}}
	g := New(src)
	got, err := g.Generate(context.Background(), "pro-1", monday, "consult-60")
	if err != nil {
		t.Fatal(err)
	}
	if !hasStart(got, 840) {
		t.Error("cancelled appointment must not occupy 14:00")
	}
}

func TestGeneratePastSlotsGreyedNotOmitted(t *testing.T) {
	g := New(newStub()).WithClock(func() time.Time {
		// 10:15 on the target Monday.
		return time.Date(monday.Year(), monday.Month(), monday.Day(), 10, 15, 0, 0, time.UTC)
	})
	got, err := g.Generate(context.Background(), "pro-1", monday, "intro-30")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range got {
		past := s.StartMinute <= 10*60+15
		if past && s.Available {
			t.Errorf("slot %d is in the past but marked available", s.StartMinute)
		}
		if !past && !s.Available {
			t.Errorf("slot %d is in the future but marked unavailable", s.StartMinute)
		}
	}
	if !hasStart(got, 540) {
		t.Error("past slots must be listed, not omitted")
	}
}

func TestGenerateClosedDayEmpty(t *testing.T) {
	g := New(newStub())
	sunday := monday.AddDate(0, 0, -1)
	got, err := g.Generate(context.Background(), "pro-1", sunday, "consult-60")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("closed day produced %d slots", len(got))
	}
}

func TestGenerateDeterministic(t *testing.T) {
	g := New(newStub())
	a, err := g.Generate(context.Background(), "pro-1", monday, "consult-60")
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.Generate(context.Background(), "pro-1", monday, "consult-60")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) {
		t.Fatalf("slot count changed between runs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("slot %d differs between identical runs", i)
		}
	}
}

func TestFreeWindowsExcludesAppointment(t *testing.T) {
	src := newStub()
	src.appts = []model.Appointment{{
		ID:              "appt-1",
		ProfessionalID:  "pro-1",
		Date:            monday,
		StartMinute:     14 * 60,
		DurationMinutes: 60,
		Status:          model.StatusConfirmed,
	}}
	g := New(src)

	withBlock, err := g.FreeWindows(context.Background(), "pro-1", monday, "")
	if err != nil {
		t.Fatal(err)
	}
	excluded, err := g.FreeWindows(context.Background(), "pro-1", monday, "appt-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(withBlock) == len(excluded) {
		t.Fatal("excluding the appointment should change the free windows")
	}
}
