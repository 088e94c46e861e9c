package schedule

import (
	"reflect"
	"testing"
	"time"

	"github.com/advomarket/booking/internal/availability"
	"github.com/advomarket/booking/internal/fault"
	"github.com/advomarket/booking/internal/model"
)

func monday9to18WithLunch() model.DayHours {
	return model.DayHours{
		Weekday:          time.Monday,
		Open:             true,
		StartMinute:      540,  // 09:00
		EndMinute:        1080, // 18:00
		BreakStartMinute: 720,  // 12:00
		BreakEndMinute:   780,  // 13:00
	}
}

func TestBaseWindows_BreakSplitsDay(t *testing.T) {
	days := []model.DayHours{monday9to18WithLunch()}

	got, err := BaseWindows(days, time.Monday)
	if err != nil {
		t.Fatalf("BaseWindows: %v", err)
	}
	want := []availability.Window{{Start: 540, End: 720}, {Start: 780, End: 1080}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BaseWindows = %v, want %v", got, want)
	}
}

func TestBaseWindows_NoBreak(t *testing.T) {
	days := []model.DayHours{{Weekday: time.Tuesday, Open: true, StartMinute: 480, EndMinute: 960}}

	got, err := BaseWindows(days, time.Tuesday)
	if err != nil {
		t.Fatalf("BaseWindows: %v", err)
	}
	want := []availability.Window{{Start: 480, End: 960}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BaseWindows = %v, want %v", got, want)
	}
}

func TestBaseWindows_ClosedAndUnconfiguredDays(t *testing.T) {
	days := []model.DayHours{
		{Weekday: time.Sunday, Open: false},
		monday9to18WithLunch(),
	}

	for _, wd := range []time.Weekday{time.Sunday, time.Saturday} {
		got, err := BaseWindows(days, wd)
		if err != nil {
			t.Fatalf("BaseWindows(%s): %v", wd, err)
		}
		if len(got) != 0 {
			t.Fatalf("BaseWindows(%s) = %v, want empty", wd, got)
		}
	}
}

func TestValidateDay_Invariants(t *testing.T) {
	cases := []struct {
		name string
		day  model.DayHours
		ok   bool
	}{
		{"closed day ignores minutes", model.DayHours{Weekday: time.Monday, Open: false, StartMinute: 999, EndMinute: 1}, true},
		{"start equals end", model.DayHours{Weekday: time.Monday, Open: true, StartMinute: 540, EndMinute: 540}, false},
		{"start after end", model.DayHours{Weekday: time.Monday, Open: true, StartMinute: 600, EndMinute: 540}, false},
		{"end past midnight", model.DayHours{Weekday: time.Monday, Open: true, StartMinute: 540, EndMinute: 1500}, false},
		{"break outside hours", model.DayHours{Weekday: time.Monday, Open: true, StartMinute: 540, EndMinute: 720, BreakStartMinute: 480, BreakEndMinute: 600}, false},
		{"break inverted", model.DayHours{Weekday: time.Monday, Open: true, StartMinute: 540, EndMinute: 720, BreakStartMinute: 660, BreakEndMinute: 600}, false},
		{"valid with break", monday9to18WithLunch(), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateDay(tc.day)
			if tc.ok && err != nil {
				t.Fatalf("ValidateDay: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("ValidateDay: expected error")
				}
				if !fault.IsConfig(err) {
					t.Fatalf("ValidateDay: expected config error, got %v", err)
				}
			}
		})
	}
}

func TestValidateWeek_RejectsDuplicateWeekday(t *testing.T) {
	days := []model.DayHours{
		monday9to18WithLunch(),
		{Weekday: time.Monday, Open: false},
	}
	if err := ValidateWeek(days); !fault.IsConfig(err) {
		t.Fatalf("ValidateWeek = %v, want config error", err)
	}
}
