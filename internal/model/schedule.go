package model

import "time"

// DayHours is one weekday's recurring availability. A closed day carries no
// meaningful minute values. Break minutes of (0,0) mean no break.
type DayHours struct {
	Weekday          time.Weekday
	Open             bool
	StartMinute      int
	EndMinute        int
	BreakStartMinute int
	BreakEndMinute   int
}

func (d DayHours) HasBreak() bool {
	return d.BreakStartMinute != 0 || d.BreakEndMinute != 0
}

type ExceptionType string

const (
	ExceptionVacation ExceptionType = "vacation"
	ExceptionBreak    ExceptionType = "break"
	ExceptionMeeting  ExceptionType = "meeting"
	ExceptionPersonal ExceptionType = "personal"
	ExceptionOther    ExceptionType = "other"
)

func (t ExceptionType) Valid() bool {
	switch t {
	case ExceptionVacation, ExceptionBreak, ExceptionMeeting, ExceptionPersonal, ExceptionOther:
		return true
	}
	return false
}

type Recurrence string

const (
	RecurNone    Recurrence = "none"
	RecurDaily   Recurrence = "daily"
	RecurWeekly  Recurrence = "weekly"
	RecurMonthly Recurrence = "monthly"
)

func (r Recurrence) Valid() bool {
	switch r {
	case RecurNone, RecurDaily, RecurWeekly, RecurMonthly:
		return true
	}
	return false
}

// TimeException removes availability from the base schedule on the dates it
// applies to. It is purely declarative: occurrences are computed lazily per
// queried date, never materialized.
type TimeException struct {
	ID             string
	ProfessionalID string
	Title          string
	Type           ExceptionType

	// Inclusive calendar-date validity window, normalized to midnight UTC.
	StartDate time.Time
	EndDate   time.Time

	// Time-of-day window applied on each matching date.
	StartMinute int
	EndMinute   int

	Recurrence Recurrence
	Weekdays   []time.Weekday // weekly recurrence only; must be non-empty then
}

// Recur returns the exception's recurrence, treating the zero value as
// RecurNone so a record built without the field behaves as a one-off.
func (e TimeException) Recur() Recurrence {
	if e.Recurrence == "" {
		return RecurNone
	}
	return e.Recurrence
}
