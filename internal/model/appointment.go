package model

import "time"

// Appointment is the reservable unit. DurationMinutes is copied from the
// appointment type at booking time and stays immutable even if the type
// changes later. Appointments are never deleted; terminal statuses are kept
// for history.
type Appointment struct {
	ID                string
	ProfessionalID    string
	AppointmentTypeID string

	ClientName  string
	ClientEmail string
	ClientPhone string

	Date            time.Time // calendar date, normalized to midnight UTC
	StartMinute     int       // minutes since midnight, professional-local
	DurationMinutes int

	Location string
	Notes    string

	Status        Status
	PaymentStatus PaymentStatus

	// Reschedule links: the superseded appointment points forward, the
	// replacement points back.
	RescheduledFrom string
	RescheduledTo   string

	CreatedAt   time.Time
	CancelledAt *time.Time
}

func (a Appointment) EndMinute() int {
	return a.StartMinute + a.DurationMinutes
}

// AppointmentType is immutable reference data selected by the client when
// booking; it determines slot granularity for that request.
type AppointmentType struct {
	ID              string
	ProfessionalID  string
	Name            string
	DurationMinutes int
	PriceCents      int64
	Description     string
}

// Professional is the owner of a calendar. Timezone is the single fixed
// local time zone used to grey out past slots.
type Professional struct {
	ID       string
	Name     string
	Timezone string
}

// Location resolves the professional's IANA timezone, falling back to UTC.
func (p Professional) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}

// Slot is a derived, never-stored candidate booking window. It is
// regenerated on every query and has no identity beyond (date, start).
type Slot struct {
	Date            time.Time
	StartMinute     int
	DurationMinutes int
	Available       bool
}

func (s Slot) EndMinute() int {
	return s.StartMinute + s.DurationMinutes
}
