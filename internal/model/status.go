package model

// Status is the closed set of appointment lifecycle states. Transitions are
// enforced in exactly one place (CanTransitionTo); nothing else in the
// codebase compares status strings ad hoc.
type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusNoShow      Status = "no_show"
	StatusRescheduled Status = "rescheduled"
)

var allStatuses = map[Status]struct{}{
	StatusPending:     {},
	StatusConfirmed:   {},
	StatusCompleted:   {},
	StatusCancelled:   {},
	StatusNoShow:      {},
	StatusRescheduled: {},
}

// transitions holds the full state machine:
//
//	pending   -> confirmed | cancelled | rescheduled
//	confirmed -> completed | cancelled | no_show | rescheduled
//
// completed, cancelled, no_show, and rescheduled are terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusRescheduled},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled},
}

func (s Status) Valid() bool {
	_, ok := allStatuses[s]
	return ok
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled:
		return true
	}
	return false
}

// Blocks reports whether an appointment in this status occupies capacity on
// the professional's calendar. Cancelled, no-show, and rescheduled
// appointments do not block new bookings.
func (s Status) Blocks() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted:
		return true
	}
	return false
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// PaymentStatus is informational and never gates booking logic.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentOverdue PaymentStatus = "overdue"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentOverdue:
		return true
	}
	return false
}
