package ledger

import (
	"context"
	"time"

	"github.com/advomarket/booking/internal/model"
	"github.com/advomarket/booking/internal/slots"
)

// Event kinds recorded alongside ledger writes. The storage layer persists
// them through the transactional outbox (Postgres) or an in-process sink
// (memory) so notification delivery never forks from the booking state.
const (
	EventCreated     = "created"
	EventConfirmed   = "confirmed"
	EventCancelled   = "cancelled"
	EventCompleted   = "completed"
	EventNoShow      = "no_show"
	EventRescheduled = "rescheduled"
)

// Event is a notification-worthy fact about an appointment, written in the
// same transaction as the state change it describes.
type Event struct {
	Kind           string
	AppointmentID  string
	ProfessionalID string
	ClientEmail    string
}

// Filter narrows appointment listings. Zero values mean "no constraint".
type Filter struct {
	From   time.Time // inclusive date lower bound
	To     time.Time // inclusive date upper bound
	Status model.Status
}

// Store is the write-side persistence contract. It embeds the generator's
// read side so the ledger can re-derive free windows from the same source it
// writes to.
type Store interface {
	slots.Source

	Appointment(ctx context.Context, id string) (model.Appointment, error)

	// CreateAppointment persists a new appointment and its event atomically.
	CreateAppointment(ctx context.Context, appt model.Appointment, ev *Event) error

	// UpdateStatus moves an appointment from one status to another. It is a
	// compare-and-set: the write fails with a conflict if the stored status
	// is no longer "from". cancelledAt is set only for cancellations.
	UpdateStatus(ctx context.Context, id string, from, to model.Status, cancelledAt *time.Time, ev *Event) error

	// Reschedule marks the original rescheduled, inserts the replacement,
	// and links the two, atomically with the given events.
	Reschedule(ctx context.Context, original, replacement model.Appointment, evs []Event) error

	ListAppointments(ctx context.Context, professionalID string, f Filter) ([]model.Appointment, error)
}
