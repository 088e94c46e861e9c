// Package ledger is the single write path for appointments. All bookings and
// status changes for one professional are serialized through a per-key mutex,
// and every capacity decision is re-derived from the store under that lock,
// so two clients can never hold overlapping blocking appointments.
package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/advomarket/booking/internal/availability"
	"github.com/advomarket/booking/internal/fault"
	"github.com/advomarket/booking/internal/model"
	"github.com/advomarket/booking/internal/slots"
)

type Ledger struct {
	store Store
	gen   *slots.Generator
	log   *slog.Logger

	// instantConfirm skips the pending stage for marketplaces that do not
	// require professional approval.
	instantConfirm bool

	locks *keyedMutex
	now   func() time.Time
}

type Options struct {
	InstantConfirm bool
	Clock          func() time.Time
}

func New(store Store, gen *slots.Generator, log *slog.Logger, opts Options) *Ledger {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store:          store,
		gen:            gen,
		log:            log,
		instantConfirm: opts.InstantConfirm,
		now:            now,
		locks:          newKeyedMutex(),
	}
}

// ReserveInput is everything a client supplies to book a slot.
type ReserveInput struct {
	ProfessionalID    string
	AppointmentTypeID string

	ClientName  string
	ClientEmail string
	ClientPhone string

	Date        time.Time
	StartMinute int

	Location string
	Notes    string
}

// Reserve books a slot. The requested window must lie fully inside a free
// window derived under the professional's write lock; anything else is a
// conflict. Unknown professionals or types are validation errors: the client
// chose them, so the client can correct them.
func (l *Ledger) Reserve(ctx context.Context, in ReserveInput) (model.Appointment, error) {
	pro, err := l.store.Professional(ctx, in.ProfessionalID)
	if err != nil {
		return model.Appointment{}, asValidation(err, "unknown professional %q", in.ProfessionalID)
	}
	at, err := l.store.AppointmentType(ctx, in.ProfessionalID, in.AppointmentTypeID)
	if err != nil {
		return model.Appointment{}, asValidation(err, "unknown appointment type %q", in.AppointmentTypeID)
	}
	if in.StartMinute < 0 || in.StartMinute+at.DurationMinutes > model.MinutesPerDay {
		return model.Appointment{}, fault.Validationf("start %d does not fit a %dm appointment in one day", in.StartMinute, at.DurationMinutes)
	}

	date := model.NormalizeDate(in.Date)
	if l.slotStart(pro, date, in.StartMinute).Before(l.now()) {
		return model.Appointment{}, fault.Validationf("requested slot is in the past")
	}

	mu := l.locks.lock(in.ProfessionalID)
	defer mu.Unlock()

	if err := l.ensureFree(ctx, in.ProfessionalID, date, in.StartMinute, at.DurationMinutes, ""); err != nil {
		return model.Appointment{}, err
	}

	status := model.StatusPending
	if l.instantConfirm {
		status = model.StatusConfirmed
	}
	appt := model.Appointment{
		ID:                uuid.NewString(),
		ProfessionalID:    in.ProfessionalID,
		AppointmentTypeID: at.ID,
		ClientName:        in.ClientName,
		ClientEmail:       in.ClientEmail,
		ClientPhone:       in.ClientPhone,
		Date:              date,
		StartMinute:       in.StartMinute,
		DurationMinutes:   at.DurationMinutes,
		Location:          in.Location,
		Notes:             in.Notes,
		Status:            status,
		PaymentStatus:     model.PaymentPending,
		CreatedAt:         l.now().UTC(),
	}
	ev := &Event{
		Kind:           EventCreated,
		AppointmentID:  appt.ID,
		ProfessionalID: appt.ProfessionalID,
		ClientEmail:    appt.ClientEmail,
	}
	if err := l.store.CreateAppointment(ctx, appt, ev); err != nil {
		return model.Appointment{}, err
	}
	l.log.Info("appointment reserved",
		"appointment_id", appt.ID,
		"professional_id", appt.ProfessionalID,
		"date", model.FormatDate(appt.Date),
		"start", model.FormatClock(appt.StartMinute),
		"status", string(appt.Status),
	)
	return appt, nil
}

func (l *Ledger) Confirm(ctx context.Context, id string) (model.Appointment, error) {
	return l.transition(ctx, id, model.StatusConfirmed, EventConfirmed)
}

func (l *Ledger) Cancel(ctx context.Context, id string) (model.Appointment, error) {
	return l.transition(ctx, id, model.StatusCancelled, EventCancelled)
}

func (l *Ledger) Complete(ctx context.Context, id string) (model.Appointment, error) {
	return l.transition(ctx, id, model.StatusCompleted, EventCompleted)
}

func (l *Ledger) MarkNoShow(ctx context.Context, id string) (model.Appointment, error) {
	return l.transition(ctx, id, model.StatusNoShow, EventNoShow)
}

// Reschedule moves an appointment to a new date and start. The original is
// closed with status rescheduled and a replacement is created atomically,
// linked in both directions. The replacement keeps the original's type,
// duration, and client details, and restarts the lifecycle at pending (or
// confirmed under instant confirm).
func (l *Ledger) Reschedule(ctx context.Context, id string, date time.Time, startMinute int) (model.Appointment, error) {
	orig, err := l.store.Appointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if !orig.Status.CanTransitionTo(model.StatusRescheduled) {
		return model.Appointment{}, fault.Conflictf("appointment %s is %s and cannot be rescheduled", id, orig.Status)
	}
	pro, err := l.store.Professional(ctx, orig.ProfessionalID)
	if err != nil {
		return model.Appointment{}, err
	}
	if startMinute < 0 || startMinute+orig.DurationMinutes > model.MinutesPerDay {
		return model.Appointment{}, fault.Validationf("start %d does not fit a %dm appointment in one day", startMinute, orig.DurationMinutes)
	}

	day := model.NormalizeDate(date)
	if l.slotStart(pro, day, startMinute).Before(l.now()) {
		return model.Appointment{}, fault.Validationf("requested slot is in the past")
	}

	mu := l.locks.lock(orig.ProfessionalID)
	defer mu.Unlock()

	// The moving appointment's own block must not veto its new position.
	if err := l.ensureFree(ctx, orig.ProfessionalID, day, startMinute, orig.DurationMinutes, orig.ID); err != nil {
		return model.Appointment{}, err
	}

	status := model.StatusPending
	if l.instantConfirm {
		status = model.StatusConfirmed
	}
	repl := orig
	repl.ID = uuid.NewString()
	repl.Date = day
	repl.StartMinute = startMinute
	repl.Status = status
	repl.CreatedAt = l.now().UTC()
	repl.CancelledAt = nil
	repl.RescheduledFrom = orig.ID
	repl.RescheduledTo = ""

	closed := orig
	closed.Status = model.StatusRescheduled
	closed.RescheduledTo = repl.ID

	evs := []Event{
		{Kind: EventRescheduled, AppointmentID: orig.ID, ProfessionalID: orig.ProfessionalID, ClientEmail: orig.ClientEmail},
		{Kind: EventCreated, AppointmentID: repl.ID, ProfessionalID: repl.ProfessionalID, ClientEmail: repl.ClientEmail},
	}
	if err := l.store.Reschedule(ctx, closed, repl, evs); err != nil {
		return model.Appointment{}, err
	}
	l.log.Info("appointment rescheduled",
		"appointment_id", orig.ID,
		"replacement_id", repl.ID,
		"professional_id", repl.ProfessionalID,
		"date", model.FormatDate(repl.Date),
		"start", model.FormatClock(repl.StartMinute),
	)
	return repl, nil
}

func (l *Ledger) Appointment(ctx context.Context, id string) (model.Appointment, error) {
	return l.store.Appointment(ctx, id)
}

func (l *Ledger) ListAppointments(ctx context.Context, professionalID string, f Filter) ([]model.Appointment, error) {
	return l.store.ListAppointments(ctx, professionalID, f)
}

// transition applies a single status change through the state machine and the
// store's compare-and-set. Terminal or otherwise invalid moves surface as
// conflicts, not validation errors: the request was well formed, the state
// just moved on.
func (l *Ledger) transition(ctx context.Context, id string, to model.Status, kind string) (model.Appointment, error) {
	appt, err := l.store.Appointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if !appt.Status.CanTransitionTo(to) {
		return model.Appointment{}, fault.Conflictf("appointment %s cannot go from %s to %s", id, appt.Status, to)
	}

	mu := l.locks.lock(appt.ProfessionalID)
	defer mu.Unlock()

	var cancelledAt *time.Time
	if to == model.StatusCancelled {
		t := l.now().UTC()
		cancelledAt = &t
	}
	ev := &Event{
		Kind:           kind,
		AppointmentID:  appt.ID,
		ProfessionalID: appt.ProfessionalID,
		ClientEmail:    appt.ClientEmail,
	}
	if err := l.store.UpdateStatus(ctx, id, appt.Status, to, cancelledAt, ev); err != nil {
		return model.Appointment{}, err
	}
	appt.Status = to
	appt.CancelledAt = cancelledAt
	l.log.Info("appointment status changed",
		"appointment_id", appt.ID,
		"professional_id", appt.ProfessionalID,
		"status", string(to),
	)
	return appt, nil
}

// ensureFree re-derives the date's free windows and checks the requested
// window is fully contained in one of them. Must be called under the
// professional's lock.
func (l *Ledger) ensureFree(ctx context.Context, professionalID string, date time.Time, start, duration int, excludeID string) error {
	free, err := l.gen.FreeWindows(ctx, professionalID, date, excludeID)
	if err != nil {
		return err
	}
	want := availability.Window{Start: start, End: start + duration}
	for _, w := range free {
		if w.Contains(want) {
			return nil
		}
	}
	return fault.Conflictf("slot %s on %s is not available", model.FormatClock(start), model.FormatDate(date))
}

func (l *Ledger) slotStart(pro model.Professional, date time.Time, minute int) time.Time {
	loc := pro.Location()
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc).
		Add(time.Duration(minute) * time.Minute)
}

func asValidation(err error, format string, args ...any) error {
	if fault.IsNotFound(err) {
		return fault.Validationf(format, args...)
	}
	return err
}
