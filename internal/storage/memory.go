package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/advomarket/booking/internal/fault"
	"github.com/advomarket/booking/internal/ledger"
	"github.com/advomarket/booking/internal/model"
)

// MemoryStore is a complete in-process implementation of the booking store.
// The service runs on it when no DATABASE_URL is configured, and tests use it
// as the store of record. Events are collected in an in-memory sink instead
// of the transactional outbox; DrainEvents hands them to the caller.
type MemoryStore struct {
	mu sync.RWMutex

	professionals map[string]model.Professional
	weeks         map[string][]model.DayHours
	exceptions    map[string][]model.TimeException
	types         map[string]map[string]model.AppointmentType
	appointments  map[string]model.Appointment

	events []ledger.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		professionals: make(map[string]model.Professional),
		weeks:         make(map[string][]model.DayHours),
		exceptions:    make(map[string][]model.TimeException),
		types:         make(map[string]map[string]model.AppointmentType),
		appointments:  make(map[string]model.Appointment),
	}
}

func (s *MemoryStore) Professional(ctx context.Context, id string) (model.Professional, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.professionals[id]
	if !ok {
		return model.Professional{}, fault.NotFound("professional", id)
	}
	return p, nil
}

func (s *MemoryStore) UpsertProfessional(ctx context.Context, p model.Professional) error {
	if p.ID == "" {
		return fault.Validationf("professional id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.professionals[p.ID] = p
	return nil
}

// WeeklySchedule returns the professional's configured week, or the default
// Monday-Friday 09:00-17:00 week when nothing has been configured yet.
func (s *MemoryStore) WeeklySchedule(ctx context.Context, professionalID string) ([]model.DayHours, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if week, ok := s.weeks[professionalID]; ok {
		return append([]model.DayHours(nil), week...), nil
	}
	return DefaultWeek(), nil
}

func (s *MemoryStore) ReplaceWeeklySchedule(ctx context.Context, professionalID string, week []model.DayHours) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.professionals[professionalID]; !ok {
		return fault.NotFound("professional", professionalID)
	}
	s.weeks[professionalID] = append([]model.DayHours(nil), week...)
	return nil
}

func (s *MemoryStore) ListExceptions(ctx context.Context, professionalID string) ([]model.TimeException, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.TimeException(nil), s.exceptions[professionalID]...), nil
}

func (s *MemoryStore) CreateException(ctx context.Context, e model.TimeException) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.professionals[e.ProfessionalID]; !ok {
		return fault.NotFound("professional", e.ProfessionalID)
	}
	s.exceptions[e.ProfessionalID] = append(s.exceptions[e.ProfessionalID], e)
	return nil
}

func (s *MemoryStore) DeleteException(ctx context.Context, professionalID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.exceptions[professionalID]
	for i, e := range list {
		if e.ID == id {
			s.exceptions[professionalID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return fault.NotFound("exception", id)
}

func (s *MemoryStore) AppointmentType(ctx context.Context, professionalID, typeID string) (model.AppointmentType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.types[professionalID][typeID]
	if !ok {
		return model.AppointmentType{}, fault.NotFound("appointment type", typeID)
	}
	return at, nil
}

func (s *MemoryStore) CreateAppointmentType(ctx context.Context, at model.AppointmentType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.professionals[at.ProfessionalID]; !ok {
		return fault.NotFound("professional", at.ProfessionalID)
	}
	if s.types[at.ProfessionalID] == nil {
		s.types[at.ProfessionalID] = make(map[string]model.AppointmentType)
	}
	s.types[at.ProfessionalID][at.ID] = at
	return nil
}

func (s *MemoryStore) ListAppointmentTypes(ctx context.Context, professionalID string) ([]model.AppointmentType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.AppointmentType
	for _, at := range s.types[professionalID] {
		out = append(out, at)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) AppointmentsOn(ctx context.Context, professionalID string, date time.Time) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Appointment
	for _, a := range s.appointments {
		if a.ProfessionalID == professionalID && model.SameDate(a.Date, date) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartMinute < out[j].StartMinute })
	return out, nil
}

func (s *MemoryStore) Appointment(ctx context.Context, id string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, fault.NotFound("appointment", id)
	}
	return a, nil
}

func (s *MemoryStore) CreateAppointment(ctx context.Context, appt model.Appointment, ev *ledger.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOverlapLocked(appt, ""); err != nil {
		return err
	}
	s.appointments[appt.ID] = appt
	if ev != nil {
		s.events = append(s.events, *ev)
	}
	return nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, from, to model.Status, cancelledAt *time.Time, ev *ledger.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return fault.NotFound("appointment", id)
	}
	if a.Status != from {
		return fault.Conflictf("appointment %s is %s, expected %s", id, a.Status, from)
	}
	a.Status = to
	a.CancelledAt = cancelledAt
	s.appointments[id] = a
	if ev != nil {
		s.events = append(s.events, *ev)
	}
	return nil
}

func (s *MemoryStore) Reschedule(ctx context.Context, original, replacement model.Appointment, evs []ledger.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.appointments[original.ID]
	if !ok {
		return fault.NotFound("appointment", original.ID)
	}
	if stored.Status.Terminal() {
		return fault.Conflictf("appointment %s is already %s", original.ID, stored.Status)
	}
	if err := s.checkOverlapLocked(replacement, original.ID); err != nil {
		return err
	}
	s.appointments[original.ID] = original
	s.appointments[replacement.ID] = replacement
	s.events = append(s.events, evs...)
	return nil
}

func (s *MemoryStore) ListAppointments(ctx context.Context, professionalID string, f ledger.Filter) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Appointment
	for _, a := range s.appointments {
		if a.ProfessionalID != professionalID {
			continue
		}
		if !f.From.IsZero() && a.Date.Before(model.NormalizeDate(f.From)) {
			continue
		}
		if !f.To.IsZero() && a.Date.After(model.NormalizeDate(f.To)) {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].StartMinute != out[j].StartMinute {
			return out[i].StartMinute < out[j].StartMinute
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DrainEvents removes and returns all accumulated events. The memory-mode
// service logs them in place of the Kafka outbox.
func (s *MemoryStore) DrainEvents() []ledger.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}

// checkOverlapLocked is the store-level backstop behind the ledger's keyed
// mutex, mirroring the Postgres exclusion constraint.
func (s *MemoryStore) checkOverlapLocked(appt model.Appointment, excludeID string) error {
	if !appt.Status.Blocks() {
		return nil
	}
	for _, other := range s.appointments {
		if other.ID == excludeID || other.ProfessionalID != appt.ProfessionalID {
			continue
		}
		if !other.Status.Blocks() || !model.SameDate(other.Date, appt.Date) {
			continue
		}
		if appt.StartMinute < other.EndMinute() && other.StartMinute < appt.EndMinute() {
			return fault.Conflictf("slot %s on %s is not available", model.FormatClock(appt.StartMinute), model.FormatDate(appt.Date))
		}
	}
	return nil
}

// DefaultWeek is the schedule used until a professional configures one:
// Monday through Friday, 09:00-17:00, no break.
func DefaultWeek() []model.DayHours {
	days := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	out := make([]model.DayHours, 0, len(days))
	for _, d := range days {
		out = append(out, model.DayHours{
			Weekday:     d,
			Open:        true,
			StartMinute: 9 * 60,
			EndMinute:   17 * 60,
		})
	}
	return out
}
