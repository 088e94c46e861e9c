// Package booking is the query and command facade in front of the slot
// generator and the ledger. It owns wire-level parsing (YYYY-MM-DD dates,
// HH:MM clocks), request validation, and the trace spans around engine calls;
// handlers stay thin.
package booking

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/advomarket/booking/internal/fault"
	"github.com/advomarket/booking/internal/ledger"
	"github.com/advomarket/booking/internal/model"
	"github.com/advomarket/booking/internal/slots"
)

const (
	// Slot queries are accepted for yesterday (time zone slack for clients
	// west of UTC) through one year out.
	maxLookaheadDays = 365
	lookbehindDays   = 1
)

type Service struct {
	gen *slots.Generator
	led *ledger.Ledger

	tracer trace.Tracer
	now    func() time.Time
}

func NewService(gen *slots.Generator, led *ledger.Ledger) *Service {
	return &Service{
		gen:    gen,
		led:    led,
		tracer: otel.Tracer("booking"),
		now:    time.Now,
	}
}

// WithClock pins the wall clock used for the slot-query date bounds.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ListSlots returns the slot grid for one professional, date, and optional
// appointment type. Dates outside the bookable horizon are rejected rather
// than computed: generating a year-3000 calendar is never a client's intent.
func (s *Service) ListSlots(ctx context.Context, professionalID, dateStr, typeID string) ([]model.Slot, error) {
	ctx, span := s.tracer.Start(ctx, "booking.ListSlots",
		trace.WithAttributes(attribute.String("professional.id", professionalID)))
	defer span.End()

	if professionalID == "" {
		return nil, fault.Validationf("professional id is required")
	}
	date, err := model.ParseDate(dateStr)
	if err != nil {
		return nil, fault.Validationf("%v", err)
	}
	if err := s.checkHorizon(date); err != nil {
		return nil, err
	}
	return s.gen.Generate(ctx, professionalID, date, typeID)
}

// checkHorizon rejects dates outside the bookable range. Generating or
// booking a year-3000 calendar is never a client's intent.
func (s *Service) checkHorizon(date time.Time) error {
	today := model.NormalizeDate(s.now())
	if date.Before(today.AddDate(0, 0, -lookbehindDays)) || date.After(today.AddDate(0, 0, maxLookaheadDays)) {
		return fault.Validationf("date %s is outside the bookable range", model.FormatDate(date))
	}
	return nil
}

// BookRequest is the public booking payload, pre-parse.
type BookRequest struct {
	ProfessionalID    string `json:"professional_id"`
	AppointmentTypeID string `json:"appointment_type_id"`

	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	ClientPhone string `json:"client_phone"`

	Date  string `json:"date"`  // YYYY-MM-DD
	Start string `json:"start"` // HH:MM

	Location string `json:"location"`
	Notes    string `json:"notes"`
}

func (s *Service) Book(ctx context.Context, req BookRequest) (model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Book",
		trace.WithAttributes(
			attribute.String("professional.id", req.ProfessionalID),
			attribute.String("appointment_type.id", req.AppointmentTypeID),
		))
	defer span.End()

	switch {
	case req.ProfessionalID == "":
		return model.Appointment{}, fault.Validationf("professional_id is required")
	case req.AppointmentTypeID == "":
		return model.Appointment{}, fault.Validationf("appointment_type_id is required")
	case req.ClientName == "":
		return model.Appointment{}, fault.Validationf("client_name is required")
	case req.ClientEmail == "":
		return model.Appointment{}, fault.Validationf("client_email is required")
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return model.Appointment{}, fault.Validationf("%v", err)
	}
	start, err := model.ParseClock(req.Start)
	if err != nil {
		return model.Appointment{}, fault.Validationf("%v", err)
	}
	if err := s.checkHorizon(date); err != nil {
		return model.Appointment{}, err
	}

	return s.led.Reserve(ctx, ledger.ReserveInput{
		ProfessionalID:    req.ProfessionalID,
		AppointmentTypeID: req.AppointmentTypeID,
		ClientName:        req.ClientName,
		ClientEmail:       req.ClientEmail,
		ClientPhone:       req.ClientPhone,
		Date:              date,
		StartMinute:       start,
		Location:          req.Location,
		Notes:             req.Notes,
	})
}

func (s *Service) Confirm(ctx context.Context, id string) (model.Appointment, error) {
	return s.statusChange(ctx, "booking.Confirm", id, s.led.Confirm)
}

func (s *Service) Cancel(ctx context.Context, id string) (model.Appointment, error) {
	return s.statusChange(ctx, "booking.Cancel", id, s.led.Cancel)
}

func (s *Service) Complete(ctx context.Context, id string) (model.Appointment, error) {
	return s.statusChange(ctx, "booking.Complete", id, s.led.Complete)
}

func (s *Service) MarkNoShow(ctx context.Context, id string) (model.Appointment, error) {
	return s.statusChange(ctx, "booking.MarkNoShow", id, s.led.MarkNoShow)
}

func (s *Service) statusChange(ctx context.Context, span string, id string, op func(context.Context, string) (model.Appointment, error)) (model.Appointment, error) {
	ctx, sp := s.tracer.Start(ctx, span, trace.WithAttributes(attribute.String("appointment.id", id)))
	defer sp.End()
	if id == "" {
		return model.Appointment{}, fault.Validationf("appointment id is required")
	}
	return op(ctx, id)
}

func (s *Service) Reschedule(ctx context.Context, id, dateStr, startStr string) (model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Reschedule",
		trace.WithAttributes(attribute.String("appointment.id", id)))
	defer span.End()

	if id == "" {
		return model.Appointment{}, fault.Validationf("appointment id is required")
	}
	date, err := model.ParseDate(dateStr)
	if err != nil {
		return model.Appointment{}, fault.Validationf("%v", err)
	}
	start, err := model.ParseClock(startStr)
	if err != nil {
		return model.Appointment{}, fault.Validationf("%v", err)
	}
	if err := s.checkHorizon(date); err != nil {
		return model.Appointment{}, err
	}
	return s.led.Reschedule(ctx, id, date, start)
}

func (s *Service) Appointment(ctx context.Context, id string) (model.Appointment, error) {
	if id == "" {
		return model.Appointment{}, fault.Validationf("appointment id is required")
	}
	return s.led.Appointment(ctx, id)
}

// ListAppointments lists a professional's appointments with optional date and
// status filters, all given as wire strings.
func (s *Service) ListAppointments(ctx context.Context, professionalID, fromStr, toStr, statusStr string) ([]model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "booking.ListAppointments",
		trace.WithAttributes(attribute.String("professional.id", professionalID)))
	defer span.End()

	if professionalID == "" {
		return nil, fault.Validationf("professional id is required")
	}
	var f ledger.Filter
	var err error
	if fromStr != "" {
		if f.From, err = model.ParseDate(fromStr); err != nil {
			return nil, fault.Validationf("%v", err)
		}
	}
	if toStr != "" {
		if f.To, err = model.ParseDate(toStr); err != nil {
			return nil, fault.Validationf("%v", err)
		}
	}
	if statusStr != "" {
		f.Status = model.Status(statusStr)
		if !f.Status.Valid() {
			return nil, fault.Validationf("unknown status %q", statusStr)
		}
	}
	return s.led.ListAppointments(ctx, professionalID, f)
}
