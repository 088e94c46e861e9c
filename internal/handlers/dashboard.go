package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/advomarket/booking/internal/fault"
	"github.com/advomarket/booking/internal/model"
	"github.com/advomarket/booking/internal/schedule"
)

// ConfigStore is the schedule-configuration surface the dashboard writes to.
// Both the memory and Postgres stores satisfy it.
type ConfigStore interface {
	Professional(ctx context.Context, id string) (model.Professional, error)
	UpsertProfessional(ctx context.Context, p model.Professional) error

	WeeklySchedule(ctx context.Context, professionalID string) ([]model.DayHours, error)
	ReplaceWeeklySchedule(ctx context.Context, professionalID string, week []model.DayHours) error

	ListExceptions(ctx context.Context, professionalID string) ([]model.TimeException, error)
	CreateException(ctx context.Context, e model.TimeException) error
	DeleteException(ctx context.Context, professionalID, id string) error

	CreateAppointmentType(ctx context.Context, at model.AppointmentType) error
	ListAppointmentTypes(ctx context.Context, professionalID string) ([]model.AppointmentType, error)
}

// DashboardHandler serves the professional's own configuration API. The
// calling professional is identified by the X-Professional-Id header set by
// the gateway after authentication.
type DashboardHandler struct {
	store  ConfigStore
	logger *slog.Logger
}

func NewDashboardHandler(store ConfigStore, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{store: store, logger: logger}
}

func (h *DashboardHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/dashboard/profile", h.Profile)
	mux.HandleFunc("/api/v1/dashboard/schedule", h.Schedule)
	mux.HandleFunc("/api/v1/dashboard/exceptions", h.Exceptions)
	mux.HandleFunc("/api/v1/dashboard/types", h.Types)
}

func professionalID(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get("X-Professional-Id"))
	return id, id != ""
}

type profileRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

func (h *DashboardHandler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := professionalID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing professional identity"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		p, err := h.store.Professional(r.Context(), id)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"professional_id": p.ID, "name": p.Name, "timezone": p.Timezone})
	case http.MethodPut:
		var req profileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
			return
		}
		if req.Timezone != "" {
			if _, err := time.LoadLocation(req.Timezone); err != nil {
				writeError(w, h.logger, fault.Validationf("unknown timezone %q", req.Timezone))
				return
			}
		}
		if err := h.store.UpsertProfessional(r.Context(), model.Professional{ID: id, Name: req.Name, Timezone: req.Timezone}); err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"professional_id": id})
	default:
		methodNotAllowed(w)
	}
}

type dayHoursItem struct {
	Weekday    string `json:"weekday"`
	Open       bool   `json:"open"`
	Start      string `json:"start,omitempty"`
	End        string `json:"end,omitempty"`
	BreakStart string `json:"break_start,omitempty"`
	BreakEnd   string `json:"break_end,omitempty"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

func (d dayHoursItem) toModel() (model.DayHours, error) {
	weekday, ok := weekdayNames[strings.ToLower(d.Weekday)]
	if !ok {
		return model.DayHours{}, fault.Validationf("unknown weekday %q", d.Weekday)
	}
	out := model.DayHours{Weekday: weekday, Open: d.Open}
	if !d.Open {
		return out, nil
	}
	var err error
	if out.StartMinute, err = model.ParseClock(d.Start); err != nil {
		return model.DayHours{}, fault.Validationf("%v", err)
	}
	if out.EndMinute, err = model.ParseClock(d.End); err != nil {
		return model.DayHours{}, fault.Validationf("%v", err)
	}
	if d.BreakStart != "" || d.BreakEnd != "" {
		if out.BreakStartMinute, err = model.ParseClock(d.BreakStart); err != nil {
			return model.DayHours{}, fault.Validationf("%v", err)
		}
		if out.BreakEndMinute, err = model.ParseClock(d.BreakEnd); err != nil {
			return model.DayHours{}, fault.Validationf("%v", err)
		}
	}
	return out, nil
}

func dayItemOf(d model.DayHours) dayHoursItem {
	item := dayHoursItem{Weekday: strings.ToLower(d.Weekday.String()), Open: d.Open}
	if !d.Open {
		return item
	}
	item.Start = model.FormatClock(d.StartMinute)
	item.End = model.FormatClock(d.EndMinute)
	if d.HasBreak() {
		item.BreakStart = model.FormatClock(d.BreakStartMinute)
		item.BreakEnd = model.FormatClock(d.BreakEndMinute)
	}
	return item
}

func (h *DashboardHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	id, ok := professionalID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing professional identity"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		week, err := h.store.WeeklySchedule(r.Context(), id)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		items := make([]dayHoursItem, 0, len(week))
		for _, d := range week {
			items = append(items, dayItemOf(d))
		}
		writeJSON(w, http.StatusOK, map[string]any{"days": items})
	case http.MethodPut:
		var req struct {
			Days []dayHoursItem `json:"days"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
			return
		}
		week := make([]model.DayHours, 0, len(req.Days))
		for _, item := range req.Days {
			d, err := item.toModel()
			if err != nil {
				writeError(w, h.logger, err)
				return
			}
			week = append(week, d)
		}
		if err := schedule.ValidateWeek(week); err != nil {
			// Reject misconfiguration at write time; stored schedules stay clean.
			writeError(w, h.logger, fault.Validationf("%v", err))
			return
		}
		if err := h.store.ReplaceWeeklySchedule(r.Context(), id, week); err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"professional_id": id})
	default:
		methodNotAllowed(w)
	}
}

type exceptionItem struct {
	ExceptionID string   `json:"exception_id,omitempty"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Recurrence  string   `json:"recurrence"`
	Weekdays    []string `json:"weekdays,omitempty"`
}

func exceptionItemOf(e model.TimeException) exceptionItem {
	item := exceptionItem{
		ExceptionID: e.ID,
		Title:       e.Title,
		Type:        string(e.Type),
		StartDate:   model.FormatDate(e.StartDate),
		EndDate:     model.FormatDate(e.EndDate),
		Start:       model.FormatClock(e.StartMinute),
		End:         model.FormatClock(e.EndMinute),
		Recurrence:  string(e.Recurrence),
	}
	for _, wd := range e.Weekdays {
		item.Weekdays = append(item.Weekdays, strings.ToLower(wd.String()))
	}
	return item
}

func (h *DashboardHandler) Exceptions(w http.ResponseWriter, r *http.Request) {
	id, ok := professionalID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing professional identity"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		exceptions, err := h.store.ListExceptions(r.Context(), id)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		items := make([]exceptionItem, 0, len(exceptions))
		for _, e := range exceptions {
			items = append(items, exceptionItemOf(e))
		}
		writeJSON(w, http.StatusOK, map[string]any{"exceptions": items})
	case http.MethodPost:
		var req exceptionItem
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
			return
		}
		e, err := h.parseException(id, req)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		if err := h.store.CreateException(r.Context(), e); err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, exceptionItemOf(e))
	case http.MethodDelete:
		exceptionID := r.URL.Query().Get("id")
		if exceptionID == "" {
			writeError(w, h.logger, fault.Validationf("exception id is required"))
			return
		}
		if err := h.store.DeleteException(r.Context(), id, exceptionID); err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"exception_id": exceptionID})
	default:
		methodNotAllowed(w)
	}
}

func (h *DashboardHandler) parseException(professionalID string, req exceptionItem) (model.TimeException, error) {
	e := model.TimeException{
		ID:             uuid.NewString(),
		ProfessionalID: professionalID,
		Title:          req.Title,
		Type:           model.ExceptionType(req.Type),
		Recurrence:     model.Recurrence(req.Recurrence),
	}
	if e.Recurrence == "" {
		e.Recurrence = model.RecurNone
	}
	var err error
	if e.StartDate, err = model.ParseDate(req.StartDate); err != nil {
		return model.TimeException{}, fault.Validationf("%v", err)
	}
	if e.EndDate, err = model.ParseDate(req.EndDate); err != nil {
		return model.TimeException{}, fault.Validationf("%v", err)
	}
	if e.StartMinute, err = model.ParseClock(req.Start); err != nil {
		return model.TimeException{}, fault.Validationf("%v", err)
	}
	if e.EndMinute, err = model.ParseClock(req.End); err != nil {
		return model.TimeException{}, fault.Validationf("%v", err)
	}
	for _, name := range req.Weekdays {
		wd, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return model.TimeException{}, fault.Validationf("unknown weekday %q", name)
		}
		e.Weekdays = append(e.Weekdays, wd)
	}
	if err := schedule.ValidateException(e); err != nil {
		return model.TimeException{}, fault.Validationf("%v", err)
	}
	return e, nil
}

type appointmentTypeItem struct {
	TypeID          string `json:"type_id,omitempty"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	Description     string `json:"description,omitempty"`
}

func (h *DashboardHandler) Types(w http.ResponseWriter, r *http.Request) {
	id, ok := professionalID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing professional identity"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		types, err := h.store.ListAppointmentTypes(r.Context(), id)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		items := make([]appointmentTypeItem, 0, len(types))
		for _, at := range types {
			items = append(items, appointmentTypeItem{
				TypeID:          at.ID,
				Name:            at.Name,
				DurationMinutes: at.DurationMinutes,
				PriceCents:      at.PriceCents,
				Description:     at.Description,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"types": items})
	case http.MethodPost:
		var req appointmentTypeItem
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, h.logger, fault.Validationf("name is required"))
			return
		}
		if req.DurationMinutes <= 0 || req.DurationMinutes > model.MinutesPerDay {
			writeError(w, h.logger, fault.Validationf("duration_minutes must be between 1 and %d", model.MinutesPerDay))
			return
		}
		if req.PriceCents < 0 {
			writeError(w, h.logger, fault.Validationf("price_cents must not be negative"))
			return
		}
		at := model.AppointmentType{
			ID:              uuid.NewString(),
			ProfessionalID:  id,
			Name:            req.Name,
			DurationMinutes: req.DurationMinutes,
			PriceCents:      req.PriceCents,
			Description:     req.Description,
		}
		if err := h.store.CreateAppointmentType(r.Context(), at); err != nil {
			writeError(w, h.logger, err)
			return
		}
		req.TypeID = at.ID
		writeJSON(w, http.StatusCreated, req)
	default:
		methodNotAllowed(w)
	}
}
