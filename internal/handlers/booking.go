package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/advomarket/booking/internal/booking"
	"github.com/advomarket/booking/internal/model"
)

// BookingHandler serves the public booking API and the appointment lifecycle
// operations. All engine logic lives behind the facade; handlers only decode,
// delegate, and encode.
type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/slots", h.Slots)
	mux.HandleFunc("/api/v1/public/book", h.Book)
	mux.HandleFunc("/api/v1/appointments", h.List)
	mux.HandleFunc("/api/v1/appointments/get", h.Get)
	mux.HandleFunc("/api/v1/appointments/confirm", h.status((*booking.Service).Confirm))
	mux.HandleFunc("/api/v1/appointments/cancel", h.status((*booking.Service).Cancel))
	mux.HandleFunc("/api/v1/appointments/complete", h.status((*booking.Service).Complete))
	mux.HandleFunc("/api/v1/appointments/no-show", h.status((*booking.Service).MarkNoShow))
	mux.HandleFunc("/api/v1/appointments/reschedule", h.Reschedule)
}

type slotItem struct {
	Date      string `json:"date"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Available bool   `json:"available"`
}

type appointmentView struct {
	AppointmentID     string `json:"appointment_id"`
	ProfessionalID    string `json:"professional_id"`
	AppointmentTypeID string `json:"appointment_type_id"`
	ClientName        string `json:"client_name"`
	ClientEmail       string `json:"client_email"`
	ClientPhone       string `json:"client_phone,omitempty"`
	Date              string `json:"date"`
	Start             string `json:"start"`
	End               string `json:"end"`
	Location          string `json:"location,omitempty"`
	Notes             string `json:"notes,omitempty"`
	Status            string `json:"status"`
	PaymentStatus     string `json:"payment_status"`
	RescheduledFrom   string `json:"rescheduled_from,omitempty"`
	RescheduledTo     string `json:"rescheduled_to,omitempty"`
	CreatedAt         string `json:"created_at"`
	CancelledAt       string `json:"cancelled_at,omitempty"`
}

func viewOf(a model.Appointment) appointmentView {
	v := appointmentView{
		AppointmentID:     a.ID,
		ProfessionalID:    a.ProfessionalID,
		AppointmentTypeID: a.AppointmentTypeID,
		ClientName:        a.ClientName,
		ClientEmail:       a.ClientEmail,
		ClientPhone:       a.ClientPhone,
		Date:              model.FormatDate(a.Date),
		Start:             model.FormatClock(a.StartMinute),
		End:               model.FormatClock(a.EndMinute()),
		Location:          a.Location,
		Notes:             a.Notes,
		Status:            string(a.Status),
		PaymentStatus:     string(a.PaymentStatus),
		RescheduledFrom:   a.RescheduledFrom,
		RescheduledTo:     a.RescheduledTo,
		CreatedAt:         a.CreatedAt.Format(time.RFC3339),
	}
	if a.CancelledAt != nil {
		v.CancelledAt = a.CancelledAt.Format(time.RFC3339)
	}
	return v
}

// Slots handles GET /api/v1/public/slots?professional_id=&date=&type_id=.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	got, err := h.svc.ListSlots(r.Context(), q.Get("professional_id"), q.Get("date"), q.Get("type_id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items := make([]slotItem, 0, len(got))
	for _, s := range got {
		items = append(items, slotItem{
			Date:      model.FormatDate(s.Date),
			Start:     model.FormatClock(s.StartMinute),
			End:       model.FormatClock(s.EndMinute()),
			Available: s.Available,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": items})
}

// Book handles POST /api/v1/public/book.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req booking.BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	req.ClientName = strings.TrimSpace(req.ClientName)
	req.ClientEmail = strings.TrimSpace(req.ClientEmail)

	appt, err := h.svc.Book(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(appt))
}

// List handles GET /api/v1/appointments?professional_id=&from=&to=&status=.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	appts, err := h.svc.ListAppointments(r.Context(), q.Get("professional_id"), q.Get("from"), q.Get("to"), q.Get("status"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items := make([]appointmentView, 0, len(appts))
	for _, a := range appts {
		items = append(items, viewOf(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": items})
}

// Get handles GET /api/v1/appointments/get?id=.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	appt, err := h.svc.Appointment(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(appt))
}

type statusChangeRequest struct {
	AppointmentID string `json:"appointment_id"`
}

// status builds the POST handler for one lifecycle transition.
func (h *BookingHandler) status(op func(*booking.Service, context.Context, string) (model.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req statusChangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
			return
		}
		appt, err := op(h.svc, r.Context(), req.AppointmentID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(appt))
	}
}

type rescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	Date          string `json:"date"`
	Start         string `json:"start"`
}

// Reschedule handles POST /api/v1/appointments/reschedule.
func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	appt, err := h.svc.Reschedule(r.Context(), req.AppointmentID, req.Date, req.Start)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(appt))
}
