package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/advomarket/booking/internal/booking"
	"github.com/advomarket/booking/internal/handlers"
	"github.com/advomarket/booking/internal/ledger"
	"github.com/advomarket/booking/internal/model"
	"github.com/advomarket/booking/internal/slots"
	"github.com/advomarket/booking/internal/storage"
)

// fixed "now": Monday 2026-07-06 08:00 UTC.
var now = time.Date(2026, time.July, 6, 8, 0, 0, 0, time.UTC)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := storage.NewMemoryStore()
	ctx := context.Background()
	if err := store.UpsertProfessional(ctx, model.Professional{ID: "pro-1", Name: "A. Advocate", Timezone: "UTC"}); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateAppointmentType(ctx, model.AppointmentType{
		ID: "consult-60", ProfessionalID: "pro-1", Name: "Consultation", DurationMinutes: 60, PriceCents: 15000,
	}); err != nil {
		t.Fatal(err)
	}

	clock := func() time.Time { return now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gen := slots.New(store).WithClock(clock)
	led := ledger.New(store, gen, logger, ledger.Options{Clock: clock})
	svc := booking.NewService(gen, led).WithClock(clock)

	mux := http.NewServeMux()
	handlers.NewBookingHandler(svc, logger).Register(mux)
	handlers.NewDashboardHandler(store, logger).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil && err != io.EOF {
		t.Fatalf("decode response: %v", err)
	}
	return resp, parsed
}

func TestSlotsEndpoint(t *testing.T) {
	srv := newServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/public/slots?professional_id=pro-1&date=2026-07-07&type_id=consult-60", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	items, ok := body["slots"].([]any)
	if !ok || len(items) == 0 {
		t.Fatalf("slots = %v", body["slots"])
	}
	first := items[0].(map[string]any)
	if first["start"] != "09:00" || first["end"] != "10:00" || first["available"] != true {
		t.Fatalf("first slot = %v", first)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/public/slots?professional_id=pro-1&date=garbage", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad date status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/public/slots", nil, nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST slots status = %d", resp.StatusCode)
	}
}

func TestBookEndpointStatusMapping(t *testing.T) {
	srv := newServer(t)
	book := map[string]string{
		"professional_id":     "pro-1",
		"appointment_type_id": "consult-60",
		"client_name":         "Client",
		"client_email":        "client@example.com",
		"date":                "2026-07-07",
		"start":               "10:00",
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/public/book", book, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["status"] != "pending" {
		t.Fatalf("status field = %v", body["status"])
	}
	apptID, _ := body["appointment_id"].(string)
	if apptID == "" {
		t.Fatal("missing appointment_id")
	}

	// Same slot again: 409.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/public/book", book, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double book status = %d", resp.StatusCode)
	}

	// Unknown type: 400.
	bad := map[string]string{}
	for k, v := range book {
		bad[k] = v
	}
	bad["appointment_type_id"] = "nope"
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/public/book", bad, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown type status = %d", resp.StatusCode)
	}

	// Lifecycle: confirm, then complete.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments/confirm", map[string]string{"appointment_id": apptID}, nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "confirmed" {
		t.Fatalf("confirm: status = %d, body = %v", resp.StatusCode, body)
	}
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments/complete", map[string]string{"appointment_id": apptID}, nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "completed" {
		t.Fatalf("complete: status = %d, body = %v", resp.StatusCode, body)
	}

	// Terminal: cancel now conflicts.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments/cancel", map[string]string{"appointment_id": apptID}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("cancel completed status = %d", resp.StatusCode)
	}

	// Unknown id: 404.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments/cancel", map[string]string{"appointment_id": "missing"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing id status = %d", resp.StatusCode)
	}
}

func TestRescheduleEndpoint(t *testing.T) {
	srv := newServer(t)
	_, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/public/book", map[string]string{
		"professional_id":     "pro-1",
		"appointment_type_id": "consult-60",
		"client_name":         "Client",
		"client_email":        "client@example.com",
		"date":                "2026-07-07",
		"start":               "10:00",
	}, nil)
	apptID := body["appointment_id"].(string)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments/reschedule", map[string]string{
		"appointment_id": apptID,
		"date":           "2026-07-08",
		"start":          "14:00",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["rescheduled_from"] != apptID || body["start"] != "14:00" {
		t.Fatalf("body = %v", body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/appointments/get?id="+apptID, nil, nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "rescheduled" {
		t.Fatalf("original after reschedule: status = %d, body = %v", resp.StatusCode, body)
	}
}

func TestListAppointmentsEndpoint(t *testing.T) {
	srv := newServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/public/book", map[string]string{
		"professional_id":     "pro-1",
		"appointment_type_id": "consult-60",
		"client_name":         "Client",
		"client_email":        "client@example.com",
		"date":                "2026-07-07",
		"start":               "10:00",
	}, nil)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/appointments?professional_id=pro-1&from=2026-07-07&to=2026-07-07", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	items, _ := body["appointments"].([]any)
	if len(items) != 1 {
		t.Fatalf("appointments = %v", body["appointments"])
	}
}

func TestDashboardScheduleRoundTrip(t *testing.T) {
	srv := newServer(t)
	auth := map[string]string{"X-Professional-Id": "pro-1"}

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/v1/dashboard/schedule", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no identity: status = %d", resp.StatusCode)
	}

	put := map[string]any{
		"days": []map[string]any{
			{"weekday": "monday", "open": true, "start": "09:00", "end": "18:00", "break_start": "12:00", "break_end": "13:00"},
			{"weekday": "tuesday", "open": false},
		},
	}
	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/v1/dashboard/schedule", put, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put schedule: status = %d, body = %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/dashboard/schedule", nil, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get schedule: status = %d", resp.StatusCode)
	}
	days, _ := body["days"].([]any)
	if len(days) != 2 {
		t.Fatalf("days = %v", body["days"])
	}
	mon := days[0].(map[string]any)
	if mon["weekday"] != "monday" || mon["break_start"] != "12:00" {
		t.Fatalf("monday = %v", mon)
	}

	// Inverted hours are rejected before they can poison slot generation.
	bad := map[string]any{
		"days": []map[string]any{{"weekday": "monday", "open": true, "start": "18:00", "end": "09:00"}},
	}
	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/v1/dashboard/schedule", bad, auth)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("inverted hours: status = %d", resp.StatusCode)
	}
}

func TestDashboardExceptionsAffectSlots(t *testing.T) {
	srv := newServer(t)
	auth := map[string]string{"X-Professional-Id": "pro-1"}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/dashboard/exceptions", map[string]any{
		"title":      "court hearing",
		"type":       "meeting",
		"start_date": "2026-07-07",
		"end_date":   "2026-07-07",
		"start":      "09:00",
		"end":        "12:00",
	}, auth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create exception: status = %d, body = %v", resp.StatusCode, body)
	}
	exceptionID := body["exception_id"].(string)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/public/slots?professional_id=pro-1&date=2026-07-07&type_id=consult-60", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("slots: status = %d", resp.StatusCode)
	}
	for _, raw := range body["slots"].([]any) {
		if raw.(map[string]any)["start"] == "09:00" {
			t.Fatal("09:00 offered despite the morning exception")
		}
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/dashboard/exceptions?id="+exceptionID, nil, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete exception: status = %d", resp.StatusCode)
	}
}

func TestDashboardTypes(t *testing.T) {
	srv := newServer(t)
	auth := map[string]string{"X-Professional-Id": "pro-1"}

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/dashboard/types", map[string]any{
		"name": "Intro call", "duration_minutes": 0,
	}, auth)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("zero duration: status = %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/dashboard/types", map[string]any{
		"name": "Intro call", "duration_minutes": 30, "price_cents": 5000,
	}, auth)
	if resp.StatusCode != http.StatusCreated || body["type_id"] == "" {
		t.Fatalf("create type: status = %d, body = %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/dashboard/types", nil, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list types: status = %d", resp.StatusCode)
	}
	if len(body["types"].([]any)) != 2 {
		t.Fatalf("types = %v", body["types"])
	}
}
