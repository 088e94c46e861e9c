package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/advomarket/booking/internal/fault"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the engine's error taxonomy onto HTTP statuses. Validation
// and conflict messages are safe to echo; anything unexpected becomes an
// opaque 500 and is logged server-side.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case fault.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case fault.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case fault.IsConflict(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case fault.IsConfig(err):
		logger.Error("schedule configuration fault", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "schedule configuration error"})
	default:
		logger.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}
