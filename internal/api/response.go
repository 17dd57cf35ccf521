package api

import (
	"encoding/json"
	"net/http"

	"yurica-pos/internal/apperror"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// OKResponse acknowledges a write. Received is set for ingested events.
type OKResponse struct {
	OK       bool `json:"ok"`
	Received any  `json:"received,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// noStore keeps dashboards from showing cached state.
func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
}

func writeError(w http.ResponseWriter, err error, fallbackCode string) {
	appErr := apperror.From(err, fallbackCode)
	writeJSON(w, appErr.StatusCode(), ErrorResponse{
		Error:   appErr.Code(),
		Kind:    string(appErr.Kind()),
		Message: publicMessage(appErr),
	})
}

// publicMessage hides storage and internal causes from clients.
func publicMessage(e *apperror.Error) string {
	switch e.Kind() {
	case apperror.KindValidation, apperror.KindNotFound:
		return e.Message()
	default:
		return "internal error"
	}
}
