package httpx

import (
	"encoding/json"
	"net/http"
)

type envelope struct {
	OK      bool   `json:"ok"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

func write(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func OK(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, envelope{OK: true, Data: data})
}

func Created(w http.ResponseWriter, data any) {
	write(w, http.StatusCreated, envelope{OK: true, Data: data})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Error(w http.ResponseWriter, status int, msg string) {
	write(w, status, envelope{OK: false, Error: msg})
}

// ErrorWithDetails carries a machine-readable payload next to the message,
// e.g. the list of cart problems blocking checkout.
func ErrorWithDetails(w http.ResponseWriter, status int, msg string, details any) {
	write(w, status, envelope{OK: false, Error: msg, Details: details})
}

func BadRequest(w http.ResponseWriter, msg string) {
	Error(w, http.StatusBadRequest, msg)
}

func ServerError(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, "internal error")
}
