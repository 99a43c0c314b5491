package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"fund-transfer/pkg/ledger"
)

const msgUnexpected = "An unexpected error occurred"

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeList(w http.ResponseWriter, data interface{}, n int) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Count: &n})
}

func writeError(w http.ResponseWriter, status int, message string, details map[string]string) {
	writeJSON(w, status, envelope{Error: &errorBody{Message: message, Details: details}})
}

// statusFor maps a service error to a status code and a message safe to
// return. Unclassified errors never expose their text.
func statusFor(err error) (int, string) {
	switch {
	case ledger.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	case ledger.IsBusinessRule(err):
		return http.StatusUnprocessableEntity, err.Error()
	case ledger.IsNotFound(err):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, ledger.ErrCircuitOpen), errors.Is(err, ledger.ErrRetryExhausted):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, msgUnexpected
	}
}
