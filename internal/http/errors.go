package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/core"
	flog "fintrack/internal/log"
	"fintrack/internal/services"
)

type errorBody struct {
	Error string `json:"error"`
}

// validationErrors map to 422 with their own message.
var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrSameAccount,
	core.ErrZeroAmount,
	core.ErrEmptyDescription,
	core.ErrInvalidClosingDay,
	core.ErrInvalidDueDay,
	core.ErrInvalidDay,
	core.ErrInvalidFrequency,
}

// statusFor maps a service error to a status and a message safe to return.
func statusFor(err error) (int, string) {
	var re *requestError
	switch {
	case errors.As(err, &re):
		return http.StatusBadRequest, re.msg
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, core.ErrAlreadyPaid):
		return http.StatusConflict, core.ErrAlreadyPaid.Error()
	case errors.Is(err, services.ErrRunInProgress):
		return http.StatusConflict, services.ErrRunInProgress.Error()
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusUnprocessableEntity, v.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs err with full detail and replies with the short message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	logger := flog.FromContext(r.Context())
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed", flog.FieldError, err, flog.FieldPath, r.URL.Path)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", flog.FieldError, err, flog.FieldStatusCode, status)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

type cronResult struct {
	OK        bool   `json:"ok"`
	Processed int    `json:"processed"`
	Created   int    `json:"created"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

func writeCronError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		flog.FromContext(r.Context()).ErrorContext(r.Context(), "Recurring run failed", flog.FieldError, err)
		msg = "recurring run failed"
	}
	writeJSON(w, status, cronResult{OK: false, Error: msg})
}
