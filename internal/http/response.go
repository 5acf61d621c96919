package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"kharcha/internal/core"
	applog "kharcha/internal/log"
)

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, description string) {
	writeJSON(w, status, errorResponse{
		Error:       http.StatusText(status),
		Description: description,
	})
}

// respond writes v as a 200 JSON body or maps err onto an error response.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, op string, fields applog.LogFields, v any, err error) {
	if err != nil {
		s.fail(w, r, op, fields, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// fail maps validation errors to 400 and everything else to 500. Only the
// latter are logged as errors; their details stay out of the response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, fields applog.LogFields, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, core.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		errType := applog.ErrorTypeDatabase
		if errors.Is(err, core.ErrInvariant) {
			errType = applog.ErrorTypeInternal
		}
		sl := applog.NewStructuredLogger(applog.FromContext(r.Context()))
		sl.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, fields.WithErrorType(errType))
		writeError(w, http.StatusInternalServerError, "the request could not be completed")
	}
}
