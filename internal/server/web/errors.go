package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/eardogger/internal/common"
	"github.com/dmitrijs2005/eardogger/internal/logging"
)

// errBadJSON marks a request body that is not the JSON we expected.
var errBadJSON = errors.New("malformed json body")

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps an error to its status code and public error code. Anything
// unrecognised is a 500 whose details stay in the log.
func classify(err error) (int, string) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, common.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, common.ErrCSRFMismatch):
		return http.StatusForbidden, "csrf_mismatch"
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge, "body_too_large"
	case errors.Is(err, errBadJSON):
		return http.StatusUnprocessableEntity, "bad_json"
	case errors.Is(err, common.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, name := classify(err)
	msg := err.Error()
	log := logging.FromContext(r.Context(), s.logger)
	switch {
	case code >= 500:
		log.Error(r.Context(), "request failed", "error", err, "status", code)
		if code == http.StatusInternalServerError {
			msg = "internal server error"
		}
	default:
		log.Debug(r.Context(), "request rejected", "error", err, "status", code)
	}
	// these must not say which check failed
	switch code {
	case http.StatusUnauthorized:
		msg = "unauthenticated"
	case http.StatusForbidden:
		msg = "forbidden"
		if name == "csrf_mismatch" {
			msg = "csrf token missing or wrong"
		}
	case http.StatusNotFound:
		msg = "not found"
	}
	if code == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, code, errorBody{Error: name, Message: publicMessage(msg)})
}

// publicMessage drops wrapping prefixes like "db error: " that only mean
// something to us.
func publicMessage(msg string) string {
	if i := strings.LastIndex(msg, "validation error: "); i >= 0 {
		return msg[i+len("validation error: "):]
	}
	return msg
}
