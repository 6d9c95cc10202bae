// internal/web/respond.go
//
// JSON writers and fault → HTTP translation.
//
// Notes
// -----
// • Every fault kind has exactly one status; handlers must not invent
//   per-route mappings.
// • Bodies carry a machine code and a human message; clients key off the
//   code.

package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/gridfolio/gridfolio/internal/fault"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON renders v with the given status.  Encoding failures are only
// loggable at this point; the status line has already gone out.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Errorw("response encode failed", "err", err)
	}
}

// writeError maps a fault kind to its HTTP status and renders the error
// body.  Unknown errors become an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal"

	switch {
	case errors.Is(err, fault.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, fault.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "unauthorized"
	case fault.IsPlanLimit(err):
		status, code = http.StatusForbidden, "plan_limit_exceeded"
	case errors.Is(err, fault.ErrDuplicateBinding):
		status, code = http.StatusConflict, "duplicate_database"
	case errors.Is(err, fault.ErrPrimaryTransitionIncomplete):
		status, code = http.StatusConflict, "primary_transition_incomplete"
	case errors.Is(err, fault.ErrUpstreamUnavailable),
		errors.Is(err, fault.ErrMalformedUpstreamResponse):
		status, code = http.StatusBadGateway, "upstream_error"
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		zap.S().Errorw("request failed", "err", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

// writeBadRequest covers malformed input that never reached a domain
// package (missing params, invalid JSON, failed validation).
func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg})
}

// decodeJSON parses and validates a POST body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}
