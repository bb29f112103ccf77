package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"factura.org/internal/auth"
	"factura.org/internal/fault"
	"factura.org/internal/obs"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{"error": message})
}

// writeFault maps the error taxonomy onto HTTP statuses. Internal causes are
// logged but never leak into the response body.
func writeFault(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrInvalidToken) {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	kind := fault.KindOf(err)
	code := http.StatusInternalServerError
	switch kind {
	case fault.Unauthenticated:
		code = http.StatusUnauthorized
	case fault.PermissionDenied:
		code = http.StatusForbidden
	case fault.InvalidArgument:
		code = http.StatusBadRequest
	case fault.NotFound:
		code = http.StatusNotFound
	case fault.FailedPrecondition:
		code = http.StatusPreconditionFailed
	}

	body := map[string]any{"kind": string(kind)}
	if code == http.StatusInternalServerError {
		obs.LogError("httpapi", "request failed", err)
		body["error"] = "internal error"
	} else {
		var fe *fault.Error
		if errors.As(err, &fe) {
			body["error"] = fe.Message
			if len(fe.Fields) > 0 {
				body["fields"] = fe.Fields
			}
		} else {
			body["error"] = err.Error()
		}
	}
	writeJSON(w, code, body)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fault.Wrap(fault.InvalidArgument, "malformed JSON body", err)
	}
	return nil
}
