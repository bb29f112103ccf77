package httpapi

import (
	"net/http"
	"strings"

	"factura.org/internal/fault"
)

type mintTokenRequest struct {
	UID string `json:"uid"`
}

// handleMintToken issues a fresh token from the durable user record. Calling
// it after a membership change is how a session picks up new claims without
// waiting out the old token's TTL.
func (a *API) handleMintToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req mintTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, err)
		return
	}
	req.UID = strings.TrimSpace(req.UID)
	if req.UID == "" {
		writeFault(w, fault.New(fault.InvalidArgument, "uid is required").
			WithFields(map[string]string{"uid": "must not be empty"}))
		return
	}
	token, err := a.directory.MintToken(r.Context(), req.UID)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}
