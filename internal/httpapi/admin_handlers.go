package httpapi

import (
	"net/http"
	"strconv"
	"strings"
)

type grantAdminRequest struct {
	Email string `json:"email"`
}

func (a *API) handleAdmin(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/admin/")
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "stats":
		a.adminStats(w, r)
	case path == "organizations":
		a.adminList(w, r, "organizations")
	case path == "users":
		a.adminList(w, r, "users")
	case path == "invoices":
		a.adminList(w, r, "invoices")
	case path == "payments":
		a.adminList(w, r, "payments")
	case path == "platform-admins":
		a.adminGrant(w, r)
	case len(parts) == 2 && parts[0] == "platform-admins":
		a.adminRevoke(w, r, parts[1])
	default:
		writeError(w, http.StatusNotFound, "resource not found")
	}
}

func (a *API) adminStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	stats, err := a.admin.GetStats(r.Context(), caller(r))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) adminList(w http.ResponseWriter, r *http.Request, kind string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	limit := queryLimit(r)
	ctx := r.Context()
	id := caller(r)

	var (
		payload any
		err     error
	)
	switch kind {
	case "organizations":
		payload, err = a.admin.ListOrganizations(ctx, id, limit)
	case "users":
		payload, err = a.admin.ListUsers(ctx, id, limit)
	case "invoices":
		payload, err = a.admin.ListInvoices(ctx, id, limit)
	case "payments":
		payload, err = a.admin.ListPayments(ctx, id, limit)
	}
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{kind: payload})
}

func (a *API) adminGrant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req grantAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, err)
		return
	}
	uid, err := a.tenants.GrantPlatformAdmin(r.Context(), caller(r), req.Email)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uid": uid, "platformAdmin": true})
}

func (a *API) adminRevoke(w http.ResponseWriter, r *http.Request, uid string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodDelete)
		return
	}
	if err := a.tenants.RevokePlatformAdmin(r.Context(), caller(r), uid); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
