package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"factura.org/internal/invoice"
	"factura.org/internal/tenant"
)

type provisionOrgRequest struct {
	Name    string          `json:"name"`
	Profile *tenant.Profile `json:"profile,omitempty"`
}

type updateOrgRequest struct {
	Name    string          `json:"name,omitempty"`
	Profile *tenant.Profile `json:"profile,omitempty"`
}

type setMemberRequest struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
}

type pdfRequest struct {
	Type string `json:"type,omitempty"`
}

type paymentIntentRequest struct {
	Provider string `json:"provider"`
}

func (a *API) handleOrgs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req provisionOrgRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, err)
		return
	}
	org, err := a.tenants.Provision(r.Context(), caller(r), req.Name, req.Profile)
	if err != nil {
		writeFault(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/orgs/%s", org.ID))
	writeJSON(w, http.StatusCreated, org)
}

func (a *API) handleOrgScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/orgs/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	orgID := parts[0]

	switch {
	case len(parts) == 1:
		a.handleOrg(w, r, orgID)
	case parts[1] == "members" && len(parts) == 2:
		a.handleMembers(w, r, orgID)
	case parts[1] == "members" && len(parts) == 3:
		a.handleMember(w, r, orgID, parts[2])
	case parts[1] == "invoices" && len(parts) == 2:
		a.handleInvoices(w, r, orgID)
	case parts[1] == "invoices" && len(parts) == 3:
		a.handleInvoice(w, r, orgID, parts[2])
	case parts[1] == "invoices" && len(parts) == 4 && parts[3] == "pdf":
		a.handleInvoicePDF(w, r, orgID, parts[2])
	case parts[1] == "invoices" && len(parts) == 4 && parts[3] == "payment-intent":
		a.handlePaymentIntent(w, r, orgID, parts[2])
	default:
		writeError(w, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleOrg(w http.ResponseWriter, r *http.Request, orgID string) {
	switch r.Method {
	case http.MethodGet:
		org, err := a.tenants.Get(r.Context(), caller(r), orgID)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, org)
	case http.MethodPut:
		var req updateOrgRequest
		if err := decodeJSON(r, &req); err != nil {
			writeFault(w, err)
			return
		}
		org, err := a.tenants.UpdateProfile(r.Context(), caller(r), orgID, req.Name, req.Profile)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, org)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handleMembers(w http.ResponseWriter, r *http.Request, orgID string) {
	switch r.Method {
	case http.MethodGet:
		members, err := a.tenants.Members(r.Context(), caller(r), orgID)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"members": members})
	case http.MethodPost:
		var req setMemberRequest
		if err := decodeJSON(r, &req); err != nil {
			writeFault(w, err)
			return
		}
		member, err := a.tenants.SetMemberRole(r.Context(), caller(r), orgID, req.UID, req.Role)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, member)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleMember(w http.ResponseWriter, r *http.Request, orgID, uid string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodDelete)
		return
	}
	if err := a.tenants.RemoveMember(r.Context(), caller(r), orgID, uid); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleInvoices(w http.ResponseWriter, r *http.Request, orgID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var in invoice.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeFault(w, err)
		return
	}
	in.OrganizationID = orgID
	inv, err := a.invoices.Create(r.Context(), caller(r), in)
	if err != nil {
		writeFault(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/orgs/%s/invoices/%s", orgID, inv.ID))
	writeJSON(w, http.StatusCreated, inv)
}

func (a *API) handleInvoice(w http.ResponseWriter, r *http.Request, orgID, invoiceID string) {
	switch r.Method {
	case http.MethodGet:
		inv, err := a.invoices.Get(r.Context(), caller(r), orgID, invoiceID)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	case http.MethodPatch:
		var in invoice.UpdateInput
		if err := decodeJSON(r, &in); err != nil {
			writeFault(w, err)
			return
		}
		in.OrganizationID = orgID
		in.InvoiceID = invoiceID
		inv, err := a.invoices.Update(r.Context(), caller(r), in)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) handleInvoicePDF(w http.ResponseWriter, r *http.Request, orgID, invoiceID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req pdfRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, err)
		return
	}
	inv, err := a.invoices.RequestPDF(r.Context(), caller(r), orgID, invoiceID, invoice.PDFKind(req.Type))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (a *API) handlePaymentIntent(w http.ResponseWriter, r *http.Request, orgID, invoiceID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req paymentIntentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, err)
		return
	}
	inv, err := a.intents.CreateIntent(r.Context(), caller(r), orgID, invoiceID, req.Provider)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"invoice":          inv,
		"paymentIntentUrl": inv.PaymentIntentURL,
	})
}
