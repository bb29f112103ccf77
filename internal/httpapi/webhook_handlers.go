package httpapi

import (
	"io"
	"net/http"

	"factura.org/internal/obs"
	"factura.org/internal/payment"
)

const maxWebhookBody = 1 << 20

// webhookHandler authenticates a provider webhook by its signature, then
// applies the payment event to the referenced invoice. An unverifiable
// signature is rejected before the body is even parsed.
func (a *API) webhookHandler(provider payment.Provider, sigHeader string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		client, ok := a.intents.Client(provider)
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "provider not configured")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}
		if !client.VerifySignature(body, r.Header.Get(sigHeader)) {
			writeError(w, http.StatusBadRequest, "invalid webhook signature")
			return
		}

		ev, err := payment.ParseWebhook(provider, body)
		if err != nil {
			writeFault(w, err)
			return
		}
		if err := a.invoices.ApplyWebhookPayment(r.Context(), ev.OrganizationID, ev.InvoiceID, string(provider), ev.Reference, ev.Success, ev.Raw); err != nil {
			writeFault(w, err)
			return
		}

		obs.LogRequest(map[string]any{
			"level":     "info",
			"subsystem": "webhook",
			"provider":  string(provider),
			"event":     ev.Event,
			"invoice":   ev.InvoiceID,
			"settled":   ev.Success,
		})
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}
