package payment

import (
	"encoding/json"

	"factura.org/internal/fault"
)

// WebhookEvent is a provider webhook normalized down to what the invoice
// service needs: which invoice it concerns and whether the charge settled.
type WebhookEvent struct {
	Provider       Provider
	Event          string
	OrganizationID string
	InvoiceID      string
	Reference      string
	Success        bool
	RawStatus      string
	Raw            json.RawMessage
}

type webhookMeta struct {
	OrganizationID string `json:"organizationId"`
	InvoiceID      string `json:"invoiceId"`
}

// ParseWebhook decodes a raw webhook body for the given provider. The
// organization and invoice identifiers must be present in the intent
// metadata; events without them are rejected rather than guessed at.
func ParseWebhook(provider Provider, body []byte) (WebhookEvent, error) {
	ev := WebhookEvent{Provider: provider, Raw: json.RawMessage(body)}

	switch provider {
	case ProviderFlutterwave:
		var payload struct {
			Event string `json:"event"`
			Data  struct {
				TxRef  string      `json:"tx_ref"`
				Status string      `json:"status"`
				Meta   webhookMeta `json:"meta"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return ev, fault.Wrap(fault.InvalidArgument, "malformed flutterwave webhook body", err)
		}
		ev.Event = payload.Event
		ev.Reference = payload.Data.TxRef
		ev.RawStatus = payload.Data.Status
		ev.OrganizationID = payload.Data.Meta.OrganizationID
		ev.InvoiceID = payload.Data.Meta.InvoiceID

	case ProviderPaystack:
		var payload struct {
			Event string `json:"event"`
			Data  struct {
				Reference string      `json:"reference"`
				Status    string      `json:"status"`
				Metadata  webhookMeta `json:"metadata"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return ev, fault.Wrap(fault.InvalidArgument, "malformed paystack webhook body", err)
		}
		ev.Event = payload.Event
		ev.Reference = payload.Data.Reference
		ev.RawStatus = payload.Data.Status
		ev.OrganizationID = payload.Data.Metadata.OrganizationID
		ev.InvoiceID = payload.Data.Metadata.InvoiceID

	default:
		return ev, fault.Newf(fault.InvalidArgument, "unknown webhook provider %q", provider)
	}

	if ev.OrganizationID == "" || ev.InvoiceID == "" {
		return ev, fault.New(fault.InvalidArgument, "webhook event is missing invoice metadata").
			WithFields(map[string]string{
				"organizationId": "required in intent metadata",
				"invoiceId":      "required in intent metadata",
			})
	}
	ev.Success = settled(ev.RawStatus)
	return ev, nil
}
