package payment

import (
	"context"
	"fmt"
	"time"

	"factura.org/internal/audit"
	"factura.org/internal/auth"
	"factura.org/internal/fault"
	"factura.org/internal/invoice"
)

// IntentService initializes provider payment intents for invoices and
// records the resulting redirect URL on the invoice.
type IntentService struct {
	clients  map[Provider]Client
	invoices *invoice.Service
	audit    *audit.Recorder
	redirect string
	now      func() time.Time
}

// IntentOption customizes the IntentService.
type IntentOption func(*IntentService)

// WithIntentClock overrides the time source used for references.
func WithIntentClock(now func() time.Time) IntentOption {
	return func(s *IntentService) { s.now = now }
}

// NewIntentService constructs an IntentService over the given provider
// clients. redirectURL is where the hosted checkout sends the customer back.
func NewIntentService(invoices *invoice.Service, rec *audit.Recorder, redirectURL string, clients []Client, opts ...IntentOption) *IntentService {
	byName := make(map[Provider]Client, len(clients))
	for _, c := range clients {
		if c != nil {
			byName[c.Name()] = c
		}
	}
	s := &IntentService{
		clients:  byName,
		invoices: invoices,
		audit:    rec,
		redirect: redirectURL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the adapter for a provider, if configured.
func (s *IntentService) Client(p Provider) (Client, bool) {
	c, ok := s.clients[p]
	return c, ok
}

// CreateIntent initializes a checkout with the provider and parks the invoice
// in payment_pending with the intent attached. The reference embeds the
// invoice id so webhooks and reconciliation can always find their way back.
func (s *IntentService) CreateIntent(ctx context.Context, caller *auth.Identity, orgID, invoiceID, provider string) (*invoice.Invoice, error) {
	if err := auth.RequireRole(caller, orgID, auth.RolesPaymentIntent...); err != nil {
		return nil, err
	}
	p, err := ParseProvider(provider)
	if err != nil {
		return nil, err
	}
	client, ok := s.clients[p]
	if !ok {
		return nil, fault.Newf(fault.FailedPrecondition, "payment provider %s is not configured", p)
	}

	inv, err := s.invoices.Get(ctx, caller, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := invoice.CheckTransition(inv.Status, invoice.StatusPaymentPending); err != nil {
		return nil, err
	}
	if inv.Totals.Total <= 0 {
		return nil, fault.New(fault.FailedPrecondition, "invoice total must be positive to collect payment")
	}

	reference := fmt.Sprintf("inv_%s_%d", invoiceID, s.now().UnixMilli())
	init, err := client.InitializeIntent(ctx, Intent{
		Reference:      reference,
		Amount:         inv.Totals.Total,
		Currency:       inv.Currency,
		CustomerEmail:  caller.Email,
		OrganizationID: orgID,
		InvoiceID:      invoiceID,
		RedirectURL:    s.redirect,
		Description:    fmt.Sprintf("Invoice %s", inv.Number),
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.invoices.RecordPaymentIntent(ctx, orgID, invoiceID, string(p), reference, init.RedirectURL)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		ActorUID:   caller.UID,
		ActorEmail: caller.Email,
		Action:     "invoice:payment:intent",
		Target:     fmt.Sprintf("%s/%s", orgID, invoiceID),
		Metadata: map[string]any{
			"provider":  string(p),
			"reference": reference,
			"amount":    inv.Totals.Total,
			"currency":  inv.Currency,
		},
	})
	return updated, nil
}
