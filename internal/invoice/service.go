package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"factura.org/internal/audit"
	"factura.org/internal/auth"
	"factura.org/internal/fault"
	"factura.org/internal/ids"
	"factura.org/internal/obs"
)

// Service owns invoice creation, mutation and PDF requests. Role checks read
// the caller's presented claims; totals are always recomputed server-side.
type Service struct {
	store Store
	audit *audit.Recorder
	now   func() time.Time

	// lockPaidLineItems rejects line-item edits once an invoice is paid.
	// The business intent is ambiguous in the field, so it is an explicit
	// policy switch rather than a hard rule.
	lockPaidLineItems bool
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithPaidLineItemLock toggles the paid-invoice line-item lock.
func WithPaidLineItemLock(lock bool) Option {
	return func(s *Service) { s.lockPaidLineItems = lock }
}

// NewService constructs the invoice service.
func NewService(store Store, recorder *audit.Recorder, opts ...Option) *Service {
	s := &Service{
		store:             store,
		audit:             recorder,
		now:               time.Now,
		lockPaidLineItems: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput is the invoice creation payload.
type CreateInput struct {
	OrganizationID string         `json:"organizationId"`
	ClientID       string         `json:"clientId"`
	ClientName     string         `json:"clientName"`
	Currency       string         `json:"currency"`
	IssueDate      string         `json:"issueDate"`
	DueDate        string         `json:"dueDate"`
	LineItems      []LineItem     `json:"lineItems"`
	Notes          string         `json:"notes,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Create validates the payload, then allocates the tenant's next sequential
// number inside the store transaction and persists the invoice as draft.
func (s *Service) Create(ctx context.Context, caller *auth.Identity, in CreateInput) (*Invoice, error) {
	if err := auth.RequireMember(caller, in.OrganizationID); err != nil {
		return nil, err
	}
	if err := auth.RequireRole(caller, in.OrganizationID, auth.RolesInvoiceCreate...); err != nil {
		return nil, err
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	inv := &Invoice{
		ID:             ids.New(),
		OrganizationID: in.OrganizationID,
		ClientID:       in.ClientID,
		ClientName:     in.ClientName,
		Currency:       in.Currency,
		IssueDate:      in.IssueDate,
		DueDate:        in.DueDate,
		LineItems:      append([]LineItem(nil), in.LineItems...),
		Totals:         CalculateTotals(in.LineItems),
		Status:         StatusDraft,
		Notes:          in.Notes,
		Metadata:       in.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateNumbered(ctx, inv); err != nil {
		return nil, err
	}
	obs.ObserveInvoiceNumber()

	s.audit.Record(ctx, audit.Event{
		ActorUID:   caller.UID,
		ActorEmail: caller.Email,
		Action:     "invoice:create",
		Target:     fmt.Sprintf("%s/%s", inv.OrganizationID, inv.ID),
		Metadata: map[string]any{
			"clientId":      in.ClientID,
			"lineItemCount": len(in.LineItems),
			"currency":      in.Currency,
			"number":        inv.Number,
		},
	})
	return inv, nil
}

// UpdateInput is a partial update; nil fields are left untouched.
type UpdateInput struct {
	OrganizationID   string         `json:"organizationId"`
	InvoiceID        string         `json:"invoiceId"`
	LineItems        *[]LineItem    `json:"lineItems,omitempty"`
	Notes            *string        `json:"notes,omitempty"`
	Status           *Status        `json:"status,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	PaymentIntentURL *string        `json:"paymentIntentUrl,omitempty"`
	PDFURL           *string        `json:"pdfUrl,omitempty"`
}

// Update applies a partial update. New line items force a server-side totals
// recomputation; notes- or metadata-only updates never touch totals or the
// number. Status changes follow the lifecycle and stamp their transition
// timestamps once (a repeated same-status request is a no-op).
func (s *Service) Update(ctx context.Context, caller *auth.Identity, in UpdateInput) (*Invoice, error) {
	if err := auth.RequireMember(caller, in.OrganizationID); err != nil {
		return nil, err
	}
	if err := auth.RequireRole(caller, in.OrganizationID, auth.RolesInvoiceUpdate...); err != nil {
		return nil, err
	}

	current, err := s.store.Find(ctx, in.OrganizationID, in.InvoiceID)
	if err != nil {
		return nil, err
	}
	inv := current.Clone()
	now := s.now().UTC()

	requestsFieldChange := in.LineItems != nil || in.Notes != nil || in.Metadata != nil ||
		in.PaymentIntentURL != nil || in.PDFURL != nil
	if terminal(inv.Status) && requestsFieldChange {
		return nil, fault.New(fault.FailedPrecondition, "void invoices are immutable")
	}

	if in.LineItems != nil {
		if inv.Status == StatusPaid && s.lockPaidLineItems {
			return nil, fault.New(fault.FailedPrecondition, "line items cannot change on a paid invoice")
		}
		if err := validateLineItems(*in.LineItems); err != nil {
			return nil, err
		}
		inv.LineItems = append([]LineItem(nil), *in.LineItems...)
		inv.Totals = CalculateTotals(inv.LineItems)
	}
	if in.Notes != nil {
		inv.Notes = *in.Notes
	}
	if in.Metadata != nil {
		inv.Metadata = in.Metadata
	}
	if in.PaymentIntentURL != nil {
		inv.PaymentIntentURL = *in.PaymentIntentURL
	}
	if in.PDFURL != nil {
		inv.PDFStatus = "ready"
		inv.PDFURL = *in.PDFURL
		inv.PDFUpdatedAt = &now
	}

	if in.Status != nil {
		if err := CheckTransition(inv.Status, *in.Status); err != nil {
			return nil, err
		}
		if inv.Status != *in.Status {
			inv.Status = *in.Status
			switch *in.Status {
			case StatusSent:
				inv.SentAt = &now
			case StatusVoid:
				inv.VoidedAt = &now
			}
		}
	}

	inv.UpdatedAt = now
	if err := s.store.Save(ctx, inv); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		ActorUID:   caller.UID,
		ActorEmail: caller.Email,
		Action:     "invoice:update",
		Target:     fmt.Sprintf("%s/%s", in.OrganizationID, in.InvoiceID),
		Metadata: map[string]any{
			"status":           statusOrNil(in.Status),
			"notesUpdated":     in.Notes != nil,
			"metadataUpdated":  in.Metadata != nil,
			"lineItemsUpdated": in.LineItems != nil,
		},
	})
	return inv, nil
}

// Get fetches an invoice for any member of the organization.
func (s *Service) Get(ctx context.Context, caller *auth.Identity, orgID, invoiceID string) (*Invoice, error) {
	if err := auth.RequireMember(caller, orgID); err != nil {
		return nil, err
	}
	return s.store.Find(ctx, orgID, invoiceID)
}

// PDFKind selects the generated document flavor.
type PDFKind string

const (
	PDFInvoice PDFKind = "invoice"
	PDFReceipt PDFKind = "receipt"
)

// RequestPDF marks a placeholder document as ready. Receipts are only valid
// for paid invoices.
func (s *Service) RequestPDF(ctx context.Context, caller *auth.Identity, orgID, invoiceID string, kind PDFKind) (*Invoice, error) {
	if kind == "" {
		kind = PDFInvoice
	}
	if kind != PDFInvoice && kind != PDFReceipt {
		return nil, fault.Newf(fault.InvalidArgument, "unknown pdf type %q", kind)
	}
	if err := auth.RequireMember(caller, orgID); err != nil {
		return nil, err
	}
	if err := auth.RequireRole(caller, orgID, auth.RolesInvoiceCreate...); err != nil {
		return nil, err
	}

	current, err := s.store.Find(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	if kind == PDFReceipt && current.Status != StatusPaid {
		return nil, fault.New(fault.FailedPrecondition, "receipt can only be generated for paid invoices")
	}

	inv := current.Clone()
	now := s.now().UTC()
	url := fmt.Sprintf("https://placehold.co/600x800.png?text=Invoice+%s", invoiceID)
	if kind == PDFReceipt {
		url = fmt.Sprintf("https://placehold.co/600x800.png?text=Receipt+%s", invoiceID)
		inv.ReceiptStatus = "ready"
		inv.ReceiptURL = url
		inv.ReceiptUpdatedAt = &now
	} else {
		inv.PDFStatus = "ready"
		inv.PDFURL = url
		inv.PDFUpdatedAt = &now
	}
	inv.UpdatedAt = now
	if err := s.store.Save(ctx, inv); err != nil {
		return nil, err
	}

	action := "invoice:generatePdf"
	if kind == PDFReceipt {
		action = "invoice:generateReceipt"
	}
	s.audit.Record(ctx, audit.Event{
		ActorUID:   caller.UID,
		ActorEmail: caller.Email,
		Action:     action,
		Target:     fmt.Sprintf("%s/%s", orgID, invoiceID),
		Metadata:   map[string]any{"placeholder": true, "type": string(kind)},
	})
	return inv, nil
}

// RecordPaymentIntent attaches a freshly initialized provider intent and
// moves the invoice to payment_pending. Only invoices awaiting payment may
// receive an intent.
func (s *Service) RecordPaymentIntent(ctx context.Context, orgID, invoiceID, provider, reference, intentURL string) (*Invoice, error) {
	current, err := s.store.Find(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(current.Status, StatusPaymentPending); err != nil {
		return nil, err
	}
	inv := current.Clone()
	now := s.now().UTC()
	inv.Status = StatusPaymentPending
	inv.PaymentIntentURL = intentURL
	inv.Payment = &Payment{Provider: provider, Reference: reference}
	inv.UpdatedAt = now
	if err := s.store.Save(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// ApplyWebhookPayment records a provider webhook event. Webhook events are
// provider-side truth: a confirmed success settles the invoice even if the
// intent was recorded out of band, while any other event parks it in
// payment_pending. Terminal and already-paid invoices are left unchanged.
func (s *Service) ApplyWebhookPayment(ctx context.Context, orgID, invoiceID, provider, reference string, success bool, raw json.RawMessage) error {
	current, err := s.store.Find(ctx, orgID, invoiceID)
	if err != nil {
		return err
	}
	if terminal(current.Status) || current.Status == StatusPaid {
		return nil
	}
	inv := current.Clone()
	now := s.now().UTC()
	if success {
		inv.Status = StatusPaid
	} else {
		inv.Status = StatusPaymentPending
	}
	inv.Payment = &Payment{Provider: provider, Reference: reference, Raw: raw}
	inv.UpdatedAt = now
	return s.store.Save(ctx, inv)
}

// MarkReconciled settles a payment_pending invoice after the reconciliation
// job confirmed settlement with the provider.
func (s *Service) MarkReconciled(ctx context.Context, orgID, invoiceID string, raw json.RawMessage) error {
	current, err := s.store.Find(ctx, orgID, invoiceID)
	if err != nil {
		return err
	}
	if current.Status != StatusPaymentPending {
		return fault.Newf(fault.FailedPrecondition, "invoice is %s, not payment_pending", current.Status)
	}
	inv := current.Clone()
	now := s.now().UTC()
	inv.Status = StatusPaid
	if inv.Payment == nil {
		inv.Payment = &Payment{}
	}
	inv.Payment.Raw = raw
	inv.Payment.ReconciledAt = &now
	inv.UpdatedAt = now
	return s.store.Save(ctx, inv)
}

func statusOrNil(s *Status) any {
	if s == nil {
		return nil
	}
	return string(*s)
}
