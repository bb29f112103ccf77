package invoice

import (
	"encoding/json"
	"time"
)

// Status is the invoice lifecycle state.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusSent           Status = "sent"
	StatusPaid           Status = "paid"
	StatusOverdue        Status = "overdue"
	StatusVoid           Status = "void"
	StatusPaymentPending Status = "payment_pending"
)

// LineItem is a single billable line. Quantity must be positive, unit price
// and tax rate non-negative; taxRate is a percentage.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	TaxRate     float64 `json:"taxRate"`
}

// Totals is derived from line items and never settable independently.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// Payment records the provider intent or webhook event attached to an
// invoice, plus the raw verification payload once reconciled.
type Payment struct {
	Provider     string          `json:"provider"`
	Reference    string          `json:"reference"`
	Raw          json.RawMessage `json:"raw,omitempty"`
	ReconciledAt *time.Time      `json:"reconciledAt,omitempty"`
}

// Invoice is the tenant-scoped invoice document. The number is assigned
// exactly once at creation and invoices are never physically deleted; void
// is a terminal status, not a removal.
type Invoice struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organizationId"`
	Number         string         `json:"number"`
	ClientID       string         `json:"clientId"`
	ClientName     string         `json:"clientName"`
	Currency       string         `json:"currency"`
	IssueDate      string         `json:"issueDate"`
	DueDate        string         `json:"dueDate"`
	LineItems      []LineItem     `json:"lineItems"`
	Totals         Totals         `json:"totals"`
	Status         Status         `json:"status"`
	Notes          string         `json:"notes,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`

	PaymentIntentURL string   `json:"paymentIntentUrl,omitempty"`
	Payment          *Payment `json:"payment,omitempty"`

	PDFStatus        string     `json:"pdfStatus,omitempty"`
	PDFURL           string     `json:"pdfUrl,omitempty"`
	PDFUpdatedAt     *time.Time `json:"pdfUpdatedAt,omitempty"`
	ReceiptStatus    string     `json:"receiptPdfStatus,omitempty"`
	ReceiptURL       string     `json:"receiptPdfUrl,omitempty"`
	ReceiptUpdatedAt *time.Time `json:"receiptPdfUpdatedAt,omitempty"`

	SentAt    *time.Time `json:"sentAt,omitempty"`
	VoidedAt  *time.Time `json:"voidedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Clone returns a deep-enough copy for read-modify-write cycles.
func (inv *Invoice) Clone() *Invoice {
	out := *inv
	out.LineItems = append([]LineItem(nil), inv.LineItems...)
	if inv.Metadata != nil {
		out.Metadata = make(map[string]any, len(inv.Metadata))
		for k, v := range inv.Metadata {
			out.Metadata[k] = v
		}
	}
	if inv.Payment != nil {
		p := *inv.Payment
		out.Payment = &p
	}
	return &out
}
