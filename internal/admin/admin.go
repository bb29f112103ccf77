package admin

import (
	"context"
	"time"

	"factura.org/internal/auth"
	"factura.org/internal/invoice"
)

// Stats is the platform-wide dashboard snapshot. Pending counts every
// invoice still expected to settle (sent, overdue or payment_pending).
type Stats struct {
	TotalUsers         int `json:"totalUsers"`
	PlatformAdmins     int `json:"platformAdmins"`
	TotalOrganizations int `json:"totalOrganizations"`
	TotalInvoices      int `json:"totalInvoices"`
	PaidInvoices       int `json:"paidInvoices"`
	PendingInvoices    int `json:"pendingInvoices"`
}

// OrgSummary is an organization row on the admin surface.
type OrgSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	OwnerUID     string    `json:"ownerUid"`
	OwnerEmail   string    `json:"ownerEmail,omitempty"`
	MemberCount  int       `json:"memberCount"`
	InvoiceCount int       `json:"invoiceCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PaymentRecord is a cross-tenant payment row; Settled is true only once the
// invoice reached paid.
type PaymentRecord struct {
	OrganizationID string    `json:"organizationId"`
	InvoiceID      string    `json:"invoiceId"`
	Number         string    `json:"number"`
	Provider       string    `json:"provider"`
	Reference      string    `json:"reference"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	Settled        bool      `json:"settled"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Store answers the cross-tenant queries behind the admin surface.
type Store interface {
	Counts(ctx context.Context) (Stats, error)
	Organizations(ctx context.Context, limit int) ([]OrgSummary, error)
	Users(ctx context.Context, limit int) ([]*auth.UserRecord, error)
	Invoices(ctx context.Context, limit int) ([]*invoice.Invoice, error)
	Payments(ctx context.Context, limit int) ([]PaymentRecord, error)
}

const (
	defaultLimit = 25
	maxLimit     = 100
)

// Service gates every operation behind the platformAdmin claim.
type Service struct {
	store Store
}

// NewService constructs the admin service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// GetStats returns the dashboard counters.
func (s *Service) GetStats(ctx context.Context, caller *auth.Identity) (Stats, error) {
	if err := auth.RequirePlatformAdmin(caller); err != nil {
		return Stats{}, err
	}
	return s.store.Counts(ctx)
}

// ListOrganizations returns the newest organizations with member and invoice
// counts.
func (s *Service) ListOrganizations(ctx context.Context, caller *auth.Identity, limit int) ([]OrgSummary, error) {
	if err := auth.RequirePlatformAdmin(caller); err != nil {
		return nil, err
	}
	return s.store.Organizations(ctx, clampLimit(limit))
}

// ListUsers returns the newest user records.
func (s *Service) ListUsers(ctx context.Context, caller *auth.Identity, limit int) ([]*auth.UserRecord, error) {
	if err := auth.RequirePlatformAdmin(caller); err != nil {
		return nil, err
	}
	return s.store.Users(ctx, clampLimit(limit))
}

// ListInvoices returns the newest invoices across all tenants.
func (s *Service) ListInvoices(ctx context.Context, caller *auth.Identity, limit int) ([]*invoice.Invoice, error) {
	if err := auth.RequirePlatformAdmin(caller); err != nil {
		return nil, err
	}
	return s.store.Invoices(ctx, clampLimit(limit))
}

// ListPayments returns the newest payment attempts across all tenants.
func (s *Service) ListPayments(ctx context.Context, caller *auth.Identity, limit int) ([]PaymentRecord, error) {
	if err := auth.RequirePlatformAdmin(caller); err != nil {
		return nil, err
	}
	return s.store.Payments(ctx, clampLimit(limit))
}

// Pending reports whether a status counts toward PendingInvoices.
func Pending(st invoice.Status) bool {
	switch st {
	case invoice.StatusSent, invoice.StatusOverdue, invoice.StatusPaymentPending:
		return true
	}
	return false
}
