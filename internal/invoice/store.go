package invoice

import "context"

// Store persists invoices. CreateNumbered is the only operation requiring
// transactional exclusivity (the per-tenant counter); everything else is
// read-modify-write with last-writer-wins semantics.
type Store interface {
	// CreateNumbered atomically allocates the tenant's next invoice number
	// and persists the invoice with it. A failed attempt leaves the counter
	// untouched; concurrent attempts within a tenant serialize on it.
	CreateNumbered(ctx context.Context, inv *Invoice) error

	Find(ctx context.Context, orgID, invoiceID string) (*Invoice, error)

	// Save overwrites the stored invoice. The number and creation time are
	// immutable once assigned; implementations must not change them.
	Save(ctx context.Context, inv *Invoice) error

	// ListPending returns up to limit payment_pending invoices across all
	// tenants, oldest first, for the reconciliation job. Invoices without a
	// payment reference are unverifiable and excluded so they cannot occupy
	// the batch forever.
	ListPending(ctx context.Context, limit int) ([]*Invoice, error)

	// ListRecent returns up to limit invoices across all tenants, newest
	// first, for the platform-admin surface.
	ListRecent(ctx context.Context, limit int) ([]*Invoice, error)
}
