package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"factura.org/internal/fault"
	"factura.org/internal/invoice"
)

// createNumberedAttempts bounds the serialization-conflict retry loop.
const createNumberedAttempts = 5

// CreateNumbered allocates the tenant's next invoice number and inserts the
// invoice in one serializable transaction. The counter row read locks out
// concurrent allocations within the tenant; conflicting transactions are
// retried with a fresh number.
func (s *Store) CreateNumbered(ctx context.Context, inv *invoice.Invoice) error {
	var lastErr error
	for attempt := 0; attempt < createNumberedAttempts; attempt++ {
		err := s.createNumberedOnce(ctx, inv)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}
	return fault.Wrap(fault.Internal, "invoice number allocation kept conflicting", lastErr)
}

func (s *Store) createNumberedOnce(ctx context.Context, inv *invoice.Invoice) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var current int64
	var prefix sql.NullString
	err = tx.QueryRowContext(ctx, `
		select c.current, o.profile->>'invoicePrefix'
		from invoice_counters c
		join organizations o on o.id = c.org_id
		where c.org_id = $1
		for update of c
	`, inv.OrganizationID).Scan(&current, &prefix)
	if err != nil {
		return notFound(err, fault.Newf(fault.NotFound, "organization %s not found", inv.OrganizationID))
	}

	next := current + 1
	if _, err := tx.ExecContext(ctx, `
		update invoice_counters set current = $2 where org_id = $1
	`, inv.OrganizationID, next); err != nil {
		return err
	}

	p := "INV"
	if prefix.Valid && prefix.String != "" {
		p = prefix.String
	}
	inv.Number = fmt.Sprintf("%s-%06d", p, next)

	doc, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into invoices(id, org_id, number, status, doc, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, inv.ID, inv.OrganizationID, inv.Number, inv.Status, doc, inv.CreatedAt, inv.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Find(ctx context.Context, orgID, invoiceID string) (*invoice.Invoice, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		select doc from invoices where org_id = $1 and id = $2
	`, orgID, invoiceID).Scan(&doc)
	if err != nil {
		return nil, notFound(err, fault.Newf(fault.NotFound, "invoice %s not found", invoiceID))
	}
	return unmarshalInvoice(doc)
}

// Save overwrites the stored document, keeping the persisted number and
// creation time authoritative.
func (s *Store) Save(ctx context.Context, inv *invoice.Invoice) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stored := inv.Clone()
	err = tx.QueryRowContext(ctx, `
		select number, created_at from invoices where org_id = $1 and id = $2 for update
	`, inv.OrganizationID, inv.ID).Scan(&stored.Number, &stored.CreatedAt)
	if err != nil {
		return notFound(err, fault.Newf(fault.NotFound, "invoice %s not found", inv.ID))
	}

	doc, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		update invoices set status = $3, doc = $4, updated_at = $5
		where org_id = $1 and id = $2
	`, inv.OrganizationID, inv.ID, stored.Status, doc, stored.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListPending(ctx context.Context, limit int) ([]*invoice.Invoice, error) {
	return s.listInvoices(ctx, `
		select doc from invoices
		where status = $1 and coalesce(doc->'payment'->>'reference', '') <> ''
		order by updated_at asc limit $2
	`, invoice.StatusPaymentPending, limit)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]*invoice.Invoice, error) {
	return s.listInvoices(ctx, `
		select doc from invoices order by created_at desc limit $1
	`, limit)
}

func (s *Store) listInvoices(ctx context.Context, query string, args ...any) ([]*invoice.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*invoice.Invoice
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		inv, err := unmarshalInvoice(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func unmarshalInvoice(doc []byte) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	if err := json.Unmarshal(doc, &inv); err != nil {
		return nil, fault.Wrap(fault.Internal, "corrupt invoice document", err)
	}
	return &inv, nil
}
