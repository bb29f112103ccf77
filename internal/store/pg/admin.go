package pg

import (
	"context"
	"database/sql"

	"factura.org/internal/admin"
	"factura.org/internal/auth"
	"factura.org/internal/invoice"
)

func (s *Store) Counts(ctx context.Context) (admin.Stats, error) {
	var stats admin.Stats
	err := s.db.QueryRowContext(ctx, `
		select
			(select count(*) from users),
			(select count(*) from users where platform_admin),
			(select count(*) from organizations),
			(select count(*) from invoices),
			(select count(*) from invoices where status = 'paid'),
			(select count(*) from invoices where status in ('sent', 'overdue', 'payment_pending'))
	`).Scan(
		&stats.TotalUsers,
		&stats.PlatformAdmins,
		&stats.TotalOrganizations,
		&stats.TotalInvoices,
		&stats.PaidInvoices,
		&stats.PendingInvoices,
	)
	return stats, err
}

func (s *Store) Organizations(ctx context.Context, limit int) ([]admin.OrgSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		select o.id, o.name, o.owner_uid, coalesce(o.owner_email, ''),
		       (select count(*) from members m where m.org_id = o.id),
		       (select count(*) from invoices i where i.org_id = o.id),
		       o.created_at
		from organizations o
		order by o.created_at desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []admin.OrgSummary
	for rows.Next() {
		var row admin.OrgSummary
		if err := rows.Scan(&row.ID, &row.Name, &row.OwnerUID, &row.OwnerEmail,
			&row.MemberCount, &row.InvoiceCount, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) Users(ctx context.Context, limit int) ([]*auth.UserRecord, error) {
	return s.listUsers(ctx, limit)
}

func (s *Store) Invoices(ctx context.Context, limit int) ([]*invoice.Invoice, error) {
	return s.ListRecent(ctx, limit)
}

func (s *Store) Payments(ctx context.Context, limit int) ([]admin.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		select org_id, id, number,
		       doc->'payment'->>'provider',
		       doc->'payment'->>'reference',
		       coalesce((doc->'totals'->>'total')::float8, 0),
		       coalesce(doc->>'currency', ''),
		       status = 'paid',
		       updated_at
		from invoices
		where doc ? 'payment'
		order by updated_at desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []admin.PaymentRecord
	for rows.Next() {
		var row admin.PaymentRecord
		var provider, reference sql.NullString
		if err := rows.Scan(&row.OrganizationID, &row.InvoiceID, &row.Number,
			&provider, &reference, &row.Amount, &row.Currency, &row.Settled, &row.UpdatedAt); err != nil {
			return nil, err
		}
		row.Provider = provider.String
		row.Reference = reference.String
		out = append(out, row)
	}
	return out, rows.Err()
}
