package pg

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"factura.org/internal/fault"
	"factura.org/internal/invoice"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return NewWithDB(db), mock, func() { db.Close() }
}

func counterRows(current int64, prefix any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"current", "prefix"}).AddRow(current, prefix)
}

func TestCreateNumberedRetriesOnSerializationConflict(t *testing.T) {
	st, mock, done := newMock(t)
	defer done()

	conflict := &pgconn.PgError{Code: "40001"}

	// First attempt loses the serialization race on insert.
	mock.ExpectBegin()
	mock.ExpectQuery("select c.current, o.profile").WithArgs("org-1").WillReturnRows(counterRows(41, nil))
	mock.ExpectExec("update invoice_counters set current").WithArgs("org-1", int64(42)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into invoices").WillReturnError(conflict)
	mock.ExpectRollback()

	// Second attempt re-reads the counter and succeeds.
	mock.ExpectBegin()
	mock.ExpectQuery("select c.current, o.profile").WithArgs("org-1").WillReturnRows(counterRows(41, "ACME"))
	mock.ExpectExec("update invoice_counters set current").WithArgs("org-1", int64(42)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into invoices").
		WithArgs("inv-1", "org-1", "ACME-000042", string(invoice.StatusDraft), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	inv := &invoice.Invoice{
		ID:             "inv-1",
		OrganizationID: "org-1",
		Status:         invoice.StatusDraft,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := st.CreateNumbered(context.Background(), inv); err != nil {
		t.Fatalf("CreateNumbered: %v", err)
	}
	if inv.Number != "ACME-000042" {
		t.Fatalf("number = %q, want ACME-000042", inv.Number)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateNumberedGivesUpAfterRepeatedConflicts(t *testing.T) {
	st, mock, done := newMock(t)
	defer done()

	conflict := &pgconn.PgError{Code: "40P01"}
	for i := 0; i < createNumberedAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery("select c.current, o.profile").WithArgs("org-1").WillReturnRows(counterRows(7, nil))
		mock.ExpectExec("update invoice_counters set current").WillReturnError(conflict)
		mock.ExpectRollback()
	}

	inv := &invoice.Invoice{ID: "inv-1", OrganizationID: "org-1", Status: invoice.StatusDraft}
	err := st.CreateNumbered(context.Background(), inv)
	if fault.KindOf(err) != fault.Internal {
		t.Fatalf("expected internal fault after exhausted retries, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateNumberedUnknownOrganization(t *testing.T) {
	st, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("select c.current, o.profile").WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	inv := &invoice.Invoice{ID: "inv-1", OrganizationID: "ghost"}
	if err := st.CreateNumbered(context.Background(), inv); fault.KindOf(err) != fault.NotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

// docContaining matches a jsonb document argument holding the substring.
type docContaining string

func (d docContaining) Match(v driver.Value) bool {
	switch doc := v.(type) {
	case []byte:
		return strings.Contains(string(doc), string(d))
	case string:
		return strings.Contains(doc, string(d))
	}
	return false
}

func TestSaveKeepsStoredNumberAndCreatedAt(t *testing.T) {
	st, mock, done := newMock(t)
	defer done()

	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("select number, created_at from invoices").
		WithArgs("org-1", "inv-1").
		WillReturnRows(sqlmock.NewRows([]string{"number", "created_at"}).AddRow("INV-000007", created))
	mock.ExpectExec("update invoices set status").
		WithArgs("org-1", "inv-1", string(invoice.StatusSent), docContaining(`"number":"INV-000007"`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	inv := &invoice.Invoice{
		ID:             "inv-1",
		OrganizationID: "org-1",
		Number:         "TAMPERED-1",
		Status:         invoice.StatusSent,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := st.Save(context.Background(), inv); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveUnknownInvoice(t *testing.T) {
	st, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("select number, created_at from invoices").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := st.Save(context.Background(), &invoice.Invoice{ID: "ghost", OrganizationID: "org-1"})
	if fault.KindOf(err) != fault.NotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestListPendingFiltersByStatus(t *testing.T) {
	st, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery(`select doc from invoices where status = \$1 and coalesce\(doc->'payment'->>'reference', ''\) <> ''`).
		WithArgs(string(invoice.StatusPaymentPending), 10).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).
			AddRow([]byte(`{"id":"inv-1","organizationId":"org-1","status":"payment_pending"}`)).
			AddRow([]byte(`{"id":"inv-2","organizationId":"org-2","status":"payment_pending"}`)))

	got, err := st.ListPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(got) != 2 || got[0].ID != "inv-1" || got[1].OrganizationID != "org-2" {
		t.Fatalf("unexpected result: %+v", got)
	}
}
