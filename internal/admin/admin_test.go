package admin_test

import (
	"context"
	"testing"
	"time"

	"factura.org/internal/admin"
	"factura.org/internal/audit"
	"factura.org/internal/auth"
	"factura.org/internal/fault"
	"factura.org/internal/invoice"
	"factura.org/internal/store/memory"
	"factura.org/internal/tenant"
)

func platformAdmin() *auth.Identity {
	return &auth.Identity{UID: "root", Claims: auth.Claims{PlatformAdmin: true}}
}

func seedOrg(t *testing.T, st *memory.Store, id, ownerUID string) {
	t.Helper()
	now := time.Now().UTC()
	err := st.Provision(context.Background(), &tenant.Organization{
		ID:        id,
		Name:      "Org " + id,
		OwnerUID:  ownerUID,
		CreatedAt: now,
		UpdatedAt: now,
	}, tenant.Member{UID: ownerUID, Role: auth.RoleOwner, JoinedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("provision %s: %v", id, err)
	}
}

func seedInvoice(t *testing.T, st *memory.Store, svc *invoice.Service, orgID string, paid bool) {
	t.Helper()
	ctx := context.Background()
	caller := &auth.Identity{
		UID: "owner-" + orgID,
		Claims: auth.Claims{
			Organizations: []string{orgID},
			OrgRoles:      map[string]auth.Role{orgID: auth.RoleOwner},
		},
	}
	inv, err := svc.Create(ctx, caller, invoice.CreateInput{
		OrganizationID: orgID,
		ClientID:       "client-1",
		ClientName:     "Globex",
		Currency:       "USD",
		IssueDate:      "2026-08-01",
		DueDate:        "2026-08-31",
		LineItems:      []invoice.LineItem{{Description: "work", Quantity: 1, UnitPrice: 100}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	sent := invoice.StatusSent
	if _, err := svc.Update(ctx, caller, invoice.UpdateInput{
		OrganizationID: orgID, InvoiceID: inv.ID, Status: &sent,
	}); err != nil {
		t.Fatalf("send invoice: %v", err)
	}
	if paid {
		if err := svc.ApplyWebhookPayment(ctx, orgID, inv.ID, "paystack", "ref-"+inv.ID, true, nil); err != nil {
			t.Fatalf("settle invoice: %v", err)
		}
	}
}

func TestGetStatsCountsAcrossTenants(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	invoices := invoice.NewService(st, audit.NewRecorder(st))
	svc := admin.NewService(st)

	seedOrg(t, st, "org-1", "owner-org-1")
	seedOrg(t, st, "org-2", "owner-org-2")
	seedInvoice(t, st, invoices, "org-1", true)
	seedInvoice(t, st, invoices, "org-1", false)
	seedInvoice(t, st, invoices, "org-2", false)

	if _, err := st.EnsureUser(ctx, "admin-1", "admin@example.com"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if err := st.SetPlatformAdmin(ctx, "admin-1", "admin@example.com", true); err != nil {
		t.Fatalf("set platform admin: %v", err)
	}

	stats, err := svc.GetStats(ctx, platformAdmin())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalOrganizations != 2 {
		t.Fatalf("organizations = %d", stats.TotalOrganizations)
	}
	if stats.TotalInvoices != 3 || stats.PaidInvoices != 1 || stats.PendingInvoices != 2 {
		t.Fatalf("invoice counts = %+v", stats)
	}
	if stats.PlatformAdmins != 1 {
		t.Fatalf("platformAdmins = %d", stats.PlatformAdmins)
	}
	// Two provisioned owners plus the admin.
	if stats.TotalUsers != 3 {
		t.Fatalf("users = %d", stats.TotalUsers)
	}
}

func TestAdminSurfaceRequiresPlatformAdmin(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := admin.NewService(st)

	ownerID := &auth.Identity{
		UID: "owner-1",
		Claims: auth.Claims{
			Organizations: []string{"org-1"},
			OrgRoles:      map[string]auth.Role{"org-1": auth.RoleOwner},
		},
	}
	if _, err := svc.GetStats(ctx, ownerID); fault.KindOf(err) != fault.PermissionDenied {
		t.Fatalf("stats as owner: %v", err)
	}
	if _, err := svc.ListOrganizations(ctx, ownerID, 10); fault.KindOf(err) != fault.PermissionDenied {
		t.Fatalf("organizations as owner: %v", err)
	}
	if _, err := svc.ListPayments(ctx, nil, 10); fault.KindOf(err) != fault.Unauthenticated {
		t.Fatalf("payments anonymous: %v", err)
	}
}

func TestListOrganizationsIncludesCounts(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	invoices := invoice.NewService(st, audit.NewRecorder(st))
	svc := admin.NewService(st)

	seedOrg(t, st, "org-1", "owner-org-1")
	seedInvoice(t, st, invoices, "org-1", false)
	seedInvoice(t, st, invoices, "org-1", false)

	orgs, err := svc.ListOrganizations(ctx, platformAdmin(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orgs) != 1 {
		t.Fatalf("orgs = %d", len(orgs))
	}
	if orgs[0].MemberCount != 1 || orgs[0].InvoiceCount != 2 {
		t.Fatalf("summary = %+v", orgs[0])
	}
}

func TestListPaymentsReflectsSettlement(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	invoices := invoice.NewService(st, audit.NewRecorder(st))
	svc := admin.NewService(st)

	seedOrg(t, st, "org-1", "owner-org-1")
	seedInvoice(t, st, invoices, "org-1", true)
	seedInvoice(t, st, invoices, "org-1", false)

	payments, err := svc.ListPayments(ctx, platformAdmin(), 10)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	// Only the settled invoice carries payment details.
	if len(payments) != 1 {
		t.Fatalf("payments = %+v", payments)
	}
	p := payments[0]
	if !p.Settled || p.Provider != "paystack" || p.Amount != 100 {
		t.Fatalf("payment = %+v", p)
	}
}

func TestListInvoicesClampsLimit(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	invoices := invoice.NewService(st, audit.NewRecorder(st))
	svc := admin.NewService(st)

	seedOrg(t, st, "org-1", "owner-org-1")
	for i := 0; i < 3; i++ {
		seedInvoice(t, st, invoices, "org-1", false)
	}

	got, err := svc.ListInvoices(ctx, platformAdmin(), 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("invoices = %d, want limit 2", len(got))
	}

	// Zero falls back to the default limit rather than returning nothing.
	got, err = svc.ListInvoices(ctx, platformAdmin(), 0)
	if err != nil || len(got) != 3 {
		t.Fatalf("default limit list = %d, %v", len(got), err)
	}
}
