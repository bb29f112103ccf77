package payment_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"factura.org/internal/audit"
	"factura.org/internal/auth"
	"factura.org/internal/fault"
	"factura.org/internal/invoice"
	"factura.org/internal/payment"
	"factura.org/internal/store/memory"
	"factura.org/internal/tenant"
)

const testOrg = "org-1"

// fakeClient satisfies payment.Client with canned verification results.
type fakeClient struct {
	name    payment.Provider
	results map[string]payment.VerifyResult
	errs    map[string]error
	initURL string
}

func (f *fakeClient) Name() payment.Provider { return f.name }

func (f *fakeClient) InitializeIntent(context.Context, payment.Intent) (payment.InitResult, error) {
	return payment.InitResult{RedirectURL: f.initURL}, nil
}

func (f *fakeClient) VerifyByReference(_ context.Context, ref string) (payment.VerifyResult, error) {
	if err, ok := f.errs[ref]; ok {
		return payment.VerifyResult{}, err
	}
	return f.results[ref], nil
}

func (f *fakeClient) VerifySignature([]byte, string) bool { return true }

func newPaymentEnv(t *testing.T) (*memory.Store, *invoice.Service) {
	t.Helper()
	st := memory.New()
	now := time.Now().UTC()
	err := st.Provision(context.Background(), &tenant.Organization{
		ID:        testOrg,
		Name:      "Acme Studio",
		OwnerUID:  "owner-1",
		CreatedAt: now,
		UpdatedAt: now,
	}, tenant.Member{UID: "owner-1", Role: auth.RoleOwner, JoinedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("provision org: %v", err)
	}
	return st, invoice.NewService(st, audit.NewRecorder(st))
}

func owner() *auth.Identity {
	return &auth.Identity{
		UID:   "owner-1",
		Email: "owner-1@example.com",
		Claims: auth.Claims{
			Organizations: []string{testOrg},
			OrgRoles:      map[string]auth.Role{testOrg: auth.RoleOwner},
		},
	}
}

func draftInvoice(t *testing.T, svc *invoice.Service) *invoice.Invoice {
	t.Helper()
	inv, err := svc.Create(context.Background(), owner(), invoice.CreateInput{
		OrganizationID: testOrg,
		ClientID:       "client-1",
		ClientName:     "Globex",
		Currency:       "USD",
		IssueDate:      "2026-08-01",
		DueDate:        "2026-08-31",
		LineItems: []invoice.LineItem{
			{Description: "consulting", Quantity: 2, UnitPrice: 100, TaxRate: 5},
		},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	return inv
}

// pendingInvoice parks a fresh invoice in payment_pending with intent details
// attached, as CreateIntent would.
func pendingInvoice(t *testing.T, svc *invoice.Service, provider payment.Provider, reference string) *invoice.Invoice {
	t.Helper()
	inv := draftInvoice(t, svc)
	updated, err := svc.RecordPaymentIntent(context.Background(), testOrg, inv.ID, string(provider), reference, "https://checkout.example/x")
	if err != nil {
		t.Fatalf("record intent: %v", err)
	}
	return updated
}

func TestCreateIntentParksInvoicePending(t *testing.T) {
	ctx := context.Background()
	_, svc := newPaymentEnv(t)
	inv := draftInvoice(t, svc)

	client := &fakeClient{name: payment.ProviderPaystack, initURL: "https://checkout.paystack.com/xyz"}
	intents := payment.NewIntentService(svc, nil, "https://app.example/done", []payment.Client{client})

	updated, err := intents.CreateIntent(ctx, owner(), testOrg, inv.ID, "paystack")
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if updated.Status != invoice.StatusPaymentPending {
		t.Fatalf("status = %s, want payment_pending", updated.Status)
	}
	if updated.PaymentIntentURL != "https://checkout.paystack.com/xyz" {
		t.Fatalf("intent url = %q", updated.PaymentIntentURL)
	}
	if updated.Payment == nil || updated.Payment.Provider != "paystack" || updated.Payment.Reference == "" {
		t.Fatalf("payment = %+v", updated.Payment)
	}
}

func TestCreateIntentGuards(t *testing.T) {
	ctx := context.Background()
	_, svc := newPaymentEnv(t)
	inv := draftInvoice(t, svc)

	client := &fakeClient{name: payment.ProviderPaystack, initURL: "https://x"}
	intents := payment.NewIntentService(svc, nil, "https://app.example/done", []payment.Client{client})

	viewer := owner()
	viewer.Claims.OrgRoles[testOrg] = auth.RoleViewer
	if _, err := intents.CreateIntent(ctx, viewer, testOrg, inv.ID, "paystack"); fault.KindOf(err) != fault.PermissionDenied {
		t.Fatalf("viewer intent: %v", err)
	}
	if _, err := intents.CreateIntent(ctx, owner(), testOrg, inv.ID, "flutterwave"); fault.KindOf(err) != fault.FailedPrecondition {
		t.Fatalf("unconfigured provider: %v", err)
	}
	if _, err := intents.CreateIntent(ctx, owner(), testOrg, inv.ID, "stripe"); fault.KindOf(err) != fault.InvalidArgument {
		t.Fatalf("unknown provider: %v", err)
	}

	// Paid invoices accept no further intents.
	sent := invoice.StatusSent
	if _, err := svc.Update(ctx, owner(), invoice.UpdateInput{
		OrganizationID: testOrg, InvoiceID: inv.ID, Status: &sent,
	}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := svc.ApplyWebhookPayment(ctx, testOrg, inv.ID, "paystack", "ref", true, nil); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if _, err := intents.CreateIntent(ctx, owner(), testOrg, inv.ID, "paystack"); fault.KindOf(err) != fault.FailedPrecondition {
		t.Fatalf("intent on paid invoice: %v", err)
	}
}

func TestReconcileSettlesVerifiedInvoices(t *testing.T) {
	ctx := context.Background()
	st, svc := newPaymentEnv(t)

	settled := pendingInvoice(t, svc, payment.ProviderPaystack, "ref-settled")
	waiting := pendingInvoice(t, svc, payment.ProviderPaystack, "ref-waiting")

	client := &fakeClient{
		name: payment.ProviderPaystack,
		results: map[string]payment.VerifyResult{
			"ref-settled": {Success: true, RawStatus: "success", Raw: json.RawMessage(`{"status":"success"}`)},
			"ref-waiting": {Success: false, RawStatus: "abandoned"},
		},
	}
	rec := payment.NewReconciler(st, svc, []payment.Client{client}, 0)

	res, err := rec.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Examined != 2 || res.Settled != 1 || res.Pending != 1 {
		t.Fatalf("result = %+v", res)
	}

	got, err := st.Find(ctx, testOrg, settled.ID)
	if err != nil {
		t.Fatalf("find settled: %v", err)
	}
	if got.Status != invoice.StatusPaid {
		t.Fatalf("settled status = %s", got.Status)
	}
	if got.Payment == nil || got.Payment.ReconciledAt == nil {
		t.Fatalf("reconciledAt not stamped: %+v", got.Payment)
	}

	got, _ = st.Find(ctx, testOrg, waiting.ID)
	if got.Status != invoice.StatusPaymentPending {
		t.Fatalf("waiting status = %s", got.Status)
	}
}

func TestReconcileIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	st, svc := newPaymentEnv(t)

	broken := pendingInvoice(t, svc, payment.ProviderPaystack, "ref-broken")
	fine := pendingInvoice(t, svc, payment.ProviderPaystack, "ref-fine")

	client := &fakeClient{
		name: payment.ProviderPaystack,
		results: map[string]payment.VerifyResult{
			"ref-fine": {Success: true, RawStatus: "success"},
		},
		errs: map[string]error{
			"ref-broken": errors.New("provider timeout"),
		},
	}
	rec := payment.NewReconciler(st, svc, []payment.Client{client}, 0)

	res, err := rec.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Errors != 1 || res.Settled != 1 {
		t.Fatalf("result = %+v", res)
	}

	got, _ := st.Find(ctx, testOrg, fine.ID)
	if got.Status != invoice.StatusPaid {
		t.Fatalf("fine invoice not settled despite neighbor failure: %s", got.Status)
	}
	got, _ = st.Find(ctx, testOrg, broken.ID)
	if got.Status != invoice.StatusPaymentPending {
		t.Fatalf("broken invoice status = %s", got.Status)
	}
}

func TestReconcileSkipsUnusableInvoices(t *testing.T) {
	ctx := context.Background()
	st, svc := newPaymentEnv(t)

	// Pending without intent details, as after a manual status change. It has
	// no reference to verify against, so the batch must not pick it up.
	manual := draftInvoice(t, svc)
	pending := invoice.StatusPaymentPending
	if _, err := svc.Update(ctx, owner(), invoice.UpdateInput{
		OrganizationID: testOrg, InvoiceID: manual.ID, Status: &pending,
	}); err != nil {
		t.Fatalf("park pending: %v", err)
	}
	// Pending for a provider this deployment has no client for.
	pendingInvoice(t, svc, payment.ProviderFlutterwave, "ref-flw")

	batch, err := st.ListPending(ctx, 0)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	for _, inv := range batch {
		if inv.ID == manual.ID {
			t.Fatalf("reference-less invoice %s in reconciliation batch", inv.ID)
		}
	}

	client := &fakeClient{name: payment.ProviderPaystack}
	rec := payment.NewReconciler(st, svc, []payment.Client{client}, 0)

	res, err := rec.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Examined != 1 || res.Skipped != 1 {
		t.Fatalf("result = %+v", res)
	}

	got, _ := st.Find(ctx, testOrg, manual.ID)
	if got.Status != invoice.StatusPaymentPending {
		t.Fatalf("manual invoice status = %s", got.Status)
	}
}

func TestReconcileHonorsBatchLimit(t *testing.T) {
	ctx := context.Background()
	st, svc := newPaymentEnv(t)

	for i := 0; i < 3; i++ {
		pendingInvoice(t, svc, payment.ProviderPaystack, "ref")
	}

	client := &fakeClient{name: payment.ProviderPaystack, results: map[string]payment.VerifyResult{
		"ref": {Success: false, RawStatus: "pending"},
	}}
	rec := payment.NewReconciler(st, svc, []payment.Client{client}, 2)

	res, err := rec.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Examined != 2 {
		t.Fatalf("examined = %d, want batch limit 2", res.Examined)
	}
}
