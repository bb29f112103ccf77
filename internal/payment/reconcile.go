package payment

import (
	"context"
	"fmt"
	"time"

	"factura.org/internal/invoice"
	"factura.org/internal/obs"
)

// Reconciler sweeps payment_pending invoices and settles the ones whose
// charge went through, catching payments whose webhook never arrived. A
// failure on one invoice never aborts the batch; the invoice simply stays
// pending and is retried on the next run.
type Reconciler struct {
	store   invoice.Store
	service *invoice.Service
	clients map[Provider]Client
	batch   int
}

// DefaultReconcileBatch bounds how many pending invoices one run examines.
const DefaultReconcileBatch = 50

// NewReconciler constructs a Reconciler.
func NewReconciler(store invoice.Store, service *invoice.Service, clients []Client, batch int) *Reconciler {
	if batch <= 0 {
		batch = DefaultReconcileBatch
	}
	byName := make(map[Provider]Client, len(clients))
	for _, c := range clients {
		if c != nil {
			byName[c.Name()] = c
		}
	}
	return &Reconciler{store: store, service: service, clients: byName, batch: batch}
}

// RunResult summarizes one reconciliation pass.
type RunResult struct {
	Examined int
	Settled  int
	Pending  int
	Skipped  int
	Errors   int
}

// Run performs a single reconciliation pass.
func (r *Reconciler) Run(ctx context.Context) (RunResult, error) {
	var res RunResult
	pending, err := r.store.ListPending(ctx, r.batch)
	if err != nil {
		return res, err
	}

	for _, inv := range pending {
		res.Examined++
		outcome := r.reconcileOne(ctx, inv)
		obs.ObserveReconcileOutcome(outcome)
		switch outcome {
		case "paid":
			res.Settled++
		case "pending":
			res.Pending++
		case "skipped":
			res.Skipped++
		default:
			res.Errors++
		}
	}

	obs.ObserveReconcileRun()
	obs.LogRequest(map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"level":     "info",
		"subsystem": "reconcile",
		"msg":       "reconciliation run complete",
		"examined":  res.Examined,
		"settled":   res.Settled,
		"pending":   res.Pending,
		"skipped":   res.Skipped,
		"errors":    res.Errors,
	})
	return res, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, inv *invoice.Invoice) string {
	if inv.Payment == nil || inv.Payment.Provider == "" || inv.Payment.Reference == "" {
		return "skipped"
	}
	client, ok := r.clients[Provider(inv.Payment.Provider)]
	if !ok {
		return "skipped"
	}

	verified, err := client.VerifyByReference(ctx, inv.Payment.Reference)
	if err != nil {
		obs.LogError("reconcile",
			fmt.Sprintf("verification failed for invoice %s/%s", inv.OrganizationID, inv.ID), err)
		return "error"
	}
	if !verified.Success {
		return "pending"
	}
	if err := r.service.MarkReconciled(ctx, inv.OrganizationID, inv.ID, verified.Raw); err != nil {
		obs.LogError("reconcile",
			fmt.Sprintf("failed to settle invoice %s/%s", inv.OrganizationID, inv.ID), err)
		return "error"
	}
	return "paid"
}

// RunEvery runs the reconciler on a fixed interval until the context is
// cancelled. Run errors are logged; the loop keeps going.
func (r *Reconciler) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil {
				obs.LogError("reconcile", "reconciliation run failed", err)
			}
		}
	}
}
