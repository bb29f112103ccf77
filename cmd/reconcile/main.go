package main

import (
	"context"
	"log"
	"time"

	"factura.org/internal/audit"
	"factura.org/internal/config"
	"factura.org/internal/invoice"
	"factura.org/internal/obs"
	"factura.org/internal/payment"
	"factura.org/internal/store/pg"
)

// One-shot reconciliation pass, for cron or manual runs.
func main() {
	log.SetFlags(0)
	cfg := config.Load()
	obs.Init()

	if cfg.PGDSN == "" {
		log.Fatal("FACTURA_PG_DSN is required")
	}
	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	var clients []payment.Client
	if cfg.FlutterwaveSecretKey != "" {
		clients = append(clients, payment.NewFlutterwave(cfg.FlutterwaveSecretKey, cfg.FlutterwaveWebhookSecret))
	}
	if cfg.PaystackSecretKey != "" {
		clients = append(clients, payment.NewPaystack(cfg.PaystackSecretKey, cfg.PaystackWebhookSecret))
	}
	if len(clients) == 0 {
		log.Fatal("no payment provider credentials configured")
	}

	invoices := invoice.NewService(store, audit.NewRecorder(store))
	reconciler := payment.NewReconciler(store, invoices, clients, cfg.ReconcileBatchSize)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := reconciler.Run(ctx)
	if err != nil {
		log.Fatalf("reconcile: %v", err)
	}
	log.Printf("examined=%d settled=%d pending=%d skipped=%d errors=%d",
		res.Examined, res.Settled, res.Pending, res.Skipped, res.Errors)
}
