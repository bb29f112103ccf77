package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"factura.org/internal/admin"
	"factura.org/internal/audit"
	"factura.org/internal/auth"
	"factura.org/internal/config"
	"factura.org/internal/httpapi"
	"factura.org/internal/invoice"
	"factura.org/internal/obs"
	"factura.org/internal/payment"
	"factura.org/internal/store/memory"
	"factura.org/internal/store/pg"
	"factura.org/internal/tenant"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

// stores is the backing-store bundle every service is wired from. Both the
// Postgres store and the in-memory store satisfy it whole.
type stores interface {
	auth.UserStore
	tenant.Store
	invoice.Store
	audit.Store
	admin.Store
	Ping(ctx context.Context) error
}

func main() {
	cfg := config.Load()

	obs.Init()
	obs.InitBuildInfo(cfg.Version, commit)

	if cfg.AuthSecret == "" {
		log.Fatal("FACTURA_AUTH_SECRET is required")
	}

	var (
		st      stores
		closeDB func() error
	)
	if cfg.PGDSN != "" {
		pgStore, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		st = pgStore
		closeDB = pgStore.Close
	} else {
		log.Println("FACTURA_PG_DSN is empty; using the in-memory store")
		st = memoryStore{memory.New()}
	}

	tokens, err := auth.NewTokenService(cfg.AuthSecret,
		auth.WithIssuer(cfg.AuthIssuer),
		auth.WithAccessTTL(cfg.AccessTTL),
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}
	directory := auth.NewDirectory(st, tokens)

	recorder := audit.NewRecorder(st)
	invoices := invoice.NewService(st, recorder, invoice.WithPaidLineItemLock(cfg.LockPaidLineItems))
	tenants := tenant.NewService(st, st, directory, recorder)
	adminSvc := admin.NewService(st)

	var clients []payment.Client
	if cfg.FlutterwaveSecretKey != "" {
		clients = append(clients, payment.NewFlutterwave(cfg.FlutterwaveSecretKey, cfg.FlutterwaveWebhookSecret))
	}
	if cfg.PaystackSecretKey != "" {
		clients = append(clients, payment.NewPaystack(cfg.PaystackSecretKey, cfg.PaystackWebhookSecret))
	}
	intents := payment.NewIntentService(invoices, recorder, cfg.PaymentRedirectURL, clients)

	api := httpapi.New(httpapi.Config{
		ReadyProbe: httpapi.ReadyProbe{Store: st},
		Version:    cfg.Version,
		Provider:   directory,
		Directory:  directory,
		Tenants:    tenants,
		Invoices:   invoices,
		Intents:    intents,
		Admin:      adminSvc,
		APIKey:     cfg.InvoiceAPIKey,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(clients) > 0 {
		reconciler := payment.NewReconciler(st, invoices, clients, cfg.ReconcileBatchSize)
		go reconciler.RunEvery(rootCtx, cfg.ReconcileInterval)
	}

	log.Printf("Starting factura-api %s on %s", cfg.Version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(ctx)
	if closeDB != nil {
		_ = closeDB()
	}
	log.Println("Stopped")
}

// memoryStore adds the readiness ping the in-memory store does not need.
type memoryStore struct {
	*memory.Store
}

func (memoryStore) Ping(context.Context) error { return nil }
