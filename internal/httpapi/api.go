package httpapi

import (
	"context"
	"net/http"
	"time"

	"factura.org/internal/admin"
	"factura.org/internal/auth"
	"factura.org/internal/invoice"
	"factura.org/internal/obs"
	"factura.org/internal/payment"
	"factura.org/internal/tenant"
)

// Pinger is what the readiness probe needs from a store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe checks backing-store readiness.
type ReadyProbe struct {
	Store Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return nil
	}
	return rp.Store.Ping(ctx)
}

// API is the HTTP layer. Every collaborator is injected; the API owns only
// routing, decoding and the error envelope.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	provider  auth.Provider
	directory *auth.Directory
	tenants   *tenant.Service
	invoices  *invoice.Service
	intents   *payment.IntentService
	admin     *admin.Service

	apiKey string
}

// Config carries the API's collaborators.
type Config struct {
	ReadyProbe ReadyProbe
	Version    string

	Provider  auth.Provider
	Directory *auth.Directory
	Tenants   *tenant.Service
	Invoices  *invoice.Service
	Intents   *payment.IntentService
	Admin     *admin.Service

	// APIKey, when set, lets trusted automation call the API with the
	// X-Api-Key header instead of a bearer token.
	APIKey string
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
		provider:   cfg.Provider,
		directory:  cfg.Directory,
		tenants:    cfg.Tenants,
		invoices:   cfg.Invoices,
		intents:    cfg.Intents,
		admin:      cfg.Admin,
		apiKey:     cfg.APIKey,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// token refresh
	a.mux.HandleFunc("/v1/auth/token", a.handleMintToken)

	// tenants and their invoices
	a.mux.HandleFunc("/v1/orgs", a.handleOrgs)
	a.mux.HandleFunc("/v1/orgs/", a.handleOrgScoped)

	// platform administration
	a.mux.HandleFunc("/v1/admin/", a.handleAdmin)

	// provider webhooks
	a.mux.HandleFunc("/webhooks/flutterwave", a.webhookHandler(payment.ProviderFlutterwave, "verif-hash"))
	a.mux.HandleFunc("/webhooks/paystack", a.webhookHandler(payment.ProviderPaystack, "x-paystack-signature"))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RateLimit(h, 100, 50)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	return obs.Instrument(h)
}

// --- probes ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "factura-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "factura-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
