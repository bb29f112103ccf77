package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration. Every field maps to an environment
// variable; a local .env file is honored when present.
type Config struct {
	Addr    string // listen address for the HTTP API
	PGDSN   string // Postgres DSN; empty selects the in-memory store
	Version string

	AuthSecret    string        // HS256 signing secret for issued tokens
	AuthIssuer    string        // issuer claim expected on tokens
	AccessTTL     time.Duration // access token lifetime (claims staleness bound)
	InvoiceAPIKey string        // optional key for the external invoice API

	FlutterwaveSecretKey     string
	FlutterwaveWebhookSecret string
	PaystackSecretKey        string
	PaystackWebhookSecret    string
	PaymentRedirectURL       string

	ReconcileInterval  time.Duration
	ReconcileBatchSize int

	LockPaidLineItems bool // reject line-item edits on paid invoices
}

// Load reads configuration from the environment, applying defaults where the
// variable is unset. FACTURA_AUTH_SECRET is the only hard requirement for a
// token-verifying deployment and is validated by the caller, not here.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:    getenv("FACTURA_ADDR", ":8080"),
		PGDSN:   os.Getenv("FACTURA_PG_DSN"),
		Version: getenv("FACTURA_VERSION", "dev"),

		AuthSecret:    os.Getenv("FACTURA_AUTH_SECRET"),
		AuthIssuer:    getenv("FACTURA_AUTH_ISSUER", "factura"),
		AccessTTL:     getduration("FACTURA_ACCESS_TTL", time.Hour),
		InvoiceAPIKey: os.Getenv("FACTURA_INVOICE_API_KEY"),

		FlutterwaveSecretKey:     os.Getenv("FLUTTERWAVE_SECRET_KEY"),
		FlutterwaveWebhookSecret: os.Getenv("FLUTTERWAVE_WEBHOOK_SECRET"),
		PaystackSecretKey:        os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackWebhookSecret:    os.Getenv("PAYSTACK_WEBHOOK_SECRET"),
		PaymentRedirectURL:       getenv("PAYMENT_SUCCESS_REDIRECT", "https://example.com/payments/success"),

		ReconcileInterval:  getduration("FACTURA_RECONCILE_INTERVAL", 6*time.Hour),
		ReconcileBatchSize: getint("FACTURA_RECONCILE_BATCH", 50),

		LockPaidLineItems: getbool("FACTURA_LOCK_PAID_LINE_ITEMS", true),
	}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getbool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
