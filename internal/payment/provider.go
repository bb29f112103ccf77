// Package payment normalizes the two supported payment providers behind one
// adapter interface: initialization yields a redirect URL, verification a
// settled/not-settled decision, and the raw provider payload rides along for
// audit and reconciliation.
package payment

import (
	"context"
	"encoding/json"
	"strings"

	"factura.org/internal/fault"
)

// Provider identifies a payment provider.
type Provider string

const (
	ProviderFlutterwave Provider = "flutterwave"
	ProviderPaystack    Provider = "paystack"
)

// ParseProvider validates a provider string.
func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderFlutterwave:
		return ProviderFlutterwave, nil
	case ProviderPaystack:
		return ProviderPaystack, nil
	}
	return "", fault.Newf(fault.InvalidArgument, "unknown payment provider %q", s).
		WithFields(map[string]string{"provider": "must be flutterwave or paystack"})
}

// Intent is the normalized initialization request.
type Intent struct {
	Reference      string
	Amount         float64
	Currency       string
	CustomerEmail  string
	OrganizationID string
	InvoiceID      string
	RedirectURL    string
	Description    string
}

// InitResult is the normalized initialization response: the hosted checkout
// URL plus the provider's raw body.
type InitResult struct {
	RedirectURL string
	Raw         json.RawMessage
}

// VerifyResult is the normalized verification response. Success is derived
// from the provider's own status vocabulary; RawStatus preserves it.
type VerifyResult struct {
	Success   bool
	RawStatus string
	Raw       json.RawMessage
}

// Client is a provider adapter. Implementations are stateless beyond their
// credentials and safe for concurrent use.
type Client interface {
	Name() Provider
	InitializeIntent(ctx context.Context, in Intent) (InitResult, error)
	VerifyByReference(ctx context.Context, reference string) (VerifyResult, error)
	// VerifySignature checks a webhook body against its signature header.
	VerifySignature(body []byte, signature string) bool
}

// settled reports whether a provider status string means the charge went
// through. Flutterwave reports "successful", Paystack "success".
func settled(status string) bool {
	switch strings.ToLower(status) {
	case "successful", "success":
		return true
	}
	return false
}
