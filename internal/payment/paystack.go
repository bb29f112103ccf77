package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"factura.org/internal/fault"
)

const paystackBaseURL = "https://api.paystack.co"

// Paystack talks to the Paystack REST API. Amounts go over the wire in the
// currency's minor unit.
type Paystack struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	http          *http.Client
}

// PaystackOption customizes the client.
type PaystackOption func(*Paystack)

// WithPaystackBaseURL points the client at a different API host, for tests.
func WithPaystackBaseURL(u string) PaystackOption {
	return func(c *Paystack) { c.baseURL = u }
}

// WithPaystackHTTPClient swaps the underlying HTTP client.
func WithPaystackHTTPClient(h *http.Client) PaystackOption {
	return func(c *Paystack) { c.http = h }
}

// NewPaystack constructs a Paystack client.
func NewPaystack(secretKey, webhookSecret string, opts ...PaystackOption) *Paystack {
	c := &Paystack{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		baseURL:       paystackBaseURL,
		http:          &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Paystack) Name() Provider { return ProviderPaystack }

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// MinorUnits converts a major-unit amount to Paystack's integer minor units.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// InitializeIntent creates a transaction and returns its authorization URL.
func (c *Paystack) InitializeIntent(ctx context.Context, in Intent) (InitResult, error) {
	payload := map[string]any{
		"reference":    in.Reference,
		"amount":       MinorUnits(in.Amount),
		"currency":     in.Currency,
		"email":        in.CustomerEmail,
		"callback_url": in.RedirectURL,
		"metadata": map[string]any{
			"organizationId": in.OrganizationID,
			"invoiceId":      in.InvoiceID,
		},
	}
	raw, env, err := c.call(ctx, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return InitResult{}, err
	}
	var data struct {
		AuthorizationURL string `json:"authorization_url"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.AuthorizationURL == "" {
		return InitResult{}, fault.New(fault.Internal, "paystack returned no authorization url")
	}
	return InitResult{RedirectURL: data.AuthorizationURL, Raw: raw}, nil
}

// VerifyByReference asks Paystack for the transaction matching our reference.
func (c *Paystack) VerifyByReference(ctx context.Context, reference string) (VerifyResult, error) {
	raw, env, err := c.call(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return VerifyResult{}, err
	}
	var data struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return VerifyResult{}, fault.Wrap(fault.Internal, "malformed paystack verification payload", err)
	}
	return VerifyResult{Success: settled(data.Status), RawStatus: data.Status, Raw: raw}, nil
}

// VerifySignature checks the x-paystack-signature header: hex HMAC-SHA512 of
// the raw body under the webhook secret.
func (c *Paystack) VerifySignature(body []byte, signature string) bool {
	if c.webhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *Paystack) call(ctx context.Context, method, path string, payload any) (json.RawMessage, *paystackEnvelope, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fault.Wrap(fault.Internal, "failed to encode paystack request", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, fault.Wrap(fault.Internal, "failed to build paystack request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fault.Wrap(fault.Internal, "paystack request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fault.Wrap(fault.Internal, "failed to read paystack response", err)
	}
	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fault.Wrap(fault.Internal, "malformed paystack response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Status {
		return nil, nil, fault.New(fault.Internal,
			fmt.Sprintf("paystack rejected the request: %s", orDefault(env.Message, resp.Status)))
	}
	return raw, &env, nil
}
