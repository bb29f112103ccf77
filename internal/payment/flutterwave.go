package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"factura.org/internal/fault"
)

const flutterwaveBaseURL = "https://api.flutterwave.com/v3"

// Flutterwave talks to the Flutterwave v3 REST API.
type Flutterwave struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	http          *http.Client
}

// FlutterwaveOption customizes the client.
type FlutterwaveOption func(*Flutterwave)

// WithFlutterwaveBaseURL points the client at a different API host, for tests.
func WithFlutterwaveBaseURL(u string) FlutterwaveOption {
	return func(c *Flutterwave) { c.baseURL = u }
}

// WithFlutterwaveHTTPClient swaps the underlying HTTP client.
func WithFlutterwaveHTTPClient(h *http.Client) FlutterwaveOption {
	return func(c *Flutterwave) { c.http = h }
}

// NewFlutterwave constructs a Flutterwave client.
func NewFlutterwave(secretKey, webhookSecret string, opts ...FlutterwaveOption) *Flutterwave {
	c := &Flutterwave{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		baseURL:       flutterwaveBaseURL,
		http:          &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Flutterwave) Name() Provider { return ProviderFlutterwave }

type flutterwaveEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// InitializeIntent creates a hosted payment page and returns its link.
func (c *Flutterwave) InitializeIntent(ctx context.Context, in Intent) (InitResult, error) {
	payload := map[string]any{
		"tx_ref":       in.Reference,
		"amount":       in.Amount,
		"currency":     in.Currency,
		"redirect_url": in.RedirectURL,
		"customer": map[string]any{
			"email": in.CustomerEmail,
		},
		"meta": map[string]any{
			"organizationId": in.OrganizationID,
			"invoiceId":      in.InvoiceID,
		},
		"customizations": map[string]any{
			"title": in.Description,
		},
	}
	raw, env, err := c.call(ctx, http.MethodPost, "/payments", payload)
	if err != nil {
		return InitResult{}, err
	}
	var data struct {
		Link string `json:"link"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Link == "" {
		return InitResult{}, fault.New(fault.Internal, "flutterwave returned no payment link")
	}
	return InitResult{RedirectURL: data.Link, Raw: raw}, nil
}

// VerifyByReference asks Flutterwave for the transaction matching our tx_ref.
func (c *Flutterwave) VerifyByReference(ctx context.Context, reference string) (VerifyResult, error) {
	path := "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(reference)
	raw, env, err := c.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return VerifyResult{}, err
	}
	var data struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return VerifyResult{}, fault.Wrap(fault.Internal, "malformed flutterwave verification payload", err)
	}
	return VerifyResult{Success: settled(data.Status), RawStatus: data.Status, Raw: raw}, nil
}

// VerifySignature checks the verif-hash header: hex HMAC-SHA256 of the raw
// body under the webhook secret.
func (c *Flutterwave) VerifySignature(body []byte, signature string) bool {
	if c.webhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *Flutterwave) call(ctx context.Context, method, path string, payload any) (json.RawMessage, *flutterwaveEnvelope, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fault.Wrap(fault.Internal, "failed to encode flutterwave request", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, fault.Wrap(fault.Internal, "failed to build flutterwave request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fault.Wrap(fault.Internal, "flutterwave request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fault.Wrap(fault.Internal, "failed to read flutterwave response", err)
	}
	var env flutterwaveEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fault.Wrap(fault.Internal, "malformed flutterwave response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || env.Status != "success" {
		return nil, nil, fault.New(fault.Internal,
			fmt.Sprintf("flutterwave rejected the request: %s", orDefault(env.Message, resp.Status)))
	}
	return raw, &env, nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
