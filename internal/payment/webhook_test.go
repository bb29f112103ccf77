package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"factura.org/internal/fault"
)

func TestParseWebhookFlutterwave(t *testing.T) {
	body := []byte(`{
		"event": "charge.completed",
		"data": {
			"tx_ref": "inv_abc_1",
			"status": "successful",
			"meta": {"organizationId": "org-1", "invoiceId": "inv-1"}
		}
	}`)
	ev, err := ParseWebhook(ProviderFlutterwave, body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.OrganizationID != "org-1" || ev.InvoiceID != "inv-1" {
		t.Fatalf("metadata = %q/%q", ev.OrganizationID, ev.InvoiceID)
	}
	if ev.Reference != "inv_abc_1" || !ev.Success {
		t.Fatalf("event = %+v", ev)
	}
}

func TestParseWebhookPaystack(t *testing.T) {
	body := []byte(`{
		"event": "charge.success",
		"data": {
			"reference": "inv_abc_1",
			"status": "success",
			"metadata": {"organizationId": "org-1", "invoiceId": "inv-1"}
		}
	}`)
	ev, err := ParseWebhook(ProviderPaystack, body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Event != "charge.success" || !ev.Success {
		t.Fatalf("event = %+v", ev)
	}

	failed := []byte(`{
		"event": "charge.failed",
		"data": {
			"reference": "inv_abc_1",
			"status": "failed",
			"metadata": {"organizationId": "org-1", "invoiceId": "inv-1"}
		}
	}`)
	ev, err = ParseWebhook(ProviderPaystack, failed)
	if err != nil {
		t.Fatalf("parse failed event: %v", err)
	}
	if ev.Success {
		t.Fatalf("failed charge marked settled")
	}
}

func TestParseWebhookMissingMetadata(t *testing.T) {
	body := []byte(`{"event": "charge.completed", "data": {"tx_ref": "x", "status": "successful"}}`)
	_, err := ParseWebhook(ProviderFlutterwave, body)
	if fault.KindOf(err) != fault.InvalidArgument {
		t.Fatalf("missing metadata: %v", err)
	}
	if _, err := ParseWebhook(Provider("stripe"), []byte(`{}`)); fault.KindOf(err) != fault.InvalidArgument {
		t.Fatalf("unknown provider: %v", err)
	}
	if _, err := ParseWebhook(ProviderPaystack, []byte(`not json`)); fault.KindOf(err) != fault.InvalidArgument {
		t.Fatalf("garbage body: %v", err)
	}
}

func TestFlutterwaveVerifySignature(t *testing.T) {
	c := NewFlutterwave("sk", "wh-secret")
	body := []byte(`{"event":"charge.completed"}`)

	mac := hmac.New(sha256.New, []byte("wh-secret"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	if !c.VerifySignature(body, sig) {
		t.Fatalf("valid signature rejected")
	}
	if c.VerifySignature(body, sig[:len(sig)-2]+"00") {
		t.Fatalf("tampered signature accepted")
	}
	if c.VerifySignature(body, "") {
		t.Fatalf("empty signature accepted")
	}
	if NewFlutterwave("sk", "").VerifySignature(body, sig) {
		t.Fatalf("client without webhook secret accepted a signature")
	}
}

func TestPaystackVerifySignature(t *testing.T) {
	c := NewPaystack("sk", "wh-secret")
	body := []byte(`{"event":"charge.success"}`)

	mac := hmac.New(sha512.New, []byte("wh-secret"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	if !c.VerifySignature(body, sig) {
		t.Fatalf("valid signature rejected")
	}
	if c.VerifySignature([]byte(`{"event":"other"}`), sig) {
		t.Fatalf("signature accepted for different body")
	}
}
