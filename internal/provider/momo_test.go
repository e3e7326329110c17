package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/payment-gateway/internal/models"
	"github.com/akylbek/payment-system/payment-gateway/internal/secure"
)

const momoWebhookSecret = "momo_webhook_secret"

func newMomoTestServer(t *testing.T, handler http.HandlerFunc) *MomoProvider {
	t.Helper()
	var tokenFetches int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collection/token" {
			atomic.AddInt64(&tokenFetches, 1)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "tok_abc",
				"expires_in":   3600,
			})
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	return NewMomoProvider(MomoConfig{
		APIUser:         "user",
		APIKey:          "key",
		SubscriptionKey: "sub",
		WebhookSecret:   momoWebhookSecret,
		BaseURL:         srv.URL,
	}, nil)
}

func TestMomoInitiateRoundsToWholeUnits(t *testing.T) {
	var submitted map[string]interface{}
	p := newMomoTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &submitted)
		json.NewEncoder(w).Encode(map[string]string{"reference_id": "mref_1", "status": "PENDING"})
	})

	res, err := p.InitiatePayment(context.Background(), InitiateParams{
		OrderReference: "ord_1",
		Amount:         decimal.NewFromFloat(5000.4),
		Currency:       models.CurrencyXAF,
		PhoneNumber:    "237670000000",
	})
	if err != nil {
		t.Fatal(err)
	}
	if submitted["amount"] != "5000" {
		t.Errorf("submitted amount = %v, want whole units \"5000\"", submitted["amount"])
	}
	if res.SessionID != "mref_1" {
		t.Errorf("session = %q", res.SessionID)
	}
}

func TestMomoInitiateRequiresPhone(t *testing.T) {
	p := newMomoTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := p.InitiatePayment(context.Background(), InitiateParams{
		OrderReference: "ord_1",
		Amount:         decimal.NewFromInt(5000),
		Currency:       models.CurrencyXAF,
	})
	if err == nil {
		t.Error("initiation without a phone number must fail before any remote call")
	}
}

func TestMomoTokenCaching(t *testing.T) {
	calls := 0
	p := newMomoTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") != "Bearer tok_abc" {
			t.Errorf("missing bearer token on call %d", calls)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "PENDING"})
	})

	base := time.Unix(1700000000, 0)
	now := base
	p.now = func() time.Time { return now }

	ctx := context.Background()
	if _, err := p.VerifyPayment(ctx, VerifyParams{SessionID: "m1"}); err != nil {
		t.Fatal(err)
	}
	tok1, _ := p.bearerToken(ctx)

	// Well before expiry the cached token is reused.
	now = base.Add(30 * time.Minute)
	tok2, _ := p.bearerToken(ctx)
	if tok1 != tok2 {
		t.Error("token should be cached until near expiry")
	}

	// Within the 60s refresh buffer a fresh exchange happens even though
	// the token has not outright expired.
	expiry := p.tokenExpiry
	now = expiry.Add(-30 * time.Second)
	if _, err := p.bearerToken(ctx); err != nil {
		t.Fatal(err)
	}
	if !p.tokenExpiry.After(expiry) {
		t.Error("token within refresh buffer should have been re-exchanged")
	}
}

func TestMomoRefundIsManual(t *testing.T) {
	p := newMomoTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("refund must not hit the remote network")
	})
	res, err := p.Refund(context.Background(), RefundParams{OrderReference: "ord_1"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Refunded || !res.ManualRequired {
		t.Errorf("momo refund should require manual processing, got %+v", res)
	}
}

func momoWebhookRaw(ref, amount, status, secret string) []byte {
	sig := secure.SignHMAC(ref+amount+status, secret)
	body, _ := json.Marshal(map[string]string{
		"externalId": ref,
		"amount":     amount,
		"currency":   "XAF",
		"status":     status,
		"signature":  sig,
	})
	return body
}

func TestMomoVerifyWebhook(t *testing.T) {
	p := NewMomoProvider(MomoConfig{WebhookSecret: momoWebhookSecret}, nil)

	res, err := p.VerifyWebhook(WebhookPayload{
		RawBody: momoWebhookRaw("r1", "5000", "SUCCESSFUL", momoWebhookSecret),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Verification.Valid {
		t.Fatalf("valid webhook rejected: %s", res.Verification.Reason)
	}
	if res.Event.OrderID != "r1" {
		t.Errorf("order = %q", res.Event.OrderID)
	}
	if res.Event.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", res.Event.Status)
	}
	if !res.Event.Amount.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("amount = %s", res.Event.Amount)
	}
	if _, leaked := res.Event.RawData["signature"]; leaked {
		t.Error("signature must not survive into the audit payload")
	}
}

func TestMomoVerifyWebhookRejectsForgery(t *testing.T) {
	p := NewMomoProvider(MomoConfig{WebhookSecret: momoWebhookSecret}, nil)

	res, err := p.VerifyWebhook(WebhookPayload{
		RawBody: momoWebhookRaw("r1", "5000", "SUCCESSFUL", "wrong_secret"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Verification.Valid {
		t.Fatal("forged webhook accepted")
	}
	if res.Event != nil {
		t.Error("no event on failed verification")
	}

	if res, _ := p.VerifyWebhook(WebhookPayload{RawBody: []byte("not json")}); res.Verification.Valid {
		t.Error("malformed payload accepted")
	}
}
