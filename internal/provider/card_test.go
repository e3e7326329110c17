package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/payment-gateway/internal/models"
	"github.com/akylbek/payment-system/payment-gateway/internal/secure"
)

const cardWebhookSecret = "whsec_card_test"

func newCardTestServer(t *testing.T, handler http.HandlerFunc) (*CardProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewCardProvider(CardConfig{
		APIKey:        "sk_test",
		WebhookSecret: cardWebhookSecret,
		BaseURL:       srv.URL,
	}, nil)
	return p, srv
}

func TestCardInitiateCreatesSession(t *testing.T) {
	var gotAuth string
	p, _ := newCardTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" || r.Method != http.MethodPost {
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":  "cs_123",
			"url": "https://pay.cardlink.test/cs_123",
		})
	})

	res, err := p.InitiatePayment(context.Background(), InitiateParams{
		OrderReference: "ord_1",
		Amount:         decimal.NewFromFloat(100.50),
		Currency:       models.CurrencyUSD,
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer sk_test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if res.SessionID != "cs_123" || res.CheckoutURL == "" {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Status != models.StatusPending {
		t.Errorf("new session status = %s, want pending", res.Status)
	}
	if until := time.Until(res.ExpiresAt); until < 29*time.Minute || until > 31*time.Minute {
		t.Errorf("session expiry %v not near 30m", until)
	}
}

func TestCardVerifyStatusMapping(t *testing.T) {
	cases := []struct {
		remote string
		want   models.PaymentStatus
	}{
		{"paid", models.StatusCompleted},
		{"expired", models.StatusFailed},
		{"processing", models.StatusProcessing},
		{"open", models.StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.remote, func(t *testing.T) {
			p, _ := newCardTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{
					"id":             "cs_1",
					"payment_status": tc.remote,
					"amount_total":   "100.50",
					"currency":       "USD",
				})
			})
			res, err := p.VerifyPayment(context.Background(), VerifyParams{SessionID: "cs_1"})
			if err != nil {
				t.Fatal(err)
			}
			if res.Status != tc.want {
				t.Errorf("remote %q mapped to %s, want %s", tc.remote, res.Status, tc.want)
			}
		})
	}
}

func TestCardRefundSendsIdempotencyKey(t *testing.T) {
	var gotKey string
	p, _ := newCardTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		json.NewEncoder(w).Encode(map[string]string{"id": "re_1", "status": "succeeded"})
	})

	res, err := p.Refund(context.Background(), RefundParams{
		TransactionID:  "pi_1",
		Amount:         decimal.NewFromInt(50),
		Currency:       models.CurrencyUSD,
		IdempotencyKey: "refund:ord_1:1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotKey != "refund:ord_1:1" {
		t.Errorf("Idempotency-Key = %q", gotKey)
	}
	if !res.Refunded {
		t.Error("succeeded refund should report Refunded")
	}

	if _, err := p.Refund(context.Background(), RefundParams{TransactionID: "pi_1"}); err == nil {
		t.Error("refund without idempotency key must be rejected locally")
	}
}

func TestCardRemoteFailureIsStructured(t *testing.T) {
	p, _ := newCardTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := p.InitiatePayment(context.Background(), InitiateParams{OrderReference: "ord_1"})
	if err == nil {
		t.Fatal("expected remote API error")
	}
	if !IsRemoteAPIError(err) {
		t.Errorf("err = %v, want ErrRemoteAPI wrap", err)
	}
}

func cardWebhookBody(eventType, ref, amount, currency string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"type": eventType,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"client_reference_id": ref,
				"amount_total":        amount,
				"currency":            currency,
			},
		},
	})
	return body
}

func signCardWebhook(body []byte, ts int64) string {
	sig := secure.SignHMAC(fmt.Sprintf("%d.%s", ts, body), cardWebhookSecret)
	return fmt.Sprintf("t=%d,v1=%s", ts, sig)
}

func TestCardVerifyWebhookRemapsEvents(t *testing.T) {
	p := NewCardProvider(CardConfig{WebhookSecret: cardWebhookSecret}, nil)

	cases := []struct {
		eventType string
		want      models.PaymentStatus
	}{
		{"checkout.session.completed", models.StatusCompleted},
		{"payment_intent.payment_failed", models.StatusFailed},
		{"charge.refunded", models.StatusRefunded},
	}
	for _, tc := range cases {
		t.Run(tc.eventType, func(t *testing.T) {
			body := cardWebhookBody(tc.eventType, "ord_9", "100.00", "USD")
			res, err := p.VerifyWebhook(WebhookPayload{
				RawBody:         body,
				SignatureHeader: signCardWebhook(body, time.Now().Unix()),
			})
			if err != nil {
				t.Fatal(err)
			}
			if !res.Verification.Valid {
				t.Fatalf("signature rejected: %s", res.Verification.Reason)
			}
			if res.Event.Status != tc.want {
				t.Errorf("status = %s, want %s", res.Event.Status, tc.want)
			}
			if res.Event.OrderID != "ord_9" {
				t.Errorf("order = %q", res.Event.OrderID)
			}
		})
	}
}

func TestCardVerifyWebhookRejectsBadSignature(t *testing.T) {
	p := NewCardProvider(CardConfig{WebhookSecret: cardWebhookSecret}, nil)
	body := cardWebhookBody("checkout.session.completed", "ord_9", "100.00", "USD")

	res, err := p.VerifyWebhook(WebhookPayload{
		RawBody:         body,
		SignatureHeader: fmt.Sprintf("t=%d,v1=deadbeef", time.Now().Unix()),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Verification.Valid {
		t.Fatal("forged signature accepted")
	}
	if res.Event != nil {
		t.Error("failed verification must not yield an event")
	}
}

func TestCardVerifyWebhookUnknownEventType(t *testing.T) {
	p := NewCardProvider(CardConfig{WebhookSecret: cardWebhookSecret}, nil)
	body := cardWebhookBody("customer.created", "ord_9", "0", "USD")

	res, err := p.VerifyWebhook(WebhookPayload{
		RawBody:         body,
		SignatureHeader: signCardWebhook(body, time.Now().Unix()),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Verification.Valid {
		t.Error("unknown event types are not processable")
	}
}
