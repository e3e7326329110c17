package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-gateway/internal/models"
	"github.com/akylbek/payment-system/payment-gateway/internal/signature"
)

const (
	CardProviderID = "cardlink"

	// Hosted checkout sessions expire after this long; the remote side
	// enforces it, we report it to callers.
	checkoutSessionTTL = 30 * time.Minute
)

// CardConfig configures the card-network provider.
type CardConfig struct {
	APIKey        string
	WebhookSecret string
	BaseURL       string
}

// CardProvider fronts the card network's hosted-checkout API. Webhook
// authenticity uses the network's timestamped signature scheme.
type CardProvider struct {
	cfg      CardConfig
	client   *http.Client
	verifier *signature.TimestampedVerifier
	logger   *zap.Logger
}

func NewCardProvider(cfg CardConfig, logger *zap.Logger) *CardProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CardProvider{
		cfg:      cfg,
		client:   &http.Client{Timeout: 15 * time.Second},
		verifier: signature.NewTimestampedVerifier(cfg.WebhookSecret, signature.ToleranceSecondary, false),
		logger:   logger,
	}
}

func (p *CardProvider) ID() string   { return CardProviderID }
func (p *CardProvider) Name() string { return "CardLink" }

func (p *CardProvider) SupportedCurrencies() []models.Currency {
	return []models.Currency{models.CurrencyUSD}
}

func (p *CardProvider) SupportedCountries() []string {
	return []string{"US", "CA", "GB", "FR"}
}

func (p *CardProvider) SupportedMethods() []string {
	return []string{"card", "visa", "mastercard"}
}

func (p *CardProvider) Supports(currency models.Currency, method string) bool {
	return supports(p.SupportedCurrencies(), p.SupportedMethods(), currency, method)
}

type checkoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	AmountTotal   string `json:"amount_total"`
	Currency      string `json:"currency"`
	ExpiresAt     int64  `json:"expires_at"`
}

// InitiatePayment opens a hosted checkout session with a fixed expiry.
func (p *CardProvider) InitiatePayment(ctx context.Context, params InitiateParams) (*InitiateResult, error) {
	body := map[string]interface{}{
		"client_reference_id": params.OrderReference,
		"amount":              params.Amount.String(),
		"currency":            string(params.Currency),
		"customer_email":      params.CustomerEmail,
		"success_url":         params.ReturnURL,
		"expires_in":          int(checkoutSessionTTL.Seconds()),
	}

	var session checkoutSession
	if err := p.call(ctx, http.MethodPost, "/v1/checkout/sessions", "", body, &session); err != nil {
		return nil, err
	}

	p.logger.Info("checkout session created",
		zap.String("order_reference", params.OrderReference),
		zap.String("session_id", session.ID),
	)

	return &InitiateResult{
		ProviderID:  CardProviderID,
		SessionID:   session.ID,
		CheckoutURL: session.URL,
		Status:      models.StatusPending,
		ExpiresAt:   time.Now().Add(checkoutSessionTTL),
	}, nil
}

// VerifyPayment re-fetches the session and maps the remote status onto the
// normalized enum.
func (p *CardProvider) VerifyPayment(ctx context.Context, params VerifyParams) (*VerifyResult, error) {
	var session checkoutSession
	path := "/v1/checkout/sessions/" + params.SessionID
	if err := p.call(ctx, http.MethodGet, path, "", nil, &session); err != nil {
		return nil, err
	}

	amount, _ := decimal.NewFromString(session.AmountTotal)
	return &VerifyResult{
		Status:   mapCardStatus(session.PaymentStatus),
		Amount:   amount,
		Currency: models.Currency(session.Currency),
		Raw:      map[string]interface{}{"session_id": session.ID, "payment_status": session.PaymentStatus},
	}, nil
}

func mapCardStatus(remote string) models.PaymentStatus {
	switch remote {
	case "paid":
		return models.StatusCompleted
	case "expired":
		return models.StatusFailed
	case "processing":
		return models.StatusProcessing
	default:
		return models.StatusPending
	}
}

// Refund issues a refund guarded by the caller's idempotency key. The
// remote API dedupes on that key, which is what makes refund retries safe.
func (p *CardProvider) Refund(ctx context.Context, params RefundParams) (*RefundResult, error) {
	if params.IdempotencyKey == "" {
		return nil, fmt.Errorf("refund requires an idempotency key")
	}

	body := map[string]interface{}{
		"transaction_id": params.TransactionID,
		"amount":         params.Amount.String(),
		"currency":       string(params.Currency),
	}
	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := p.call(ctx, http.MethodPost, "/v1/refunds", params.IdempotencyKey, body, &resp); err != nil {
		return nil, err
	}

	return &RefundResult{
		Refunded: resp.Status == "succeeded",
		RefundID: resp.ID,
		Message:  "refund " + resp.Status,
	}, nil
}

type cardWebhookEnvelope struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ClientReferenceID string `json:"client_reference_id"`
			AmountTotal       string `json:"amount_total"`
			Currency          string `json:"currency"`
		} `json:"object"`
	} `json:"data"`
}

// VerifyWebhook authenticates the callback with the timestamped scheme,
// then remaps the network's event types onto the normalized shape.
func (p *CardProvider) VerifyWebhook(payload WebhookPayload) (*WebhookVerification, error) {
	verdict := p.verifier.Verify(payload.RawBody, payload.SignatureHeader, time.Now())
	if !verdict.Valid {
		return &WebhookVerification{Verification: verdict}, nil
	}

	var envelope cardWebhookEnvelope
	if err := json.Unmarshal(payload.RawBody, &envelope); err != nil {
		return &WebhookVerification{
			Verification: models.SignatureVerification{Valid: false, Reason: "malformed payload"},
		}, nil
	}

	status, known := mapCardEventType(envelope.Type)
	if !known {
		return &WebhookVerification{
			Verification: models.SignatureVerification{Valid: false, Reason: "unknown event type " + envelope.Type},
		}, nil
	}

	amount, _ := decimal.NewFromString(envelope.Data.Object.AmountTotal)
	raw := map[string]interface{}{}
	_ = json.Unmarshal(payload.RawBody, &raw)

	return &WebhookVerification{
		Verification: verdict,
		Event: &models.WebhookEvent{
			EventType: envelope.Type,
			OrderID:   envelope.Data.Object.ClientReferenceID,
			Status:    status,
			Amount:    amount,
			Currency:  models.Currency(envelope.Data.Object.Currency),
			RawData:   raw,
		},
	}, nil
}

func mapCardEventType(eventType string) (models.PaymentStatus, bool) {
	switch eventType {
	case "checkout.session.completed":
		return models.StatusCompleted, true
	case "payment_intent.payment_failed":
		return models.StatusFailed, true
	case "charge.refunded":
		return models.StatusRefunded, true
	}
	return "", false
}

func (p *CardProvider) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	var resp struct {
		Status string `json:"status"`
	}
	err := p.call(ctx, http.MethodGet, "/v1/health", "", nil, &resp)
	status := HealthStatus{ProviderID: CardProviderID, Latency: time.Since(start)}
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Healthy = true
	return status
}

func (p *CardProvider) call(ctx context.Context, method, path, idempotencyKey string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteAPI, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteAPI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s returned %d", ErrRemoteAPI, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRemoteAPI, err)
	}
	return nil
}
