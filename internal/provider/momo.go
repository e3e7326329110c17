package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-gateway/internal/models"
	"github.com/akylbek/payment-system/payment-gateway/internal/signature"
)

const (
	MomoProviderID = "mtnmomo"

	// tokenRefreshBuffer refreshes the bearer token before it actually
	// expires, closing the race where a near-expired token is attached to
	// a request that completes after expiry.
	tokenRefreshBuffer = 60 * time.Second
)

// MomoConfig configures the mobile-money provider.
type MomoConfig struct {
	APIUser         string
	APIKey          string
	SubscriptionKey string
	WebhookSecret   string
	BaseURL         string
}

// MomoProvider fronts the mobile-money network. Authentication is a
// credential exchange producing a short-lived bearer token cached in
// memory. Two callers racing a refresh may both fetch; the auth endpoint
// is idempotent, so a duplicate fetch is cheaper than a fetch lock.
type MomoProvider struct {
	cfg      MomoConfig
	client   *http.Client
	verifier *signature.DirectVerifier
	logger   *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time

	now func() time.Time
}

func NewMomoProvider(cfg MomoConfig, logger *zap.Logger) *MomoProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MomoProvider{
		cfg:      cfg,
		client:   &http.Client{Timeout: 15 * time.Second},
		verifier: signature.NewDirectVerifier(cfg.WebhookSecret),
		logger:   logger,
		now:      time.Now,
	}
}

func (p *MomoProvider) ID() string   { return MomoProviderID }
func (p *MomoProvider) Name() string { return "MTN Mobile Money" }

func (p *MomoProvider) SupportedCurrencies() []models.Currency {
	return []models.Currency{models.CurrencyXAF}
}

func (p *MomoProvider) SupportedCountries() []string {
	return []string{"CM", "GA", "TD", "CG"}
}

func (p *MomoProvider) SupportedMethods() []string {
	return []string{"mtn_momo", "orange_money"}
}

func (p *MomoProvider) Supports(currency models.Currency, method string) bool {
	return supports(p.SupportedCurrencies(), p.SupportedMethods(), currency, method)
}

// bearerToken returns a cached token, exchanging credentials when the
// cached one is missing or within the refresh buffer of expiry.
func (p *MomoProvider) bearerToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.token != "" && p.now().Before(p.tokenExpiry.Add(-tokenRefreshBuffer)) {
		token := p.token
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/collection/token", nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRemoteAPI, err)
	}
	req.SetBasicAuth(p.cfg.APIUser, p.cfg.APIKey)
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.SubscriptionKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token exchange: %v", ErrRemoteAPI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token exchange returned %d", ErrRemoteAPI, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode token: %v", ErrRemoteAPI, err)
	}

	p.mu.Lock()
	p.token = body.AccessToken
	p.tokenExpiry = p.now().Add(time.Duration(body.ExpiresIn) * time.Second)
	p.mu.Unlock()

	p.logger.Debug("momo bearer token refreshed",
		zap.Int64("expires_in", body.ExpiresIn),
	)
	return body.AccessToken, nil
}

// InitiatePayment submits a request-to-pay. The network has no fractional
// unit for XAF: the amount is rounded to whole francs before submission.
func (p *MomoProvider) InitiatePayment(ctx context.Context, params InitiateParams) (*InitiateResult, error) {
	if params.PhoneNumber == "" {
		return nil, fmt.Errorf("mobile money initiation requires a phone number")
	}

	token, err := p.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"amount":     models.WholeUnits(params.Amount).String(),
		"currency":   string(params.Currency),
		"externalId": params.OrderReference,
		"payer": map[string]string{
			"partyIdType": "MSISDN",
			"partyId":     params.PhoneNumber,
		},
	}

	var resp struct {
		ReferenceID string `json:"reference_id"`
		Status      string `json:"status"`
	}
	if err := p.authedCall(ctx, token, http.MethodPost, "/collection/v1_0/requesttopay", body, &resp); err != nil {
		return nil, err
	}

	p.logger.Info("request-to-pay submitted",
		zap.String("order_reference", params.OrderReference),
		zap.String("momo_reference", resp.ReferenceID),
	)

	return &InitiateResult{
		ProviderID: MomoProviderID,
		SessionID:  resp.ReferenceID,
		Status:     models.StatusProcessing,
	}, nil
}

func (p *MomoProvider) VerifyPayment(ctx context.Context, params VerifyParams) (*VerifyResult, error) {
	token, err := p.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Status   string `json:"status"`
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
	path := "/collection/v1_0/requesttopay/" + params.SessionID
	if err := p.authedCall(ctx, token, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	amount, _ := decimal.NewFromString(resp.Amount)
	return &VerifyResult{
		Status:   mapMomoStatus(resp.Status),
		Amount:   amount,
		Currency: models.Currency(resp.Currency),
		Raw:      map[string]interface{}{"status": resp.Status},
	}, nil
}

func mapMomoStatus(remote string) models.PaymentStatus {
	switch remote {
	case "SUCCESSFUL":
		return models.StatusCompleted
	case "FAILED":
		return models.StatusFailed
	case "PENDING":
		return models.StatusProcessing
	default:
		return models.StatusPending
	}
}

// Refund returns a manual-processing result: the mobile-money network has
// no refund API, and attempting an unsupported remote call would only
// surface a confusing transport error.
func (p *MomoProvider) Refund(_ context.Context, params RefundParams) (*RefundResult, error) {
	p.logger.Info("momo refund flagged for manual processing",
		zap.String("order_reference", params.OrderReference),
	)
	return &RefundResult{
		Refunded:       false,
		ManualRequired: true,
		Message:        "mobile money refunds require manual processing by finance",
	}, nil
}

type momoWebhookPayload struct {
	ExternalID string `json:"externalId"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
	Signature  string `json:"signature"`
}

// VerifyWebhook checks the inline direct-HMAC signature over
// reference+amount+status. The scheme carries no timestamp; replay defense
// is the idempotency ledger plus the finite order-processing window.
func (p *MomoProvider) VerifyWebhook(payload WebhookPayload) (*WebhookVerification, error) {
	var body momoWebhookPayload
	if err := json.Unmarshal(payload.RawBody, &body); err != nil {
		return &WebhookVerification{
			Verification: models.SignatureVerification{Valid: false, Reason: "malformed payload"},
		}, nil
	}

	verdict := p.verifier.VerifyFields(body.ExternalID, body.Amount, body.Status, body.Signature)
	if !verdict.Valid {
		return &WebhookVerification{Verification: verdict}, nil
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		return &WebhookVerification{
			Verification: models.SignatureVerification{Valid: false, Reason: "malformed amount"},
		}, nil
	}

	currency := models.Currency(body.Currency)
	if currency == "" {
		currency = models.CurrencyXAF
	}

	raw := map[string]interface{}{}
	_ = json.Unmarshal(payload.RawBody, &raw)
	delete(raw, "signature")

	return &WebhookVerification{
		Verification: verdict,
		Event: &models.WebhookEvent{
			EventType: "collection." + body.Status,
			OrderID:   body.ExternalID,
			Status:    mapMomoStatus(body.Status),
			Amount:    amount,
			Currency:  currency,
			RawData:   raw,
		},
	}, nil
}

func (p *MomoProvider) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1_0/health", nil)
	status := HealthStatus{ProviderID: MomoProviderID}
	if err != nil {
		status.Error = err.Error()
		return status
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.SubscriptionKey)

	resp, err := p.client.Do(req)
	status.Latency = time.Since(start)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		status.Error = fmt.Sprintf("health endpoint returned %d", resp.StatusCode)
		return status
	}
	status.Healthy = true
	return status
}

func (p *MomoProvider) authedCall(ctx context.Context, token, method, path string, body, out interface{}) error {
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
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.SubscriptionKey)
	req.Header.Set("Content-Type", "application/json")

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
