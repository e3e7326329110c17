package provider

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/payment-gateway/internal/models"
)

var (
	// ErrRemoteAPI wraps failures returned by an external payment network.
	// It is surfaced to callers as a structured failure, never thrown
	// across the trust boundary as a panic.
	ErrRemoteAPI = errors.New("remote payment API error")

	// ErrUnsupported marks an operation the remote network cannot perform.
	ErrUnsupported = errors.New("operation not supported by provider")
)

// IsRemoteAPIError reports whether err originated from an external payment
// network call.
func IsRemoteAPIError(err error) bool {
	return errors.Is(err, ErrRemoteAPI)
}

// InitiateParams carries everything needed to open a payment with a
// provider. PhoneNumber arrives pre-normalized; carrier detection is the
// phone-utility collaborator's job.
type InitiateParams struct {
	OrderReference string
	Amount         decimal.Decimal
	Currency       models.Currency
	Method         string
	CustomerEmail  string
	PhoneNumber    string
	ReturnURL      string
}

type InitiateResult struct {
	ProviderID  string
	SessionID   string
	CheckoutURL string
	Status      models.PaymentStatus
	ExpiresAt   time.Time
}

type VerifyParams struct {
	OrderReference string
	SessionID      string
}

type VerifyResult struct {
	Status   models.PaymentStatus
	Amount   decimal.Decimal
	Currency models.Currency
	Raw      map[string]interface{}
}

// RefundParams requires a caller-supplied idempotency key. The remote API
// dedupes refunds on this value: a retried call with the same key must not
// refund twice.
type RefundParams struct {
	OrderReference string
	TransactionID  string
	Amount         decimal.Decimal
	Currency       models.Currency
	IdempotencyKey string
}

type RefundResult struct {
	Refunded       bool
	ManualRequired bool
	RefundID       string
	Message        string
}

// WebhookPayload is the raw inbound callback before any trust is
// established.
type WebhookPayload struct {
	RawBody         []byte
	SignatureHeader string
}

// WebhookVerification pairs the authenticity verdict with the normalized
// event. Event is nil whenever Verification.Valid is false.
type WebhookVerification struct {
	Verification models.SignatureVerification
	Event        *models.WebhookEvent
}

type HealthStatus struct {
	ProviderID string        `json:"provider_id"`
	Healthy    bool          `json:"healthy"`
	Latency    time.Duration `json:"latency"`
	Error      string        `json:"error,omitempty"`
}

// Provider is the uniform contract every external payment network is
// normalized behind.
type Provider interface {
	ID() string
	Name() string
	SupportedCurrencies() []models.Currency
	SupportedCountries() []string
	SupportedMethods() []string

	InitiatePayment(ctx context.Context, params InitiateParams) (*InitiateResult, error)
	VerifyPayment(ctx context.Context, params VerifyParams) (*VerifyResult, error)
	Refund(ctx context.Context, params RefundParams) (*RefundResult, error)
	VerifyWebhook(payload WebhookPayload) (*WebhookVerification, error)
	Supports(currency models.Currency, method string) bool
	HealthCheck(ctx context.Context) HealthStatus
}

func supports(currencies []models.Currency, methods []string, currency models.Currency, method string) bool {
	ok := false
	for _, c := range currencies {
		if c == currency {
			ok = true
			break
		}
	}
	if !ok {
		return false
	}
	if method == "" {
		return true
	}
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}
