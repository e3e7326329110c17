package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	StatusPending           PaymentStatus = "pending"
	StatusProcessing        PaymentStatus = "processing"
	StatusCompleted         PaymentStatus = "completed"
	StatusFailed            PaymentStatus = "failed"
	StatusRefunded          PaymentStatus = "refunded"
	StatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

// Terminal reports whether the status ends the payment lifecycle.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyXAF Currency = "XAF"
)

// HasFractionalUnit reports whether the currency carries sub-unit amounts.
// XAF is a zero-decimal currency: amounts are always whole francs.
func (c Currency) HasFractionalUnit() bool {
	return c != CurrencyXAF
}

// WebhookEvent is the provider-agnostic shape every concrete provider
// normalizes its webhook payloads into.
type WebhookEvent struct {
	EventType string                 `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	Status    PaymentStatus          `json:"status"`
	Amount    decimal.Decimal        `json:"amount"`
	Currency  Currency               `json:"currency"`
	RawData   map[string]interface{} `json:"raw_data,omitempty"`
}

// Validate enforces that terminal events carry the fields the order side
// needs to settle: an order reference plus amount and currency.
func (e *WebhookEvent) Validate() error {
	if !e.Status.Terminal() {
		return nil
	}
	if e.OrderID == "" {
		return fmt.Errorf("terminal event %q missing order reference", e.EventType)
	}
	if e.Amount.IsZero() {
		return fmt.Errorf("terminal event %q missing amount", e.EventType)
	}
	if e.Currency == "" {
		return fmt.Errorf("terminal event %q missing currency", e.EventType)
	}
	return nil
}

// SignatureVerification is produced whole by every verifier. A failed
// verification carries no partial trust signal: Valid is the only field
// callers may branch on.
type SignatureVerification struct {
	Valid     bool
	Timestamp time.Time
	Reason    string
}

// OrderInfo is the slice of an order the webhook pipeline needs.
type OrderInfo struct {
	Reference      string
	AmountExpected decimal.Decimal
	Currency       Currency
	Status         PaymentStatus
	ProviderID     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PaymentEventRecord is an audit row for each processed webhook.
type PaymentEventRecord struct {
	ID             string
	OrderReference string
	ProviderID     string
	EventType      string
	Status         PaymentStatus
	Amount         decimal.Decimal
	Currency       Currency
	IdempotencyKey string
	CreatedAt      time.Time
}

// SecurityEventRecord is an audit row for security-relevant rejections.
type SecurityEventRecord struct {
	ID        string
	EventType string
	Severity  string
	OrderRef  string
	Provider  string
	Details   string
	CreatedAt time.Time
}

const (
	SeverityWarning  = "warning"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

const (
	SecEventSignatureInvalid = "signature_invalid"
	SecEventAmountMismatch   = "amount_mismatch"
	SecEventProviderMismatch = "provider_mismatch"
)
