package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-gateway/internal/idempotency"
	"github.com/akylbek/payment-system/payment-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/payment-gateway/internal/models"
	"github.com/akylbek/payment-system/payment-gateway/internal/provider"
)

var (
	ErrUnknownProvider   = errors.New("unknown webhook provider")
	ErrMalformedPayload  = errors.New("malformed webhook payload")
	ErrSignatureInvalid  = errors.New("webhook signature invalid")
	ErrOrderNotFound     = errors.New("order not found")
	ErrAmountMismatch    = errors.New("webhook amount does not match order")
	ErrProviderMismatch  = errors.New("order is bound to a different provider")
	ErrLedgerUnavailable = errors.New("idempotency ledger unavailable")
)

// EventPublisher is satisfied by *kafka.Writer.
type EventPublisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// AlertPublisher is satisfied by *nats.Conn.
type AlertPublisher interface {
	Publish(subject string, data []byte) error
}

// Result is the webhook pipeline's outcome for the ingress handler.
type Result struct {
	Received  bool
	Duplicate bool
	Event     *models.WebhookEvent
}

// WebhookService runs the trust-boundary pipeline for inbound provider
// callbacks: authenticate, deduplicate, validate the amount, then apply
// the order transition and publish the normalized event.
type WebhookService struct {
	registry *provider.Registry
	ledger   idempotency.Ledger
	orders   interfaces.OrderRepository
	events   interfaces.PaymentEventRepository
	security interfaces.SecurityEventRepository
	kafka    EventPublisher
	alerts   AlertPublisher
	logger   *zap.Logger
}

func NewWebhookService(
	registry *provider.Registry,
	ledger idempotency.Ledger,
	orders interfaces.OrderRepository,
	events interfaces.PaymentEventRepository,
	security interfaces.SecurityEventRepository,
	kafkaWriter EventPublisher,
	alerts AlertPublisher,
	logger *zap.Logger,
) *WebhookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookService{
		registry: registry,
		ledger:   ledger,
		orders:   orders,
		events:   events,
		security: security,
		kafka:    kafkaWriter,
		alerts:   alerts,
		logger:   logger,
	}
}

// Process authenticates and applies one inbound webhook. The ledger is
// fail-closed: if it cannot be consulted the event is not processed, since
// admitting an unverifiable event defeats duplicate-charge protection.
func (s *WebhookService) Process(ctx context.Context, providerID string, payload provider.WebhookPayload) (*Result, error) {
	prov, err := s.registry.Get(providerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, providerID)
	}

	verification, err := prov.VerifyWebhook(payload)
	if err != nil {
		return nil, err
	}
	if !verification.Verification.Valid {
		return nil, s.rejectSignature(ctx, providerID, verification.Verification.Reason)
	}

	event := verification.Event
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	key := idempotency.MakeKey(providerID, event.EventType, event.OrderID)
	dup, err := s.ledger.IsDuplicate(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	if dup {
		s.logger.Info("duplicate webhook suppressed",
			zap.String("provider", providerID),
			zap.String("idempotency_key", key),
		)
		observeWebhook(providerID, "duplicate")
		return &Result{Received: true, Duplicate: true, Event: event}, nil
	}

	order, err := s.orders.GetByReference(ctx, event.OrderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrOrderNotFound, event.OrderID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch order: %w", err)
	}

	if order.ProviderID != "" && order.ProviderID != providerID {
		s.recordSecurityEvent(ctx, &models.SecurityEventRecord{
			EventType: models.SecEventProviderMismatch,
			Severity:  models.SeverityHigh,
			OrderRef:  order.Reference,
			Provider:  providerID,
			Details:   fmt.Sprintf("order bound to %q received webhook from %q", order.ProviderID, providerID),
		})
		return nil, ErrProviderMismatch
	}

	if event.Status == models.StatusCompleted {
		if event.Currency != order.Currency || !models.AmountMatches(order.AmountExpected, event.Amount, order.Currency) {
			s.flagAmountMismatch(ctx, providerID, order, event)
			return nil, ErrAmountMismatch
		}
	}

	if err := s.orders.UpdateStatus(ctx, order.Reference, event.Status, providerID); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	if err := s.events.Insert(ctx, &models.PaymentEventRecord{
		OrderReference: order.Reference,
		ProviderID:     providerID,
		EventType:      event.EventType,
		Status:         event.Status,
		Amount:         event.Amount,
		Currency:       event.Currency,
		IdempotencyKey: key,
	}); err != nil {
		return nil, fmt.Errorf("record payment event: %w", err)
	}
	if err := s.ledger.MarkProcessed(ctx, key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	s.publishEvent(ctx, providerID, event)

	s.logger.Info("webhook processed",
		zap.String("provider", providerID),
		zap.String("order_reference", order.Reference),
		zap.String("event_type", event.EventType),
		zap.String("status", string(event.Status)),
	)
	observeWebhook(providerID, "processed")

	return &Result{Received: true, Event: event}, nil
}

func (s *WebhookService) rejectSignature(ctx context.Context, providerID, reason string) error {
	if reason == "Invalid signature format" || reason == "malformed payload" || reason == "malformed amount" {
		observeWebhook(providerID, "malformed")
		return fmt.Errorf("%w: %s", ErrMalformedPayload, reason)
	}

	s.recordSecurityEvent(ctx, &models.SecurityEventRecord{
		EventType: models.SecEventSignatureInvalid,
		Severity:  models.SeverityWarning,
		Provider:  providerID,
		Details:   reason,
	})
	observeWebhook(providerID, "signature_invalid")
	return fmt.Errorf("%w: %s", ErrSignatureInvalid, reason)
}

// flagAmountMismatch emits the suspected-fraud trail: a critical security
// event plus a fire-and-forget fraud alert.
func (s *WebhookService) flagAmountMismatch(ctx context.Context, providerID string, order *models.OrderInfo, event *models.WebhookEvent) {
	details := fmt.Sprintf("expected %s %s, webhook claims %s %s",
		order.AmountExpected, order.Currency, event.Amount, event.Currency)

	s.recordSecurityEvent(ctx, &models.SecurityEventRecord{
		EventType: models.SecEventAmountMismatch,
		Severity:  models.SeverityCritical,
		OrderRef:  order.Reference,
		Provider:  providerID,
		Details:   details,
	})
	observeWebhook(providerID, "amount_mismatch")

	if s.alerts != nil {
		alert, _ := json.Marshal(map[string]interface{}{
			"type":            "amount_mismatch",
			"order_reference": order.Reference,
			"provider":        providerID,
			"expected":        order.AmountExpected.String(),
			"actual":          event.Amount.String(),
			"currency":        string(order.Currency),
			"at":              time.Now().UTC(),
		})
		if err := s.alerts.Publish("fraud.alert", alert); err != nil {
			s.logger.Error("fraud alert publish failed", zap.Error(err))
		}
	}
}

func (s *WebhookService) recordSecurityEvent(ctx context.Context, event *models.SecurityEventRecord) {
	if err := s.security.Insert(ctx, event); err != nil {
		s.logger.Error("security event insert failed",
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
	s.logger.Warn("security event",
		zap.String("event_type", event.EventType),
		zap.String("severity", event.Severity),
		zap.String("order_reference", event.OrderRef),
		zap.String("provider", event.Provider),
		zap.String("details", event.Details),
	)
}

// publishEvent pushes the normalized event to the payment.events topic.
// Publication is best-effort; the durable record is the payment_events row.
func (s *WebhookService) publishEvent(ctx context.Context, providerID string, event *models.WebhookEvent) {
	if s.kafka == nil {
		return
	}
	value, _ := json.Marshal(event)
	if err := s.kafka.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: value,
	}); err != nil {
		s.logger.Error("event publish failed",
			zap.String("provider", providerID),
			zap.String("order_reference", event.OrderID),
			zap.Error(err),
		)
	}
}
