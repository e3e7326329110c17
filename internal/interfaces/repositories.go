package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/payment-gateway/internal/models"
)

// OrderRepository defines the contract for order data access. The order
// store itself belongs to the order-management side; the gateway only
// reads orders and applies webhook-driven transitions.
type OrderRepository interface {
	GetByReference(ctx context.Context, reference string) (*models.OrderInfo, error)
	UpdateStatus(ctx context.Context, reference string, status models.PaymentStatus, providerID string) error
}

// PaymentEventRepository persists one audit row per processed webhook. The
// idempotency_key column carries the durable half of duplicate
// suppression; the in-memory ledger only bounds the 24h replay window.
type PaymentEventRepository interface {
	Insert(ctx context.Context, event *models.PaymentEventRecord) error
}

// SecurityEventRepository records security-relevant rejections for audit.
type SecurityEventRepository interface {
	Insert(ctx context.Context, event *models.SecurityEventRecord) error
}
