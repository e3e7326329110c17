package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/akylbek/payment-system/payment-gateway/internal/models"
)

type PaymentEventRepository struct {
	db *sql.DB
}

func NewPaymentEventRepository(db *sql.DB) *PaymentEventRepository {
	return &PaymentEventRepository{db: db}
}

func (r *PaymentEventRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS payment_events (
			id UUID PRIMARY KEY,
			order_reference VARCHAR(255) NOT NULL,
			provider_id VARCHAR(50) NOT NULL,
			event_type VARCHAR(100) NOT NULL,
			status VARCHAR(50) NOT NULL,
			amount NUMERIC(18,2) NOT NULL,
			currency VARCHAR(3) NOT NULL,
			idempotency_key VARCHAR(512) NOT NULL UNIQUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_events_order ON payment_events(order_reference)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// Insert records the event. The UNIQUE idempotency_key column makes the
// durable dedup guarantee; replays past the in-memory TTL land here and
// are suppressed by ON CONFLICT DO NOTHING.
func (r *PaymentEventRepository) Insert(ctx context.Context, event *models.PaymentEventRecord) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_events (id, order_reference, provider_id, event_type, status, amount, currency, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, event.ID, event.OrderReference, event.ProviderID, event.EventType,
		event.Status, event.Amount, event.Currency, event.IdempotencyKey)
	return err
}
