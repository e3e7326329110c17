package repository

import (
	"context"
	"database/sql"

	"github.com/akylbek/payment-system/payment-gateway/internal/models"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			reference VARCHAR(255) PRIMARY KEY,
			amount_expected NUMERIC(18,2) NOT NULL,
			currency VARCHAR(3) NOT NULL,
			status VARCHAR(50) NOT NULL DEFAULT 'pending',
			provider_id VARCHAR(50),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *OrderRepository) GetByReference(ctx context.Context, reference string) (*models.OrderInfo, error) {
	var (
		info     models.OrderInfo
		provider sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT reference, amount_expected, currency, status, provider_id, created_at, updated_at
		FROM orders WHERE reference = $1
	`, reference).Scan(
		&info.Reference, &info.AmountExpected, &info.Currency,
		&info.Status, &provider, &info.CreatedAt, &info.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	info.ProviderID = provider.String
	return &info, nil
}

// UpdateStatus applies the webhook-driven transition, binding the order to
// the provider that settled it.
func (r *OrderRepository) UpdateStatus(ctx context.Context, reference string, status models.PaymentStatus, providerID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, provider_id = $2, updated_at = NOW()
		WHERE reference = $3
	`, status, providerID, reference)
	return err
}
