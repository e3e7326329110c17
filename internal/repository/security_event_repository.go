package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/akylbek/payment-system/payment-gateway/internal/models"
)

type SecurityEventRepository struct {
	db *sql.DB
}

func NewSecurityEventRepository(db *sql.DB) *SecurityEventRepository {
	return &SecurityEventRepository{db: db}
}

func (r *SecurityEventRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS security_events (
			id UUID PRIMARY KEY,
			event_type VARCHAR(100) NOT NULL,
			severity VARCHAR(20) NOT NULL,
			order_reference VARCHAR(255),
			provider_id VARCHAR(50),
			details TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_security_events_type ON security_events(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_security_events_severity ON security_events(severity)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *SecurityEventRepository) Insert(ctx context.Context, event *models.SecurityEventRecord) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO security_events (id, event_type, severity, order_reference, provider_id, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, event.EventType, event.Severity, event.OrderRef, event.Provider, event.Details)
	return err
}
