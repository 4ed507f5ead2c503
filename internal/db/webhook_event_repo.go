package db

import (
	"context"
	"encoding/json"

	"aigrowth/internal/types"
)

// WebhookEventRepository keeps an audit trail of inbound gateway deliveries.
type WebhookEventRepository struct {
	db DBTX
}

// NewWebhookEventRepository binds the repository to a pool or transaction.
func NewWebhookEventRepository(db DBTX) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Record stores a delivery as received and returns its id. Payloads that are
// not valid JSON are stored as NULL.
func (r *WebhookEventRepository) Record(ctx context.Context, d *types.WebhookDelivery) (int64, error) {
	var orderID *string
	if d.OrderID != "" {
		orderID = &d.OrderID
	}

	var payload *string
	if json.Valid(d.Payload) {
		raw := string(d.Payload)
		payload = &raw
	}

	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO gateway_webhook_events
		   (provider, event_type, order_id, signature_valid, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, NOW())
		 RETURNING id`,
		d.Provider, d.EventType, orderID, d.SignatureValid, payload,
	).Scan(&id)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to record webhook event", err)
	}
	return id, nil
}

// MarkProcessed stamps processed_at and the processing error, if any.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, id int64, processingErr string) error {
	var errText *string
	if processingErr != "" {
		errText = &processingErr
	}

	_, err := r.db.Exec(ctx,
		`UPDATE gateway_webhook_events
		 SET processed_at = NOW(), processing_error = $2
		 WHERE id = $1`,
		id, errText,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark webhook event processed", err)
	}
	return nil
}
