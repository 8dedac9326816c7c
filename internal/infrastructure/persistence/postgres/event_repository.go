package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchly/payments/internal/domain"
	"github.com/dispatchly/payments/internal/infrastructure/persistence"
)

type EventRepository struct {
	db persistence.Executor
}

func NewEventRepository(db persistence.Executor) *EventRepository {
	return &EventRepository{db: db}
}

// Record inserts the delivery. The partial unique index on
// (provider, external_id) makes the insert the idempotency check: a conflict
// means the same event was already delivered and created comes back false.
// Deliveries without an external id always insert.
func (r *EventRepository) Record(ctx context.Context, event *domain.IntegrationEvent) (bool, error) {
	headers, err := json.Marshal(event.Headers)
	if err != nil {
		return false, fmt.Errorf("encode event headers: %w", err)
	}

	query := `
		INSERT INTO integration_events (
			id, provider, external_id, event_type, headers, body,
			signature_valid, status, error, received_at, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (provider, external_id) WHERE external_id IS NOT NULL
		DO NOTHING
	`

	result, err := r.db.Exec(ctx, query,
		event.ID, event.Provider, event.ExternalID, event.EventType, headers, event.Body,
		event.SignatureValid, string(event.Status), event.Error, event.ReceivedAt, event.ProcessedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record integration event: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *EventRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE integration_events
		SET status = 'processed', processed_at = $1, error = NULL
		WHERE id = $2
	`

	if _, err := r.db.Exec(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (r *EventRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE integration_events
		SET status = 'failed', processed_at = $1, error = $2
		WHERE id = $3
	`

	if _, err := r.db.Exec(ctx, query, time.Now().UTC(), reason, id); err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}
	return nil
}
