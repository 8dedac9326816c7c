package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchly/payments/internal/infrastructure/persistence"
)

// PayoutQueue stores pending carrier payout reconciliations. One job per
// payment: the unique payment_id column makes Enqueue idempotent, so a
// replayed settlement never queues a second sync.
type PayoutQueue struct {
	db persistence.Executor
}

func NewPayoutQueue(db persistence.Executor) *PayoutQueue {
	return &PayoutQueue{db: db}
}

func (q *PayoutQueue) Enqueue(ctx context.Context, paymentID uuid.UUID) error {
	query := `
		INSERT INTO payout_sync_jobs (id, payment_id, status, created_at)
		VALUES ($1, $2, 'queued', $3)
		ON CONFLICT (payment_id) DO NOTHING
	`

	if _, err := q.db.Exec(ctx, query, uuid.New(), paymentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("enqueue payout sync: %w", err)
	}
	return nil
}
