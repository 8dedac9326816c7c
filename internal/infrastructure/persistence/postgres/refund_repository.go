package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dispatchly/payments/internal/domain"
	"github.com/dispatchly/payments/internal/infrastructure/persistence"
)

type RefundRepository struct {
	db persistence.Executor
}

func NewRefundRepository(db persistence.Executor) *RefundRepository {
	return &RefundRepository{db: db}
}

// Upsert inserts the refund, or updates the mutable fields when the provider
// redelivers the same refund id. Duplicate webhooks converge on one row.
func (r *RefundRepository) Upsert(ctx context.Context, refund *domain.Refund) error {
	query := `
		INSERT INTO refunds (
			id, payment_id, provider, refund_id, amount_cents, currency,
			reason, status, balance_transaction_id, raw,
			occurred_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (provider, refund_id) DO UPDATE
		SET status = EXCLUDED.status,
			amount_cents = EXCLUDED.amount_cents,
			reason = EXCLUDED.reason,
			balance_transaction_id = EXCLUDED.balance_transaction_id,
			raw = EXCLUDED.raw,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(ctx, query,
		refund.ID, refund.PaymentID, string(refund.Provider), refund.RefundID,
		refund.AmountCents, refund.Currency,
		refund.Reason, refund.Status, refund.BalanceTransactionID, []byte(refund.Raw),
		refund.OccurredAt, refund.CreatedAt, refund.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert refund: %w", err)
	}

	return nil
}

func (r *RefundRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*domain.Refund, error) {
	query := `
		SELECT id, payment_id, provider, refund_id, amount_cents, currency,
		       reason, status, balance_transaction_id, raw,
		       occurred_at, created_at, updated_at
		FROM refunds
		WHERE payment_id = $1
		ORDER BY occurred_at ASC
	`

	rows, err := r.db.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("query refunds by payment: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Refund, error) {
		var m RefundModel
		err := row.Scan(
			&m.ID, &m.PaymentID, &m.Provider, &m.RefundID, &m.AmountCents, &m.Currency,
			&m.Reason, &m.Status, &m.BalanceTransactionID, &m.Raw,
			&m.OccurredAt, &m.CreatedAt, &m.UpdatedAt,
		)
		return toDomainRefund(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan refunds: %w", err)
	}

	return results, nil
}
