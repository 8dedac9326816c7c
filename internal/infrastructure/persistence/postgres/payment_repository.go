package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dispatchly/payments/internal/domain"
	"github.com/dispatchly/payments/internal/infrastructure/persistence"
)

const paymentColumns = `
	id, provider, external_id, checkout_session_id, payment_intent_id, charge_id,
	amount_cents, currency, status, payment_url, metadata,
	payable_type, payable_id, task_id,
	created_at, updated_at, succeeded_at, refunded_at`

type PaymentRepository struct {
	db persistence.Executor
}

func NewPaymentRepository(db persistence.Executor) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	m, err := toPaymentModel(payment)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query,
		m.ID, m.Provider, m.ExternalID, m.CheckoutSessionID, m.PaymentIntentID, m.ChargeID,
		m.AmountCents, m.Currency, m.Status, m.PaymentURL, m.Metadata,
		m.PayableType, m.PayableID, m.TaskID,
		m.CreatedAt, m.UpdatedAt, m.SucceededAt, m.RefundedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return domain.NewDuplicateExternalIDError(string(payment.Provider), payment.ExternalID)
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	return scanPayment(r.db.QueryRow(ctx, query, id), id.String())
}

// FindByExternalID tries each candidate against every provider-id column the
// payment may be known by. Candidates are tried in order; the first match
// wins.
func (r *PaymentRepository) FindByExternalID(ctx context.Context, provider domain.Provider, candidates []string) (*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE provider = $1
		  AND ($2 IN (external_id, checkout_session_id, payment_intent_id, charge_id))
	`

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		payment, err := scanPayment(r.db.QueryRow(ctx, query, string(provider), candidate), candidate)
		if err != nil {
			if domain.IsErrorCode(err, domain.ErrCodePaymentNotFound) {
				continue
			}
			return nil, err
		}
		return payment, nil
	}

	return nil, domain.NewPaymentNotFoundError(strings.Join(candidates, ","))
}

func (r *PaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = $1,
			checkout_session_id = $2, payment_intent_id = $3, charge_id = $4,
			payment_url = $5, metadata = $6, task_id = $7,
			updated_at = $8, succeeded_at = $9, refunded_at = $10
		WHERE id = $11
	`

	m, err := toPaymentModel(payment)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(ctx, query,
		m.Status,
		m.CheckoutSessionID, m.PaymentIntentID, m.ChargeID,
		m.PaymentURL, m.Metadata, m.TaskID,
		m.UpdatedAt, m.SucceededAt, m.RefundedAt,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewPaymentNotFoundError(payment.ID.String())
	}

	return nil
}

// FindStalePending returns pending payments untouched for olderThan, oldest
// first, for the reconciliation sweep.
func (r *PaymentRepository) FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'pending'
		  AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`

	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale pending payments: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Payment, error) {
		var m PaymentModel
		if err := scanPaymentColumns(row, &m); err != nil {
			return nil, err
		}
		return toDomainPayment(m)
	})
	if err != nil {
		return nil, fmt.Errorf("scan stale pending payments: %w", err)
	}

	return results, nil
}

func scanPayment(row pgx.Row, ref string) (*domain.Payment, error) {
	var m PaymentModel
	if err := scanPaymentColumns(row, &m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewPaymentNotFoundError(ref)
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return toDomainPayment(m)
}

func scanPaymentColumns(row pgx.Row, m *PaymentModel) error {
	return row.Scan(
		&m.ID, &m.Provider, &m.ExternalID, &m.CheckoutSessionID, &m.PaymentIntentID, &m.ChargeID,
		&m.AmountCents, &m.Currency, &m.Status, &m.PaymentURL, &m.Metadata,
		&m.PayableType, &m.PayableID, &m.TaskID,
		&m.CreatedAt, &m.UpdatedAt, &m.SucceededAt, &m.RefundedAt,
	)
}
