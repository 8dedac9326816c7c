package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchly/payments/internal/domain"
)

// PaymentRepository is the port for payment persistence. Implementations must
// back FindByExternalID and Update with the unique constraints the concurrency
// model relies on (no in-process locks).
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	// FindByExternalID tries each candidate identifier in order against
	// external_id, checkout_session_id, payment_intent_id and charge_id.
	// First non-empty match wins.
	FindByExternalID(ctx context.Context, provider domain.Provider, candidates []string) (*domain.Payment, error)
	Update(ctx context.Context, payment *domain.Payment) error
	// FindStalePending returns pending payments untouched for olderThan,
	// for the sync sweep.
	FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error)
}

// RefundRepository is the port for refund audit rows.
type RefundRepository interface {
	// Upsert creates the refund or, when (provider, refund_id) already
	// exists, updates the mutable fields of the existing row.
	Upsert(ctx context.Context, refund *domain.Refund) error
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*domain.Refund, error)
}

// EventRepository is the port for the inbound webhook audit log and the
// idempotency boundary.
type EventRepository interface {
	// Record inserts the event. created=false means an event with the same
	// (provider, external_id) was already recorded and the delivery is a
	// duplicate: no side effects may run.
	Record(ctx context.Context, event *domain.IntegrationEvent) (created bool, err error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// TaskStore is the port into the delivery-task side of the platform,
// consumed by the materializer.
type TaskStore interface {
	TaskExistsForPayment(ctx context.Context, paymentID uuid.UUID) (bool, error)
	CreateTaskFromSnapshot(ctx context.Context, paymentID uuid.UUID, snapshot []byte) (uuid.UUID, error)
	AttachPaymentToTasks(ctx context.Context, paymentID uuid.UUID, taskIDs []uuid.UUID) error
	PublishTasks(ctx context.Context, taskIDs []uuid.UUID) error
}

// PayoutSyncer queues a carrier payout reconciliation for a settled payment.
type PayoutSyncer interface {
	Enqueue(ctx context.Context, paymentID uuid.UUID) error
}

// RemarkStore records human-readable audit remarks against a payment.
type RemarkStore interface {
	AddRemark(ctx context.Context, paymentID uuid.UUID, text string) error
}
