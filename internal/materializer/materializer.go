// Package materializer turns a settled payment into durable domain records.
package materializer

import (
	"context"
	"log/slog"

	"github.com/dispatchly/payments/internal/application"
	"github.com/dispatchly/payments/internal/domain"
)

// Materializer runs the downstream side effects of a payment transitioning
// into succeeded: task creation or publication, then a payout sync trigger.
// Exactly once per payment — the existence checks make replayed succeeded
// events no-ops.
type Materializer struct {
	payments application.PaymentRepository
	tasks    application.TaskStore
	payouts  application.PayoutSyncer
	logger   *slog.Logger
}

func NewMaterializer(
	payments application.PaymentRepository,
	tasks application.TaskStore,
	payouts application.PayoutSyncer,
	logger *slog.Logger,
) *Materializer {
	return &Materializer{
		payments: payments,
		tasks:    tasks,
		payouts:  payouts,
		logger:   logger,
	}
}

// Materialize never propagates failure: the payment-status update must not
// roll back and webhook acknowledgment must not break because a downstream
// side effect misbehaved.
func (m *Materializer) Materialize(ctx context.Context, payment *domain.Payment) {
	if err := m.run(ctx, payment); err != nil {
		m.logger.Error("materialization failed",
			"payment_id", payment.ID,
			"error", err)
	}
}

func (m *Materializer) run(ctx context.Context, payment *domain.Payment) error {
	switch {
	case len(payment.Metadata.TaskIDs) > 0:
		if err := m.publishCart(ctx, payment); err != nil {
			return err
		}
	case len(payment.Metadata.TaskSnapshot) > 0:
		if err := m.createFromSnapshot(ctx, payment); err != nil {
			return err
		}
	}

	// Enqueue is idempotent on payment id; duplicate succeeded deliveries
	// do not queue a second payout sync.
	if err := m.payouts.Enqueue(ctx, payment.ID); err != nil {
		return err
	}
	return nil
}

// publishCart attaches the payment to the pre-existing cart tasks and
// publishes them.
func (m *Materializer) publishCart(ctx context.Context, payment *domain.Payment) error {
	exists, err := m.tasks.TaskExistsForPayment(ctx, payment.ID)
	if err != nil {
		return err
	}
	if exists {
		m.logger.Debug("cart already materialized", "payment_id", payment.ID)
		return nil
	}

	if err := m.tasks.AttachPaymentToTasks(ctx, payment.ID, payment.Metadata.TaskIDs); err != nil {
		return err
	}
	if err := m.tasks.PublishTasks(ctx, payment.Metadata.TaskIDs); err != nil {
		return err
	}

	m.logger.Info("cart tasks published",
		"payment_id", payment.ID,
		"task_count", len(payment.Metadata.TaskIDs))
	return nil
}

// createFromSnapshot materializes the single task serialized into the
// payment metadata at checkout time.
func (m *Materializer) createFromSnapshot(ctx context.Context, payment *domain.Payment) error {
	if payment.TaskID != nil {
		m.logger.Debug("task already linked", "payment_id", payment.ID, "task_id", *payment.TaskID)
		return nil
	}

	exists, err := m.tasks.TaskExistsForPayment(ctx, payment.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	taskID, err := m.tasks.CreateTaskFromSnapshot(ctx, payment.ID, payment.Metadata.TaskSnapshot)
	if err != nil {
		return err
	}

	payment.TaskID = &taskID
	if err := m.payments.Update(ctx, payment); err != nil {
		return err
	}

	m.logger.Info("task materialized from snapshot",
		"payment_id", payment.ID,
		"task_id", taskID)
	return nil
}
