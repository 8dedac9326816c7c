// Package worker runs the periodic reconciliation sweep for payments whose
// webhooks never arrived.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/dispatchly/payments/internal/application"
	"github.com/dispatchly/payments/internal/config"
	"github.com/dispatchly/payments/internal/domain"
	"github.com/dispatchly/payments/internal/gateway"
)

// SyncWorker periodically pulls remote truth for stale pending payments.
// Webhooks are the fast path; this sweep is the guarantee.
type SyncWorker struct {
	payments   application.PaymentRepository
	registry   *gateway.Registry
	interval   time.Duration
	batchSize  int
	staleAfter time.Duration
	logger     *slog.Logger
}

func NewSyncWorker(
	payments application.PaymentRepository,
	registry *gateway.Registry,
	cfg config.WorkerConfig,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		payments:   payments,
		registry:   registry,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		staleAfter: cfg.StaleAfter,
		logger:     logger,
	}
}

func (w *SyncWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("starting payment sync worker",
		"interval", w.interval,
		"batch_size", w.batchSize,
		"stale_after", w.staleAfter)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping payment sync worker")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

// RunOnce executes a single sweep cycle.
func (w *SyncWorker) RunOnce(ctx context.Context) {
	w.run(ctx)
}

func (w *SyncWorker) run(ctx context.Context) {
	stale, err := w.payments.FindStalePending(ctx, w.staleAfter, w.batchSize)
	if err != nil {
		w.logger.Error("failed to fetch stale pending payments", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	w.logger.Info("reconciling stale pending payments", "count", len(stale))

	for _, payment := range stale {
		if ctx.Err() != nil {
			return
		}
		w.syncOne(ctx, payment)
	}
}

func (w *SyncWorker) syncOne(ctx context.Context, payment *domain.Payment) {
	gw, err := w.registry.For(payment.Provider)
	if err != nil {
		w.logger.Error("no gateway for stale payment", "payment_id", payment.ID, "provider", payment.Provider)
		return
	}

	updated, err := gw.Sync(ctx, payment)
	if err != nil {
		// Transient provider failures heal on the next sweep; anything else
		// (missing provider ids, invariant violations, permanent provider
		// rejections) will not, so it only warrants a warning.
		if application.CategorizeError(err) == application.CategoryTransient {
			w.logger.Error("sync failed for stale payment, retrying next sweep", "payment_id", payment.ID, "error", err)
			return
		}
		w.logger.Warn("stale payment cannot be synced", "payment_id", payment.ID, "error", err)
		return
	}

	if updated.Status != domain.StatusPending {
		w.logger.Info("stale payment reconciled",
			"payment_id", updated.ID,
			"status", updated.Status)
	}
}
