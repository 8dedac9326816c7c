package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchly/payments/internal/application"
	"github.com/dispatchly/payments/internal/config"
	"github.com/dispatchly/payments/internal/domain"
	"github.com/dispatchly/payments/internal/gateway"
	"github.com/dispatchly/payments/internal/infrastructure/stripe"
	"github.com/dispatchly/payments/internal/materializer"
)

func newSweepFixture(t *testing.T, api stripe.API) (*SyncWorker, *application.MockPaymentRepository) {
	t.Helper()
	payments := application.NewMockPaymentRepository()
	refunds := application.NewMockRefundRepository()
	tasks := application.NewMockTaskStore()
	payouts := application.NewMockPayoutSyncer()
	remarks := &application.MockRemarkStore{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mat := materializer.NewMaterializer(payments, tasks, payouts, logger)
	local := gateway.NewLocalGateway(payments, refunds, remarks, mat, config.LocalConfig{WebhookSecret: "s", PayURLBase: "http://pay"}, logger)
	stripeGW := gateway.NewStripeGateway(api, payments, refunds, mat, config.StripeConfig{}, false, logger)
	registry := gateway.NewRegistry(local, stripeGW)

	w := NewSyncWorker(payments, registry, config.WorkerConfig{
		Interval:   time.Minute,
		BatchSize:  10,
		StaleAfter: 5 * time.Minute,
	}, logger)

	return w, payments
}

func stalePayment(t *testing.T, payments *application.MockPaymentRepository, sessionID string) *domain.Payment {
	t.Helper()
	p, err := domain.NewPayment(domain.ProviderStripe, 1000, "USD")
	require.NoError(t, err)
	p.ExternalID = sessionID
	p.CheckoutSessionID = &sessionID
	p.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, payments.Create(context.Background(), p))
	return p
}

func TestSyncWorker_ReconcilesStalePayment(t *testing.T) {
	api := &stripe.MockAPI{
		GetCheckoutSessionFn: func(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
			return &stripe.CheckoutSession{ID: sessionID, PaymentStatus: "paid"}, nil
		},
	}
	w, payments := newSweepFixture(t, api)
	p := stalePayment(t, payments, "cs_stale")

	w.RunOnce(context.Background())

	reconciled, err := payments.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, reconciled.Status)
}

func TestSyncWorker_FreshPendingUntouched(t *testing.T) {
	api := &stripe.MockAPI{}
	w, payments := newSweepFixture(t, api)

	p, err := domain.NewPayment(domain.ProviderStripe, 1000, "USD")
	require.NoError(t, err)
	sid := "cs_fresh"
	p.ExternalID = sid
	p.CheckoutSessionID = &sid
	require.NoError(t, payments.Create(context.Background(), p))

	w.RunOnce(context.Background())

	assert.Equal(t, 0, api.Calls["get_checkout_session"], "fresh payments are not swept")
}

func TestSyncWorker_ProviderFailureLeavesPaymentPending(t *testing.T) {
	api := &stripe.MockAPI{
		GetCheckoutSessionFn: func(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
			return nil, &stripe.APIError{Type: "api_error", StatusCode: 503}
		},
	}
	w, payments := newSweepFixture(t, api)
	p := stalePayment(t, payments, "cs_err")

	w.RunOnce(context.Background())

	got, err := payments.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status, "failed sweep retries next cycle")
}

func TestSyncWorker_MissingProviderIDSkippedWithoutCall(t *testing.T) {
	api := &stripe.MockAPI{}
	w, payments := newSweepFixture(t, api)

	p, err := domain.NewPayment(domain.ProviderStripe, 1000, "USD")
	require.NoError(t, err)
	p.ExternalID = "evt_orphan"
	p.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, payments.Create(context.Background(), p))

	w.RunOnce(context.Background())

	assert.Equal(t, 0, api.Calls["get_checkout_session"], "nothing to query without provider ids")
	assert.Equal(t, 0, api.Calls["get_payment_intent"])
	got, err := payments.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestSyncWorker_ExpiredSessionCanceled(t *testing.T) {
	api := &stripe.MockAPI{
		GetCheckoutSessionFn: func(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
			return &stripe.CheckoutSession{ID: sessionID, PaymentStatus: "unpaid", Status: "expired"}, nil
		},
	}
	w, payments := newSweepFixture(t, api)
	p := stalePayment(t, payments, "cs_exp")

	w.RunOnce(context.Background())

	got, err := payments.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, got.Status)
}
