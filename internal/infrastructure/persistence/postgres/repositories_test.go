package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchly/payments/internal/domain"
	"github.com/dispatchly/payments/internal/infrastructure/persistence/postgres"
	"github.com/dispatchly/payments/internal/testhelpers"
)

func TestRepositories(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	td := testhelpers.SetupTestDatabase(t)
	defer td.Cleanup(t)

	ctx := context.Background()
	payments := postgres.NewPaymentRepository(td.DB.Pool)
	refunds := postgres.NewRefundRepository(td.DB.Pool)
	events := postgres.NewEventRepository(td.DB.Pool)
	payouts := postgres.NewPayoutQueue(td.DB.Pool)

	t.Run("payment round trip", func(t *testing.T) {
		td.CleanTables(t)

		p, err := domain.NewPayment(domain.ProviderStripe, 5000, "USD")
		require.NoError(t, err)
		p.ExternalID = "cs_rt_1"
		cs := "cs_rt_1"
		p.CheckoutSessionID = &cs
		p.Metadata.CheckoutSessionID = "cs_rt_1"
		p.PayableType = "order"

		require.NoError(t, payments.Create(ctx, p))

		got, err := payments.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ExternalID, got.ExternalID)
		assert.Equal(t, domain.StatusPending, got.Status)
		assert.Equal(t, "cs_rt_1", got.Metadata.CheckoutSessionID)
		assert.Equal(t, "order", got.PayableType)
	})

	t.Run("find by any provider id column", func(t *testing.T) {
		td.CleanTables(t)

		p, err := domain.NewPayment(domain.ProviderStripe, 5000, "USD")
		require.NoError(t, err)
		p.ExternalID = "cs_find_1"
		cs, pi, ch := "cs_find_1", "pi_find_1", "ch_find_1"
		p.CheckoutSessionID = &cs
		p.PaymentIntentID = &pi
		p.ChargeID = &ch
		require.NoError(t, payments.Create(ctx, p))

		for _, candidate := range []string{"cs_find_1", "pi_find_1", "ch_find_1"} {
			got, err := payments.FindByExternalID(ctx, domain.ProviderStripe, []string{candidate})
			require.NoError(t, err, "candidate %s", candidate)
			assert.Equal(t, p.ID, got.ID)
		}

		// Earlier candidates win.
		got, err := payments.FindByExternalID(ctx, domain.ProviderStripe, []string{"missing", "pi_find_1"})
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)

		_, err = payments.FindByExternalID(ctx, domain.ProviderLocal, []string{"cs_find_1"})
		require.Error(t, err, "provider scoping")
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodePaymentNotFound))
	})

	t.Run("update persists status and learned ids", func(t *testing.T) {
		td.CleanTables(t)

		p, err := domain.NewPayment(domain.ProviderStripe, 5000, "USD")
		require.NoError(t, err)
		p.ExternalID = "cs_up_1"
		require.NoError(t, payments.Create(ctx, p))

		pi := "pi_up_1"
		p.PaymentIntentID = &pi
		_, err = p.ApplyStatus(domain.StatusSucceeded)
		require.NoError(t, err)
		require.NoError(t, payments.Update(ctx, p))

		got, err := payments.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusSucceeded, got.Status)
		require.NotNil(t, got.PaymentIntentID)
		assert.Equal(t, "pi_up_1", *got.PaymentIntentID)
		require.NotNil(t, got.SucceededAt)
	})

	t.Run("duplicate external id rejected", func(t *testing.T) {
		td.CleanTables(t)

		a, _ := domain.NewPayment(domain.ProviderStripe, 100, "USD")
		a.ExternalID = "cs_dup"
		require.NoError(t, payments.Create(ctx, a))

		b, _ := domain.NewPayment(domain.ProviderStripe, 100, "USD")
		b.ExternalID = "cs_dup"
		err := payments.Create(ctx, b)
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeDuplicateExternalID))

		// Same external id under another provider is a different payment.
		c, _ := domain.NewPayment(domain.ProviderLocal, 100, "USD")
		c.ExternalID = "cs_dup"
		require.NoError(t, payments.Create(ctx, c))
	})

	t.Run("stale pending sweep", func(t *testing.T) {
		td.CleanTables(t)

		stale, _ := domain.NewPayment(domain.ProviderStripe, 100, "USD")
		stale.ExternalID = "cs_stale"
		stale.UpdatedAt = time.Now().UTC().Add(-time.Hour)
		require.NoError(t, payments.Create(ctx, stale))

		fresh, _ := domain.NewPayment(domain.ProviderStripe, 100, "USD")
		fresh.ExternalID = "cs_fresh"
		require.NoError(t, payments.Create(ctx, fresh))

		got, err := payments.FindStalePending(ctx, 5*time.Minute, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, stale.ID, got[0].ID)
	})

	t.Run("refund upsert converges", func(t *testing.T) {
		td.CleanTables(t)

		p, _ := domain.NewPayment(domain.ProviderStripe, 5000, "USD")
		p.ExternalID = "cs_ref"
		require.NoError(t, payments.Create(ctx, p))

		r, err := domain.NewRefund(p.ID, domain.ProviderStripe, "re_1", 5000, "USD")
		require.NoError(t, err)
		r.Status = "pending"
		require.NoError(t, refunds.Upsert(ctx, r))

		// Redelivery with updated status maps onto the same row.
		r2, err := domain.NewRefund(p.ID, domain.ProviderStripe, "re_1", 5000, "USD")
		require.NoError(t, err)
		r2.Status = "succeeded"
		require.NoError(t, refunds.Upsert(ctx, r2))

		got, err := refunds.ListByPayment(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "succeeded", got[0].Status)
	})

	t.Run("event dedup on provider and external id", func(t *testing.T) {
		td.CleanTables(t)

		id := "evt_1"
		first := domain.NewIntegrationEvent("stripe", &id, "checkout.session.completed", nil, []byte(`{}`), true)
		created, err := events.Record(ctx, first)
		require.NoError(t, err)
		assert.True(t, created)

		second := domain.NewIntegrationEvent("stripe", &id, "checkout.session.completed", nil, []byte(`{}`), true)
		created, err = events.Record(ctx, second)
		require.NoError(t, err)
		assert.False(t, created, "same provider event id is a duplicate")

		otherProvider := domain.NewIntegrationEvent("crm", &id, "contact.updated", nil, []byte(`{}`), true)
		created, err = events.Record(ctx, otherProvider)
		require.NoError(t, err)
		assert.True(t, created, "dedup is scoped per provider")

		noID := domain.NewIntegrationEvent("social", nil, "", nil, []byte(`{}`), true)
		created, err = events.Record(ctx, noID)
		require.NoError(t, err)
		assert.True(t, created)

		require.NoError(t, events.MarkProcessed(ctx, first.ID))
		require.NoError(t, events.MarkFailed(ctx, noID.ID, "boom"))
	})

	t.Run("payout enqueue idempotent", func(t *testing.T) {
		td.CleanTables(t)

		p, _ := domain.NewPayment(domain.ProviderLocal, 100, "USD")
		p.ExternalID = "loc_pay"
		require.NoError(t, payments.Create(ctx, p))

		require.NoError(t, payouts.Enqueue(ctx, p.ID))
		require.NoError(t, payouts.Enqueue(ctx, p.ID))

		var count int
		err := td.DB.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM payout_sync_jobs WHERE payment_id = $1", p.ID).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}
