package materializer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchly/payments/internal/application"
	"github.com/dispatchly/payments/internal/domain"
)

type fixture struct {
	mat      *Materializer
	payments *application.MockPaymentRepository
	tasks    *application.MockTaskStore
	payouts  *application.MockPayoutSyncer
}

func newFixture() *fixture {
	payments := application.NewMockPaymentRepository()
	tasks := application.NewMockTaskStore()
	payouts := application.NewMockPayoutSyncer()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		mat:      NewMaterializer(payments, tasks, payouts, logger),
		payments: payments,
		tasks:    tasks,
		payouts:  payouts,
	}
}

func settledPayment(t *testing.T) *domain.Payment {
	t.Helper()
	p, err := domain.NewPayment(domain.ProviderLocal, 1000, "USD")
	require.NoError(t, err)
	_, err = p.ApplyStatus(domain.StatusSucceeded)
	require.NoError(t, err)
	return p
}

func TestMaterialize_SnapshotCreatesTask(t *testing.T) {
	f := newFixture()
	payment := settledPayment(t)
	payment.Metadata.TaskSnapshot = []byte(`{"pickup":"a","dropoff":"b"}`)
	require.NoError(t, f.payments.Create(context.Background(), payment))

	f.mat.Materialize(context.Background(), payment)

	assert.Equal(t, 1, f.tasks.CreateCalls)
	require.NotNil(t, payment.TaskID, "payment linked to the created task")
	assert.Equal(t, 1, f.payouts.EnqueueCalls)
}

func TestMaterialize_SnapshotIdempotent(t *testing.T) {
	f := newFixture()
	payment := settledPayment(t)
	payment.Metadata.TaskSnapshot = []byte(`{"pickup":"a"}`)
	require.NoError(t, f.payments.Create(context.Background(), payment))

	f.mat.Materialize(context.Background(), payment)
	f.mat.Materialize(context.Background(), payment)

	assert.Equal(t, 1, f.tasks.CreateCalls, "second run sees the linked task and skips")
	assert.Equal(t, 1, f.payouts.Queued(), "payout queue is idempotent on payment id")
}

func TestMaterialize_CartPublishesTasks(t *testing.T) {
	f := newFixture()
	payment := settledPayment(t)
	payment.Metadata.TaskIDs = []uuid.UUID{uuid.New(), uuid.New()}

	f.mat.Materialize(context.Background(), payment)

	assert.Equal(t, 1, f.tasks.AttachCalls)
	assert.Equal(t, 1, f.tasks.PublishCalls)
	assert.Equal(t, 0, f.tasks.CreateCalls, "cart mode never creates tasks")
	assert.Equal(t, 1, f.payouts.EnqueueCalls)
}

func TestMaterialize_CartIdempotent(t *testing.T) {
	f := newFixture()
	payment := settledPayment(t)
	payment.Metadata.TaskIDs = []uuid.UUID{uuid.New()}

	f.mat.Materialize(context.Background(), payment)
	f.mat.Materialize(context.Background(), payment)

	assert.Equal(t, 1, f.tasks.AttachCalls)
	assert.Equal(t, 1, f.tasks.PublishCalls)
}

func TestMaterialize_NoMetadataStillQueuesPayout(t *testing.T) {
	f := newFixture()
	payment := settledPayment(t)

	f.mat.Materialize(context.Background(), payment)

	assert.Equal(t, 0, f.tasks.CreateCalls)
	assert.Equal(t, 1, f.payouts.EnqueueCalls)
}

func TestMaterialize_SwallowsDownstreamErrors(t *testing.T) {
	f := newFixture()
	payment := settledPayment(t)
	payment.Metadata.TaskSnapshot = []byte(`{}`)
	f.tasks.CreateTaskFromSnapshotFn = func(ctx context.Context, paymentID uuid.UUID, snapshot []byte) (uuid.UUID, error) {
		return uuid.Nil, errors.New("task service down")
	}

	// Must not panic or propagate: settlement already happened.
	f.mat.Materialize(context.Background(), payment)

	assert.Nil(t, payment.TaskID)
}
