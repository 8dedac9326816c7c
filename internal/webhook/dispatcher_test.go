package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchly/payments/internal/application"
	"github.com/dispatchly/payments/internal/config"
	"github.com/dispatchly/payments/internal/domain"
	"github.com/dispatchly/payments/internal/gateway"
	"github.com/dispatchly/payments/internal/signature"
)

// stubGateway implements gateway.Gateway for dispatch tests. Only
// ProcessWebhook matters here.
type stubGateway struct {
	processFn    func(ctx context.Context, body []byte) (*domain.Payment, error)
	processCalls int
	lastBody     []byte
}

func (s *stubGateway) CreatePayment(ctx context.Context, params gateway.CreateParams) (*domain.Payment, error) {
	return nil, errors.New("not implemented")
}

func (s *stubGateway) ProcessWebhook(ctx context.Context, body []byte) (*domain.Payment, error) {
	s.processCalls++
	s.lastBody = body
	if s.processFn != nil {
		return s.processFn(ctx, body)
	}
	return nil, nil
}

func (s *stubGateway) Refund(ctx context.Context, payment *domain.Payment, amountCents *int64, reason string) (*domain.Refund, error) {
	return nil, errors.New("not implemented")
}

func (s *stubGateway) Capture(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	return nil, errors.New("not implemented")
}

func (s *stubGateway) Cancel(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	return nil, errors.New("not implemented")
}

func (s *stubGateway) Sync(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	return nil, errors.New("not implemented")
}

type dispatchFixture struct {
	dispatcher *Dispatcher
	events     *application.MockEventRepository
	local      *stubGateway
	stripe     *stubGateway
}

func newDispatchFixture() *dispatchFixture {
	events := application.NewMockEventRepository()
	local := &stubGateway{}
	stripeGW := &stubGateway{}
	registry := gateway.NewRegistry(local, stripeGW)

	d := NewDispatcher(
		registry,
		events,
		config.LocalConfig{WebhookSecret: "local-secret"},
		config.StripeConfig{WebhookSecret: "whsec_test"},
		config.CRMConfig{WebhookSecret: "crm-secret"},
		config.SocialConfig{SharedSecret: "social-secret", VerifyToken: "verify-token"},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	return &dispatchFixture{dispatcher: d, events: events, local: local, stripe: stripeGW}
}

func TestDispatch_UnsupportedProvider(t *testing.T) {
	f := newDispatchFixture()

	_, err := f.dispatcher.Dispatch(context.Background(), "paypal", http.Header{}, []byte(`{}`))
	require.Error(t, err)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeUnsupportedProvider, svcErr.Code)
}

func TestDispatch_BadSignatureFailsClosed(t *testing.T) {
	f := newDispatchFixture()

	headers := http.Header{}
	headers.Set("X-Signature", "not-a-real-signature")

	_, err := f.dispatcher.Dispatch(context.Background(), "local", headers, []byte(`{"id":"evt_1"}`))
	require.Error(t, err)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeSignatureInvalid, svcErr.Code)
	assert.Equal(t, http.StatusForbidden, svcErr.HTTPStatus)
	assert.Equal(t, 0, f.local.processCalls, "no side effects before verification")
	assert.Equal(t, 1, f.events.Recorded(), "rejected delivery is still audited")
}

func TestDispatch_MissingSignatureHeaderRejected(t *testing.T) {
	f := newDispatchFixture()

	_, err := f.dispatcher.Dispatch(context.Background(), "local", http.Header{}, []byte(`{}`))
	require.Error(t, err)
	svcErr, _ := application.IsServiceError(err)
	assert.Equal(t, application.ErrCodeSignatureInvalid, svcErr.Code)
}

func TestDispatch_LocalDelivery(t *testing.T) {
	f := newDispatchFixture()
	matched, _ := domain.NewPayment(domain.ProviderLocal, 5000, "USD")
	f.local.processFn = func(ctx context.Context, body []byte) (*domain.Payment, error) {
		return matched, nil
	}

	body := []byte(`{"id":"evt_1","external_id":"loc_abc","status":"succeeded"}`)
	headers := http.Header{}
	headers.Set("X-Signature", signature.SignBase64HMAC("local-secret", body))

	result, err := f.dispatcher.Dispatch(context.Background(), "local", headers, body)
	require.NoError(t, err)

	assert.False(t, result.Duplicate)
	require.NotNil(t, result.PaymentID)
	assert.Equal(t, matched.ID, *result.PaymentID)
	assert.Equal(t, 1, f.local.processCalls)
	assert.Equal(t, body, f.local.lastBody, "gateway receives the exact raw bytes")
	assert.Equal(t, 1, f.events.ProcessedCalls)
}

func TestDispatch_DuplicateDeliveryShortCircuits(t *testing.T) {
	f := newDispatchFixture()

	body := []byte(`{"id":"evt_dup","external_id":"loc_abc"}`)
	headers := http.Header{}
	headers.Set("X-Signature", signature.SignBase64HMAC("local-secret", body))

	first, err := f.dispatcher.Dispatch(context.Background(), "local", headers, body)
	require.NoError(t, err)
	second, err := f.dispatcher.Dispatch(context.Background(), "local", headers, body)
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, 1, f.local.processCalls, "duplicate never reaches the gateway")
}

func TestDispatch_StripeTimestampedSignature(t *testing.T) {
	f := newDispatchFixture()

	body := []byte(`{"id":"evt_s1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)
	headers := http.Header{}
	headers.Set("Stripe-Signature", signature.SignTimestamped("whsec_test", body, time.Now()))

	_, err := f.dispatcher.Dispatch(context.Background(), "stripe", headers, body)
	require.NoError(t, err)
	assert.Equal(t, 1, f.stripe.processCalls)
}

func TestDispatch_StripeStaleTimestampRejected(t *testing.T) {
	f := newDispatchFixture()

	body := []byte(`{"id":"evt_s2"}`)
	headers := http.Header{}
	headers.Set("Stripe-Signature", signature.SignTimestamped("whsec_test", body, time.Now().Add(-10*time.Minute)))

	_, err := f.dispatcher.Dispatch(context.Background(), "stripe", headers, body)
	require.Error(t, err)
	svcErr, _ := application.IsServiceError(err)
	assert.Equal(t, application.ErrCodeSignatureInvalid, svcErr.Code)
}

func TestDispatch_CRMRecordsWithoutGateway(t *testing.T) {
	f := newDispatchFixture()

	body := []byte(`{"event_id":"crm_9","event_type":"contact.updated"}`)
	headers := http.Header{}
	headers.Set("X-Hub-Signature-256", signature.SignHexHMAC("crm-secret", body))

	result, err := f.dispatcher.Dispatch(context.Background(), "crm", headers, body)
	require.NoError(t, err)

	assert.False(t, result.Duplicate)
	assert.Nil(t, result.PaymentID, "integration events never resolve a payment")
	assert.Equal(t, 0, f.local.processCalls)
	assert.Equal(t, 0, f.stripe.processCalls)
	assert.Equal(t, 1, f.events.ProcessedCalls)
}

func TestDispatch_SocialSharedSecret(t *testing.T) {
	f := newDispatchFixture()

	body := []byte(`{"id":"soc_1"}`)
	headers := http.Header{}
	headers.Set("X-Shared-Secret", "social-secret")

	_, err := f.dispatcher.Dispatch(context.Background(), "social", headers, body)
	require.NoError(t, err)

	headers.Set("X-Shared-Secret", "wrong")
	_, err = f.dispatcher.Dispatch(context.Background(), "social", headers, body)
	require.Error(t, err)
}

func TestDispatch_GatewayFailureMarksEvent(t *testing.T) {
	f := newDispatchFixture()
	f.local.processFn = func(ctx context.Context, body []byte) (*domain.Payment, error) {
		return nil, errors.New("db down")
	}

	body := []byte(`{"id":"evt_fail"}`)
	headers := http.Header{}
	headers.Set("X-Signature", signature.SignBase64HMAC("local-secret", body))

	_, err := f.dispatcher.Dispatch(context.Background(), "local", headers, body)
	require.Error(t, err)
	assert.Equal(t, 1, f.events.FailedCalls)
	assert.Contains(t, f.events.LastFailReason, "db down")
}

func TestVerifyHandshake(t *testing.T) {
	f := newDispatchFixture()

	challenge, err := f.dispatcher.VerifyHandshake("social", "subscribe", "verify-token", "12345")
	require.NoError(t, err)
	assert.Equal(t, "12345", challenge)

	_, err = f.dispatcher.VerifyHandshake("social", "subscribe", "wrong-token", "12345")
	require.Error(t, err)

	_, err = f.dispatcher.VerifyHandshake("social", "unsubscribe", "verify-token", "12345")
	require.Error(t, err)

	_, err = f.dispatcher.VerifyHandshake("crm", "subscribe", "verify-token", "12345")
	require.Error(t, err)
}
