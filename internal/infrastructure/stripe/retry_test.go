package stripe

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchly/payments/internal/config"
)

func retryTestClient(inner API) API {
	return NewRetryClient(inner, config.RetryConfig{
		BaseInterval: time.Millisecond,
		Multiplier:   2,
		MaxInterval:  5 * time.Millisecond,
		MaxAttempts:  3,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRetryClient_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	mock := &MockAPI{
		GetPaymentIntentFn: func(ctx context.Context, intentID string) (*PaymentIntent, error) {
			attempts++
			if attempts < 3 {
				return nil, &APIError{Type: "api_error", StatusCode: 503}
			}
			return &PaymentIntent{ID: intentID, Status: "succeeded"}, nil
		},
	}

	intent, err := retryTestClient(mock).GetPaymentIntent(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", intent.Status)
	assert.Equal(t, 3, attempts)
}

func TestRetryClient_DoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	mock := &MockAPI{
		CreateRefundFn: func(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
			attempts++
			return nil, &APIError{Type: "invalid_request_error", StatusCode: 400}
		},
	}

	_, err := retryTestClient(mock).CreateRefund(context.Background(), RefundRequest{ChargeID: "ch_1"})
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "4xx must not be retried")
}

func TestRetryClient_RetriesRateLimits(t *testing.T) {
	attempts := 0
	mock := &MockAPI{
		GetCheckoutSessionFn: func(ctx context.Context, sessionID string) (*CheckoutSession, error) {
			attempts++
			return nil, &APIError{Type: "rate_limit_error", StatusCode: 429}
		},
	}

	_, err := retryTestClient(mock).GetCheckoutSession(context.Background(), "cs_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum retries exceeded")
	assert.Equal(t, 3, attempts)
}

func TestRetryClient_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mock := &MockAPI{
		GetPaymentIntentFn: func(ctx context.Context, intentID string) (*PaymentIntent, error) {
			cancel()
			return nil, &APIError{Type: "api_error", StatusCode: 500}
		},
	}

	_, err := retryTestClient(mock).GetPaymentIntent(ctx, "pi_1")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, mock.Calls["get_payment_intent"])
}

func TestAPIError_Classification(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 429}).Retryable())
	assert.True(t, (&APIError{StatusCode: 500}).Retryable())
	assert.True(t, (&APIError{StatusCode: 503}).Retryable())
	assert.False(t, (&APIError{StatusCode: 400}).Retryable())
	assert.False(t, (&APIError{StatusCode: 401}).Retryable())

	assert.True(t, (&APIError{StatusCode: 401}).IsAuthFailure())
	assert.True(t, (&APIError{StatusCode: 403}).IsAuthFailure())
	assert.False(t, (&APIError{StatusCode: 429}).IsAuthFailure())
}
