package stripe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dispatchly/payments/internal/config"
)

// RetryClient decorates API with exponential backoff. Only whitelisted
// failure kinds (connection errors, timeouts, rate limits, provider 5xx)
// are retried; everything else surfaces immediately.
type RetryClient struct {
	inner        API
	baseInterval time.Duration
	multiplier   float64
	maxInterval  time.Duration
	maxAttempts  int
	logger       *slog.Logger
}

func NewRetryClient(inner API, cfg config.RetryConfig, logger *slog.Logger) API {
	return &RetryClient{
		inner:        inner,
		baseInterval: cfg.BaseInterval,
		multiplier:   cfg.Multiplier,
		maxInterval:  cfg.MaxInterval,
		maxAttempts:  cfg.MaxAttempts,
		logger:       logger,
	}
}

func (r *RetryClient) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	return retry(r, ctx, "create_checkout_session", func(ctx context.Context) (*CheckoutSession, error) {
		return r.inner.CreateCheckoutSession(ctx, req)
	})
}

func (r *RetryClient) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	return retry(r, ctx, "get_checkout_session", func(ctx context.Context) (*CheckoutSession, error) {
		return r.inner.GetCheckoutSession(ctx, sessionID)
	})
}

func (r *RetryClient) GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	return retry(r, ctx, "get_payment_intent", func(ctx context.Context) (*PaymentIntent, error) {
		return r.inner.GetPaymentIntent(ctx, intentID)
	})
}

func (r *RetryClient) CapturePaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	return retry(r, ctx, "capture_payment_intent", func(ctx context.Context) (*PaymentIntent, error) {
		return r.inner.CapturePaymentIntent(ctx, intentID)
	})
}

func (r *RetryClient) CancelPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	return retry(r, ctx, "cancel_payment_intent", func(ctx context.Context) (*PaymentIntent, error) {
		return r.inner.CancelPaymentIntent(ctx, intentID)
	})
}

func (r *RetryClient) CreateRefund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	return retry(r, ctx, "create_refund", func(ctx context.Context) (*RefundResponse, error) {
		return r.inner.CreateRefund(ctx, req)
	})
}

// Generic retry helper
func retry[T any](r *RetryClient, ctx context.Context, op string, operation func(ctx context.Context) (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := operation(ctx)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if attempt < r.maxAttempts-1 {
			interval := r.backoff(attempt)
			r.logger.Warn("provider call failed, retrying",
				"op", op,
				"attempt", attempt+1,
				"next_interval", interval,
				"error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}
	}

	return nil, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

// Helper: to check retryable errors
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// Backoff calculation with exponential delay capped at maxInterval
func (r *RetryClient) backoff(attempt int) time.Duration {
	interval := r.baseInterval
	for i := 0; i < attempt; i++ {
		interval = time.Duration(float64(interval) * r.multiplier)
		if interval >= r.maxInterval {
			return r.maxInterval
		}
	}
	return interval
}
