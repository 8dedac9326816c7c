package stripe

import (
	"context"
	"sync"
)

// MockAPI implements API for tests. Unset Fn fields fail loudly via nil
// dereference, so tests only stub what they expect to be called.
type MockAPI struct {
	mu sync.Mutex

	CreateCheckoutSessionFn func(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	GetCheckoutSessionFn    func(ctx context.Context, sessionID string) (*CheckoutSession, error)
	GetPaymentIntentFn      func(ctx context.Context, intentID string) (*PaymentIntent, error)
	CapturePaymentIntentFn  func(ctx context.Context, intentID string) (*PaymentIntent, error)
	CancelPaymentIntentFn   func(ctx context.Context, intentID string) (*PaymentIntent, error)
	CreateRefundFn          func(ctx context.Context, req RefundRequest) (*RefundResponse, error)

	Calls map[string]int
}

func (m *MockAPI) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[op]++
}

func (m *MockAPI) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	m.record("create_checkout_session")
	return m.CreateCheckoutSessionFn(ctx, req)
}

func (m *MockAPI) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	m.record("get_checkout_session")
	return m.GetCheckoutSessionFn(ctx, sessionID)
}

func (m *MockAPI) GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	m.record("get_payment_intent")
	return m.GetPaymentIntentFn(ctx, intentID)
}

func (m *MockAPI) CapturePaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	m.record("capture_payment_intent")
	return m.CapturePaymentIntentFn(ctx, intentID)
}

func (m *MockAPI) CancelPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	m.record("cancel_payment_intent")
	return m.CancelPaymentIntentFn(ctx, intentID)
}

func (m *MockAPI) CreateRefund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	m.record("create_refund")
	return m.CreateRefundFn(ctx, req)
}
