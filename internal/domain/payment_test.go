package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayment(t *testing.T) {
	p, err := NewPayment(ProviderLocal, 2500, "USD")
	require.NoError(t, err)

	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, ProviderLocal, p.Provider)
	assert.Equal(t, int64(2500), p.AmountCents)
	assert.NotEqual(t, p.ID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestNewPayment_InvalidAmount(t *testing.T) {
	_, err := NewPayment(ProviderStripe, 0, "USD")
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrCodeInvalidAmount))

	_, err = NewPayment(ProviderStripe, -100, "USD")
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrCodeInvalidAmount))
}

func TestNewPayment_BadCurrency(t *testing.T) {
	_, err := NewPayment(ProviderStripe, 100, "US")
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrCodeMissingRequiredField))
}

func TestApplyStatus_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    GatewayStatus
		to      GatewayStatus
		changed bool
		wantErr bool
	}{
		{"pending to succeeded", StatusPending, StatusSucceeded, true, false},
		{"pending to failed", StatusPending, StatusFailed, true, false},
		{"pending to canceled", StatusPending, StatusCanceled, true, false},
		{"pending to refunded rejected", StatusPending, StatusRefunded, false, true},
		{"succeeded to refunded", StatusSucceeded, StatusRefunded, true, false},
		{"succeeded to failed rejected", StatusSucceeded, StatusFailed, false, true},
		{"succeeded to canceled rejected", StatusSucceeded, StatusCanceled, false, true},
		{"failed is terminal", StatusFailed, StatusSucceeded, false, true},
		{"canceled is terminal", StatusCanceled, StatusSucceeded, false, true},
		{"refunded is terminal", StatusRefunded, StatusPending, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPayment(ProviderLocal, 1000, "EUR")
			require.NoError(t, err)
			p.Status = tt.from

			changed, err := p.ApplyStatus(tt.to)
			assert.Equal(t, tt.changed, changed)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsErrorCode(err, ErrCodeInvalidTransition))
				assert.Equal(t, tt.from, p.Status)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.to, p.Status)
			}
		})
	}
}

func TestApplyStatus_SameStatusIsNoOp(t *testing.T) {
	p, err := NewPayment(ProviderStripe, 1000, "USD")
	require.NoError(t, err)

	for _, status := range []GatewayStatus{StatusPending, StatusSucceeded, StatusRefunded} {
		p.Status = status
		changed, err := p.ApplyStatus(status)
		require.NoError(t, err, "re-applying %s", status)
		assert.False(t, changed, "re-applying %s", status)
	}
}

func TestApplyStatus_SetsTimestamps(t *testing.T) {
	p, err := NewPayment(ProviderStripe, 1000, "USD")
	require.NoError(t, err)

	_, err = p.ApplyStatus(StatusSucceeded)
	require.NoError(t, err)
	require.NotNil(t, p.SucceededAt)

	_, err = p.ApplyStatus(StatusRefunded)
	require.NoError(t, err)
	require.NotNil(t, p.RefundedAt)
}

func TestIsTerminal(t *testing.T) {
	p, _ := NewPayment(ProviderLocal, 100, "USD")
	assert.False(t, p.IsTerminal())

	p.Status = StatusSucceeded
	assert.False(t, p.IsTerminal(), "succeeded can still refund")

	for _, status := range []GatewayStatus{StatusFailed, StatusCanceled, StatusRefunded} {
		p.Status = status
		assert.True(t, p.IsTerminal(), "%s", status)
	}
}

func TestExternalIDCandidates(t *testing.T) {
	p, _ := NewPayment(ProviderStripe, 100, "USD")
	p.ExternalID = "cs_123"
	cs := "cs_123"
	pi := "pi_456"
	p.CheckoutSessionID = &cs
	p.PaymentIntentID = &pi

	got := p.ExternalIDCandidates()
	assert.Equal(t, []string{"cs_123", "pi_456"}, got, "duplicates collapse, empty ids drop")
}

func TestParseProvider(t *testing.T) {
	for _, name := range []string{"local", "stripe"} {
		p, err := ParseProvider(name)
		require.NoError(t, err)
		assert.Equal(t, name, string(p))
	}

	_, err := ParseProvider("paypal")
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrCodeUnsupportedProvider))
}

func TestIsAllowedPayableType(t *testing.T) {
	assert.True(t, IsAllowedPayableType("task"))
	assert.True(t, IsAllowedPayableType("order"))
	assert.False(t, IsAllowedPayableType("invoice"))
	assert.False(t, IsAllowedPayableType(""))
}
