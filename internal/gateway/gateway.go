// Package gateway holds the provider-facing payment capability set and one
// implementation per provider.
package gateway

import (
	"context"

	"github.com/google/uuid"

	"github.com/dispatchly/payments/internal/application"
	"github.com/dispatchly/payments/internal/domain"
)

// CreateParams is the caller-supplied input to CreatePayment.
type CreateParams struct {
	AmountCents int64
	Currency    string
	TaskID      *uuid.UUID
	PayableType string
	PayableID   *uuid.UUID
	Metadata    domain.Metadata
}

// Gateway is the capability set every provider implements.
type Gateway interface {
	// CreatePayment persists a pending payment and, for network providers,
	// initiates the remote checkout.
	CreatePayment(ctx context.Context, params CreateParams) (*domain.Payment, error)

	// ProcessWebhook applies a signature-verified provider event. Returns
	// (nil, nil) when the event does not resolve to a known payment; unknown
	// webhooks are dropped, never materialized into new payments.
	ProcessWebhook(ctx context.Context, body []byte) (*domain.Payment, error)

	// Refund returns money against a settled payment. amountCents nil means
	// a full refund.
	Refund(ctx context.Context, payment *domain.Payment, amountCents *int64, reason string) (*domain.Refund, error)

	Capture(ctx context.Context, payment *domain.Payment) (*domain.Payment, error)
	Cancel(ctx context.Context, payment *domain.Payment) (*domain.Payment, error)

	// Sync reconciles the local record against remote truth. Idempotent
	// overwrite, not an increment: safe to race with in-flight webhooks.
	Sync(ctx context.Context, payment *domain.Payment) (*domain.Payment, error)
}

// Registry resolves the gateway for a provider. Construction enumerates the
// provider enum exhaustively, so an unhandled provider is a wiring bug caught
// at startup rather than per request.
type Registry struct {
	gateways map[domain.Provider]Gateway
}

func NewRegistry(local, stripe Gateway) *Registry {
	return &Registry{
		gateways: map[domain.Provider]Gateway{
			domain.ProviderLocal:  local,
			domain.ProviderStripe: stripe,
		},
	}
}

func (r *Registry) For(provider domain.Provider) (Gateway, error) {
	gw, ok := r.gateways[provider]
	if !ok {
		return nil, application.NewUnsupportedProviderError(string(provider))
	}
	return gw, nil
}
