// Package webhook routes inbound provider deliveries: signature verification
// over the raw body, idempotent event recording, then gateway dispatch.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dispatchly/payments/internal/application"
	"github.com/dispatchly/payments/internal/config"
	"github.com/dispatchly/payments/internal/domain"
	"github.com/dispatchly/payments/internal/gateway"
	"github.com/dispatchly/payments/internal/signature"
)

// Integration-only providers: deliveries are verified and recorded but no
// payment gateway consumes them.
const (
	ProviderCRM    = "crm"
	ProviderSocial = "social"
)

var deliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "payments_webhook_deliveries_total",
		Help: "Webhook deliveries by provider and outcome.",
	},
	[]string{"provider", "outcome"},
)

// Result is what a successful dispatch reports back to the HTTP layer.
type Result struct {
	EventID uuid.UUID
	// PaymentID is set when the delivery resolved to a payment; nil for
	// integration-only providers and unmatched settlement events.
	PaymentID *uuid.UUID
	// Duplicate means an event with the same (provider, external_id) was
	// already recorded; the delivery was acknowledged without side effects.
	Duplicate bool
}

// route binds a provider name to its verification scheme and payload shape.
type route struct {
	verify     func(headers http.Header, body []byte) error
	hasGateway bool
}

// Dispatcher is the single entry point for every inbound webhook. It owns the
// raw request body: signature verification always runs over the exact bytes
// received, before any parsing or persistence.
type Dispatcher struct {
	registry  *gateway.Registry
	events    application.EventRepository
	routes    map[string]route
	social    config.SocialConfig
	tolerance time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func NewDispatcher(
	registry *gateway.Registry,
	events application.EventRepository,
	local config.LocalConfig,
	stripe config.StripeConfig,
	crm config.CRMConfig,
	social config.SocialConfig,
	logger *slog.Logger,
) *Dispatcher {
	d := &Dispatcher{
		registry:  registry,
		events:    events,
		social:    social,
		tolerance: signature.DefaultTolerance,
		now:       time.Now,
		logger:    logger,
	}

	d.routes = map[string]route{
		string(domain.ProviderLocal): {
			hasGateway: true,
			verify: func(h http.Header, body []byte) error {
				if !signature.VerifyBase64HMAC(local.WebhookSecret, h.Get("X-Signature"), body) {
					return signature.ErrNoMatchingSignature
				}
				return nil
			},
		},
		string(domain.ProviderStripe): {
			hasGateway: true,
			verify: func(h http.Header, body []byte) error {
				return signature.VerifyTimestamped(stripe.WebhookSecret, h.Get("Stripe-Signature"), body, d.now(), d.tolerance)
			},
		},
		ProviderCRM: {
			verify: func(h http.Header, body []byte) error {
				if !signature.VerifyHexHMAC(crm.WebhookSecret, h.Get("X-Hub-Signature-256"), body) {
					return signature.ErrNoMatchingSignature
				}
				return nil
			},
		},
		ProviderSocial: {
			verify: func(h http.Header, body []byte) error {
				if !signature.VerifySharedSecret(social.SharedSecret, h.Get("X-Shared-Secret")) {
					return signature.ErrNoMatchingSignature
				}
				return nil
			},
		},
	}

	return d
}

// Dispatch verifies, records and processes one delivery. The error, when
// non-nil, is a ServiceError carrying the HTTP status the handler should
// return: 403 for a bad signature, 422 for an unknown provider.
func (d *Dispatcher) Dispatch(ctx context.Context, provider string, headers http.Header, body []byte) (*Result, error) {
	r, ok := d.routes[provider]
	if !ok {
		deliveriesTotal.WithLabelValues(provider, "unsupported").Inc()
		return nil, application.NewUnsupportedProviderError(provider)
	}

	if err := r.verify(headers, body); err != nil {
		deliveriesTotal.WithLabelValues(provider, "rejected").Inc()
		d.auditRejected(ctx, provider, headers, body)
		d.logger.Warn("webhook signature rejected",
			"provider", provider,
			"error", err)
		return nil, application.NewSignatureInvalidError(err)
	}

	externalID, eventType := extractEnvelope(body)

	event := domain.NewIntegrationEvent(provider, externalID, eventType, headers, body, true)
	created, err := d.events.Record(ctx, event)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if !created {
		deliveriesTotal.WithLabelValues(provider, "duplicate").Inc()
		d.logger.Info("duplicate webhook delivery acknowledged",
			"provider", provider,
			"external_id", deref(externalID))
		return &Result{EventID: event.ID, Duplicate: true}, nil
	}

	paymentID, err := d.process(ctx, provider, r, event)
	if err != nil {
		deliveriesTotal.WithLabelValues(provider, "failed").Inc()
		if markErr := d.events.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
			d.logger.Error("failed to mark event failed", "event_id", event.ID, "error", markErr)
		}
		return nil, err
	}

	deliveriesTotal.WithLabelValues(provider, "processed").Inc()

	if err := d.events.MarkProcessed(ctx, event.ID); err != nil {
		d.logger.Error("failed to mark event processed", "event_id", event.ID, "error", err)
	}

	return &Result{EventID: event.ID, PaymentID: paymentID}, nil
}

func (d *Dispatcher) process(ctx context.Context, provider string, r route, event *domain.IntegrationEvent) (*uuid.UUID, error) {
	if !r.hasGateway {
		// Integration-only providers: the recorded event is the outcome.
		d.logger.Info("integration event recorded",
			"provider", provider,
			"event_type", event.EventType)
		return nil, nil
	}

	gw, err := d.registry.For(domain.Provider(provider))
	if err != nil {
		return nil, err
	}

	payment, err := gw.ProcessWebhook(ctx, event.Body)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		d.logger.Debug("webhook resolved no payment", "provider", provider, "event_type", event.EventType)
		return nil, nil
	}

	d.logger.Info("webhook processed",
		"provider", provider,
		"event_type", event.EventType,
		"payment_id", payment.ID,
		"status", payment.Status)
	return &payment.ID, nil
}

// VerifyHandshake answers the social provider's GET subscription challenge:
// mode must be "subscribe" and the token must match the configured one, in
// which case the raw challenge is echoed back.
func (d *Dispatcher) VerifyHandshake(provider, mode, token, challenge string) (string, error) {
	if provider != ProviderSocial {
		return "", application.NewUnsupportedProviderError(provider)
	}
	if mode != "subscribe" || d.social.VerifyToken == "" || !signature.VerifySharedSecret(d.social.VerifyToken, token) {
		return "", application.NewSignatureInvalidError(fmt.Errorf("handshake token rejected"))
	}
	return challenge, nil
}

// auditRejected records a signature failure for operator visibility. The row
// never carries an external id, so it cannot consume the dedup key of a later
// legitimate delivery.
func (d *Dispatcher) auditRejected(ctx context.Context, provider string, headers http.Header, body []byte) {
	event := domain.NewIntegrationEvent(provider, nil, "", headers, body, false)
	event.Status = domain.EventFailed
	if _, err := d.events.Record(ctx, event); err != nil {
		d.logger.Error("failed to record rejected delivery", "provider", provider, "error", err)
	}
}

// eventEnvelope covers the id/type fields shared by every provider payload we
// accept. Unknown shapes simply yield no external id and skip dedup.
type eventEnvelope struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	EventType string `json:"event_type"`
}

func extractEnvelope(body []byte) (*string, string) {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ""
	}

	id := env.ID
	if id == "" {
		id = env.EventID
	}
	eventType := env.Type
	if eventType == "" {
		eventType = env.EventType
	}

	if id == "" {
		return nil, eventType
	}
	return &id, eventType
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
