package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dispatchly/payments/internal/application"
	"github.com/dispatchly/payments/internal/config"
	"github.com/dispatchly/payments/internal/domain"
	"github.com/dispatchly/payments/internal/infrastructure/stripe"
	"github.com/dispatchly/payments/internal/materializer"
)

// simulatedSessionPrefix marks checkout sessions fabricated for offline
// development when no provider credentials are configured.
const simulatedSessionPrefix = "cs_sim_"

// StripeGateway drives the external checkout provider: remote session
// creation, webhook-driven settlement, refunds and reconciliation pulls.
type StripeGateway struct {
	api          stripe.API
	payments     application.PaymentRepository
	refunds      application.RefundRepository
	materializer *materializer.Materializer
	cfg          config.StripeConfig
	production   bool
	logger       *slog.Logger
}

func NewStripeGateway(
	api stripe.API,
	payments application.PaymentRepository,
	refunds application.RefundRepository,
	m *materializer.Materializer,
	cfg config.StripeConfig,
	production bool,
	logger *slog.Logger,
) *StripeGateway {
	return &StripeGateway{
		api:          api,
		payments:     payments,
		refunds:      refunds,
		materializer: m,
		cfg:          cfg,
		production:   production,
		logger:       logger,
	}
}

func (g *StripeGateway) CreatePayment(ctx context.Context, params CreateParams) (*domain.Payment, error) {
	payment, err := domain.NewPayment(domain.ProviderStripe, params.AmountCents, params.Currency)
	if err != nil {
		return nil, err
	}
	payment.Metadata = params.Metadata
	payment.TaskID = params.TaskID
	payment.PayableType = params.PayableType
	payment.PayableID = params.PayableID

	// Already-initiated path: metadata carrying a provider identifier means
	// a checkout was created earlier. Reuse it, no network call.
	switch {
	case params.Metadata.CheckoutSessionID != "":
		sid := params.Metadata.CheckoutSessionID
		payment.ExternalID = sid
		payment.CheckoutSessionID = &sid
		if params.Metadata.PaymentIntentID != "" {
			pi := params.Metadata.PaymentIntentID
			payment.PaymentIntentID = &pi
		}
	case params.Metadata.PaymentIntentID != "":
		pi := params.Metadata.PaymentIntentID
		payment.ExternalID = pi
		payment.PaymentIntentID = &pi
	default:
		if err := g.initiateCheckout(ctx, payment); err != nil {
			return nil, err
		}
	}

	if err := g.payments.Create(ctx, payment); err != nil {
		return nil, application.NewInternalError(err)
	}

	g.logger.Info("stripe payment created",
		"payment_id", payment.ID,
		"external_id", payment.ExternalID)

	return payment, nil
}

func (g *StripeGateway) initiateCheckout(ctx context.Context, payment *domain.Payment) error {
	// No credentials configured: offline dev/test runs against a
	// deterministic simulated session instead of the network. Rejected
	// credentials are a real misconfiguration and always propagate, as does
	// a blank key in production.
	if g.cfg.APIKey == "" && !g.production {
		sid := simulatedSessionPrefix + strings.ReplaceAll(payment.ID.String(), "-", "")
		payment.ExternalID = sid
		payment.CheckoutSessionID = &sid
		payment.PaymentURL = fmt.Sprintf("%s/simulated/%s", g.cfg.BaseURL, sid)
		g.logger.Warn("no provider credentials configured, using simulated checkout session",
			"payment_id", payment.ID,
			"external_id", sid)
		return nil
	}

	session, err := g.api.CreateCheckoutSession(ctx, stripe.CheckoutSessionRequest{
		AmountCents:       payment.AmountCents,
		Currency:          payment.Currency,
		ClientReferenceID: payment.ID.String(),
		SuccessURL:        g.cfg.SuccessURL,
		CancelURL:         g.cfg.CancelURL,
	})
	if err != nil {
		return err
	}

	payment.ExternalID = session.ID
	payment.CheckoutSessionID = &session.ID
	if session.PaymentIntent != "" {
		pi := session.PaymentIntent
		payment.PaymentIntentID = &pi
	}
	payment.PaymentURL = session.URL
	return nil
}

func (g *StripeGateway) ProcessWebhook(ctx context.Context, body []byte) (*domain.Payment, error) {
	var event stripe.Event
	if err := json.Unmarshal(body, &event); err != nil || event.Type == "" {
		g.logger.Debug("dropping unparsable stripe event")
		return nil, nil
	}

	var obj stripe.EventObject
	if len(event.Data.Object) > 0 {
		if err := json.Unmarshal(event.Data.Object, &obj); err != nil {
			obj = stripe.EventObject{}
		}
		obj.Raw = event.Data.Object
	}

	payment, err := g.resolvePayment(ctx, obj)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		g.logger.Debug("dropping stripe event for unknown payment",
			"event_id", event.ID,
			"event_type", event.Type)
		return nil, nil
	}

	idsLearned := g.learnProviderIDs(payment, obj)

	switch event.Type {
	case "charge.refunded", "charge.refund.updated":
		return payment, g.applyRefundEvent(ctx, payment, event.Type, obj)
	}

	target, ok := transitionFor(event.Type)
	if !ok {
		// Forward compatibility: new event types are accepted and logged,
		// never failed loudly.
		g.logger.Info("unhandled stripe event type",
			"event_type", event.Type,
			"payment_id", payment.ID)
		if idsLearned {
			if err := g.payments.Update(ctx, payment); err != nil {
				return nil, application.NewInternalError(err)
			}
		}
		return payment, nil
	}

	changed, err := payment.ApplyStatus(target)
	if err != nil {
		g.logger.Warn("ignoring stripe webhook transition",
			"payment_id", payment.ID,
			"from", payment.Status,
			"to", target,
			"event_type", event.Type,
			"error", err)
		return payment, nil
	}

	if changed || idsLearned {
		if err := g.payments.Update(ctx, payment); err != nil {
			return nil, application.NewInternalError(err)
		}
	}

	if changed && target == domain.StatusSucceeded {
		g.materializer.Materialize(ctx, payment)
	}

	return payment, nil
}

// resolvePayment tries each identifier the event may carry, most specific
// first: payment intent, checkout session, object id, then the refund's
// parent charge. First non-empty match wins.
func (g *StripeGateway) resolvePayment(ctx context.Context, obj stripe.EventObject) (*domain.Payment, error) {
	var candidates []string
	for _, id := range []string{obj.PaymentIntent, obj.CheckoutSession, obj.ID, obj.Charge} {
		if id != "" {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	payment, err := g.payments.FindByExternalID(ctx, domain.ProviderStripe, candidates)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodePaymentNotFound) {
			return nil, nil
		}
		return nil, application.NewInternalError(err)
	}
	return payment, nil
}

// learnProviderIDs backfills ids the local record has not seen yet. The
// object id prefix tells us which column it belongs to.
func (g *StripeGateway) learnProviderIDs(payment *domain.Payment, obj stripe.EventObject) bool {
	learned := false
	if obj.PaymentIntent != "" && payment.PaymentIntentID == nil {
		pi := obj.PaymentIntent
		payment.PaymentIntentID = &pi
		learned = true
	}
	switch {
	case strings.HasPrefix(obj.ID, "ch_") && payment.ChargeID == nil:
		ch := obj.ID
		payment.ChargeID = &ch
		learned = true
	case strings.HasPrefix(obj.ID, "pi_") && payment.PaymentIntentID == nil:
		pi := obj.ID
		payment.PaymentIntentID = &pi
		learned = true
	case strings.HasPrefix(obj.ID, "cs_") && payment.CheckoutSessionID == nil:
		cs := obj.ID
		payment.CheckoutSessionID = &cs
		learned = true
	}
	if obj.Charge != "" && payment.ChargeID == nil {
		ch := obj.Charge
		payment.ChargeID = &ch
		learned = true
	}
	return learned
}

// transitionFor maps a provider event type onto the local status enum.
// Unlisted types produce no transition.
func transitionFor(eventType string) (domain.GatewayStatus, bool) {
	switch eventType {
	case "payment_intent.succeeded",
		"checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"charge.succeeded":
		return domain.StatusSucceeded, true
	case "payment_intent.payment_failed",
		"checkout.session.async_payment_failed",
		"charge.failed":
		return domain.StatusFailed, true
	case "payment_intent.processing":
		return domain.StatusPending, true
	case "payment_intent.canceled",
		"checkout.session.expired":
		return domain.StatusCanceled, true
	default:
		return "", false
	}
}

// applyRefundEvent upserts the refund rows an event carries and moves the
// payment to refunded. Duplicate deliveries of the same refund_id update the
// existing row instead of double-accounting.
func (g *StripeGateway) applyRefundEvent(ctx context.Context, payment *domain.Payment, eventType string, obj stripe.EventObject) error {
	refunds := obj.Refunds.Data
	if len(refunds) == 0 && strings.HasPrefix(obj.ID, "re_") {
		// charge.refund.updated wraps the refund object itself.
		refunds = []stripe.RefundResponse{{
			ID:                 obj.ID,
			Status:             obj.Status,
			AmountCents:        obj.AmountCents,
			Currency:           obj.Currency,
			Charge:             obj.Charge,
			BalanceTransaction: obj.BalanceTransaction,
		}}
	}

	for _, r := range refunds {
		refund, err := domain.NewRefund(payment.ID, domain.ProviderStripe, r.ID, r.AmountCents, orDefault(r.Currency, payment.Currency))
		if err != nil {
			g.logger.Error("skipping malformed refund in event",
				"payment_id", payment.ID,
				"refund_id", r.ID,
				"error", err)
			continue
		}
		refund.Status = r.Status
		refund.Reason = obj.Reason
		if r.BalanceTransaction != "" {
			bt := r.BalanceTransaction
			refund.BalanceTransactionID = &bt
		}
		refund.Raw = obj.Raw
		refund.OccurredAt = time.Now().UTC()

		if err := g.refunds.Upsert(ctx, refund); err != nil {
			return application.NewInternalError(err)
		}
	}

	changed, err := payment.ApplyStatus(domain.StatusRefunded)
	if err != nil {
		g.logger.Warn("ignoring refund transition",
			"payment_id", payment.ID,
			"from", payment.Status,
			"event_type", eventType,
			"error", err)
		return nil
	}
	if changed {
		if err := g.payments.Update(ctx, payment); err != nil {
			return application.NewInternalError(err)
		}
	}
	return nil
}

func (g *StripeGateway) Refund(ctx context.Context, payment *domain.Payment, amountCents *int64, reason string) (*domain.Refund, error) {
	// The local transition is validated up front: once the provider has
	// executed a refund there is no way back, so a payment that cannot be
	// moved to refunded must never reach the network call.
	if err := payment.CanApply(domain.StatusRefunded); err != nil {
		return nil, err
	}

	req := stripe.RefundRequest{Reason: reason}
	switch {
	case payment.ChargeID != nil:
		req.ChargeID = *payment.ChargeID
	case payment.PaymentIntentID != nil:
		req.PaymentIntent = *payment.PaymentIntentID
	default:
		return nil, domain.NewMissingProviderIDError("charge_id or payment_intent_id")
	}
	if amountCents != nil {
		req.AmountCents = *amountCents
	}

	resp, err := g.api.CreateRefund(ctx, req)
	if err != nil {
		return nil, err
	}

	refund, err := domain.NewRefund(payment.ID, domain.ProviderStripe, resp.ID, resp.AmountCents, orDefault(resp.Currency, payment.Currency))
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	refund.Status = resp.Status
	refund.Reason = reason
	if resp.BalanceTransaction != "" {
		bt := resp.BalanceTransaction
		refund.BalanceTransactionID = &bt
	}
	refund.Raw = resp.Raw
	refund.OccurredAt = time.Now().UTC()

	if _, err := payment.ApplyStatus(domain.StatusRefunded); err != nil {
		return nil, err
	}

	if err := g.refunds.Upsert(ctx, refund); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := g.payments.Update(ctx, payment); err != nil {
		return nil, application.NewInternalError(err)
	}

	return refund, nil
}

func (g *StripeGateway) Capture(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	if payment.PaymentIntentID == nil {
		return nil, domain.NewMissingProviderIDError("payment_intent_id")
	}

	intent, err := g.api.CapturePaymentIntent(ctx, *payment.PaymentIntentID)
	if err != nil {
		return nil, err
	}

	return g.applyRemoteStatus(ctx, payment, intent.Status)
}

func (g *StripeGateway) Cancel(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	if payment.PaymentIntentID == nil {
		return nil, domain.NewMissingProviderIDError("payment_intent_id")
	}

	if _, err := g.api.CancelPaymentIntent(ctx, *payment.PaymentIntentID); err != nil {
		return nil, err
	}

	if _, err := payment.ApplyStatus(domain.StatusCanceled); err != nil {
		return nil, err
	}
	if err := g.payments.Update(ctx, payment); err != nil {
		return nil, application.NewInternalError(err)
	}
	return payment, nil
}

// Sync pulls remote truth and overwrites local state through the same
// monotonic transition rules. Used by the periodic sweep to correct any
// missed webhook.
func (g *StripeGateway) Sync(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	if strings.HasPrefix(payment.ExternalID, simulatedSessionPrefix) {
		return payment, nil
	}

	var remoteStatus string
	switch {
	case payment.CheckoutSessionID != nil:
		session, err := g.api.GetCheckoutSession(ctx, *payment.CheckoutSessionID)
		if err != nil {
			return nil, err
		}
		if session.PaymentIntent != "" && payment.PaymentIntentID == nil {
			pi := session.PaymentIntent
			payment.PaymentIntentID = &pi
		}
		remoteStatus = session.PaymentStatus
		if session.Status == "expired" {
			remoteStatus = "expired"
		}
	case payment.PaymentIntentID != nil:
		intent, err := g.api.GetPaymentIntent(ctx, *payment.PaymentIntentID)
		if err != nil {
			return nil, err
		}
		remoteStatus = intent.Status
	default:
		return nil, domain.NewMissingProviderIDError("checkout_session_id or payment_intent_id")
	}

	return g.applyRemoteStatus(ctx, payment, remoteStatus)
}

func (g *StripeGateway) applyRemoteStatus(ctx context.Context, payment *domain.Payment, remote string) (*domain.Payment, error) {
	target, ok := mapRemoteStatus(remote)
	if !ok {
		g.logger.Info("unmapped remote status", "payment_id", payment.ID, "remote_status", remote)
		return payment, nil
	}

	changed, err := payment.ApplyStatus(target)
	if err != nil {
		// Remote truth cannot move a terminal payment backwards.
		g.logger.Warn("ignoring remote status during sync",
			"payment_id", payment.ID,
			"from", payment.Status,
			"to", target,
			"error", err)
		return payment, nil
	}
	if !changed {
		return payment, nil
	}

	if err := g.payments.Update(ctx, payment); err != nil {
		return nil, application.NewInternalError(err)
	}

	if target == domain.StatusSucceeded {
		g.materializer.Materialize(ctx, payment)
	}
	return payment, nil
}

func mapRemoteStatus(s string) (domain.GatewayStatus, bool) {
	switch s {
	case "succeeded", "paid", "complete":
		return domain.StatusSucceeded, true
	case "canceled", "expired":
		return domain.StatusCanceled, true
	case "processing", "unpaid", "open",
		"requires_payment_method", "requires_confirmation",
		"requires_action", "requires_capture":
		return domain.StatusPending, true
	default:
		return "", false
	}
}

func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
