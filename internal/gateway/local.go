package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dispatchly/payments/internal/application"
	"github.com/dispatchly/payments/internal/config"
	"github.com/dispatchly/payments/internal/domain"
	"github.com/dispatchly/payments/internal/materializer"
)

const localExternalIDPrefix = "loc_"

// LocalGateway simulates a payment provider for internal and manual flows.
// Synchronous, no external network.
type LocalGateway struct {
	payments     application.PaymentRepository
	refunds      application.RefundRepository
	remarks      application.RemarkStore
	materializer *materializer.Materializer
	cfg          config.LocalConfig
	logger       *slog.Logger
}

func NewLocalGateway(
	payments application.PaymentRepository,
	refunds application.RefundRepository,
	remarks application.RemarkStore,
	m *materializer.Materializer,
	cfg config.LocalConfig,
	logger *slog.Logger,
) *LocalGateway {
	return &LocalGateway{
		payments:     payments,
		refunds:      refunds,
		remarks:      remarks,
		materializer: m,
		cfg:          cfg,
		logger:       logger,
	}
}

func (g *LocalGateway) CreatePayment(ctx context.Context, params CreateParams) (*domain.Payment, error) {
	payment, err := domain.NewPayment(domain.ProviderLocal, params.AmountCents, params.Currency)
	if err != nil {
		return nil, err
	}

	payment.ExternalID = localExternalIDPrefix + randomToken()
	payment.PaymentURL = fmt.Sprintf("%s/%s", g.cfg.PayURLBase, payment.ExternalID)
	payment.Metadata = params.Metadata
	payment.TaskID = params.TaskID
	payment.PayableType = params.PayableType
	payment.PayableID = params.PayableID

	if err := g.payments.Create(ctx, payment); err != nil {
		return nil, application.NewInternalError(err)
	}

	g.logger.Info("local payment created",
		"payment_id", payment.ID,
		"external_id", payment.ExternalID)

	return payment, nil
}

// localWebhookPayload is the body of a signed local webhook. Status defaults
// to succeeded when absent.
type localWebhookPayload struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

func (g *LocalGateway) ProcessWebhook(ctx context.Context, body []byte) (*domain.Payment, error) {
	var payload localWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		payload = localWebhookPayload{}
	}

	externalID := payload.ExternalID
	if externalID == "" {
		externalID = payload.ID
	}
	if externalID == "" {
		return nil, nil
	}

	payment, err := g.payments.FindByExternalID(ctx, domain.ProviderLocal, []string{externalID})
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodePaymentNotFound) {
			// Unknown webhooks are dropped, never turned into payments.
			g.logger.Debug("dropping webhook for unknown local payment", "external_id", externalID)
			return nil, nil
		}
		return nil, application.NewInternalError(err)
	}

	status := domain.GatewayStatus(payload.Status)
	if payload.Status == "" {
		status = domain.StatusSucceeded
	}

	changed, err := payment.ApplyStatus(status)
	if err != nil {
		g.logger.Warn("ignoring local webhook transition",
			"payment_id", payment.ID,
			"from", payment.Status,
			"to", status,
			"error", err)
		return payment, nil
	}
	if !changed {
		return payment, nil
	}

	if err := g.payments.Update(ctx, payment); err != nil {
		return nil, application.NewInternalError(err)
	}

	if status == domain.StatusSucceeded {
		if err := g.remarks.AddRemark(ctx, payment.ID, "payment settled via local webhook"); err != nil {
			g.logger.Error("failed to add settlement remark", "payment_id", payment.ID, "error", err)
		}
		g.materializer.Materialize(ctx, payment)
	}

	return payment, nil
}

func (g *LocalGateway) Refund(ctx context.Context, payment *domain.Payment, amountCents *int64, reason string) (*domain.Refund, error) {
	amount := payment.AmountCents
	if amountCents != nil {
		amount = *amountCents
	}

	refund, err := domain.NewRefund(payment.ID, domain.ProviderLocal, localExternalIDPrefix+"re_"+randomToken(), amount, payment.Currency)
	if err != nil {
		return nil, err
	}
	refund.Reason = reason
	refund.Status = "succeeded"
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

func (g *LocalGateway) Capture(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	return nil, application.NewActionNotSupportedError("capture", string(domain.ProviderLocal))
}

func (g *LocalGateway) Cancel(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	if _, err := payment.ApplyStatus(domain.StatusCanceled); err != nil {
		return nil, err
	}
	if err := g.payments.Update(ctx, payment); err != nil {
		return nil, application.NewInternalError(err)
	}
	return payment, nil
}

// Sync is a no-op for the local provider: there is no remote truth to pull.
func (g *LocalGateway) Sync(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	return payment, nil
}

func randomToken() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
