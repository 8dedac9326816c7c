// Package rest exposes the HTTP surface: payment management, webhook intake
// and health.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/dispatchly/payments/internal/application"
	"github.com/dispatchly/payments/internal/domain"
	"github.com/dispatchly/payments/internal/gateway"
	"github.com/dispatchly/payments/internal/webhook"
)

// maxWebhookBody bounds how much of a delivery we will read. Providers send
// kilobytes; anything past this is hostile.
const maxWebhookBody = 1 << 20

// Pinger is the health-check view of the database pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	registry   *gateway.Registry
	payments   application.PaymentRepository
	refunds    application.RefundRepository
	dispatcher *webhook.Dispatcher
	db         Pinger
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewHandlers(
	registry *gateway.Registry,
	payments application.PaymentRepository,
	refunds application.RefundRepository,
	dispatcher *webhook.Dispatcher,
	db Pinger,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		registry:   registry,
		payments:   payments,
		refunds:    refunds,
		dispatcher: dispatcher,
		db:         db,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Routes registers every endpoint on the mux.
func (h *Handlers) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /payments", h.CreatePayment)
	mux.HandleFunc("GET /payments/{id}", h.GetPayment)
	mux.HandleFunc("POST /payments/{id}/refund", h.RefundPayment)
	mux.HandleFunc("POST /payments/{id}/capture", h.CapturePayment)
	mux.HandleFunc("POST /payments/{id}/cancel", h.CancelPayment)
	mux.HandleFunc("POST /payments/{id}/sync", h.SyncPayment)
	mux.HandleFunc("POST /webhooks/{provider}", h.HandleWebhook)
	mux.HandleFunc("GET /webhooks/{provider}/verify", h.VerifyWebhook)
	mux.HandleFunc("GET /healthz", h.Healthz)
}

type CreatePaymentRequest struct {
	Provider    string          `json:"provider" validate:"required"`
	AmountCents int64           `json:"amount_cents" validate:"required,gt=0"`
	Currency    string          `json:"currency" validate:"required,len=3"`
	PayableType string          `json:"payable_type"`
	PayableID   *uuid.UUID      `json:"payable_id"`
	TaskID      *uuid.UUID      `json:"task_id"`
	Metadata    domain.Metadata `json:"metadata"`
}

func (h *Handlers) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, application.NewValidationError(err), h.logger)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteError(w, application.NewValidationError(err), h.logger)
		return
	}

	provider, err := domain.ParseProvider(req.Provider)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if req.PayableType != "" && !domain.IsAllowedPayableType(req.PayableType) {
		WriteError(w, domain.NewInvalidPayableTypeError(req.PayableType), h.logger)
		return
	}

	gw, err := h.registry.For(provider)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	payment, err := gw.CreatePayment(r.Context(), gateway.CreateParams{
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		TaskID:      req.TaskID,
		PayableType: req.PayableType,
		PayableID:   req.PayableID,
		Metadata:    req.Metadata,
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, ToPaymentResponse(payment, nil))
}

func (h *Handlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, ok := h.loadPayment(w, r)
	if !ok {
		return
	}

	refunds, err := h.refunds.ListByPayment(r.Context(), payment.ID)
	if err != nil {
		WriteError(w, application.NewInternalError(err), h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, ToPaymentResponse(payment, refunds))
}

type RefundRequest struct {
	// AmountCents nil means a full refund.
	AmountCents *int64 `json:"amount_cents" validate:"omitempty,gt=0"`
	Reason      string `json:"reason"`
}

func (h *Handlers) RefundPayment(w http.ResponseWriter, r *http.Request) {
	payment, ok := h.loadPayment(w, r)
	if !ok {
		return
	}

	var req RefundRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, application.NewValidationError(err), h.logger)
			return
		}
	}
	if err := h.validate.Struct(req); err != nil {
		WriteError(w, application.NewValidationError(err), h.logger)
		return
	}

	gw, err := h.registry.For(payment.Provider)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	refund, err := gw.Refund(r.Context(), payment, req.AmountCents, req.Reason)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, ToRefundResponse(refund))
}

func (h *Handlers) CapturePayment(w http.ResponseWriter, r *http.Request) {
	h.paymentAction(w, r, func(ctx context.Context, gw gateway.Gateway, p *domain.Payment) (*domain.Payment, error) {
		return gw.Capture(ctx, p)
	})
}

func (h *Handlers) CancelPayment(w http.ResponseWriter, r *http.Request) {
	h.paymentAction(w, r, func(ctx context.Context, gw gateway.Gateway, p *domain.Payment) (*domain.Payment, error) {
		return gw.Cancel(ctx, p)
	})
}

func (h *Handlers) SyncPayment(w http.ResponseWriter, r *http.Request) {
	h.paymentAction(w, r, func(ctx context.Context, gw gateway.Gateway, p *domain.Payment) (*domain.Payment, error) {
		return gw.Sync(ctx, p)
	})
}

func (h *Handlers) paymentAction(w http.ResponseWriter, r *http.Request, action func(context.Context, gateway.Gateway, *domain.Payment) (*domain.Payment, error)) {
	payment, ok := h.loadPayment(w, r)
	if !ok {
		return
	}

	gw, err := h.registry.For(payment.Provider)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	updated, err := action(r.Context(), gw, payment)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, ToPaymentResponse(updated, nil))
}

func (h *Handlers) loadPayment(w http.ResponseWriter, r *http.Request) (*domain.Payment, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, application.NewValidationError(fmt.Errorf("invalid payment id")), h.logger)
		return nil, false
	}

	payment, err := h.payments.FindByID(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return nil, false
	}
	return payment, true
}

type webhookAck struct {
	OK        bool       `json:"ok"`
	EventID   uuid.UUID  `json:"event_id"`
	PaymentID *uuid.UUID `json:"payment_id,omitempty"`
	Duplicate bool       `json:"duplicate,omitempty"`
}

// HandleWebhook is the single intake for provider deliveries. The body is
// read raw, exactly once, before anything else touches it: signature schemes
// sign bytes, not parsed JSON.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		WriteError(w, application.NewValidationError(fmt.Errorf("failed to read body")), h.logger)
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), r.PathValue("provider"), r.Header, body)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, webhookAck{
		OK:        true,
		EventID:   result.EventID,
		PaymentID: result.PaymentID,
		Duplicate: result.Duplicate,
	})
}

// VerifyWebhook answers the subscription handshake some providers perform
// before delivering events.
func (h *Handlers) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, err := h.dispatcher.VerifyHandshake(
		r.PathValue("provider"),
		q.Get("mode"),
		q.Get("verify_token"),
		q.Get("challenge"),
	)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, challenge)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
