package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/dispatchly/payments/internal/domain"
)

// toDomainPayment maps a db row to the domain entity.
func toDomainPayment(m PaymentModel) (*domain.Payment, error) {
	var meta domain.Metadata
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &meta); err != nil {
			return nil, fmt.Errorf("decode payment metadata: %w", err)
		}
	}

	return domain.Reconstitute(
		m.ID,
		domain.Provider(m.Provider),
		m.ExternalID,
		m.CheckoutSessionID,
		m.PaymentIntentID,
		m.ChargeID,
		m.AmountCents,
		m.Currency,
		domain.GatewayStatus(m.Status),
		m.PaymentURL,
		meta,
		m.PayableType,
		m.PayableID,
		m.TaskID,
		m.CreatedAt,
		m.UpdatedAt,
		m.SucceededAt,
		m.RefundedAt,
	), nil
}

// toPaymentModel maps the domain entity to a db row.
func toPaymentModel(p *domain.Payment) (*PaymentModel, error) {
	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode payment metadata: %w", err)
	}

	return &PaymentModel{
		ID:                p.ID,
		Provider:          string(p.Provider),
		ExternalID:        p.ExternalID,
		CheckoutSessionID: p.CheckoutSessionID,
		PaymentIntentID:   p.PaymentIntentID,
		ChargeID:          p.ChargeID,
		AmountCents:       p.AmountCents,
		Currency:          p.Currency,
		Status:            string(p.Status),
		PaymentURL:        p.PaymentURL,
		Metadata:          meta,
		PayableType:       p.PayableType,
		PayableID:         p.PayableID,
		TaskID:            p.TaskID,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		SucceededAt:       p.SucceededAt,
		RefundedAt:        p.RefundedAt,
	}, nil
}

func toDomainRefund(m RefundModel) *domain.Refund {
	return &domain.Refund{
		ID:                   m.ID,
		PaymentID:            m.PaymentID,
		Provider:             domain.Provider(m.Provider),
		RefundID:             m.RefundID,
		AmountCents:          m.AmountCents,
		Currency:             m.Currency,
		Reason:               m.Reason,
		Status:               m.Status,
		BalanceTransactionID: m.BalanceTransactionID,
		Raw:                  m.Raw,
		OccurredAt:           m.OccurredAt,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}
