// Package postgres implements the application ports on pgx. Raw SQL, no ORM.
package postgres

import (
	"time"

	"github.com/google/uuid"
)

// PaymentModel mirrors the payments table row.
type PaymentModel struct {
	ID                uuid.UUID
	Provider          string
	ExternalID        string
	CheckoutSessionID *string
	PaymentIntentID   *string
	ChargeID          *string
	AmountCents       int64
	Currency          string
	Status            string
	PaymentURL        string
	Metadata          []byte
	PayableType       string
	PayableID         *uuid.UUID
	TaskID            *uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
	SucceededAt       *time.Time
	RefundedAt        *time.Time
}

// RefundModel mirrors the refunds table row. Unique on (provider, refund_id).
type RefundModel struct {
	ID                   uuid.UUID
	PaymentID            uuid.UUID
	Provider             string
	RefundID             string
	AmountCents          int64
	Currency             string
	Reason               string
	Status               string
	BalanceTransactionID *string
	Raw                  []byte
	OccurredAt           time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// EventModel mirrors the integration_events table row. The partial unique
// index on (provider, external_id) is the webhook idempotency boundary.
type EventModel struct {
	ID             uuid.UUID
	Provider       string
	ExternalID     *string
	EventType      string
	Headers        []byte
	Body           []byte
	SignatureValid bool
	Status         string
	Error          *string
	ReceivedAt     time.Time
	ProcessedAt    *time.Time
}
