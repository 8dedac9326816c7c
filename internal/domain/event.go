package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus tracks the processing lifecycle of an inbound webhook delivery.
type EventStatus string

const (
	EventReceived  EventStatus = "received"
	EventProcessed EventStatus = "processed"
	EventFailed    EventStatus = "failed"
)

// IntegrationEvent is an append-mostly log row for every inbound webhook
// delivery, payment and non-payment alike. The unique (provider, external_id)
// pair is the idempotency boundary: a second delivery of the same event is
// detected here before any side effect runs.
type IntegrationEvent struct {
	ID       uuid.UUID
	Provider string

	// ExternalID is the provider's event id when the payload carries one.
	// Nil means the delivery cannot be deduplicated and is always processed.
	ExternalID *string

	EventType      string
	Headers        map[string][]string
	Body           []byte
	SignatureValid bool

	Status      EventStatus
	Error       *string
	ReceivedAt  time.Time
	ProcessedAt *time.Time
}

func NewIntegrationEvent(provider string, externalID *string, eventType string, headers map[string][]string, body []byte, signatureValid bool) *IntegrationEvent {
	return &IntegrationEvent{
		ID:             uuid.New(),
		Provider:       provider,
		ExternalID:     externalID,
		EventType:      eventType,
		Headers:        headers,
		Body:           body,
		SignatureValid: signatureValid,
		Status:         EventReceived,
		ReceivedAt:     time.Now().UTC(),
	}
}
