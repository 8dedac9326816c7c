package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Metadata is the open-ended key-value bag attached to a payment. The fields
// this service acts on are typed; everything else is captured verbatim in
// Extra so unknown provider keys survive a round trip.
type Metadata struct {
	CheckoutSessionID string
	PaymentIntentID   string

	// TaskSnapshot is a serialized task used by single-task materialization.
	TaskSnapshot json.RawMessage
	// TaskIDs lists pre-existing tasks for multi-task (cart) materialization.
	TaskIDs []uuid.UUID

	Extra map[string]json.RawMessage
}

const (
	metaCheckoutSessionID = "checkout_session_id"
	metaPaymentIntentID   = "payment_intent_id"
	metaTaskSnapshot      = "task_snapshot"
	metaTaskIDs           = "task_ids"
)

func (m Metadata) IsZero() bool {
	return m.CheckoutSessionID == "" && m.PaymentIntentID == "" &&
		len(m.TaskSnapshot) == 0 && len(m.TaskIDs) == 0 && len(m.Extra) == 0
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Extra)+4)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.CheckoutSessionID != "" {
		b, _ := json.Marshal(m.CheckoutSessionID)
		out[metaCheckoutSessionID] = b
	}
	if m.PaymentIntentID != "" {
		b, _ := json.Marshal(m.PaymentIntentID)
		out[metaPaymentIntentID] = b
	}
	if len(m.TaskSnapshot) > 0 {
		out[metaTaskSnapshot] = m.TaskSnapshot
	}
	if len(m.TaskIDs) > 0 {
		b, err := json.Marshal(m.TaskIDs)
		if err != nil {
			return nil, err
		}
		out[metaTaskIDs] = b
	}
	return json.Marshal(out)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	for k, v := range raw {
		switch k {
		case metaCheckoutSessionID:
			if err := json.Unmarshal(v, &m.CheckoutSessionID); err != nil {
				return err
			}
		case metaPaymentIntentID:
			if err := json.Unmarshal(v, &m.PaymentIntentID); err != nil {
				return err
			}
		case metaTaskSnapshot:
			m.TaskSnapshot = v
		case metaTaskIDs:
			if err := json.Unmarshal(v, &m.TaskIDs); err != nil {
				return err
			}
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]json.RawMessage)
			}
			m.Extra[k] = v
		}
	}
	return nil
}
