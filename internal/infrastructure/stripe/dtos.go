package stripe

import "encoding/json"

type CheckoutSessionRequest struct {
	AmountCents       int64             `json:"amount_cents"`
	Currency          string            `json:"currency"`
	ClientReferenceID string            `json:"client_reference_id"`
	SuccessURL        string            `json:"success_url"`
	CancelURL         string            `json:"cancel_url"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type CheckoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
	PaymentStatus string `json:"payment_status"`
	Status        string `json:"status"`
}

type PaymentIntent struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	AmountCents  int64  `json:"amount"`
	Currency     string `json:"currency"`
	LatestCharge string `json:"latest_charge"`
}

type RefundRequest struct {
	ChargeID      string `json:"charge,omitempty"`
	PaymentIntent string `json:"payment_intent,omitempty"`
	AmountCents   int64  `json:"amount,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type RefundResponse struct {
	ID                 string          `json:"id"`
	Status             string          `json:"status"`
	AmountCents        int64           `json:"amount"`
	Currency           string          `json:"currency"`
	Charge             string          `json:"charge"`
	BalanceTransaction string          `json:"balance_transaction"`
	Raw                json.RawMessage `json:"-"`
}

// Event is the envelope of a provider webhook delivery.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// EventObject carries the identifier fields process_webhook resolves a
// payment with, regardless of which object type the event wraps.
type EventObject struct {
	ID                 string          `json:"id"`
	PaymentIntent      string          `json:"payment_intent"`
	CheckoutSession    string          `json:"checkout_session"`
	Charge             string          `json:"charge"`
	Status             string          `json:"status"`
	AmountCents        int64           `json:"amount"`
	AmountRefunded     int64           `json:"amount_refunded"`
	Currency           string          `json:"currency"`
	Refunds            RefundList      `json:"refunds"`
	BalanceTransaction string          `json:"balance_transaction"`
	Reason             string          `json:"reason"`
	Raw                json.RawMessage `json:"-"`
}

type RefundList struct {
	Data []RefundResponse `json:"data"`
}
