package payments

import (
	"encoding/json"
	"strings"
	"time"
)

// EventKind is the closed set of webhook event shapes the reconciler
// understands. Anything else is EventUnhandled and acknowledged without
// processing so the provider does not retry-storm.
type EventKind int

const (
	EventUnhandled EventKind = iota
	EventPaymentCaptured
	EventPaymentFailed
	EventRefundCreated
)

// CapturedPayment is the normalized payload of payment.captured (and of
// order.paid when it carries a payment entity). Amount is in the
// provider's minor currency unit.
type CapturedPayment struct {
	OrderID    string
	PaymentID  string
	Amount     int64
	CapturedAt time.Time
}

// FailedPayment is the normalized payload of payment.failed.
type FailedPayment struct {
	OrderID     string
	PaymentID   string
	ErrorCode   string
	Description string
}

// Refund is the normalized payload of refund.created. Refunds reference
// the payment, not the order.
type Refund struct {
	RefundID  string
	PaymentID string
	CreatedAt time.Time
}

// WebhookEvent is the parse-once tagged union handed to the reconciler.
// Exactly one of the payload pointers matching Kind is non-nil.
type WebhookEvent struct {
	Kind     EventKind
	Name     string
	Captured *CapturedPayment
	Failed   *FailedPayment
	Refund   *Refund
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity refundEntity `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Amount      int64  `json:"amount"`
	CreatedAt   int64  `json:"created_at"`
	ErrorCode   string `json:"error_code"`
	Description string `json:"error_description"`
}

type refundEntity struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	CreatedAt int64  `json:"created_at"`
}

// ParseWebhookEvent decodes a raw webhook body into the tagged union.
// order.paid is treated as payment.captured only when the payload carries
// a payment entity; without one it stays unhandled rather than guessing.
func ParseWebhookEvent(raw []byte) (WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return WebhookEvent{}, err
	}

	name := strings.TrimSpace(env.Event)
	ev := WebhookEvent{Kind: EventUnhandled, Name: name}

	switch name {
	case "payment.captured", "order.paid":
		p := env.Payload.Payment.Entity
		if p.ID == "" || p.OrderID == "" {
			return ev, nil
		}
		ev.Kind = EventPaymentCaptured
		ev.Captured = &CapturedPayment{
			OrderID:    p.OrderID,
			PaymentID:  p.ID,
			Amount:     p.Amount,
			CapturedAt: epochOrNow(p.CreatedAt),
		}
	case "payment.failed":
		p := env.Payload.Payment.Entity
		if p.OrderID == "" {
			return ev, nil
		}
		ev.Kind = EventPaymentFailed
		ev.Failed = &FailedPayment{
			OrderID:     p.OrderID,
			PaymentID:   p.ID,
			ErrorCode:   p.ErrorCode,
			Description: p.Description,
		}
	case "refund.created":
		r := env.Payload.Refund.Entity
		if r.PaymentID == "" {
			return ev, nil
		}
		ev.Kind = EventRefundCreated
		ev.Refund = &Refund{
			RefundID:  r.ID,
			PaymentID: r.PaymentID,
			CreatedAt: epochOrNow(r.CreatedAt),
		}
	}

	return ev, nil
}

func epochOrNow(sec int64) time.Time {
	if sec <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(sec, 0).UTC()
}
