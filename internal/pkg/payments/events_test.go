package payments

import (
	"testing"
	"time"
)

func TestParseWebhookEvent_Captured(t *testing.T) {
	raw := []byte(`{
		"event": "payment.captured",
		"payload": {
			"payment": {
				"entity": {
					"id": "pay_X1",
					"order_id": "order_A1",
					"amount": 9900,
					"created_at": 1756300000
				}
			}
		}
	}`)

	ev, err := ParseWebhookEvent(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.Kind != EventPaymentCaptured {
		t.Fatalf("expected captured kind, got %v", ev.Kind)
	}
	if ev.Captured.OrderID != "order_A1" || ev.Captured.PaymentID != "pay_X1" {
		t.Fatalf("unexpected ids: %+v", ev.Captured)
	}
	if ev.Captured.Amount != 9900 {
		t.Fatalf("expected minor-unit amount 9900, got %d", ev.Captured.Amount)
	}
	if !ev.Captured.CapturedAt.Equal(time.Unix(1756300000, 0).UTC()) {
		t.Fatalf("unexpected captured_at: %v", ev.Captured.CapturedAt)
	}
}

func TestParseWebhookEvent_OrderPaidAlias(t *testing.T) {
	withPayment := []byte(`{
		"event": "order.paid",
		"payload": {
			"payment": { "entity": { "id": "pay_1", "order_id": "order_1", "amount": 100, "created_at": 1 } }
		}
	}`)
	ev, err := ParseWebhookEvent(withPayment)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.Kind != EventPaymentCaptured {
		t.Fatalf("expected order.paid with payment entity to alias captured, got %v", ev.Kind)
	}

	// Without a payment entity there is nothing to reconcile.
	withoutPayment := []byte(`{"event": "order.paid", "payload": {}}`)
	ev, err = ParseWebhookEvent(withoutPayment)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.Kind != EventUnhandled {
		t.Fatalf("expected order.paid without payment entity to stay unhandled, got %v", ev.Kind)
	}
}

func TestParseWebhookEvent_FailedAndRefund(t *testing.T) {
	failed := []byte(`{
		"event": "payment.failed",
		"payload": {
			"payment": { "entity": { "id": "pay_9", "order_id": "order_9", "error_code": "BAD_REQUEST_ERROR" } }
		}
	}`)
	ev, err := ParseWebhookEvent(failed)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.Kind != EventPaymentFailed || ev.Failed.OrderID != "order_9" || ev.Failed.ErrorCode != "BAD_REQUEST_ERROR" {
		t.Fatalf("unexpected failed event: %+v", ev)
	}

	refund := []byte(`{
		"event": "refund.created",
		"payload": {
			"refund": { "entity": { "id": "rfnd_1", "payment_id": "pay_9", "created_at": 1756305000 } }
		}
	}`)
	ev, err = ParseWebhookEvent(refund)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.Kind != EventRefundCreated || ev.Refund.PaymentID != "pay_9" || ev.Refund.RefundID != "rfnd_1" {
		t.Fatalf("unexpected refund event: %+v", ev)
	}
}

func TestParseWebhookEvent_UnknownAndMalformed(t *testing.T) {
	ev, err := ParseWebhookEvent([]byte(`{"event": "invoice.expired", "payload": {}}`))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.Kind != EventUnhandled || ev.Name != "invoice.expired" {
		t.Fatalf("expected unknown event to be unhandled, got %+v", ev)
	}

	if _, err := ParseWebhookEvent([]byte(`{not json`)); err == nil {
		t.Fatalf("expected malformed body to error")
	}
}
