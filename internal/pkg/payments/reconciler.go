package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/invisifeed/invisifeed/app/models"
	"gorm.io/gorm"
)

// RefundCancelReason is recorded on subscriptions cancelled by a refund.
const RefundCancelReason = "Payment refunded"

// Reconciler applies provider webhook events to the Payment and
// Subscription tables exactly once, despite at-least-once delivery and
// concurrent redelivery. Cross-document mutations run in one transaction
// per event; transient write conflicts are retried with backoff.
type Reconciler struct {
	repo Repository
}

// NewReconciler creates a reconciler from an injected repository.
func NewReconciler(repo Repository) *Reconciler {
	return &Reconciler{repo: repo}
}

// NewReconcilerFromDB creates a reconciler from a GORM DB handle.
func NewReconcilerFromDB(db *gorm.DB) *Reconciler {
	return NewReconciler(NewRepository(db))
}

// HandleEvent dispatches a parsed webhook event to its handler. Unhandled
// kinds are acknowledged without side effects.
func (s *Reconciler) HandleEvent(ctx context.Context, ev WebhookEvent) error {
	switch ev.Kind {
	case EventPaymentCaptured:
		return s.HandlePaymentCaptured(ctx, *ev.Captured)
	case EventPaymentFailed:
		return s.HandlePaymentFailed(ctx, *ev.Failed)
	case EventRefundCreated:
		return s.HandleRefundCreated(ctx, *ev.Refund)
	default:
		log.Printf("webhook: ignoring unhandled event %q", ev.Name)
		return nil
	}
}

// HandlePaymentCaptured reconciles a captured payment: it marks the local
// payment completed, expires any prior active subscription for the
// organization and activates a fresh pro window, all in one transaction.
//
// Redelivery is a no-op: a cheap read-only pre-check catches the common
// duplicate before any transaction is opened, and the in-transaction
// re-check (under a row lock on the payment) closes the race between two
// concurrent deliveries that both pass the pre-check.
func (s *Reconciler) HandlePaymentCaptured(ctx context.Context, ev CapturedPayment) error {
	_ = ctx
	if _, err := s.repo.FindCompletedPayment(ev.OrderID, ev.PaymentID); err == nil {
		log.Printf("webhook: payment %s for order %s already reconciled", ev.PaymentID, ev.OrderID)
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	err := retryOnConflict(func() error {
		return s.repo.Transact(func(tx Repository) error {
			return applyCapture(tx, ev)
		})
	})
	if errors.Is(err, ErrOrphanPayment) {
		// Redelivery cannot create the missing order row; swallow so the
		// provider stops retrying this event.
		log.Printf("webhook: %v (order %s, payment %s)", err, ev.OrderID, ev.PaymentID)
		return nil
	}
	return err
}

func applyCapture(tx Repository, ev CapturedPayment) error {
	payment, err := tx.FindPaymentByOrderID(ev.OrderID, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrOrphanPayment, ev.OrderID)
		}
		return err
	}

	if payment.IsCompletedFor(ev.PaymentID) {
		return nil
	}

	subscriptionID, err := ensureActiveSubscription(tx, payment, ev.CapturedAt)
	if err != nil {
		return err
	}

	paidAt := ev.CapturedAt
	payment.ProviderPaymentID = ev.PaymentID
	payment.Status = models.PaymentStatusCompleted
	payment.SubscriptionID = &subscriptionID
	payment.PaidAt = &paidAt
	payment.Amount = float64(ev.Amount) / 100
	return tx.SavePayment(payment)
}

// ensureActiveSubscription returns the id of the active subscription this
// payment should link to, creating a new 30-day pro window when the
// payment has none (first capture) or its linked one is no longer active.
func ensureActiveSubscription(tx Repository, payment *models.Payment, capturedAt time.Time) (uint, error) {
	if payment.SubscriptionID != nil {
		sub, err := tx.GetSubscriptionByID(*payment.SubscriptionID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
		if err == nil && sub.Status == models.SubscriptionStatusActive {
			return sub.ID, nil
		}
	}

	if err := tx.ExpireActiveSubscriptions(payment.OrganizationID); err != nil {
		return 0, err
	}

	end := capturedAt.Add(models.ProPlanDuration)
	sub := &models.Subscription{
		OrganizationID: payment.OrganizationID,
		Plan:           models.PlanPro,
		Status:         models.SubscriptionStatusActive,
		StartDate:      capturedAt,
		EndDate:        &end,
	}
	if err := tx.CreateSubscription(sub); err != nil {
		return 0, err
	}
	return sub.ID, nil
}

// HandlePaymentFailed marks the payment for the given order failed. A
// missing row is not an error: the order may belong to another integration
// or predate this system.
func (s *Reconciler) HandlePaymentFailed(ctx context.Context, ev FailedPayment) error {
	_ = ctx
	return retryOnConflict(func() error {
		return s.repo.Transact(func(tx Repository) error {
			payment, err := tx.FindPaymentByOrderID(ev.OrderID, true)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					log.Printf("webhook: payment.failed for unknown order %s, ignoring", ev.OrderID)
					return nil
				}
				return err
			}
			payment.Status = models.PaymentStatusFailed
			if ev.PaymentID != "" {
				payment.ProviderPaymentID = ev.PaymentID
			}
			return tx.SavePayment(payment)
		})
	})
}

// HandleRefundCreated marks the refunded payment and cancels every active
// subscription of its organization, stamping the refund's creation time
// and a fixed reason. Refunds reference the payment id, not the order id.
func (s *Reconciler) HandleRefundCreated(ctx context.Context, ev Refund) error {
	_ = ctx
	return retryOnConflict(func() error {
		return s.repo.Transact(func(tx Repository) error {
			payment, err := tx.FindPaymentByProviderPaymentID(ev.PaymentID, true)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					log.Printf("webhook: refund.created for unknown payment %s, ignoring", ev.PaymentID)
					return nil
				}
				return err
			}
			payment.Status = models.PaymentStatusRefunded
			if err := tx.SavePayment(payment); err != nil {
				return err
			}
			return tx.CancelActiveSubscriptions(payment.OrganizationID, ev.CreatedAt, RefundCancelReason)
		})
	})
}

// RecordWebhookEvent persists a delivery idempotently. The returned bool is
// false when this exact event id was already recorded, letting the caller
// short-circuit redeliveries before any reconciliation work.
func (s *Reconciler) RecordWebhookEvent(ctx context.Context, eventID, eventType, payloadJSON string, signatureValid bool) (bool, *models.WebhookEvent, error) {
	_ = ctx
	id := strings.TrimSpace(eventID)
	if id == "" {
		sum := sha256.Sum256([]byte(payloadJSON))
		id = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        models.PaymentProviderRazorpay,
		ProviderEventID: id,
		EventType:       strings.TrimSpace(eventType),
		PayloadJSON:     payloadJSON,
		SignatureValid:  signatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed stamps an event row with the processing outcome.
func (s *Reconciler) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}
