package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/invisifeed/invisifeed/internal/pkg/env"
	"github.com/invisifeed/invisifeed/internal/pkg/payments"
)

// HandleRazorpayWebhook receives provider webhook deliveries. The provider
// retries anything that is not a 2xx, so only misconfiguration (500) and
// signature failures (400) are surfaced; everything resolved locally is
// acknowledged with 200.
func HandleRazorpayWebhook(c *fiber.Ctx) error {
	secret := env.GetEnv("RAZORPAY_WEBHOOK_SECRET", "")
	if secret == "" {
		log.Print("webhook: RAZORPAY_WEBHOOK_SECRET is not configured")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_not_configured", "message": "Webhook secret is not configured"})
	}

	body := c.Body()
	signature := c.Get("X-Razorpay-Signature")
	if !payments.VerifyWebhookSignature(body, signature, secret) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature", "message": "Webhook signature verification failed"})
	}

	event, err := payments.ParseWebhookEvent(body)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Malformed webhook payload"})
	}

	reconciler := newReconciler()
	ctx := c.UserContext()

	created, record, err := reconciler.RecordWebhookEvent(ctx, c.Get("X-Razorpay-Event-Id"), event.Name, string(body), true)
	if err != nil {
		log.Printf("webhook: failed to record event: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to record webhook event"})
	}
	if !created {
		// Only acknowledge deliveries whose processing already completed.
		// A redelivery of an event that failed (or never finished) runs
		// through the handlers again; they are idempotent.
		if record.ProcessedAt != nil && record.ProcessingError == "" {
			return c.JSON(fiber.Map{"received": true, "duplicate": true})
		}
		log.Printf("webhook: reprocessing event %d (%s) after earlier failure", record.ID, event.Name)
	}

	if err := reconciler.HandleEvent(ctx, event); err != nil {
		if markErr := reconciler.MarkWebhookProcessed(ctx, record.ID, err); markErr != nil {
			log.Printf("webhook: failed to mark event %d failed: %v", record.ID, markErr)
		}
		log.Printf("webhook: processing %s failed: %v", event.Name, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Event processing failed"})
	}

	if err := reconciler.MarkWebhookProcessed(ctx, record.ID, nil); err != nil {
		log.Printf("webhook: failed to mark event %d processed: %v", record.ID, err)
	}

	return c.JSON(fiber.Map{"received": true})
}
