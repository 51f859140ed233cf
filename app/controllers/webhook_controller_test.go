package controllers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/invisifeed/invisifeed/app/models"
	"github.com/invisifeed/invisifeed/internal/pkg/payments"
)

const testWebhookSecret = "whsec_test"

// stubReconcilerRepo implements payments.Repository in memory with just
// enough behavior for the controller paths under test.
type stubReconcilerRepo struct {
	payments map[string]*models.Payment
	events   map[string]*models.WebhookEvent
	nextID   uint

	processedIDs []uint

	// failTransacts makes the next N transactions fail with a transient
	// non-conflict error before behaving normally again.
	failTransacts int
}

func newStubReconcilerRepo() *stubReconcilerRepo {
	return &stubReconcilerRepo{
		payments: map[string]*models.Payment{},
		events:   map[string]*models.WebhookEvent{},
		nextID:   1,
	}
}

func (s *stubReconcilerRepo) FindCompletedPayment(orderID, paymentID string) (*models.Payment, error) {
	p, ok := s.payments[orderID]
	if !ok || !p.IsCompletedFor(paymentID) {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubReconcilerRepo) FindPaymentByOrderID(orderID string, forUpdate bool) (*models.Payment, error) {
	p, ok := s.payments[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubReconcilerRepo) FindPaymentByProviderPaymentID(paymentID string, forUpdate bool) (*models.Payment, error) {
	for _, p := range s.payments {
		if p.ProviderPaymentID == paymentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubReconcilerRepo) SavePayment(p *models.Payment) error {
	cp := *p
	s.payments[p.ProviderOrderID] = &cp
	return nil
}

func (s *stubReconcilerRepo) GetSubscriptionByID(id uint) (*models.Subscription, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubReconcilerRepo) CreateSubscription(sub *models.Subscription) error {
	sub.ID = s.nextID
	s.nextID++
	return nil
}

func (s *stubReconcilerRepo) ExpireActiveSubscriptions(organizationID uint) error { return nil }

func (s *stubReconcilerRepo) CancelActiveSubscriptions(organizationID uint, at time.Time, reason string) error {
	return nil
}

func (s *stubReconcilerRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	if existing, ok := s.events[event.ProviderEventID]; ok {
		return false, existing, nil
	}
	event.ID = s.nextID
	s.nextID++
	s.events[event.ProviderEventID] = event
	return true, event, nil
}

func (s *stubReconcilerRepo) MarkWebhookProcessed(id uint, processingError string) error {
	s.processedIDs = append(s.processedIDs, id)
	for _, ev := range s.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
		}
	}
	return nil
}

func (s *stubReconcilerRepo) Transact(fn func(payments.Repository) error) error {
	if s.failTransacts > 0 {
		s.failTransacts--
		return errors.New("driver: bad connection")
	}
	return fn(s)
}

func newWebhookTestApp(t *testing.T, repo *stubReconcilerRepo) *fiber.App {
	t.Helper()
	t.Setenv("RAZORPAY_WEBHOOK_SECRET", testWebhookSecret)

	orig := newReconciler
	newReconciler = func() *payments.Reconciler {
		return payments.NewReconciler(repo)
	}
	t.Cleanup(func() { newReconciler = orig })

	app := fiber.New()
	app.Post("/api/v1/webhooks/razorpay", HandleRazorpayWebhook)
	return app
}

func signWebhookBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, app *fiber.App, body []byte, signature, eventID string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/webhooks/razorpay", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Razorpay-Signature", signature)
	}
	if eventID != "" {
		req.Header.Set("X-Razorpay-Event-Id", eventID)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(respBody)
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	app := newWebhookTestApp(t, newStubReconcilerRepo())

	body := []byte(`{"event":"payment.captured"}`)
	status, _ := postWebhook(t, app, body, "deadbeef", "evt_1")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = postWebhook(t, app, body, "", "evt_1")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestWebhookMissingSecretIs500(t *testing.T) {
	app := newWebhookTestApp(t, newStubReconcilerRepo())
	t.Setenv("RAZORPAY_WEBHOOK_SECRET", "")

	body := []byte(`{"event":"payment.captured"}`)
	status, respBody := postWebhook(t, app, body, signWebhookBody(body), "evt_1")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Contains(t, respBody, "webhook_not_configured")
}

func TestWebhookProcessesCapturedPayment(t *testing.T) {
	repo := newStubReconcilerRepo()
	repo.payments["order_A1"] = &models.Payment{
		ID:              1,
		OrganizationID:  7,
		ProviderOrderID: "order_A1",
		Status:          models.PaymentStatusPending,
	}
	app := newWebhookTestApp(t, repo)

	body := []byte(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {"id": "pay_X1", "order_id": "order_A1", "amount": 9900, "created_at": 1756380000}}}
	}`)
	status, respBody := postWebhook(t, app, body, signWebhookBody(body), "evt_1")

	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, respBody, `"received":true`)

	p := repo.payments["order_A1"]
	assert.Equal(t, models.PaymentStatusCompleted, p.Status)
	assert.Equal(t, "pay_X1", p.ProviderPaymentID)
	assert.InDelta(t, 99.00, p.Amount, 1e-9)
	assert.NotEmpty(t, repo.processedIDs)
}

func TestWebhookShortCircuitsDuplicateDelivery(t *testing.T) {
	repo := newStubReconcilerRepo()
	repo.payments["order_A1"] = &models.Payment{
		ID:              1,
		OrganizationID:  7,
		ProviderOrderID: "order_A1",
		Status:          models.PaymentStatusPending,
	}
	app := newWebhookTestApp(t, repo)

	body := []byte(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {"id": "pay_X1", "order_id": "order_A1", "amount": 9900}}}
	}`)
	sig := signWebhookBody(body)

	status, _ := postWebhook(t, app, body, sig, "evt_dup")
	require.Equal(t, fiber.StatusOK, status)

	status, respBody := postWebhook(t, app, body, sig, "evt_dup")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, respBody, `"duplicate":true`)
}

func TestWebhookRedeliveryReprocessesFailedEvent(t *testing.T) {
	repo := newStubReconcilerRepo()
	repo.payments["order_A1"] = &models.Payment{
		ID:              1,
		OrganizationID:  7,
		ProviderOrderID: "order_A1",
		Status:          models.PaymentStatusPending,
	}
	repo.failTransacts = 1
	app := newWebhookTestApp(t, repo)

	body := []byte(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {"id": "pay_X1", "order_id": "order_A1", "amount": 9900}}}
	}`)
	sig := signWebhookBody(body)

	// First delivery fails mid-transaction. The provider sees a 500 and
	// the payment must stay untouched.
	status, _ := postWebhook(t, app, body, sig, "evt_retry")
	require.Equal(t, fiber.StatusInternalServerError, status)
	require.Equal(t, models.PaymentStatusPending, repo.payments["order_A1"].Status)

	// The redelivery must not be dropped as a duplicate just because the
	// dedup row exists; it runs the handlers again and settles the payment.
	status, respBody := postWebhook(t, app, body, sig, "evt_retry")
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotContains(t, respBody, `"duplicate":true`)
	assert.Equal(t, models.PaymentStatusCompleted, repo.payments["order_A1"].Status)
	assert.Equal(t, "pay_X1", repo.payments["order_A1"].ProviderPaymentID)

	// A third delivery after success is a clean duplicate.
	status, respBody = postWebhook(t, app, body, sig, "evt_retry")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, respBody, `"duplicate":true`)
}

func TestWebhookAcknowledgesUnhandledEvents(t *testing.T) {
	app := newWebhookTestApp(t, newStubReconcilerRepo())

	body := []byte(`{"event": "invoice.expired", "payload": {}}`)
	status, respBody := postWebhook(t, app, body, signWebhookBody(body), "evt_2")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, respBody, `"received":true`)
}

func TestWebhookMalformedBodyIs400(t *testing.T) {
	app := newWebhookTestApp(t, newStubReconcilerRepo())

	body := []byte(`{not json`)
	status, _ := postWebhook(t, app, body, signWebhookBody(body), "evt_3")
	assert.Equal(t, fiber.StatusBadRequest, status)
}
