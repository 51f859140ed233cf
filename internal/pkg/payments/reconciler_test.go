package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/invisifeed/invisifeed/app/models"
	"gorm.io/gorm"
)

// fakeState is the shared in-memory store behind the fake repositories.
// Payments are keyed by provider order id, like the unique index in MySQL.
type fakeState struct {
	payments      map[string]*models.Payment
	subscriptions map[uint]*models.Subscription
	events        map[string]*models.WebhookEvent
	nextPaymentID uint
	nextSubID     uint
	nextEventID   uint
}

func newFakeState() *fakeState {
	return &fakeState{
		payments:      make(map[string]*models.Payment),
		subscriptions: make(map[uint]*models.Subscription),
		events:        make(map[string]*models.WebhookEvent),
	}
}

func (s *fakeState) seedPayment(p models.Payment) *models.Payment {
	s.nextPaymentID++
	p.ID = s.nextPaymentID
	cp := p
	s.payments[p.ProviderOrderID] = &cp
	return &cp
}

func (s *fakeState) seedSubscription(sub models.Subscription) *models.Subscription {
	s.nextSubID++
	sub.ID = s.nextSubID
	cp := sub
	s.subscriptions[sub.ID] = &cp
	return &cp
}

func (s *fakeState) activeSubscriptions(orgID uint) []*models.Subscription {
	var out []*models.Subscription
	for _, sub := range s.subscriptions {
		if sub.OrganizationID == orgID && sub.Status == models.SubscriptionStatusActive {
			out = append(out, sub)
		}
	}
	return out
}

// fakeRepo serializes transactions with a mutex, mimicking the row lock the
// GORM implementation takes with SELECT ... FOR UPDATE. conflicts injects
// that many transient write conflicts before transactions start succeeding.
type fakeRepo struct {
	mu        sync.Mutex
	state     *fakeState
	conflicts int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{state: newFakeState()}
}

func (f *fakeRepo) Transact(fn func(Repository) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflicts > 0 {
		f.conflicts--
		return fmt.Errorf("tx aborted: %w", errWriteConflict)
	}
	return fn(&fakeTxRepo{state: f.state})
}

func (f *fakeRepo) FindCompletedPayment(orderID, paymentID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTxRepo{state: f.state}).FindCompletedPayment(orderID, paymentID)
}

func (f *fakeRepo) FindPaymentByOrderID(orderID string, forUpdate bool) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTxRepo{state: f.state}).FindPaymentByOrderID(orderID, forUpdate)
}

func (f *fakeRepo) FindPaymentByProviderPaymentID(paymentID string, forUpdate bool) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTxRepo{state: f.state}).FindPaymentByProviderPaymentID(paymentID, forUpdate)
}

func (f *fakeRepo) SavePayment(p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTxRepo{state: f.state}).SavePayment(p)
}

func (f *fakeRepo) GetSubscriptionByID(id uint) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTxRepo{state: f.state}).GetSubscriptionByID(id)
}

func (f *fakeRepo) CreateSubscription(sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTxRepo{state: f.state}).CreateSubscription(sub)
}

func (f *fakeRepo) ExpireActiveSubscriptions(orgID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTxRepo{state: f.state}).ExpireActiveSubscriptions(orgID)
}

func (f *fakeRepo) CancelActiveSubscriptions(orgID uint, at time.Time, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTxRepo{state: f.state}).CancelActiveSubscriptions(orgID, at, reason)
}

func (f *fakeRepo) CreateWebhookEventIfNotExists(ev *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTxRepo{state: f.state}).CreateWebhookEventIfNotExists(ev)
}

func (f *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTxRepo{state: f.state}).MarkWebhookProcessed(id, processingError)
}

// fakeTxRepo operates on the state directly; the outer fakeRepo holds the
// lock for the whole transaction.
type fakeTxRepo struct {
	state *fakeState
}

func (f *fakeTxRepo) Transact(fn func(Repository) error) error {
	return fn(f)
}

func (f *fakeTxRepo) FindCompletedPayment(orderID, paymentID string) (*models.Payment, error) {
	p, ok := f.state.payments[orderID]
	if !ok || !p.IsCompletedFor(paymentID) {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeTxRepo) FindPaymentByOrderID(orderID string, forUpdate bool) (*models.Payment, error) {
	p, ok := f.state.payments[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeTxRepo) FindPaymentByProviderPaymentID(paymentID string, forUpdate bool) (*models.Payment, error) {
	for _, p := range f.state.payments {
		if p.ProviderPaymentID == paymentID && paymentID != "" {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTxRepo) SavePayment(p *models.Payment) error {
	cp := *p
	f.state.payments[p.ProviderOrderID] = &cp
	return nil
}

func (f *fakeTxRepo) GetSubscriptionByID(id uint) (*models.Subscription, error) {
	sub, ok := f.state.subscriptions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeTxRepo) CreateSubscription(sub *models.Subscription) error {
	f.state.nextSubID++
	sub.ID = f.state.nextSubID
	cp := *sub
	f.state.subscriptions[sub.ID] = &cp
	return nil
}

func (f *fakeTxRepo) ExpireActiveSubscriptions(orgID uint) error {
	for _, sub := range f.state.activeSubscriptions(orgID) {
		sub.Status = models.SubscriptionStatusExpired
	}
	return nil
}

func (f *fakeTxRepo) CancelActiveSubscriptions(orgID uint, at time.Time, reason string) error {
	for _, sub := range f.state.activeSubscriptions(orgID) {
		sub.Status = models.SubscriptionStatusCancelled
		t := at
		sub.CancelledAt = &t
		sub.CancelReason = reason
	}
	return nil
}

func (f *fakeTxRepo) CreateWebhookEventIfNotExists(ev *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := ev.Provider + "/" + ev.ProviderEventID
	if stored, ok := f.state.events[key]; ok {
		cp := *stored
		return false, &cp, nil
	}
	f.state.nextEventID++
	ev.ID = f.state.nextEventID
	cp := *ev
	f.state.events[key] = &cp
	out := cp
	return true, &out, nil
}

func (f *fakeTxRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for _, ev := range f.state.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

var capturedAtT = time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)

func capturedEvent() CapturedPayment {
	return CapturedPayment{
		OrderID:    "order_A1",
		PaymentID:  "pay_X1",
		Amount:     9900,
		CapturedAt: capturedAtT,
	}
}

func TestHandlePaymentCaptured_FirstCapture(t *testing.T) {
	repo := newFakeRepo()
	repo.state.seedPayment(models.Payment{
		OrganizationID:  1,
		ProviderOrderID: "order_A1",
		Status:          models.PaymentStatusPending,
	})

	svc := NewReconciler(repo)
	if err := svc.HandlePaymentCaptured(context.Background(), capturedEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := repo.state.payments["order_A1"]
	if p.Status != models.PaymentStatusCompleted {
		t.Fatalf("expected completed payment, got %q", p.Status)
	}
	if p.ProviderPaymentID != "pay_X1" {
		t.Fatalf("expected payment id to be recorded, got %q", p.ProviderPaymentID)
	}
	if p.Amount != 99.00 {
		t.Fatalf("expected minor-to-major conversion 9900 -> 99.00, got %v", p.Amount)
	}
	if p.PaidAt == nil || !p.PaidAt.Equal(capturedAtT) {
		t.Fatalf("expected paid_at = captured_at, got %v", p.PaidAt)
	}
	if p.SubscriptionID == nil {
		t.Fatalf("expected payment to link its subscription")
	}

	sub := repo.state.subscriptions[*p.SubscriptionID]
	if sub == nil {
		t.Fatalf("linked subscription does not exist")
	}
	if sub.Plan != models.PlanPro || sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("expected active pro subscription, got %+v", sub)
	}
	if !sub.StartDate.Equal(capturedAtT) {
		t.Fatalf("expected start = captured_at, got %v", sub.StartDate)
	}
	if sub.EndDate == nil || !sub.EndDate.Equal(capturedAtT.Add(30*24*time.Hour)) {
		t.Fatalf("expected end = start + 30d, got %v", sub.EndDate)
	}
}

func TestHandlePaymentCaptured_Idempotent(t *testing.T) {
	repo := newFakeRepo()
	repo.state.seedPayment(models.Payment{
		OrganizationID:  1,
		ProviderOrderID: "order_A1",
		Status:          models.PaymentStatusPending,
	})

	svc := NewReconciler(repo)
	for i := 0; i < 5; i++ {
		if err := svc.HandlePaymentCaptured(context.Background(), capturedEvent()); err != nil {
			t.Fatalf("delivery %d failed: %v", i+1, err)
		}
	}

	if got := len(repo.state.subscriptions); got != 1 {
		t.Fatalf("expected exactly one subscription after redeliveries, got %d", got)
	}
	if got := len(repo.state.activeSubscriptions(1)); got != 1 {
		t.Fatalf("expected exactly one active subscription, got %d", got)
	}
}

func TestHandlePaymentCaptured_ExpiresPriorActive(t *testing.T) {
	repo := newFakeRepo()
	old := repo.state.seedSubscription(models.Subscription{
		OrganizationID: 1,
		Plan:           models.PlanFree,
		Status:         models.SubscriptionStatusActive,
		StartDate:      capturedAtT.Add(-60 * 24 * time.Hour),
	})
	repo.state.seedPayment(models.Payment{
		OrganizationID:  1,
		ProviderOrderID: "order_A1",
		Status:          models.PaymentStatusPending,
	})

	svc := NewReconciler(repo)
	if err := svc.HandlePaymentCaptured(context.Background(), capturedEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.state.subscriptions[old.ID].Status != models.SubscriptionStatusExpired {
		t.Fatalf("expected prior active subscription to be expired")
	}
	if got := len(repo.state.activeSubscriptions(1)); got != 1 {
		t.Fatalf("expected exactly one active subscription, got %d", got)
	}
}

func TestHandlePaymentCaptured_OrphanOrder(t *testing.T) {
	repo := newFakeRepo()
	svc := NewReconciler(repo)

	// Orphan orders are a data-integrity problem redelivery cannot fix;
	// the handler resolves them locally so the provider stops retrying.
	if err := svc.HandlePaymentCaptured(context.Background(), capturedEvent()); err != nil {
		t.Fatalf("expected orphan payment to resolve without error, got %v", err)
	}
	if len(repo.state.payments) != 0 || len(repo.state.subscriptions) != 0 {
		t.Fatalf("expected no writes for orphan order")
	}
}

func TestHandlePaymentCaptured_RetriesWriteConflicts(t *testing.T) {
	repo := newFakeRepo()
	repo.conflicts = 2
	repo.state.seedPayment(models.Payment{
		OrganizationID:  1,
		ProviderOrderID: "order_A1",
		Status:          models.PaymentStatusPending,
	})

	svc := NewReconciler(repo)
	if err := svc.HandlePaymentCaptured(context.Background(), capturedEvent()); err != nil {
		t.Fatalf("expected conflicts to be retried, got %v", err)
	}
	if repo.state.payments["order_A1"].Status != models.PaymentStatusCompleted {
		t.Fatalf("expected payment completed after retries")
	}
}

func TestHandlePaymentCaptured_ConflictExhaustionPropagates(t *testing.T) {
	repo := newFakeRepo()
	repo.conflicts = conflictMaxAttempts
	repo.state.seedPayment(models.Payment{
		OrganizationID:  1,
		ProviderOrderID: "order_A1",
		Status:          models.PaymentStatusPending,
	})

	svc := NewReconciler(repo)
	err := svc.HandlePaymentCaptured(context.Background(), capturedEvent())
	if !errors.Is(err, errWriteConflict) {
		t.Fatalf("expected exhausted conflicts to propagate, got %v", err)
	}
}

func TestHandlePaymentCaptured_ConcurrentDuplicateDelivery(t *testing.T) {
	repo := newFakeRepo()
	repo.state.seedPayment(models.Payment{
		OrganizationID:  1,
		ProviderOrderID: "order_A1",
		Status:          models.PaymentStatusPending,
	})

	svc := NewReconciler(repo)
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.HandlePaymentCaptured(context.Background(), capturedEvent())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent delivery %d failed: %v", i, err)
		}
	}
	if repo.state.payments["order_A1"].Status != models.PaymentStatusCompleted {
		t.Fatalf("expected completed payment")
	}
	if got := len(repo.state.subscriptions); got != 1 {
		t.Fatalf("expected exactly one subscription, got %d", got)
	}
	if got := len(repo.state.activeSubscriptions(1)); got != 1 {
		t.Fatalf("expected exactly one active subscription, got %d", got)
	}
}

func TestHandlePaymentFailed(t *testing.T) {
	repo := newFakeRepo()
	repo.state.seedPayment(models.Payment{
		OrganizationID:  1,
		ProviderOrderID: "order_B2",
		Status:          models.PaymentStatusPending,
	})

	svc := NewReconciler(repo)
	err := svc.HandlePaymentFailed(context.Background(), FailedPayment{OrderID: "order_B2", PaymentID: "pay_B2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := repo.state.payments["order_B2"]
	if p.Status != models.PaymentStatusFailed || p.ProviderPaymentID != "pay_B2" {
		t.Fatalf("unexpected payment state: %+v", p)
	}
	if len(repo.state.subscriptions) != 0 {
		t.Fatalf("payment.failed must not touch subscriptions")
	}
}

func TestHandlePaymentFailed_UnknownOrder(t *testing.T) {
	repo := newFakeRepo()
	svc := NewReconciler(repo)

	err := svc.HandlePaymentFailed(context.Background(), FailedPayment{OrderID: "order_missing"})
	if err != nil {
		t.Fatalf("expected unknown order to resolve without error, got %v", err)
	}
	if len(repo.state.payments) != 0 {
		t.Fatalf("expected no row to be created")
	}
}

func TestHandleRefundCreated_CascadesWithinOrganization(t *testing.T) {
	repo := newFakeRepo()
	sub := repo.state.seedSubscription(models.Subscription{
		OrganizationID: 1,
		Plan:           models.PlanPro,
		Status:         models.SubscriptionStatusActive,
		StartDate:      capturedAtT,
	})
	otherOrg := repo.state.seedSubscription(models.Subscription{
		OrganizationID: 2,
		Plan:           models.PlanPro,
		Status:         models.SubscriptionStatusActive,
		StartDate:      capturedAtT,
	})
	subID := sub.ID
	repo.state.seedPayment(models.Payment{
		OrganizationID:    1,
		ProviderOrderID:   "order_A1",
		ProviderPaymentID: "pay_X1",
		Status:            models.PaymentStatusCompleted,
		SubscriptionID:    &subID,
	})

	refundAt := capturedAtT.Add(48 * time.Hour)
	svc := NewReconciler(repo)
	err := svc.HandleRefundCreated(context.Background(), Refund{
		RefundID:  "rfnd_1",
		PaymentID: "pay_X1",
		CreatedAt: refundAt,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.state.payments["order_A1"].Status != models.PaymentStatusRefunded {
		t.Fatalf("expected payment refunded")
	}
	got := repo.state.subscriptions[sub.ID]
	if got.Status != models.SubscriptionStatusCancelled {
		t.Fatalf("expected subscription cancelled, got %q", got.Status)
	}
	if got.CancelledAt == nil || !got.CancelledAt.Equal(refundAt) {
		t.Fatalf("expected cancelled_at = refund created_at, got %v", got.CancelledAt)
	}
	if got.CancelReason != RefundCancelReason {
		t.Fatalf("unexpected cancel reason %q", got.CancelReason)
	}
	if repo.state.subscriptions[otherOrg.ID].Status != models.SubscriptionStatusActive {
		t.Fatalf("refund must not touch other organizations")
	}
}

func TestHandleRefundCreated_UnknownPayment(t *testing.T) {
	repo := newFakeRepo()
	svc := NewReconciler(repo)

	err := svc.HandleRefundCreated(context.Background(), Refund{PaymentID: "pay_missing", CreatedAt: capturedAtT})
	if err != nil {
		t.Fatalf("expected unknown payment to resolve without error, got %v", err)
	}
}

func TestRecordWebhookEvent_Deduplicates(t *testing.T) {
	repo := newFakeRepo()
	svc := NewReconciler(repo)
	ctx := context.Background()

	created, stored, err := svc.RecordWebhookEvent(ctx, "evt_1", "payment.captured", `{"event":"payment.captured"}`, true)
	if err != nil || !created || stored.ID == 0 {
		t.Fatalf("expected first record to create: created=%v stored=%+v err=%v", created, stored, err)
	}

	created, _, err = svc.RecordWebhookEvent(ctx, "evt_1", "payment.captured", `{"event":"payment.captured"}`, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatalf("expected redelivered event id to be deduplicated")
	}
}

func TestRecordWebhookEvent_HashFallback(t *testing.T) {
	repo := newFakeRepo()
	svc := NewReconciler(repo)

	created, stored, err := svc.RecordWebhookEvent(context.Background(), "", "payment.captured", `{"a":1}`, true)
	if err != nil || !created {
		t.Fatalf("expected create, got created=%v err=%v", created, err)
	}
	if len(stored.ProviderEventID) == 0 || stored.ProviderEventID[:5] != "hash:" {
		t.Fatalf("expected hash-derived event id, got %q", stored.ProviderEventID)
	}
}
