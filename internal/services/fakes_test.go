package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/magnani/frota-tvde/backend/internal/domain"
	"github.com/magnani/frota-tvde/backend/internal/metrics"
	"github.com/magnani/frota-tvde/backend/internal/ports"
	"github.com/magnani/frota-tvde/backend/internal/pricing"
)

// ──────────────────────────────────────────────
// Relógio
// ──────────────────────────────────────────────

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ──────────────────────────────────────────────
// Catálogo
// ──────────────────────────────────────────────

type fakeCatalog struct {
	mu         sync.Mutex
	plans      map[string]*domain.Plan
	modules    map[string]domain.Module
	promotions []domain.Promotion
	overrides  map[string][]domain.DiscountOverride
}

func (c *fakeCatalog) GetPlan(_ context.Context, id string) (*domain.Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (c *fakeCatalog) GetModules(_ context.Context, ids []string) (map[string]domain.Module, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]domain.Module)
	for _, id := range ids {
		if m, ok := c.modules[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (c *fakeCatalog) ListPromotions(_ context.Context, planID string) ([]domain.Promotion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Promotion
	for _, p := range c.promotions {
		if p.PlanID == planID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *fakeCatalog) ActiveOverrides(_ context.Context, subscriberID string) ([]domain.DiscountOverride, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.DiscountOverride(nil), c.overrides[subscriberID]...), nil
}

func (c *fakeCatalog) setOverrides(subscriberID string, o ...domain.DiscountOverride) {
	c.mu.Lock()
	c.overrides[subscriberID] = o
	c.mu.Unlock()
}

// ──────────────────────────────────────────────
// Repositório de subscrições (com CAS em Version)
// ──────────────────────────────────────────────

type fakeRepo struct {
	mu   sync.Mutex
	subs map[string]*domain.Subscription
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{subs: make(map[string]*domain.Subscription)}
}

func cloneSub(s *domain.Subscription) *domain.Subscription {
	cp := *s
	cp.ModuleIDs = append([]string(nil), s.ModuleIDs...)
	if s.PaymentReference != nil {
		ref := *s.PaymentReference
		cp.PaymentReference = &ref
	}
	if s.TrialEndsAt != nil {
		t := *s.TrialEndsAt
		cp.TrialEndsAt = &t
	}
	if s.CancelledAt != nil {
		t := *s.CancelledAt
		cp.CancelledAt = &t
	}
	return &cp
}

func (r *fakeRepo) Create(_ context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub.Version = 1
	r.subs[sub.ID] = cloneSub(sub)
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id string) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneSub(s), nil
}

func (r *fakeRepo) Update(_ context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.subs[sub.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != sub.Version {
		return domain.ErrConcurrentUpdate
	}
	sub.Version++
	r.subs[sub.ID] = cloneSub(sub)
	return nil
}

func (r *fakeRepo) HasSubscriptionForPlan(_ context.Context, subscriberID, planID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.SubscriberID == subscriberID && s.PlanID == planID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) FindByPaymentKey(_ context.Context, key string) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.PaymentRequestKey == key {
			return cloneSub(s), nil
		}
		if ref := s.PaymentReference; ref != nil && (ref.GatewayID == key || ref.Reference == key) {
			return cloneSub(s), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeRepo) ListBillingDue(_ context.Context, before time.Time) ([]*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Subscription
	for _, s := range r.subs {
		if (s.Status == domain.SubscriptionStatusActive || s.Status == domain.SubscriptionStatusPendingPayment) &&
			s.NextBillingDate.Before(before) {
			out = append(out, cloneSub(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRepo) ListTrialsEnded(_ context.Context, now time.Time) ([]*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Subscription
	for _, s := range r.subs {
		if s.Status == domain.SubscriptionStatusTrial && s.TrialEndsAt != nil && !now.Before(*s.TrialEndsAt) {
			out = append(out, cloneSub(s))
		}
	}
	return out, nil
}

// ──────────────────────────────────────────────
// Gateway
// ──────────────────────────────────────────────

type fakeGateway struct {
	mu       sync.Mutex
	calls    []ports.PaymentReferenceRequest
	CreateFn func(ctx context.Context, req *ports.PaymentReferenceRequest) (*ports.PaymentReferenceResult, error)
}

func (g *fakeGateway) CreatePaymentReference(ctx context.Context, req *ports.PaymentReferenceRequest) (*ports.PaymentReferenceResult, error) {
	g.mu.Lock()
	g.calls = append(g.calls, *req)
	fn := g.CreateFn
	g.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return &ports.PaymentReferenceResult{
		GatewayID: "gw-" + req.IdempotencyKey,
		Entity:    "21098",
		Reference: "123456789",
	}, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// ──────────────────────────────────────────────
// Overrides e webhooks
// ──────────────────────────────────────────────

type fakeOverrideWriter struct {
	mu       sync.Mutex
	active   map[string]*domain.DiscountOverride
	replaced int
}

func (w *fakeOverrideWriter) ReplaceActiveOverride(_ context.Context, o *domain.DiscountOverride) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active[o.SubscriberID] = o
	w.replaced++
	return nil
}

func (w *fakeOverrideWriter) DeactivateOverrides(_ context.Context, subscriberID string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.active[subscriberID]; !ok {
		return 0, nil
	}
	delete(w.active, subscriberID)
	return 1, nil
}

type fakeParser struct{}

type testNotification struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Status string `json:"status"`
}

func (p *fakeParser) ValidateWebhookSignature(_ []byte, signature string) bool {
	return signature == "ok"
}

func (p *fakeParser) ParseWebhookEvent(payload []byte) (*ports.IncomingWebhookEvent, error) {
	var n testNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, err
	}
	return &ports.IncomingWebhookEvent{
		Gateway:    "easypay",
		EventID:    n.ID,
		EventType:  n.Status,
		PaymentKey: n.Key,
		Paid:       n.Status == "success",
		Payload:    payload,
	}, nil
}

type fakeWebhookStore struct {
	mu     sync.Mutex
	events map[string]*domain.WebhookEvent
}

func (s *fakeWebhookStore) SaveWebhookEvent(_ context.Context, e *domain.WebhookEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := e.Gateway + "/" + e.EventID
	if _, ok := s.events[k]; ok {
		return false, nil
	}
	cp := *e
	s.events[k] = &cp
	return true, nil
}

func (s *fakeWebhookStore) UpdateWebhookEvent(_ context.Context, e *domain.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.events[e.Gateway+"/"+e.EventID] = &cp
	return nil
}

func (s *fakeWebhookStore) ListRetryableWebhookEvents(_ context.Context, now time.Time, limit int) ([]*domain.WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.WebhookEvent
	for _, e := range s.events {
		if e.IsRetryDue(now) && len(out) < limit {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ──────────────────────────────────────────────
// Montagem
// ──────────────────────────────────────────────

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type harness struct {
	svc     *SubscriptionService
	catalog *fakeCatalog
	repo    *fakeRepo
	gateway *fakeGateway
	clock   *fakeClock
	metrics *metrics.Metrics
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	catalog := &fakeCatalog{
		plans: map[string]*domain.Plan{
			"frota": {
				ID: "frota", Name: "Frota", TargetUserType: domain.UserTypePartner,
				BasePrice: dec("100"), PerVehiclePrice: dec("10"), PerDriverPrice: dec("0"),
				AllowsTrial: true, TrialDays: 14, IsActive: true,
			},
			"motorista": {
				ID: "motorista", Name: "Motorista", TargetUserType: domain.UserTypeDriver,
				BasePrice: dec("20"), PerVehiclePrice: dec("0"), PerDriverPrice: dec("0"),
				IsActive: true,
			},
		},
		modules: map[string]domain.Module{
			"relatorios": {ID: "relatorios", Billing: domain.FixedBilling{Price: dec("15")}, IsActive: true},
		},
		overrides: map[string][]domain.DiscountOverride{},
	}

	engine, err := pricing.NewEngine(pricing.DefaultIVARate, pricing.DefaultPeriodDiscounts())
	require.NoError(t, err)

	h := &harness{
		catalog: catalog,
		repo:    newFakeRepo(),
		gateway: &fakeGateway{},
		clock:   &fakeClock{now: t0},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	h.svc = NewSubscriptionService(Dependencies{
		Catalog: h.catalog,
		Repo:    h.repo,
		Gateway: h.gateway,
		Engine:  engine,
		Clock:   h.clock,
		Metrics: h.metrics,
		Logger:  discardLogger(),
	}, Config{
		GracePeriod:           72 * time.Hour,
		ReferenceTTL:          48 * time.Hour,
		GatewayMaxAttempts:    4,
		GatewayInitialBackoff: time.Millisecond,
	})
	return h
}
