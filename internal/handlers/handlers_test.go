package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magnani/frota-tvde/backend/internal/domain"
	"github.com/magnani/frota-tvde/backend/internal/pricing"
	"github.com/magnani/frota-tvde/backend/internal/services"
)

type MockSubscriptionService struct {
	ComputeQuoteFn            func(ctx context.Context, p domain.Principal, req services.QuoteRequest) (*pricing.Quote, error)
	RequestSubscriptionFn     func(ctx context.Context, p domain.Principal, req services.SubscriptionRequest) (*domain.Subscription, *domain.PaymentReference, error)
	GetSubscriptionFn         func(ctx context.Context, p domain.Principal, id string) (*domain.Subscription, error)
	CancelSubscriptionFn      func(ctx context.Context, p domain.Principal, id, reason string) (*domain.Subscription, error)
	RenewSubscriptionFn       func(ctx context.Context, id string) (*domain.Subscription, *domain.PaymentReference, error)
	ReissuePaymentReferenceFn func(ctx context.Context, p domain.Principal, id string) (*domain.Subscription, *domain.PaymentReference, error)
	VerifySubscriptionPriceFn func(ctx context.Context, p domain.Principal, id string) (*services.PriceAudit, error)
}

func (m *MockSubscriptionService) ComputeQuote(ctx context.Context, p domain.Principal, req services.QuoteRequest) (*pricing.Quote, error) {
	return m.ComputeQuoteFn(ctx, p, req)
}

func (m *MockSubscriptionService) RequestSubscription(ctx context.Context, p domain.Principal, req services.SubscriptionRequest) (*domain.Subscription, *domain.PaymentReference, error) {
	return m.RequestSubscriptionFn(ctx, p, req)
}

func (m *MockSubscriptionService) GetSubscription(ctx context.Context, p domain.Principal, id string) (*domain.Subscription, error) {
	return m.GetSubscriptionFn(ctx, p, id)
}

func (m *MockSubscriptionService) CancelSubscription(ctx context.Context, p domain.Principal, id, reason string) (*domain.Subscription, error) {
	return m.CancelSubscriptionFn(ctx, p, id, reason)
}

func (m *MockSubscriptionService) RenewSubscription(ctx context.Context, id string) (*domain.Subscription, *domain.PaymentReference, error) {
	return m.RenewSubscriptionFn(ctx, id)
}

func (m *MockSubscriptionService) ReissuePaymentReference(ctx context.Context, p domain.Principal, id string) (*domain.Subscription, *domain.PaymentReference, error) {
	return m.ReissuePaymentReferenceFn(ctx, p, id)
}

func (m *MockSubscriptionService) VerifySubscriptionPrice(ctx context.Context, p domain.Principal, id string) (*services.PriceAudit, error) {
	return m.VerifySubscriptionPriceFn(ctx, p, id)
}

type MockOverrideService struct {
	SetFixedPriceOverrideFn func(ctx context.Context, p domain.Principal, subscriberID string, price decimal.Decimal, reason string) (*domain.DiscountOverride, error)
	SetPercentageOverrideFn func(ctx context.Context, p domain.Principal, subscriberID string, pct decimal.Decimal, reason string) (*domain.DiscountOverride, error)
	ClearOverrideFn         func(ctx context.Context, p domain.Principal, subscriberID string) (int, error)
}

func (m *MockOverrideService) SetFixedPriceOverride(ctx context.Context, p domain.Principal, subscriberID string, price decimal.Decimal, reason string) (*domain.DiscountOverride, error) {
	return m.SetFixedPriceOverrideFn(ctx, p, subscriberID, price, reason)
}

func (m *MockOverrideService) SetPercentageOverride(ctx context.Context, p domain.Principal, subscriberID string, pct decimal.Decimal, reason string) (*domain.DiscountOverride, error) {
	return m.SetPercentageOverrideFn(ctx, p, subscriberID, pct, reason)
}

func (m *MockOverrideService) ClearOverride(ctx context.Context, p domain.Principal, subscriberID string) (int, error) {
	return m.ClearOverrideFn(ctx, p, subscriberID)
}

type MockWebhookProcessor struct {
	HandleWebhookFn func(ctx context.Context, payload []byte, signature string) (*domain.WebhookEvent, error)
}

func (m *MockWebhookProcessor) HandleWebhook(ctx context.Context, payload []byte, signature string) (*domain.WebhookEvent, error) {
	return m.HandleWebhookFn(ctx, payload, signature)
}

type MockPinger struct {
	Err error
}

func (m *MockPinger) Ping(ctx context.Context) error { return m.Err }

func newTestHandler(subs *MockSubscriptionService, overrides *MockOverrideService, webhooks *MockWebhookProcessor, db Pinger) http.Handler {
	if subs == nil {
		subs = &MockSubscriptionService{}
	}
	if overrides == nil {
		overrides = &MockOverrideService{}
	}
	if webhooks == nil {
		webhooks = &MockWebhookProcessor{}
	}
	return NewHandler(subs, overrides, webhooks, db, nil).Routes()
}

func doRequest(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

var subscriberHeaders = map[string]string{HeaderActorID: "p1"}

func TestPrincipalFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderActorID, "fleet-mgr")
	req.Header.Set(HeaderActAs, "p1")
	req.Header.Set(HeaderAdmin, "true")

	p := principalFromRequest(req)
	assert.Equal(t, "fleet-mgr", p.ActorID)
	assert.Equal(t, "p1", p.ActingAsSubscriberID)
	assert.True(t, p.IsAdmin)

	req.Header.Set(HeaderAdmin, "talvez")
	assert.False(t, principalFromRequest(req).IsAdmin)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidConfiguration, http.StatusUnprocessableEntity},
		{domain.ErrPromotionNotApplicable, http.StatusUnprocessableEntity},
		{domain.ErrInvalidPeriodicity, http.StatusBadRequest},
		{domain.ErrInvalidTransition, http.StatusConflict},
		{domain.ErrConcurrentUpdate, http.StatusConflict},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrPaymentGatewayUnavailable, http.StatusServiceUnavailable},
		{domain.ErrInvariantViolation, http.StatusInternalServerError},
		{errors.New("disco cheio"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("%w: contexto", tt.err)
			assert.Equal(t, tt.want, statusFor(wrapped))
		})
	}
}

func TestCreateQuote(t *testing.T) {
	var got services.QuoteRequest
	subs := &MockSubscriptionService{
		ComputeQuoteFn: func(ctx context.Context, p domain.Principal, req services.QuoteRequest) (*pricing.Quote, error) {
			got = req
			assert.Equal(t, "p1", p.ActorID)
			return &pricing.Quote{
				PlanID:       req.PlanID,
				Periodicity:  domain.PeriodicityMonthly,
				GrossAmount:  decimal.RequireFromString("72.00"),
				NetAmount:    decimal.RequireFromString("58.54"),
				IVAAmount:    decimal.RequireFromString("13.46"),
				MonthlyGross: decimal.RequireFromString("72.00"),
			}, nil
		},
	}
	h := newTestHandler(subs, nil, nil, nil)

	rr := doRequest(h, http.MethodPost, "/api/quotes",
		`{"plan_id":"pro","module_ids":["tracking"],"vehicle_count":3,"driver_count":2,"periodicity":"monthly"}`,
		subscriberHeaders)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pro", got.PlanID)
	assert.Equal(t, []string{"tracking"}, got.ModuleIDs)
	assert.Equal(t, 3, got.VehicleCount)

	var quote pricing.Quote
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &quote))
	assert.True(t, quote.GrossAmount.Equal(decimal.RequireFromString("72")))
}

func TestCreateQuote_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"json inválido", `{`, nil, http.StatusBadRequest, "Corpo do pedido inválido"},
		{"campo desconhecido", `{"plano":"pro"}`, nil, http.StatusBadRequest, "Corpo do pedido inválido"},
		{"plano inexistente", `{"plan_id":"x"}`, domain.ErrInvalidConfiguration, http.StatusUnprocessableEntity, "configuração inválida"},
		{"periodicidade", `{"plan_id":"pro","periodicity":"daily"}`, domain.ErrInvalidPeriodicity, http.StatusBadRequest, "periodicidade inválida"},
		{"promoção", `{"plan_id":"pro","promo_code":"X"}`, domain.ErrPromotionNotApplicable, http.StatusUnprocessableEntity, "promoção não aplicável"},
		{"invariante", `{"plan_id":"pro"}`, domain.ErrInvariantViolation, http.StatusInternalServerError, "erro interno"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := &MockSubscriptionService{
				ComputeQuoteFn: func(ctx context.Context, p domain.Principal, req services.QuoteRequest) (*pricing.Quote, error) {
					return nil, fmt.Errorf("%w: detalhe", tt.err)
				},
			}
			rr := doRequest(newTestHandler(subs, nil, nil, nil), http.MethodPost, "/api/quotes", tt.body, subscriberHeaders)

			assert.Equal(t, tt.wantStatus, rr.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Contains(t, body["error"], tt.wantMsg)
		})
	}
}

func TestCreateSubscription(t *testing.T) {
	subs := &MockSubscriptionService{
		RequestSubscriptionFn: func(ctx context.Context, p domain.Principal, req services.SubscriptionRequest) (*domain.Subscription, *domain.PaymentReference, error) {
			assert.Equal(t, "pro", req.PlanID)
			assert.Equal(t, "mbway", req.PaymentMethod)
			assert.Equal(t, "912345678", req.Contact.Phone)
			sub := &domain.Subscription{ID: "sub-1", SubscriberID: p.EffectiveSubscriber(), Status: domain.SubscriptionStatusPendingPayment}
			ref := &domain.PaymentReference{Method: domain.PaymentMethodMBWay, Reference: "pay-1", SubscriptionID: "sub-1", Amount: decimal.RequireFromString("72")}
			return sub, ref, nil
		},
	}

	rr := doRequest(newTestHandler(subs, nil, nil, nil), http.MethodPost, "/api/subscriptions",
		`{"plan_id":"pro","periodicity":"monthly","vehicle_count":1,"payment_method":"mbway","contact":{"name":"Ana","phone":"912345678"}}`,
		subscriberHeaders)

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp subscriptionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Subscription)
	assert.Equal(t, "sub-1", resp.Subscription.ID)
	assert.Equal(t, "p1", resp.Subscription.SubscriberID)
	require.NotNil(t, resp.PaymentReference)
	assert.Equal(t, "pay-1", resp.PaymentReference.Reference)
}

func TestCreateSubscription_GatewayUnavailable(t *testing.T) {
	subs := &MockSubscriptionService{
		RequestSubscriptionFn: func(ctx context.Context, p domain.Principal, req services.SubscriptionRequest) (*domain.Subscription, *domain.PaymentReference, error) {
			sub := &domain.Subscription{ID: "sub-1", Status: domain.SubscriptionStatusPendingPayment}
			return sub, nil, fmt.Errorf("%w: timeout", domain.ErrPaymentGatewayUnavailable)
		},
	}

	rr := doRequest(newTestHandler(subs, nil, nil, nil), http.MethodPost, "/api/subscriptions", `{"plan_id":"pro"}`, subscriberHeaders)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var resp subscriptionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Subscription)
	assert.Equal(t, domain.SubscriptionStatusPendingPayment, resp.Subscription.Status)
	assert.Nil(t, resp.PaymentReference)
	assert.Contains(t, resp.Error, "gateway de pagamento indisponível")
}

func TestGetSubscription(t *testing.T) {
	subs := &MockSubscriptionService{
		GetSubscriptionFn: func(ctx context.Context, p domain.Principal, id string) (*domain.Subscription, error) {
			switch id {
			case "sub-1":
				return &domain.Subscription{ID: id, SubscriberID: "p1", Status: domain.SubscriptionStatusActive}, nil
			case "sub-2":
				return nil, domain.ErrForbidden
			}
			return nil, domain.ErrNotFound
		},
	}
	h := newTestHandler(subs, nil, nil, nil)

	tests := []struct {
		id         string
		wantStatus int
	}{
		{"sub-1", http.StatusOK},
		{"sub-2", http.StatusForbidden},
		{"sub-9", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			rr := doRequest(h, http.MethodGet, "/api/subscriptions/"+tt.id, "", subscriberHeaders)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestCancelSubscription(t *testing.T) {
	var gotReason string
	subs := &MockSubscriptionService{
		CancelSubscriptionFn: func(ctx context.Context, p domain.Principal, id, reason string) (*domain.Subscription, error) {
			gotReason = reason
			if id == "sub-cancelada" {
				return nil, fmt.Errorf("%w: cancelled -> cancelled", domain.ErrInvalidTransition)
			}
			return &domain.Subscription{ID: id, Status: domain.SubscriptionStatusCancelled}, nil
		},
	}
	h := newTestHandler(subs, nil, nil, nil)

	rr := doRequest(h, http.MethodPost, "/api/subscriptions/sub-1/cancel", `{"reason":"vendeu a frota"}`, subscriberHeaders)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "vendeu a frota", gotReason)

	rr = doRequest(h, http.MethodPost, "/api/subscriptions/sub-1/cancel", "", subscriberHeaders)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, gotReason)

	rr = doRequest(h, http.MethodPost, "/api/subscriptions/sub-cancelada/cancel", "", subscriberHeaders)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestRenewSubscription_ChecksAccessFirst(t *testing.T) {
	renewed := false
	subs := &MockSubscriptionService{
		GetSubscriptionFn: func(ctx context.Context, p domain.Principal, id string) (*domain.Subscription, error) {
			if p.EffectiveSubscriber() != "p1" {
				return nil, domain.ErrForbidden
			}
			return &domain.Subscription{ID: id, SubscriberID: "p1"}, nil
		},
		RenewSubscriptionFn: func(ctx context.Context, id string) (*domain.Subscription, *domain.PaymentReference, error) {
			renewed = true
			return &domain.Subscription{ID: id, Status: domain.SubscriptionStatusPendingPayment},
				&domain.PaymentReference{Reference: "123456789", SubscriptionID: id}, nil
		},
	}
	h := newTestHandler(subs, nil, nil, nil)

	rr := doRequest(h, http.MethodPost, "/api/subscriptions/sub-1/renew", "", map[string]string{HeaderActorID: "p2"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.False(t, renewed)

	rr = doRequest(h, http.MethodPost, "/api/subscriptions/sub-1/renew", "", subscriberHeaders)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, renewed)

	var resp subscriptionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.PaymentReference)
	assert.Equal(t, "123456789", resp.PaymentReference.Reference)
}

func TestReissuePaymentReference(t *testing.T) {
	subs := &MockSubscriptionService{
		ReissuePaymentReferenceFn: func(ctx context.Context, p domain.Principal, id string) (*domain.Subscription, *domain.PaymentReference, error) {
			if id == "sub-ativa" {
				return nil, nil, domain.ErrInvalidTransition
			}
			return &domain.Subscription{ID: id}, &domain.PaymentReference{Reference: "987654321", SubscriptionID: id}, nil
		},
	}
	h := newTestHandler(subs, nil, nil, nil)

	rr := doRequest(h, http.MethodPost, "/api/subscriptions/sub-1/payment-reference", "", subscriberHeaders)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "987654321")

	rr = doRequest(h, http.MethodPost, "/api/subscriptions/sub-ativa/payment-reference", "", subscriberHeaders)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestPriceAudit(t *testing.T) {
	subs := &MockSubscriptionService{
		VerifySubscriptionPriceFn: func(ctx context.Context, p domain.Principal, id string) (*services.PriceAudit, error) {
			return &services.PriceAudit{
				SubscriptionID:  id,
				StoredGross:     decimal.RequireFromString("72"),
				RecomputedGross: decimal.RequireFromString("80"),
				Matches:         false,
			}, nil
		},
	}

	rr := doRequest(newTestHandler(subs, nil, nil, nil), http.MethodGet, "/api/subscriptions/sub-1/price-audit", "", subscriberHeaders)

	require.Equal(t, http.StatusOK, rr.Code)
	var audit services.PriceAudit
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &audit))
	assert.Equal(t, "sub-1", audit.SubscriptionID)
	assert.False(t, audit.Matches)
	assert.True(t, audit.RecomputedGross.Equal(decimal.RequireFromString("80")))
}

func TestSetOverride(t *testing.T) {
	admin := map[string]string{HeaderActorID: "admin-1", HeaderAdmin: "true"}

	var fixedCalls, pctCalls int
	overrides := &MockOverrideService{
		SetFixedPriceOverrideFn: func(ctx context.Context, p domain.Principal, subscriberID string, price decimal.Decimal, reason string) (*domain.DiscountOverride, error) {
			fixedCalls++
			if !p.IsAdmin {
				return nil, domain.ErrForbidden
			}
			assert.Equal(t, "p1", subscriberID)
			assert.True(t, price.Equal(decimal.RequireFromString("49.90")))
			assert.Equal(t, "cliente antigo", reason)
			return &domain.DiscountOverride{ID: "ov-1", SubscriberID: subscriberID, FixedPrice: &price, Reason: reason, IsActive: true}, nil
		},
		SetPercentageOverrideFn: func(ctx context.Context, p domain.Principal, subscriberID string, pct decimal.Decimal, reason string) (*domain.DiscountOverride, error) {
			pctCalls++
			if pct.GreaterThan(decimal.NewFromInt(100)) {
				return nil, fmt.Errorf("%w: percentagem fora de 0-100", domain.ErrInvalidConfiguration)
			}
			return &domain.DiscountOverride{ID: "ov-2", SubscriberID: subscriberID, Percentage: &pct, IsActive: true}, nil
		},
	}
	h := newTestHandler(nil, overrides, nil, nil)

	tests := []struct {
		name       string
		body       string
		headers    map[string]string
		wantStatus int
	}{
		{"preço fixo", `{"fixed_price":"49.90","reason":"cliente antigo"}`, admin, http.StatusOK},
		{"percentagem", `{"percentage":15,"reason":"parceria"}`, admin, http.StatusOK},
		{"percentagem inválida", `{"percentage":150}`, admin, http.StatusUnprocessableEntity},
		{"ambos", `{"fixed_price":"10","percentage":10}`, admin, http.StatusBadRequest},
		{"nenhum", `{"reason":"x"}`, admin, http.StatusBadRequest},
		{"não admin", `{"fixed_price":"49.90","reason":"cliente antigo"}`, subscriberHeaders, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(h, http.MethodPut, "/api/admin/subscribers/p1/override", tt.body, tt.headers)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}
	assert.Equal(t, 2, fixedCalls)
	assert.Equal(t, 2, pctCalls)
}

func TestClearOverride(t *testing.T) {
	overrides := &MockOverrideService{
		ClearOverrideFn: func(ctx context.Context, p domain.Principal, subscriberID string) (int, error) {
			if !p.IsAdmin {
				return 0, domain.ErrForbidden
			}
			return 1, nil
		},
	}
	h := newTestHandler(nil, overrides, nil, nil)

	rr := doRequest(h, http.MethodDelete, "/api/admin/subscribers/p1/override", "", map[string]string{HeaderActorID: "admin-1", HeaderAdmin: "1"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"deactivated":1}`, rr.Body.String())

	rr = doRequest(h, http.MethodDelete, "/api/admin/subscribers/p1/override", "", subscriberHeaders)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandleEasypayWebhook(t *testing.T) {
	const payload = `{"id":"pay-1","key":"sub-1-abcd1234","type":"capture","status":"success"}`

	webhooks := &MockWebhookProcessor{
		HandleWebhookFn: func(ctx context.Context, body []byte, signature string) (*domain.WebhookEvent, error) {
			switch signature {
			case "boa":
				assert.JSONEq(t, payload, string(body))
				return &domain.WebhookEvent{EventID: "pay-1:capture:success", Status: domain.WebhookStatusProcessed}, nil
			case "falha":
				return &domain.WebhookEvent{EventID: "pay-1:capture:success", Status: domain.WebhookStatusFailed}, nil
			case "malformado":
				return nil, fmt.Errorf("%w: notificação sem id", domain.ErrInvalidConfiguration)
			}
			return nil, services.ErrInvalidSignature
		},
	}
	h := newTestHandler(nil, nil, webhooks, nil)

	tests := []struct {
		name       string
		signature  string
		wantStatus int
		wantResult string
	}{
		{"processado", "boa", http.StatusOK, "processed"},
		{"falha fica para nova tentativa", "falha", http.StatusOK, "failed"},
		{"payload inválido", "malformado", http.StatusBadRequest, ""},
		{"assinatura inválida", "errada", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(h, http.MethodPost, "/api/webhooks/easypay", payload, map[string]string{WebhookSignatureHeader: tt.signature})
			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantResult != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Equal(t, tt.wantResult, body["result"])
				assert.Equal(t, "pay-1:capture:success", body["event_id"])
			}
		})
	}
}

func TestHandleEasypayWebhook_BodyTooLarge(t *testing.T) {
	called := false
	webhooks := &MockWebhookProcessor{
		HandleWebhookFn: func(ctx context.Context, body []byte, signature string) (*domain.WebhookEvent, error) {
			called = true
			return &domain.WebhookEvent{}, nil
		},
	}

	big := `{"id":"` + strings.Repeat("a", int(maxWebhookBodySize)) + `"}`
	rr := doRequest(newTestHandler(nil, nil, webhooks, nil), http.MethodPost, "/api/webhooks/easypay", big, nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, called)
}

func TestHealthCheck(t *testing.T) {
	rr := doRequest(newTestHandler(nil, nil, nil, &MockPinger{}), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "healthy")

	rr = doRequest(newTestHandler(nil, nil, nil, &MockPinger{Err: errors.New("database is locked")}), http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "unhealthy")
}
