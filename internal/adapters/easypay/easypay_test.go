package easypay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magnani/frota-tvde/backend/internal/config"
	"github.com/magnani/frota-tvde/backend/internal/domain"
	"github.com/magnani/frota-tvde/backend/internal/ports"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(&config.EasypayConfig{
		AccountID: "acc-1",
		APIKey:    "key-1",
		BaseURL:   srv.URL,
	}, "segredo")
	require.NoError(t, err)
	return c
}

func referenceRequest() *ports.PaymentReferenceRequest {
	return &ports.PaymentReferenceRequest{
		SubscriptionID: "sub-1",
		Method:         domain.PaymentMethodMultibanco,
		Amount:         decimal.RequireFromString("72"),
		SubscriberID:   "p1",
		Contact:        domain.Contact{Name: "Ana", Email: "ana@example.pt"},
		ExpiresAt:      time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
		IdempotencyKey: "sub-1-abcd1234",
	}
}

func TestNewClient_BaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.EasypayConfig
		want string
	}{
		{"sandbox", config.EasypayConfig{Sandbox: true}, APIURLSandbox},
		{"produção", config.EasypayConfig{Sandbox: false}, APIURLProd},
		{"explícito", config.EasypayConfig{BaseURL: "http://localhost:9999/"}, "http://localhost:9999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(&tt.cfg, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.baseURL)
		})
	}
}

func TestNewClient_MissingCertificate(t *testing.T) {
	_, err := NewClient(&config.EasypayConfig{CertificatePath: "/nao/existe.p12"}, "")
	assert.Error(t, err)
}

func TestCreatePaymentReference_Multibanco(t *testing.T) {
	var raw []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/single", r.URL.Path)
		assert.Equal(t, "acc-1", r.Header.Get("AccountId"))
		assert.Equal(t, "key-1", r.Header.Get("ApiKey"))
		assert.Equal(t, "sub-1-abcd1234", r.Header.Get("Idempotency-Key"))

		raw, _ = io.ReadAll(r.Body)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":"ok","id":"pay-1","method":{"type":"MB","status":"PENDING","entity":"21098","reference":"123456789"}}`))
	})

	res, err := c.CreatePaymentReference(context.Background(), referenceRequest())
	require.NoError(t, err)

	assert.Equal(t, "pay-1", res.GatewayID)
	assert.Equal(t, "21098", res.Entity)
	assert.Equal(t, "123456789", res.Reference)
	assert.True(t, res.ExpiresAt.IsZero())

	var got SinglePaymentRequest
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.JSONEq(t, `72.00`, string(mustField(t, raw, "value")))
	assert.Equal(t, MethodMultibanco, got.Method)
	assert.Equal(t, "sub-1-abcd1234", got.Key)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, "2026-03-04 09:00", got.ExpirationTime)
	require.NotNil(t, got.Customer)
	assert.Equal(t, "p1", got.Customer.Key)
	assert.Empty(t, got.Customer.Phone)
}

func mustField(t *testing.T, body []byte, field string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	return m[field]
}

func TestCreatePaymentReference_MBWay(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req SinglePaymentRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) && assert.NotNil(t, req.Customer) {
			assert.Equal(t, MethodMBWay, req.Method)
			assert.Equal(t, "912345678", req.Customer.Phone)
			assert.Equal(t, "+351", req.Customer.PhoneIndicative)
		}

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":"ok","id":"pay-2","method":{"type":"MBW","status":"PENDING","alias":"351#912345678"},"expiration_time":"2026-03-02 09:05"}`))
	})

	req := referenceRequest()
	req.Method = domain.PaymentMethodMBWay
	req.Contact.Phone = "912345678"

	res, err := c.CreatePaymentReference(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "pay-2", res.Reference)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC), res.ExpiresAt)
}

func TestCreatePaymentReference_RejectedLocally(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	tests := []struct {
		name   string
		mutate func(r *ports.PaymentReferenceRequest)
	}{
		{"MB WAY sem telemóvel", func(r *ports.PaymentReferenceRequest) { r.Method = domain.PaymentMethodMBWay }},
		{"método desconhecido", func(r *ports.PaymentReferenceRequest) { r.Method = "paypal" }},
		{"valor zero", func(r *ports.PaymentReferenceRequest) { r.Amount = decimal.Zero }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := referenceRequest()
			tt.mutate(req)
			_, err := c.CreatePaymentReference(context.Background(), req)
			assert.ErrorIs(t, err, ports.ErrRequestRejected)
		})
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestCreatePaymentReference_APIErrors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantRejected bool
		wantServer   bool
	}{
		{"pedido inválido", http.StatusBadRequest, `{"status":"error","message":["value inválido"]}`, true, false},
		{"credenciais", http.StatusUnauthorized, `{"status":"error","message":["unauthorized"]}`, true, false},
		{"erro do servidor", http.StatusBadGateway, `bad gateway`, false, true},
		{"rate limit", http.StatusTooManyRequests, `{"status":"error","message":["slow down"]}`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.CreatePaymentReference(context.Background(), referenceRequest())
			require.Error(t, err)
			assert.Equal(t, tt.wantRejected, errors.Is(err, ports.ErrRequestRejected))
			assert.Equal(t, tt.wantServer, errors.Is(err, ErrServerError))
		})
	}
}

func TestClassifyError(t *testing.T) {
	plain := errors.New("ligação recusada")
	assert.Same(t, plain, ClassifyError(plain))

	err := ClassifyError(&APIError{HTTPStatus: http.StatusTooManyRequests})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.False(t, errors.Is(err, ports.ErrRequestRejected))

	err = ClassifyError(&APIError{HTTPStatus: http.StatusForbidden, Message: []string{"conta bloqueada"}})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, ports.ErrRequestRejected)
	assert.Contains(t, err.Error(), "conta bloqueada")
}

func TestValidateWebhookSignature(t *testing.T) {
	c, err := NewClient(&config.EasypayConfig{}, "segredo")
	require.NoError(t, err)
	body := []byte(`{"id":"pay-1","key":"sub-1-abcd1234","type":"capture","status":"success"}`)

	assert.True(t, c.ValidateWebhookSignature(body, Sign(body, "segredo")))
	assert.False(t, c.ValidateWebhookSignature(body, Sign(body, "outro")))
	assert.False(t, c.ValidateWebhookSignature(body, ""))

	open, err := NewClient(&config.EasypayConfig{}, "")
	require.NoError(t, err)
	assert.True(t, open.ValidateWebhookSignature(body, ""))
}

func TestParseWebhookEvent(t *testing.T) {
	c, err := NewClient(&config.EasypayConfig{}, "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		payload  string
		wantErr  bool
		wantKey  string
		wantPaid bool
		wantID   string
	}{
		{
			name:     "captura com sucesso",
			payload:  `{"id":"pay-1","key":"sub-1-abcd1234","type":"capture","status":"success","date":"2026-03-02 10:00:00"}`,
			wantKey:  "sub-1-abcd1234",
			wantPaid: true,
			wantID:   "pay-1:capture:success",
		},
		{
			name:    "captura falhada",
			payload: `{"id":"pay-1","key":"sub-1-abcd1234","type":"capture","status":"failed"}`,
			wantKey: "sub-1-abcd1234",
			wantID:  "pay-1:capture:failed",
		},
		{
			name:    "sem key usa o id do pagamento",
			payload: `{"id":"pay-9","type":"authorisation","status":"success"}`,
			wantKey: "pay-9",
			wantID:  "pay-9:authorisation:success",
		},
		{name: "json inválido", payload: `{`, wantErr: true},
		{name: "sem id", payload: `{"type":"capture"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := c.ParseWebhookEvent([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, GatewayName, ev.Gateway)
			assert.Equal(t, tt.wantKey, ev.PaymentKey)
			assert.Equal(t, tt.wantPaid, ev.Paid)
			assert.Equal(t, tt.wantID, ev.EventID)
			assert.JSONEq(t, tt.payload, string(ev.Payload))
		})
	}
}
