// Package handlers contém os handlers HTTP da aplicação
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/magnani/frota-tvde/backend/internal/domain"
	"github.com/magnani/frota-tvde/backend/internal/pricing"
	"github.com/magnani/frota-tvde/backend/internal/services"
)

// Headers com a identidade do pedido, definidos pelo gateway de autenticação a montante
const (
	HeaderActorID      = "X-Actor-ID"
	HeaderActAs        = "X-Act-As-Subscriber"
	HeaderAdmin        = "X-Admin"
	maxWebhookBodySize = int64(65536)
)

// SubscriptionService é a parte do serviço de subscrições usada pelo HTTP
type SubscriptionService interface {
	ComputeQuote(ctx context.Context, p domain.Principal, req services.QuoteRequest) (*pricing.Quote, error)
	RequestSubscription(ctx context.Context, p domain.Principal, req services.SubscriptionRequest) (*domain.Subscription, *domain.PaymentReference, error)
	GetSubscription(ctx context.Context, p domain.Principal, id string) (*domain.Subscription, error)
	CancelSubscription(ctx context.Context, p domain.Principal, id, reason string) (*domain.Subscription, error)
	RenewSubscription(ctx context.Context, id string) (*domain.Subscription, *domain.PaymentReference, error)
	ReissuePaymentReference(ctx context.Context, p domain.Principal, id string) (*domain.Subscription, *domain.PaymentReference, error)
	VerifySubscriptionPrice(ctx context.Context, p domain.Principal, id string) (*services.PriceAudit, error)
}

// OverrideService gere os overrides de preço (só administradores)
type OverrideService interface {
	SetFixedPriceOverride(ctx context.Context, p domain.Principal, subscriberID string, price decimal.Decimal, reason string) (*domain.DiscountOverride, error)
	SetPercentageOverride(ctx context.Context, p domain.Principal, subscriberID string, pct decimal.Decimal, reason string) (*domain.DiscountOverride, error)
	ClearOverride(ctx context.Context, p domain.Principal, subscriberID string) (int, error)
}

// WebhookProcessor grava e processa notificações do gateway
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*domain.WebhookEvent, error)
}

// Pinger verifica a disponibilidade da base de dados
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler agrupa os handlers da API
type Handler struct {
	subscriptions SubscriptionService
	overrides     OverrideService
	webhooks      WebhookProcessor
	db            Pinger
	logger        *slog.Logger
}

// NewHandler cria o handler. db pode ser nil.
func NewHandler(subs SubscriptionService, overrides OverrideService, webhooks WebhookProcessor, db Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		subscriptions: subs,
		overrides:     overrides,
		webhooks:      webhooks,
		db:            db,
		logger:        logger.With("component", "http"),
	}
}

// Routes define todas as rotas da API
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HealthCheck)

		r.Post("/quotes", h.CreateQuote)

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", h.CreateSubscription)
			r.Get("/{id}", h.GetSubscription)
			r.Post("/{id}/cancel", h.CancelSubscription)
			r.Post("/{id}/renew", h.RenewSubscription)
			r.Post("/{id}/payment-reference", h.ReissuePaymentReference)
			r.Get("/{id}/price-audit", h.PriceAudit)
		})

		r.Put("/admin/subscribers/{id}/override", h.SetOverride)
		r.Delete("/admin/subscribers/{id}/override", h.ClearOverride)

		r.Post("/webhooks/easypay", h.HandleEasypayWebhook)
	})

	return r
}

// principalFromRequest lê a identidade dos headers
func principalFromRequest(r *http.Request) domain.Principal {
	admin, _ := strconv.ParseBool(r.Header.Get(HeaderAdmin))
	return domain.Principal{
		ActorID:              r.Header.Get(HeaderActorID),
		ActingAsSubscriberID: r.Header.Get(HeaderActAs),
		IsAdmin:              admin,
	}
}

// statusFor mapeia os erros do domínio em códigos HTTP
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvariantViolation):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrInvalidPeriodicity):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidConfiguration), errors.Is(err, domain.ErrPromotionNotApplicable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPaymentGatewayUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondWithServiceError escreve o erro do serviço; em 5xx a mensagem interna não sai
func (h *Handler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("erro interno", "method", r.Method, "path", r.URL.Path, "error", err)
		respondWithError(w, code, "erro interno")
		return
	}
	respondWithError(w, code, err.Error())
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("erro ao serializar resposta", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
