package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/magnani/frota-tvde/backend/internal/domain"
	"github.com/magnani/frota-tvde/backend/internal/services"
)

// subscriptionResponse corpo das respostas que podem trazer referência de pagamento
type subscriptionResponse struct {
	Subscription     *domain.Subscription     `json:"subscription"`
	PaymentReference *domain.PaymentReference `json:"payment_reference,omitempty"`
	Error            string                   `json:"error,omitempty"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CreateQuote calcula um orçamento sem criar nada
// POST /api/quotes
func (h *Handler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req services.QuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Corpo do pedido inválido")
		return
	}

	quote, err := h.subscriptions.ComputeQuote(r.Context(), principalFromRequest(r), req)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, quote)
}

// CreateSubscription pede uma subscrição (trial ou com referência de pagamento)
// POST /api/subscriptions
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req services.SubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Corpo do pedido inválido")
		return
	}

	sub, ref, err := h.subscriptions.RequestSubscription(r.Context(), principalFromRequest(r), req)
	h.respondWithReference(w, r, http.StatusCreated, sub, ref, err)
}

// GetSubscription GET /api/subscriptions/{id}
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subscriptions.GetSubscription(r.Context(), principalFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}

// CancelSubscription POST /api/subscriptions/{id}/cancel
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Corpo do pedido inválido")
			return
		}
	}

	sub, err := h.subscriptions.CancelSubscription(r.Context(), principalFromRequest(r), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}

// RenewSubscription POST /api/subscriptions/{id}/renew
func (h *Handler) RenewSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// a renovação em si não recebe principal; o acesso é verificado aqui
	if _, err := h.subscriptions.GetSubscription(r.Context(), principalFromRequest(r), id); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	sub, ref, err := h.subscriptions.RenewSubscription(r.Context(), id)
	h.respondWithReference(w, r, http.StatusOK, sub, ref, err)
}

// ReissuePaymentReference POST /api/subscriptions/{id}/payment-reference
func (h *Handler) ReissuePaymentReference(w http.ResponseWriter, r *http.Request) {
	sub, ref, err := h.subscriptions.ReissuePaymentReference(r.Context(), principalFromRequest(r), chi.URLParam(r, "id"))
	h.respondWithReference(w, r, http.StatusOK, sub, ref, err)
}

// PriceAudit recalcula o preço gravado
// GET /api/subscriptions/{id}/price-audit
func (h *Handler) PriceAudit(w http.ResponseWriter, r *http.Request) {
	audit, err := h.subscriptions.VerifySubscriptionPrice(r.Context(), principalFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, audit)
}

// respondWithReference trata as operações que pedem referência ao gateway.
// Com o gateway indisponível a subscrição existe e segue no corpo do 503.
func (h *Handler) respondWithReference(w http.ResponseWriter, r *http.Request, code int, sub *domain.Subscription, ref *domain.PaymentReference, err error) {
	if err != nil {
		if errors.Is(err, domain.ErrPaymentGatewayUnavailable) && sub != nil {
			respondWithJSON(w, http.StatusServiceUnavailable, subscriptionResponse{Subscription: sub, Error: err.Error()})
			return
		}
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, code, subscriptionResponse{Subscription: sub, PaymentReference: ref})
}
