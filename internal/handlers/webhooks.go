package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/magnani/frota-tvde/backend/internal/domain"
	"github.com/magnani/frota-tvde/backend/internal/services"
)

// WebhookSignatureHeader header com a assinatura HMAC enviada pela Easypay
const WebhookSignatureHeader = "X-Easypay-Signature"

// HandleEasypayWebhook recebe notificações da Easypay
// Endpoint: POST /api/webhooks/easypay
func (h *Handler) HandleEasypayWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Warn("webhook: erro ao ler body", "error", err)
		respondWithError(w, http.StatusBadRequest, "Erro ao ler o pedido")
		return
	}
	defer r.Body.Close()

	ev, err := h.webhooks.HandleWebhook(r.Context(), body, r.Header.Get(WebhookSignatureHeader))
	switch {
	case errors.Is(err, services.ErrInvalidSignature):
		h.logger.Warn("webhook com assinatura inválida", "remote_addr", r.RemoteAddr)
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, domain.ErrInvalidConfiguration):
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.respondWithServiceError(w, r, err)
		return
	}

	// 200 mesmo com falha de processamento: o evento fica gravado para nova tentativa
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":   "received",
		"event_id": ev.EventID,
		"result":   string(ev.Status),
	})
}

// HealthCheck endpoint para verificar se o servidor está a funcionar
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Error("health check: base de dados indisponível", "error", err)
			respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "frota-tvde-api",
			})
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "frota-tvde-api",
	})
}
