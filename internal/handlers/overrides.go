package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type overrideRequest struct {
	FixedPrice *decimal.Decimal `json:"fixed_price,omitempty"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
	Reason     string           `json:"reason"`
}

// SetOverride substitui o override ativo do subscritor
// PUT /api/admin/subscribers/{id}/override
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Corpo do pedido inválido")
		return
	}
	if (req.FixedPrice == nil) == (req.Percentage == nil) {
		respondWithError(w, http.StatusBadRequest, "indique fixed_price ou percentage, não ambos")
		return
	}

	p := principalFromRequest(r)
	subscriberID := chi.URLParam(r, "id")

	var err error
	if req.FixedPrice != nil {
		o, e := h.overrides.SetFixedPriceOverride(r.Context(), p, subscriberID, *req.FixedPrice, req.Reason)
		if e == nil {
			respondWithJSON(w, http.StatusOK, o)
			return
		}
		err = e
	} else {
		o, e := h.overrides.SetPercentageOverride(r.Context(), p, subscriberID, *req.Percentage, req.Reason)
		if e == nil {
			respondWithJSON(w, http.StatusOK, o)
			return
		}
		err = e
	}
	h.respondWithServiceError(w, r, err)
}

// ClearOverride desativa os overrides do subscritor
// DELETE /api/admin/subscribers/{id}/override
func (h *Handler) ClearOverride(w http.ResponseWriter, r *http.Request) {
	n, err := h.overrides.ClearOverride(r.Context(), principalFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"deactivated": n})
}
