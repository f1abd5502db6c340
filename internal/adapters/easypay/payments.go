package easypay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/magnani/frota-tvde/backend/internal/domain"
	"github.com/magnani/frota-tvde/backend/internal/ports"
)

// CreatePaymentReference cria um pagamento único (referência Multibanco ou pedido MB WAY)
func (c *Client) CreatePaymentReference(ctx context.Context, req *ports.PaymentReferenceRequest) (*ports.PaymentReferenceResult, error) {
	method, err := apiMethod(req.Method)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: valor %s inválido", ports.ErrRequestRejected, req.Amount)
	}

	body := SinglePaymentRequest{
		Key:      req.IdempotencyKey,
		Type:     "sale",
		Method:   method,
		Value:    json.Number(req.Amount.StringFixed(2)),
		Currency: "EUR",
	}
	if !req.ExpiresAt.IsZero() {
		body.ExpirationTime = req.ExpiresAt.UTC().Format(expirationLayout)
	}
	if customer := toCustomer(req); customer != nil {
		body.Customer = customer
	}
	if method == MethodMBWay && (body.Customer == nil || body.Customer.Phone == "") {
		return nil, fmt.Errorf("%w: MB WAY exige telemóvel", ports.ErrRequestRejected)
	}

	headers := map[string]string{}
	if req.IdempotencyKey != "" {
		headers["Idempotency-Key"] = req.IdempotencyKey
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/single", body, headers)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar pagamento: %w", ClassifyError(err))
	}

	var resp SinglePaymentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("erro ao decodificar resposta: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("resposta da Easypay sem id de pagamento")
	}

	res := &ports.PaymentReferenceResult{
		GatewayID: resp.ID,
		Entity:    resp.Method.Entity,
		Reference: resp.Method.Reference,
	}
	if res.Reference == "" {
		res.Reference = resp.ID
	}
	if resp.ExpirationTime != "" {
		if t, err := time.ParseInLocation(expirationLayout, resp.ExpirationTime, time.UTC); err == nil {
			res.ExpiresAt = t
		}
	}
	return res, nil
}

func apiMethod(m domain.PaymentMethod) (string, error) {
	switch m {
	case domain.PaymentMethodMultibanco, "":
		return MethodMultibanco, nil
	case domain.PaymentMethodMBWay:
		return MethodMBWay, nil
	}
	return "", fmt.Errorf("%w: método %q não suportado", ports.ErrRequestRejected, m)
}

func toCustomer(req *ports.PaymentReferenceRequest) *Customer {
	ct := req.Contact
	if ct == (domain.Contact{}) && req.SubscriberID == "" {
		return nil
	}
	customer := &Customer{
		Name:  ct.Name,
		Email: ct.Email,
		Key:   req.SubscriberID,
	}
	if ct.Phone != "" {
		customer.Phone = ct.Phone
		customer.PhoneIndicative = "+351"
	}
	return customer
}

// Garante que Client implementa as portas
var (
	_ ports.PaymentReferenceGateway = (*Client)(nil)
	_ ports.WebhookParser           = (*Client)(nil)
)
