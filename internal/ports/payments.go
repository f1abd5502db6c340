// Package ports define as interfaces (portas) para adaptadores externos
// Seguindo o padrão Hexagonal Architecture / Ports & Adapters
package ports

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magnani/frota-tvde/backend/internal/domain"
)

// ──────────────────────────────────────────────
// Referências de pagamento (Multibanco / MB WAY)
// ──────────────────────────────────────────────

// ErrRequestRejected indica que o gateway recusou o pedido (erro 4xx); repetir não adianta
var ErrRequestRejected = errors.New("pedido recusado pelo gateway")

// PaymentReferenceRequest pedido de emissão de referência
type PaymentReferenceRequest struct {
	SubscriptionID string
	Method         domain.PaymentMethod
	Amount         decimal.Decimal // bruto, 2 casas decimais
	SubscriberID   string
	Contact        domain.Contact
	ExpiresAt      time.Time

	// IdempotencyKey identifica o pedido junto do gateway; repetições com a mesma chave
	// devolvem a mesma referência
	IdempotencyKey string
}

// PaymentReferenceResult resposta do gateway
type PaymentReferenceResult struct {
	GatewayID string
	Entity    string
	Reference string
	ExpiresAt time.Time
}

// IncomingWebhookEvent dados extraídos de uma notificação do gateway
type IncomingWebhookEvent struct {
	Gateway    string
	EventID    string
	EventType  string
	PaymentKey string // id do pagamento no gateway ou chave de idempotência
	Paid       bool
	Payload    json.RawMessage
}

// PaymentReferenceGateway define a interface para o gateway de referências.
// Qualquer erro devolvido é tratado como gateway indisponível.
type PaymentReferenceGateway interface {
	// CreatePaymentReference emite uma referência Multibanco ou um pedido MB WAY
	CreatePaymentReference(ctx context.Context, req *PaymentReferenceRequest) (*PaymentReferenceResult, error)
}

// WebhookParser valida e interpreta as notificações do gateway
type WebhookParser interface {
	// ValidateWebhookSignature valida a assinatura HMAC do payload
	ValidateWebhookSignature(payload []byte, signature string) bool

	// ParseWebhookEvent processa o payload e devolve o evento
	ParseWebhookEvent(payload []byte) (*IncomingWebhookEvent, error)
}

// Clock permite fixar o instante atual nos testes
type Clock interface {
	Now() time.Time
}

// SystemClock usa o relógio do sistema, em UTC
type SystemClock struct{}

// Now devolve o instante atual
func (SystemClock) Now() time.Time { return time.Now().UTC() }
