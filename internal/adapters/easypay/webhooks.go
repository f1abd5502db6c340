package easypay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/magnani/frota-tvde/backend/internal/ports"
)

// ValidateWebhookSignature valida a assinatura HMAC-SHA256 (hex) do corpo.
// Sem segredo configurado todas as notificações são aceites.
func (c *Client) ValidateWebhookSignature(body []byte, signature string) bool {
	if c.webhookSecret == "" {
		return true
	}
	if signature == "" {
		return false
	}

	return hmac.Equal([]byte(signature), []byte(Sign(body, c.webhookSecret)))
}

// Sign calcula a assinatura de body com secret
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseWebhookEvent converte uma notificação genérica no evento do domínio.
// Cada par (pagamento, tipo, estado) é um evento distinto; reenvios repetem o mesmo id.
func (c *Client) ParseWebhookEvent(payload []byte) (*ports.IncomingWebhookEvent, error) {
	var n GenericNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("erro ao decodificar webhook: %w", err)
	}
	if n.ID == "" || n.Type == "" {
		return nil, fmt.Errorf("notificação sem id ou tipo")
	}

	paymentKey := n.Key
	if paymentKey == "" {
		paymentKey = n.ID
	}

	return &ports.IncomingWebhookEvent{
		Gateway:    GatewayName,
		EventID:    n.ID + ":" + n.Type + ":" + n.Status,
		EventType:  n.Type,
		PaymentKey: paymentKey,
		Paid:       n.Type == NotificationTypeCapture && n.Status == NotificationStatusOK,
		Payload:    json.RawMessage(payload),
	}, nil
}
