package domain

import (
	"encoding/json"
	"time"
)

// WebhookStatus representa o estado de processamento de uma notificação do gateway
type WebhookStatus string

const (
	WebhookStatusPending    WebhookStatus = "pending"
	WebhookStatusProcessing WebhookStatus = "processing"
	WebhookStatusProcessed  WebhookStatus = "processed"
	WebhookStatusFailed     WebhookStatus = "failed"
	WebhookStatusSkipped    WebhookStatus = "skipped"
)

// MaxWebhookRetries define o número máximo de tentativas
const MaxWebhookRetries = 5

// WebhookEvent guarda uma notificação recebida do gateway, para auditoria e reprocessamento
type WebhookEvent struct {
	ID string `json:"id"`

	Gateway   string `json:"gateway"`
	EventID   string `json:"event_id"` // único por gateway
	EventType string `json:"event_type"`

	// Referência de pagamento ou chave de idempotência que identifica a subscrição
	PaymentKey string `json:"payment_key"`

	Payload json.RawMessage `json:"payload"`

	Status       WebhookStatus `json:"status"`
	ProcessedAt  *time.Time    `json:"processed_at,omitempty"`
	ErrorMessage *string       `json:"error_message,omitempty"`
	RetryCount   int           `json:"retry_count"`
	NextRetryAt  *time.Time    `json:"next_retry_at,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// NewWebhookEvent cria um novo evento pendente
func NewWebhookEvent(gateway, eventID, eventType, paymentKey string, payload json.RawMessage, now time.Time) *WebhookEvent {
	return &WebhookEvent{
		Gateway:    gateway,
		EventID:    eventID,
		EventType:  eventType,
		PaymentKey: paymentKey,
		Payload:    payload,
		Status:     WebhookStatusPending,
		ReceivedAt: now,
	}
}

// MarkProcessing marca o evento como em processamento
func (w *WebhookEvent) MarkProcessing() {
	w.Status = WebhookStatusProcessing
}

// MarkProcessed marca o evento como processado
func (w *WebhookEvent) MarkProcessed(now time.Time) {
	w.Status = WebhookStatusProcessed
	w.ProcessedAt = &now
	w.NextRetryAt = nil
}

// MarkFailed marca o evento como falhado e agenda nova tentativa com backoff exponencial
func (w *WebhookEvent) MarkFailed(errMsg string, now time.Time) {
	w.Status = WebhookStatusFailed
	w.ErrorMessage = &errMsg
	w.RetryCount++
	w.NextRetryAt = nil

	if w.RetryCount <= MaxWebhookRetries {
		// 1min, 2min, 4min, 8min, 16min
		backoff := time.Duration(1<<uint(w.RetryCount-1)) * time.Minute
		next := now.Add(backoff)
		w.NextRetryAt = &next
	}
}

// MarkSkipped marca o evento como ignorado (duplicado ou irrelevante)
func (w *WebhookEvent) MarkSkipped(reason string, now time.Time) {
	w.Status = WebhookStatusSkipped
	w.ErrorMessage = &reason
	w.ProcessedAt = &now
}

// CanRetry verifica se o evento pode ser reprocessado
func (w *WebhookEvent) CanRetry() bool {
	return w.Status == WebhookStatusFailed && w.RetryCount <= MaxWebhookRetries
}

// IsRetryDue verifica se já é hora de reprocessar
func (w *WebhookEvent) IsRetryDue(now time.Time) bool {
	if !w.CanRetry() || w.NextRetryAt == nil {
		return false
	}
	return !now.Before(*w.NextRetryAt)
}
