package easypay

import (
	"encoding/json"
	"strings"
)

// Customer dados do pagador enviados à Easypay
type Customer struct {
	Name            string `json:"name,omitempty"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	PhoneIndicative string `json:"phone_indicative,omitempty"`
	Key             string `json:"key,omitempty"` // id do subscritor
}

// SinglePaymentRequest corpo de POST /single
type SinglePaymentRequest struct {
	Key            string      `json:"key"`
	Type           string      `json:"type"` // sale
	Method         string      `json:"method"`
	Value          json.Number `json:"value"`
	Currency       string      `json:"currency"`
	ExpirationTime string      `json:"expiration_time,omitempty"`
	Customer       *Customer   `json:"customer,omitempty"`
}

// PaymentMethodInfo dados do método devolvidos na criação
type PaymentMethodInfo struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	Entity    string `json:"entity,omitempty"`
	Reference string `json:"reference,omitempty"`
	Alias     string `json:"alias,omitempty"` // MB WAY
}

// SinglePaymentResponse resposta de POST /single
type SinglePaymentResponse struct {
	Status         string            `json:"status"`
	Message        []string          `json:"message"`
	ID             string            `json:"id"`
	Method         PaymentMethodInfo `json:"method"`
	ExpirationTime string            `json:"expiration_time,omitempty"`
}

// GenericNotification corpo das notificações genéricas enviadas pela Easypay
type GenericNotification struct {
	ID       string   `json:"id"`  // id do pagamento na Easypay
	Key      string   `json:"key"` // chave enviada na criação
	Type     string   `json:"type"`
	Status   string   `json:"status"`
	Messages []string `json:"messages"`
	Date     string   `json:"date"`
}

// APIError representa um erro devolvido pela API Easypay
type APIError struct {
	HTTPStatus int      `json:"-"`
	Status     string   `json:"status"`
	Message    []string `json:"message"`
}

// Error implementa a interface error
func (e *APIError) Error() string {
	if len(e.Message) > 0 {
		return strings.Join(e.Message, "; ")
	}
	return e.Status
}
