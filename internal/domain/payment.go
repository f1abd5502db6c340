package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod representa o método de pagamento
type PaymentMethod string

const (
	PaymentMethodMultibanco PaymentMethod = "multibanco"
	PaymentMethodMBWay      PaymentMethod = "mbway"
)

// ParsePaymentMethod valida o método; vazio assume multibanco
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case "":
		return PaymentMethodMultibanco, nil
	case PaymentMethodMultibanco, PaymentMethodMBWay:
		return m, nil
	}
	return "", fmt.Errorf("%w: método de pagamento %q", ErrInvalidConfiguration, s)
}

// PaymentReference é uma referência Multibanco/MB WAY emitida pelo gateway
type PaymentReference struct {
	Method         PaymentMethod   `json:"method"`
	Entity         string          `json:"entity,omitempty"`
	Reference      string          `json:"reference"`
	Amount         decimal.Decimal `json:"amount"`
	ExpiresAt      time.Time       `json:"expires_at"`
	SubscriptionID string          `json:"subscription_id"`
	GatewayID      string          `json:"gateway_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// IsExpired verifica se a referência expirou
func (p *PaymentReference) IsExpired(now time.Time) bool {
	if p.ExpiresAt.IsZero() {
		return false
	}
	return now.After(p.ExpiresAt)
}
