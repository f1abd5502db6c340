package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountKind identifica o desconto aplicado num orçamento
type DiscountKind string

const (
	DiscountNone       DiscountKind = "none"
	DiscountFixedPrice DiscountKind = "fixed_price"
	DiscountPercentage DiscountKind = "percentage"
)

var hundred = decimal.NewFromInt(100)

// DiscountOverride é um preço/desconto definido por um administrador para um subscritor.
// Exatamente um dos campos FixedPrice ou Percentage está preenchido.
type DiscountOverride struct {
	ID           string           `json:"id"`
	SubscriberID string           `json:"subscriber_id"`
	FixedPrice   *decimal.Decimal `json:"fixed_price,omitempty"` // bruto, mensal
	Percentage   *decimal.Decimal `json:"percentage,omitempty"`  // 0-100
	Reason       string           `json:"reason"`
	IsActive     bool             `json:"is_active"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Kind devolve o tipo de desconto do override
func (o *DiscountOverride) Kind() DiscountKind {
	switch {
	case o.FixedPrice != nil:
		return DiscountFixedPrice
	case o.Percentage != nil:
		return DiscountPercentage
	}
	return DiscountNone
}

// Validate garante que o override tem exatamente um valor e que está dentro dos limites
func (o *DiscountOverride) Validate() error {
	if o.SubscriberID == "" {
		return fmt.Errorf("%w: override sem subscritor", ErrInvalidConfiguration)
	}
	if o.FixedPrice != nil && o.Percentage != nil {
		return fmt.Errorf("%w: override %s com preço fixo e percentagem em simultâneo", ErrInvariantViolation, o.ID)
	}
	if o.FixedPrice == nil && o.Percentage == nil {
		return fmt.Errorf("%w: override sem valor", ErrInvalidConfiguration)
	}
	if o.FixedPrice != nil && o.FixedPrice.IsNegative() {
		return fmt.Errorf("%w: preço fixo negativo", ErrInvalidConfiguration)
	}
	if o.Percentage != nil && (o.Percentage.IsNegative() || o.Percentage.GreaterThan(hundred)) {
		return fmt.Errorf("%w: percentagem fora de 0-100", ErrInvalidConfiguration)
	}
	return nil
}

// NewFixedPriceOverride cria um override de preço fixo ativo
func NewFixedPriceOverride(subscriberID string, price decimal.Decimal, reason string) *DiscountOverride {
	return &DiscountOverride{
		SubscriberID: subscriberID,
		FixedPrice:   &price,
		Reason:       reason,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
}

// NewPercentageOverride cria um override de percentagem ativo
func NewPercentageOverride(subscriberID string, pct decimal.Decimal, reason string) *DiscountOverride {
	return &DiscountOverride{
		SubscriberID: subscriberID,
		Percentage:   &pct,
		Reason:       reason,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
}
