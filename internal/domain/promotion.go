package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PromotionKind classifica a campanha
type PromotionKind string

const (
	PromotionPioneer  PromotionKind = "pioneer"
	PromotionLaunch   PromotionKind = "launch"
	PromotionSeasonal PromotionKind = "seasonal"
)

// Promotion é um desconto percentual limitado no tempo, opcionalmente por código
type Promotion struct {
	ID         string          `json:"id"`
	PlanID     string          `json:"plan_id"`
	Kind       PromotionKind   `json:"kind"`
	Percentage decimal.Decimal `json:"percentage"`
	Code       string          `json:"code,omitempty"`
	StartsAt   time.Time       `json:"starts_at"`
	EndsAt     time.Time       `json:"ends_at"` // inclusivo
}

// IsOpenAt verifica start <= now <= end
func (p *Promotion) IsOpenAt(now time.Time) bool {
	return !now.Before(p.StartsAt) && !now.After(p.EndsAt)
}

// HasCode indica se a promoção exige código
func (p *Promotion) HasCode() bool {
	return p.Code != ""
}
