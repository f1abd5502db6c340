// Package pricing implementa o cálculo de preços das subscrições.
//
// Todas as funções são puras: dependem apenas dos argumentos (o instante "now"
// incluído) e podem ser executadas em paralelo ou repetidas para auditoria.
//
// Ordem do cálculo:
//
//	ResolveMonthlyGross -> ApplyOverride -> ApplyPromotion -> ToPeriod -> arredondamento -> IVA
//
// Os preços de catálogo são brutos (com IVA). Os descontos aplicam-se sobre o bruto e o
// IVA só é decomposto no fim, para apresentação e faturação.
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magnani/frota-tvde/backend/internal/domain"
)

// Engine agrega os parâmetros configuráveis do cálculo
type Engine struct {
	IVARate   decimal.Decimal
	Discounts PeriodDiscounts
}

// NewEngine valida a configuração e cria o motor
func NewEngine(ivaRate decimal.Decimal, discounts PeriodDiscounts) (*Engine, error) {
	if ivaRate.IsNegative() || ivaRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: taxa de IVA %s fora de [0,1)", domain.ErrInvalidConfiguration, ivaRate)
	}
	if err := discounts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{IVARate: ivaRate, Discounts: discounts}, nil
}

// Inputs são todas as entradas do cálculo; nenhuma é lida de estado global
type Inputs struct {
	Plan           *domain.Plan
	Modules        map[string]domain.Module
	ModuleIDs      []string
	VehicleCount   int
	DriverCount    int
	Periodicity    domain.Periodicity
	SubscriberType domain.UserType // vazio: não verificado

	Overrides  []domain.DiscountOverride
	Promotions []domain.Promotion
	PromoCode  string

	HasPriorSubscription bool
	Now                  time.Time
}

// Quote é o resultado do cálculo
type Quote struct {
	PlanID      string             `json:"plan_id"`
	Periodicity domain.Periodicity `json:"periodicity"`

	MonthlyGross decimal.Decimal `json:"monthly_gross"`
	GrossAmount  decimal.Decimal `json:"gross_amount"` // por período
	NetAmount    decimal.Decimal `json:"net_amount"`
	IVAAmount    decimal.Decimal `json:"iva_amount"`
	IVARate      decimal.Decimal `json:"iva_rate"`
	PayableNow   decimal.Decimal `json:"payable_now"`

	AppliedDiscountKind domain.DiscountKind `json:"applied_discount_kind"`
	AppliedPromotionID  string              `json:"applied_promotion_id,omitempty"`

	IsTrial   bool `json:"is_trial"`
	TrialDays int  `json:"trial_days,omitempty"`

	ComputedAt time.Time `json:"computed_at"`
}

// Compute executa o pipeline completo. Em caso de erro nunca devolve preço.
func (e *Engine) Compute(in Inputs) (*Quote, error) {
	if in.Plan == nil {
		return nil, fmt.Errorf("%w: plano em falta", domain.ErrInvalidConfiguration)
	}
	if in.SubscriberType != "" && in.SubscriberType != in.Plan.TargetUserType {
		return nil, fmt.Errorf("%w: plano %s destina-se a %s, não a %s",
			domain.ErrInvalidConfiguration, in.Plan.ID, in.Plan.TargetUserType, in.SubscriberType)
	}
	if _, err := domain.ParsePeriodicity(string(in.Periodicity)); err != nil {
		return nil, err
	}

	base, err := ResolveMonthlyGross(in.Plan, in.Modules, in.ModuleIDs, in.VehicleCount, in.DriverCount)
	if err != nil {
		return nil, err
	}

	afterOverride, kind, err := ApplyOverride(base, in.Overrides)
	if err != nil {
		return nil, err
	}

	monthly, promo, err := ApplyPromotion(afterOverride, kind, in.Plan.ID, in.Promotions, in.PromoCode, in.Now)
	if err != nil {
		return nil, err
	}

	period, err := ToPeriod(monthly, in.Periodicity, e.Discounts)
	if err != nil {
		return nil, err
	}

	gross := period.Round(2)
	net := Net(gross, e.IVARate).Round(2)

	q := &Quote{
		PlanID:              in.Plan.ID,
		Periodicity:         in.Periodicity,
		MonthlyGross:        monthly.Round(2),
		GrossAmount:         gross,
		NetAmount:           net,
		IVAAmount:           gross.Sub(net),
		IVARate:             e.IVARate,
		PayableNow:          gross,
		AppliedDiscountKind: kind,
		ComputedAt:          in.Now,
	}
	if promo != nil {
		q.AppliedPromotionID = promo.ID
	}

	if TrialEligible(in.Plan, in.HasPriorSubscription) {
		q.IsTrial = true
		q.TrialDays = in.Plan.TrialDays
		q.PayableNow = decimal.Zero
	}

	return q, nil
}
