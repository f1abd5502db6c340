// Package domain contém as entidades de domínio do motor de subscrições
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// UserType identifica o tipo de subscritor a que um plano se destina
type UserType string

const (
	UserTypePartner UserType = "partner"
	UserTypeDriver  UserType = "driver"
)

// IsValid verifica se o tipo é conhecido
func (u UserType) IsValid() bool {
	return u == UserTypePartner || u == UserTypeDriver
}

// Plan representa um plano de subscrição.
// Todos os preços são mensais e com IVA incluído (brutos).
type Plan struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	TargetUserType UserType `json:"target_user_type"`

	// Pricing (bruto, mensal)
	BasePrice       decimal.Decimal `json:"base_price"`
	PerVehiclePrice decimal.Decimal `json:"per_vehicle_price"`
	PerDriverPrice  decimal.Decimal `json:"per_driver_price"`

	// Módulos já incluídos no preço base
	IncludedModules []string `json:"included_modules"`

	// Trial
	AllowsTrial bool `json:"allows_trial"`
	TrialDays   int  `json:"trial_days"`

	IsActive bool `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Includes verifica se o módulo faz parte do plano sem custo adicional
func (p *Plan) Includes(moduleID string) bool {
	for _, id := range p.IncludedModules {
		if id == moduleID {
			return true
		}
	}
	return false
}

// Validate verifica os campos monetários e de trial
func (p *Plan) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: plano sem id", ErrInvalidConfiguration)
	}
	if !p.TargetUserType.IsValid() {
		return fmt.Errorf("%w: plano %s com tipo de utilizador %q", ErrInvalidConfiguration, p.ID, p.TargetUserType)
	}
	if p.BasePrice.IsNegative() || p.PerVehiclePrice.IsNegative() || p.PerDriverPrice.IsNegative() {
		return fmt.Errorf("%w: plano %s com preço negativo", ErrInvalidConfiguration, p.ID)
	}
	if p.TrialDays < 0 {
		return fmt.Errorf("%w: plano %s com dias de trial negativos", ErrInvalidConfiguration, p.ID)
	}
	return nil
}
