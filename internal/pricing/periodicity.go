package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/magnani/frota-tvde/backend/internal/domain"
)

// WeeksPerMonth é o número médio de semanas num mês
var WeeksPerMonth = decimal.RequireFromString("4.345")

// PeriodDiscounts são as frações de desconto por compromisso mais longo
type PeriodDiscounts struct {
	Quarterly  decimal.Decimal
	SemiAnnual decimal.Decimal
	Annual     decimal.Decimal
}

// DefaultPeriodDiscounts: trimestral 5%, semestral 10%, anual 15%
func DefaultPeriodDiscounts() PeriodDiscounts {
	return PeriodDiscounts{
		Quarterly:  decimal.RequireFromString("0.05"),
		SemiAnnual: decimal.RequireFromString("0.10"),
		Annual:     decimal.RequireFromString("0.15"),
	}
}

// Validate garante 0 <= q <= s <= a < 1, o que mantém o preço mensal equivalente não crescente
func (d PeriodDiscounts) Validate() error {
	one := decimal.NewFromInt(1)
	for name, f := range map[string]decimal.Decimal{"trimestral": d.Quarterly, "semestral": d.SemiAnnual, "anual": d.Annual} {
		if f.IsNegative() || f.GreaterThanOrEqual(one) {
			return fmt.Errorf("%w: desconto %s fora de [0,1)", domain.ErrInvalidConfiguration, name)
		}
	}
	if d.Quarterly.GreaterThan(d.SemiAnnual) || d.SemiAnnual.GreaterThan(d.Annual) {
		return fmt.Errorf("%w: descontos por período devem ser crescentes", domain.ErrInvalidConfiguration)
	}
	return nil
}

// ToPeriod converte um preço mensal bruto no valor do período pedido, sem arredondar
func ToPeriod(monthly decimal.Decimal, p domain.Periodicity, d PeriodDiscounts) (decimal.Decimal, error) {
	one := decimal.NewFromInt(1)
	switch p {
	case domain.PeriodicityWeekly:
		return monthly.Div(WeeksPerMonth), nil
	case domain.PeriodicityMonthly:
		return monthly, nil
	case domain.PeriodicityQuarterly:
		return monthly.Mul(decimal.NewFromInt(3)).Mul(one.Sub(d.Quarterly)), nil
	case domain.PeriodicitySemiAnnual:
		return monthly.Mul(decimal.NewFromInt(6)).Mul(one.Sub(d.SemiAnnual)), nil
	case domain.PeriodicityAnnual:
		return monthly.Mul(decimal.NewFromInt(12)).Mul(one.Sub(d.Annual)), nil
	}
	return decimal.Decimal{}, fmt.Errorf("%w: %q", domain.ErrInvalidPeriodicity, p)
}
