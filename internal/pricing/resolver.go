package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/magnani/frota-tvde/backend/internal/domain"
)

// ResolveMonthlyGross calcula o preço mensal bruto sem descontos de um plano
// mais os módulos selecionados. Módulos incluídos no plano não têm custo.
func ResolveMonthlyGross(plan *domain.Plan, modules map[string]domain.Module, selected []string, vehicles, drivers int) (decimal.Decimal, error) {
	if plan == nil {
		return decimal.Decimal{}, fmt.Errorf("%w: plano em falta", domain.ErrInvalidConfiguration)
	}
	if !plan.IsActive {
		return decimal.Decimal{}, fmt.Errorf("%w: plano %s inativo", domain.ErrInvalidConfiguration, plan.ID)
	}
	if vehicles < 0 || drivers < 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: contagens negativas (veículos=%d, motoristas=%d)", domain.ErrInvalidConfiguration, vehicles, drivers)
	}

	v := decimal.NewFromInt(int64(vehicles))
	d := decimal.NewFromInt(int64(drivers))
	total := plan.BasePrice.
		Add(plan.PerVehiclePrice.Mul(v)).
		Add(plan.PerDriverPrice.Mul(d))

	seen := make(map[string]bool, len(selected))
	for _, id := range selected {
		if seen[id] {
			continue
		}
		seen[id] = true

		m, ok := modules[id]
		if !ok {
			return decimal.Decimal{}, fmt.Errorf("%w: módulo %s não existe", domain.ErrInvalidConfiguration, id)
		}
		if !m.IsActive || m.Billing == nil {
			return decimal.Decimal{}, fmt.Errorf("%w: módulo %s inativo", domain.ErrInvalidConfiguration, id)
		}
		if plan.Includes(id) {
			continue
		}
		total = total.Add(m.Billing.MonthlyCost(vehicles, drivers))
	}

	return total, nil
}
