package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/magnani/frota-tvde/backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// ApplyOverride aplica, no máximo, um override ativo ao preço mensal bruto.
// Precedência: preço fixo, depois percentagem, depois nenhum.
// Mais de um override ativo, ou um override com ambos os valores, é violação de invariante.
func ApplyOverride(price decimal.Decimal, overrides []domain.DiscountOverride) (decimal.Decimal, domain.DiscountKind, error) {
	var active *domain.DiscountOverride
	for i := range overrides {
		if !overrides[i].IsActive {
			continue
		}
		if active != nil {
			return decimal.Decimal{}, "", fmt.Errorf("%w: subscritor %s com %s e %s ativos",
				domain.ErrInvariantViolation, overrides[i].SubscriberID, active.ID, overrides[i].ID)
		}
		active = &overrides[i]
	}
	if active == nil {
		return price, domain.DiscountNone, nil
	}

	if active.FixedPrice != nil && active.Percentage != nil {
		return decimal.Decimal{}, "", fmt.Errorf("%w: override %s com preço fixo e percentagem",
			domain.ErrInvariantViolation, active.ID)
	}

	switch {
	case active.FixedPrice != nil:
		if active.FixedPrice.IsNegative() {
			return decimal.Decimal{}, "", fmt.Errorf("%w: preço fixo negativo no override %s", domain.ErrInvalidConfiguration, active.ID)
		}
		return *active.FixedPrice, domain.DiscountFixedPrice, nil
	case active.Percentage != nil:
		factor, err := discountFactor(*active.Percentage)
		if err != nil {
			return decimal.Decimal{}, "", fmt.Errorf("override %s: %w", active.ID, err)
		}
		return price.Mul(factor), domain.DiscountPercentage, nil
	}

	return decimal.Decimal{}, "", fmt.Errorf("%w: override %s sem valor", domain.ErrInvalidConfiguration, active.ID)
}

// discountFactor converte uma percentagem 0-100 no fator (1 - pct/100)
func discountFactor(pct decimal.Decimal) (decimal.Decimal, error) {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return decimal.Decimal{}, fmt.Errorf("%w: percentagem %s fora de 0-100", domain.ErrInvalidConfiguration, pct)
	}
	return decimal.NewFromInt(1).Sub(pct.Div(hundred)), nil
}
