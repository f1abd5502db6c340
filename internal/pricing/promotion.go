package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magnani/frota-tvde/backend/internal/domain"
)

// ApplyPromotion aplica a promoção do plano ao preço resultante do override.
//
// Com override de preço fixo as promoções são ignoradas. Com código, o código tem de
// corresponder exatamente a uma promoção do plano com janela aberta. Sem código, aplica-se
// a promoção sem código com maior percentagem (empate: menor ID). Os descontos compõem-se
// multiplicativamente.
func ApplyPromotion(price decimal.Decimal, kind domain.DiscountKind, planID string, promotions []domain.Promotion, code string, now time.Time) (decimal.Decimal, *domain.Promotion, error) {
	if kind == domain.DiscountFixedPrice {
		return price, nil, nil
	}

	var chosen *domain.Promotion
	if code != "" {
		for i := range promotions {
			p := &promotions[i]
			if p.PlanID == planID && p.HasCode() && p.Code == code {
				chosen = p
				break
			}
		}
		if chosen == nil {
			return decimal.Decimal{}, nil, fmt.Errorf("%w: código %q desconhecido para o plano %s", domain.ErrPromotionNotApplicable, code, planID)
		}
		if !chosen.IsOpenAt(now) {
			return decimal.Decimal{}, nil, fmt.Errorf("%w: código %q fora de validade", domain.ErrPromotionNotApplicable, code)
		}
	} else {
		for i := range promotions {
			p := &promotions[i]
			if p.PlanID != planID || p.HasCode() || !p.IsOpenAt(now) {
				continue
			}
			if chosen == nil || p.Percentage.GreaterThan(chosen.Percentage) ||
				(p.Percentage.Equal(chosen.Percentage) && p.ID < chosen.ID) {
				chosen = p
			}
		}
		if chosen == nil {
			return price, nil, nil
		}
	}

	factor, err := discountFactor(chosen.Percentage)
	if err != nil {
		return decimal.Decimal{}, nil, fmt.Errorf("promoção %s: %w", chosen.ID, err)
	}
	applied := *chosen
	return price.Mul(factor), &applied, nil
}
