package pricing

import (
	"time"

	"github.com/magnani/frota-tvde/backend/internal/domain"
)

// TrialEligible decide se o pedido tem direito a trial.
// hasPrior indica qualquer subscrição anterior (ativa, expirada ou cancelada) ao mesmo plano.
func TrialEligible(plan *domain.Plan, hasPrior bool) bool {
	if plan == nil {
		return false
	}
	return plan.AllowsTrial && plan.TrialDays > 0 && !hasPrior
}

// TrialEnd devolve o fim da janela de trial iniciada em start
func TrialEnd(plan *domain.Plan, start time.Time) time.Time {
	return start.AddDate(0, 0, plan.TrialDays)
}
