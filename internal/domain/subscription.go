package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionStatus representa o estado de uma subscrição
type SubscriptionStatus string

const (
	SubscriptionStatusRequested      SubscriptionStatus = "requested"
	SubscriptionStatusTrial          SubscriptionStatus = "trial"
	SubscriptionStatusPendingPayment SubscriptionStatus = "pending_payment"
	SubscriptionStatusActive         SubscriptionStatus = "active"
	SubscriptionStatusExpired        SubscriptionStatus = "expired"
	SubscriptionStatusCancelled      SubscriptionStatus = "cancelled"
)

// Periodicity é a periodicidade de faturação escolhida
type Periodicity string

const (
	PeriodicityWeekly     Periodicity = "weekly"
	PeriodicityMonthly    Periodicity = "monthly"
	PeriodicityQuarterly  Periodicity = "quarterly"
	PeriodicitySemiAnnual Periodicity = "semi_annual"
	PeriodicityAnnual     Periodicity = "annual"
)

// ParsePeriodicity valida a periodicidade recebida do exterior
func ParsePeriodicity(s string) (Periodicity, error) {
	switch p := Periodicity(s); p {
	case PeriodicityWeekly, PeriodicityMonthly, PeriodicityQuarterly, PeriodicitySemiAnnual, PeriodicityAnnual:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriodicity, s)
}

// Advance devolve t acrescido de exatamente um intervalo de faturação.
// Nos intervalos mensais o dia é limitado ao último dia do mês de destino.
func (p Periodicity) Advance(t time.Time) (time.Time, error) {
	switch p {
	case PeriodicityWeekly:
		return t.AddDate(0, 0, 7), nil
	case PeriodicityMonthly:
		return addMonths(t, 1), nil
	case PeriodicityQuarterly:
		return addMonths(t, 3), nil
	case PeriodicitySemiAnnual:
		return addMonths(t, 6), nil
	case PeriodicityAnnual:
		return addMonths(t, 12), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriodicity, p)
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

type transition struct {
	from SubscriptionStatus
	to   SubscriptionStatus
}

// validTransitions define todas as transições permitidas.
// cancelled é tratado à parte: qualquer estado exceto o próprio cancelled.
var validTransitions = map[transition]bool{
	{SubscriptionStatusRequested, SubscriptionStatusTrial}:          true,
	{SubscriptionStatusRequested, SubscriptionStatusPendingPayment}: true,
	{SubscriptionStatusTrial, SubscriptionStatusPendingPayment}:     true, // fim do trial
	{SubscriptionStatusPendingPayment, SubscriptionStatusActive}:    true, // pagamento confirmado
	{SubscriptionStatusActive, SubscriptionStatusPendingPayment}:    true, // renovação
	{SubscriptionStatusActive, SubscriptionStatusExpired}:           true,
	{SubscriptionStatusPendingPayment, SubscriptionStatusExpired}:   true,
}

// CanTransition verifica se a transição é permitida
func CanTransition(from, to SubscriptionStatus) bool {
	if to == SubscriptionStatusCancelled {
		return from != SubscriptionStatusCancelled
	}
	return validTransitions[transition{from, to}]
}

// Subscription representa a subscrição de um parceiro ou motorista a um plano
type Subscription struct {
	ID           string `json:"id"`
	SubscriberID string `json:"subscriber_id"`
	PlanID       string `json:"plan_id"`

	// Entradas do orçamento, congeladas no momento do cálculo
	ModuleIDs     []string      `json:"module_ids"`
	Periodicity   Periodicity   `json:"periodicity"`
	VehicleCount  int           `json:"vehicle_count"`
	DriverCount   int           `json:"driver_count"`
	PromoCode     string        `json:"promo_code,omitempty"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	QuotedAt      time.Time     `json:"quoted_at"`

	// Resultado do orçamento
	ComputedGross decimal.Decimal `json:"computed_gross"` // por período
	MonthlyGross  decimal.Decimal `json:"monthly_gross"`
	DiscountKind  DiscountKind    `json:"discount_kind"`
	PromotionID   string          `json:"promotion_id,omitempty"`

	Status          SubscriptionStatus `json:"status"`
	NextBillingDate time.Time          `json:"next_billing_date"`
	TrialEndsAt     *time.Time         `json:"trial_ends_at,omitempty"`

	// Contacto usado nos pedidos ao gateway (MB WAY exige telemóvel)
	Contact Contact `json:"contact"`

	PaymentReference       *PaymentReference `json:"payment_reference,omitempty"`
	PaymentRequestInFlight bool              `json:"-"`
	PaymentRequestKey      string            `json:"-"` // chave de idempotência do pedido em curso
	PaymentAttempts        int               `json:"payment_attempts"`
	LastPaymentError       string            `json:"last_payment_error,omitempty"`

	// Version é o token de compare-and-swap do repositório
	Version int64 `json:"-"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
}

// Contact dados de contacto do subscritor para faturação
type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// NewSubscription cria uma nova subscrição em requested
func NewSubscription(id, subscriberID, planID string, now time.Time) *Subscription {
	return &Subscription{
		ID:           id,
		SubscriberID: subscriberID,
		PlanID:       planID,
		Status:       SubscriptionStatusRequested,
		DiscountKind: DiscountNone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// TransitionTo muda o estado se a transição for permitida; caso contrário não altera nada
func (s *Subscription) TransitionTo(to SubscriptionStatus, now time.Time) error {
	if !CanTransition(s.Status, to) {
		return fmt.Errorf("%w: %s -> %s (subscrição %s)", ErrInvalidTransition, s.Status, to, s.ID)
	}
	s.Status = to
	s.UpdatedAt = now
	if to == SubscriptionStatusCancelled {
		s.CancelledAt = &now
		s.PaymentRequestInFlight = false
	}
	return nil
}

// IsTerminal indica se a subscrição terminou
func (s *Subscription) IsTerminal() bool {
	return s.Status == SubscriptionStatusExpired || s.Status == SubscriptionStatusCancelled
}

// IsInTrial verifica se o trial ainda decorre em now
func (s *Subscription) IsInTrial(now time.Time) bool {
	return s.Status == SubscriptionStatusTrial && s.TrialEndsAt != nil && now.Before(*s.TrialEndsAt)
}

// IsOverdue verifica now > next_billing_date + grace; subscrições terminadas nunca estão em atraso
func (s *Subscription) IsOverdue(now time.Time, grace time.Duration) bool {
	if s.IsTerminal() || s.NextBillingDate.IsZero() {
		return false
	}
	return now.After(s.NextBillingDate.Add(grace))
}

// MatchesPaymentKey indica se key identifica o pagamento do ciclo atual:
// a chave do último pedido ou o id/número da referência em vigor.
func (s *Subscription) MatchesPaymentKey(key string) bool {
	if key == "" {
		return false
	}
	if key == s.PaymentRequestKey {
		return true
	}
	ref := s.PaymentReference
	return ref != nil && (key == ref.GatewayID || key == ref.Reference)
}

// NeedsPaymentReference indica que está em pending_payment sem referência utilizável
func (s *Subscription) NeedsPaymentReference(now time.Time) bool {
	if s.Status != SubscriptionStatusPendingPayment {
		return false
	}
	return s.PaymentReference == nil || s.PaymentReference.IsExpired(now)
}
