// Package services orquestra o ciclo de vida das subscrições sobre o motor de preços,
// o repositório e o gateway de referências de pagamento.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magnani/frota-tvde/backend/internal/domain"
	"github.com/magnani/frota-tvde/backend/internal/metrics"
	"github.com/magnani/frota-tvde/backend/internal/ports"
	"github.com/magnani/frota-tvde/backend/internal/pricing"
)

// Config parâmetros de faturação do serviço
type Config struct {
	GracePeriod           time.Duration // tolerância após next_billing_date antes de expirar
	ReferenceTTL          time.Duration // validade das referências emitidas
	GatewayMaxAttempts    int
	GatewayInitialBackoff time.Duration
}

// Dependencies agrupa as portas usadas pelo serviço
type Dependencies struct {
	Catalog ports.CatalogReader
	Repo    ports.SubscriptionRepository
	Gateway ports.PaymentReferenceGateway
	Engine  *pricing.Engine
	Clock   ports.Clock
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// QuoteRequest entradas de um orçamento
type QuoteRequest struct {
	PlanID         string          `json:"plan_id"`
	ModuleIDs      []string        `json:"module_ids"`
	VehicleCount   int             `json:"vehicle_count"`
	DriverCount    int             `json:"driver_count"`
	Periodicity    string          `json:"periodicity"`
	PromoCode      string          `json:"promo_code,omitempty"`
	SubscriberType domain.UserType `json:"subscriber_type,omitempty"`
}

// SubscriptionRequest pedido de subscrição
type SubscriptionRequest struct {
	QuoteRequest
	PaymentMethod string         `json:"payment_method"`
	Contact       domain.Contact `json:"contact"`
}

// PriceAudit resultado da verificação do preço gravado
type PriceAudit struct {
	SubscriptionID  string          `json:"subscription_id"`
	StoredGross     decimal.Decimal `json:"stored_gross"`
	RecomputedGross decimal.Decimal `json:"recomputed_gross"`
	Matches         bool            `json:"matches"`
	Quote           *pricing.Quote  `json:"quote"`
}

// SubscriptionService implementa o ciclo de vida das subscrições
type SubscriptionService struct {
	catalog ports.CatalogReader
	repo    ports.SubscriptionRepository
	gateway ports.PaymentReferenceGateway
	engine  *pricing.Engine
	clock   ports.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
	cfg     Config
	locks   *keyedMutex
}

// NewSubscriptionService cria o serviço
func NewSubscriptionService(deps Dependencies, cfg Config) *SubscriptionService {
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.GatewayMaxAttempts < 1 {
		cfg.GatewayMaxAttempts = 1
	}
	return &SubscriptionService{
		catalog: deps.Catalog,
		repo:    deps.Repo,
		gateway: deps.Gateway,
		engine:  deps.Engine,
		clock:   deps.Clock,
		metrics: deps.Metrics,
		logger:  deps.Logger.With("component", "subscriptions"),
		cfg:     cfg,
		locks:   newKeyedMutex(),
	}
}

// ComputeQuote calcula o orçamento sem alterar estado
func (s *SubscriptionService) ComputeQuote(ctx context.Context, p domain.Principal, req QuoteRequest) (*pricing.Quote, error) {
	subscriberID := p.EffectiveSubscriber()
	if subscriberID == "" {
		return nil, fmt.Errorf("%w: pedido sem subscritor", domain.ErrForbidden)
	}

	in, err := s.buildInputs(ctx, subscriberID, req, s.clock.Now())
	if err != nil {
		return nil, err
	}
	return s.compute(in)
}

// RequestSubscription cria a subscrição. Com direito a trial fica em trial sem referência;
// caso contrário passa a pending_payment e é pedida uma referência ao gateway.
func (s *SubscriptionService) RequestSubscription(ctx context.Context, p domain.Principal, req SubscriptionRequest) (*domain.Subscription, *domain.PaymentReference, error) {
	subscriberID := p.EffectiveSubscriber()
	if subscriberID == "" {
		return nil, nil, fmt.Errorf("%w: pedido sem subscritor", domain.ErrForbidden)
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, nil, err
	}
	if method == domain.PaymentMethodMBWay && req.Contact.Phone == "" {
		return nil, nil, fmt.Errorf("%w: MB WAY exige número de telemóvel", domain.ErrInvalidConfiguration)
	}

	// o mesmo subscritor não pode obter dois trials do mesmo plano em pedidos simultâneos
	unlock := s.locks.Lock("subscriber:" + subscriberID + ":" + req.PlanID)
	sub, err := s.createSubscription(ctx, subscriberID, method, req)
	unlock()
	if err != nil {
		return nil, nil, err
	}

	if sub.Status == domain.SubscriptionStatusTrial {
		return sub, nil, nil
	}
	return s.issueReference(ctx, sub)
}

func (s *SubscriptionService) createSubscription(ctx context.Context, subscriberID string, method domain.PaymentMethod, req SubscriptionRequest) (*domain.Subscription, error) {
	now := s.clock.Now()

	in, err := s.buildInputs(ctx, subscriberID, req.QuoteRequest, now)
	if err != nil {
		return nil, err
	}
	q, err := s.compute(in)
	if err != nil {
		return nil, err
	}

	sub := domain.NewSubscription(uuid.NewString(), subscriberID, in.Plan.ID, now)
	sub.ModuleIDs = req.ModuleIDs
	sub.Periodicity = in.Periodicity
	sub.VehicleCount = req.VehicleCount
	sub.DriverCount = req.DriverCount
	sub.PromoCode = req.PromoCode
	sub.PaymentMethod = method
	sub.Contact = req.Contact
	sub.QuotedAt = now
	sub.ComputedGross = q.GrossAmount
	sub.MonthlyGross = q.MonthlyGross
	sub.DiscountKind = q.AppliedDiscountKind
	sub.PromotionID = q.AppliedPromotionID

	from := sub.Status
	if q.IsTrial {
		end := pricing.TrialEnd(in.Plan, now)
		sub.TrialEndsAt = &end
		sub.NextBillingDate = end
		if err := sub.TransitionTo(domain.SubscriptionStatusTrial, now); err != nil {
			return nil, err
		}
	} else {
		sub.NextBillingDate = now
		if err := sub.TransitionTo(domain.SubscriptionStatusPendingPayment, now); err != nil {
			return nil, err
		}
		if err := beginPaymentRequest(sub); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("erro ao gravar subscrição: %w", err)
	}
	s.committed(sub, from)
	return sub, nil
}

// GetSubscription devolve a subscrição se o principal tiver acesso
func (s *SubscriptionService) GetSubscription(ctx context.Context, p domain.Principal, id string) (*domain.Subscription, error) {
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanAccess(sub.SubscriberID) {
		return nil, fmt.Errorf("%w: subscrição %s", domain.ErrForbidden, id)
	}
	return sub, nil
}

// ConfirmPayment ativa a subscrição após confirmação do pagamento e avança
// next_billing_date exatamente um período.
func (s *SubscriptionService) ConfirmPayment(ctx context.Context, id string) (*domain.Subscription, error) {
	return s.confirm(ctx, id, "")
}

// ConfirmPaymentForKey confirma apenas se paymentKey for o pagamento do ciclo atual.
// Notificações de ciclos anteriores devolvem ErrInvalidTransition.
func (s *SubscriptionService) ConfirmPaymentForKey(ctx context.Context, id, paymentKey string) (*domain.Subscription, error) {
	if paymentKey == "" {
		return nil, fmt.Errorf("%w: chave de pagamento vazia", domain.ErrInvalidTransition)
	}
	return s.confirm(ctx, id, paymentKey)
}

func (s *SubscriptionService) confirm(ctx context.Context, id, paymentKey string) (*domain.Subscription, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if paymentKey != "" && !sub.MatchesPaymentKey(paymentKey) {
		return nil, fmt.Errorf("%w: pagamento %s não pertence ao ciclo atual da subscrição %s",
			domain.ErrInvalidTransition, paymentKey, sub.ID)
	}

	now := s.clock.Now()
	from := sub.Status
	if err := sub.TransitionTo(domain.SubscriptionStatusActive, now); err != nil {
		return nil, err
	}
	next, err := sub.Periodicity.Advance(sub.NextBillingDate)
	if err != nil {
		return nil, err
	}
	sub.NextBillingDate = next
	sub.PaymentRequestInFlight = false
	sub.PaymentAttempts = 0
	sub.LastPaymentError = ""

	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}
	s.committed(sub, from)
	return sub, nil
}

// CancelSubscription cancela a subscrição; é permitido a partir de qualquer estado exceto cancelled
func (s *SubscriptionService) CancelSubscription(ctx context.Context, p domain.Principal, id, reason string) (*domain.Subscription, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanAccess(sub.SubscriberID) {
		return nil, fmt.Errorf("%w: subscrição %s", domain.ErrForbidden, id)
	}

	from := sub.Status
	if err := sub.TransitionTo(domain.SubscriptionStatusCancelled, s.clock.Now()); err != nil {
		return nil, err
	}
	sub.CancelReason = reason

	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}
	s.committed(sub, from, "reason", reason, "actor_id", p.ActorID)
	return sub, nil
}

// RenewSubscription inicia um novo ciclo: active -> pending_payment com nova referência
// pelo valor gravado na subscrição.
func (s *SubscriptionService) RenewSubscription(ctx context.Context, id string) (*domain.Subscription, *domain.PaymentReference, error) {
	sub, err := s.reserve(ctx, id, func(sub *domain.Subscription, now time.Time) error {
		if sub.Status != domain.SubscriptionStatusActive {
			return fmt.Errorf("%w: renovação exige subscrição ativa (estado %s)", domain.ErrInvalidTransition, sub.Status)
		}
		return sub.TransitionTo(domain.SubscriptionStatusPendingPayment, now)
	})
	if err != nil {
		return nil, nil, err
	}
	return s.issueReference(ctx, sub)
}

// ReissuePaymentReference pede nova referência para uma subscrição em pending_payment
// sem referência utilizável (falha anterior do gateway ou referência expirada).
func (s *SubscriptionService) ReissuePaymentReference(ctx context.Context, p domain.Principal, id string) (*domain.Subscription, *domain.PaymentReference, error) {
	sub, err := s.reserve(ctx, id, func(sub *domain.Subscription, now time.Time) error {
		if !p.CanAccess(sub.SubscriberID) {
			return fmt.Errorf("%w: subscrição %s", domain.ErrForbidden, sub.ID)
		}
		if !sub.NeedsPaymentReference(now) {
			return fmt.Errorf("%w: subscrição %s (%s) não precisa de nova referência", domain.ErrInvalidTransition, sub.ID, sub.Status)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return s.issueReference(ctx, sub)
}

// EndTrials passa a pending_payment os trials terminados e pede a primeira referência.
// Devolve quantas subscrições mudaram de estado.
func (s *SubscriptionService) EndTrials(ctx context.Context) (int, error) {
	now := s.clock.Now()
	subs, err := s.repo.ListTrialsEnded(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("erro ao listar trials terminados: %w", err)
	}

	var errs []error
	count := 0
	for _, candidate := range subs {
		sub, err := s.reserve(ctx, candidate.ID, func(sub *domain.Subscription, now time.Time) error {
			if sub.Status != domain.SubscriptionStatusTrial || sub.IsInTrial(now) {
				return errSkip
			}
			return sub.TransitionTo(domain.SubscriptionStatusPendingPayment, now)
		})
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("subscrição %s: %w", candidate.ID, err))
			continue
		}
		count++

		// a falha do gateway fica registada na subscrição; pode ser reemitida mais tarde
		if _, _, err := s.issueReference(ctx, sub); err != nil && !errors.Is(err, domain.ErrPaymentGatewayUnavailable) {
			errs = append(errs, fmt.Errorf("subscrição %s: %w", sub.ID, err))
		}
	}
	return count, errors.Join(errs...)
}

// RenewDue renova as subscrições ativas cujo next_billing_date já passou
func (s *SubscriptionService) RenewDue(ctx context.Context) (int, error) {
	subs, err := s.repo.ListBillingDue(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("erro ao listar renovações: %w", err)
	}

	var errs []error
	count := 0
	for _, candidate := range subs {
		if candidate.Status != domain.SubscriptionStatusActive {
			continue
		}
		_, _, err := s.RenewSubscription(ctx, candidate.ID)
		switch {
		case err == nil, errors.Is(err, domain.ErrPaymentGatewayUnavailable):
			count++
		case errors.Is(err, domain.ErrInvalidTransition):
			// mudou de estado entretanto
		default:
			errs = append(errs, fmt.Errorf("subscrição %s: %w", candidate.ID, err))
		}
	}
	return count, errors.Join(errs...)
}

// ExpireOverdue expira subscrições active/pending_payment com now > next_billing_date + tolerância
func (s *SubscriptionService) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	subs, err := s.repo.ListBillingDue(ctx, now.Add(-s.cfg.GracePeriod))
	if err != nil {
		return 0, fmt.Errorf("erro ao listar subscrições em atraso: %w", err)
	}

	var errs []error
	count := 0
	for _, candidate := range subs {
		expired, err := s.expire(ctx, candidate.ID, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("subscrição %s: %w", candidate.ID, err))
			continue
		}
		if expired {
			count++
		}
	}
	return count, errors.Join(errs...)
}

func (s *SubscriptionService) expire(ctx context.Context, id string, now time.Time) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if sub.Status != domain.SubscriptionStatusActive && sub.Status != domain.SubscriptionStatusPendingPayment {
		return false, nil
	}
	if !sub.IsOverdue(now, s.cfg.GracePeriod) {
		return false, nil
	}

	from := sub.Status
	if err := sub.TransitionTo(domain.SubscriptionStatusExpired, now); err != nil {
		return false, err
	}
	sub.PaymentRequestInFlight = false
	if err := s.repo.Update(ctx, sub); err != nil {
		return false, err
	}
	s.committed(sub, from)
	return true, nil
}

// VerifySubscriptionPrice recalcula o preço com as entradas gravadas e o instante do orçamento
func (s *SubscriptionService) VerifySubscriptionPrice(ctx context.Context, p domain.Principal, id string) (*PriceAudit, error) {
	sub, err := s.GetSubscription(ctx, p, id)
	if err != nil {
		return nil, err
	}

	req := QuoteRequest{
		PlanID:       sub.PlanID,
		ModuleIDs:    sub.ModuleIDs,
		VehicleCount: sub.VehicleCount,
		DriverCount:  sub.DriverCount,
		Periodicity:  string(sub.Periodicity),
		PromoCode:    sub.PromoCode,
	}
	in, err := s.buildInputs(ctx, sub.SubscriberID, req, sub.QuotedAt)
	if err != nil {
		return nil, err
	}
	// o trial não altera o preço do período
	in.HasPriorSubscription = true

	q, err := s.compute(in)
	if err != nil {
		return nil, err
	}

	audit := &PriceAudit{
		SubscriptionID:  sub.ID,
		StoredGross:     sub.ComputedGross,
		RecomputedGross: q.GrossAmount,
		Matches:         sub.ComputedGross.Equal(q.GrossAmount),
		Quote:           q,
	}
	if !audit.Matches {
		s.logger.Warn("preço gravado difere do recalculado",
			"subscription_id", sub.ID,
			"stored", sub.ComputedGross.StringFixed(2),
			"recomputed", q.GrossAmount.StringFixed(2),
		)
	}
	return audit, nil
}

// buildInputs lê do catálogo tudo o que o cálculo precisa
func (s *SubscriptionService) buildInputs(ctx context.Context, subscriberID string, req QuoteRequest, now time.Time) (pricing.Inputs, error) {
	periodicity, err := domain.ParsePeriodicity(req.Periodicity)
	if err != nil {
		return pricing.Inputs{}, err
	}

	plan, err := s.catalog.GetPlan(ctx, req.PlanID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return pricing.Inputs{}, fmt.Errorf("%w: plano %q não existe", domain.ErrInvalidConfiguration, req.PlanID)
		}
		return pricing.Inputs{}, fmt.Errorf("erro ao ler plano: %w", err)
	}
	modules, err := s.catalog.GetModules(ctx, req.ModuleIDs)
	if err != nil {
		return pricing.Inputs{}, fmt.Errorf("erro ao ler módulos: %w", err)
	}
	promotions, err := s.catalog.ListPromotions(ctx, plan.ID)
	if err != nil {
		return pricing.Inputs{}, fmt.Errorf("erro ao ler promoções: %w", err)
	}
	overrides, err := s.catalog.ActiveOverrides(ctx, subscriberID)
	if err != nil {
		return pricing.Inputs{}, fmt.Errorf("erro ao ler overrides: %w", err)
	}
	hasPrior, err := s.repo.HasSubscriptionForPlan(ctx, subscriberID, plan.ID)
	if err != nil {
		return pricing.Inputs{}, fmt.Errorf("erro ao verificar subscrições anteriores: %w", err)
	}

	return pricing.Inputs{
		Plan:                 plan,
		Modules:              modules,
		ModuleIDs:            req.ModuleIDs,
		VehicleCount:         req.VehicleCount,
		DriverCount:          req.DriverCount,
		Periodicity:          periodicity,
		SubscriberType:       req.SubscriberType,
		Overrides:            overrides,
		Promotions:           promotions,
		PromoCode:            req.PromoCode,
		HasPriorSubscription: hasPrior,
		Now:                  now,
	}, nil
}

func (s *SubscriptionService) compute(in pricing.Inputs) (*pricing.Quote, error) {
	q, err := s.engine.Compute(in)
	if err != nil {
		if errors.Is(err, domain.ErrInvariantViolation) {
			s.metrics.InvariantViolation()
			s.logger.Error("violação de invariante no cálculo do preço", "plan_id", in.Plan.ID, "error", err)
		}
		s.metrics.QuoteComputed(string(in.Periodicity), errorLabel(err))
		return nil, err
	}
	s.metrics.QuoteComputed(string(in.Periodicity), "ok")
	return q, nil
}

// committed regista uma alteração já gravada
func (s *SubscriptionService) committed(sub *domain.Subscription, from domain.SubscriptionStatus, attrs ...any) {
	if from == sub.Status {
		return
	}
	s.metrics.Transition(string(from), string(sub.Status))
	args := append([]any{
		"subscription_id", sub.ID,
		"subscriber_id", sub.SubscriberID,
		"from", from,
		"to", sub.Status,
	}, attrs...)
	s.logger.Info("subscrição mudou de estado", args...)
}

// errSkip marca candidatos de jobs que já não estão no estado esperado
var errSkip = errors.New("ignorado")

func errorLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidConfiguration):
		return "invalid_configuration"
	case errors.Is(err, domain.ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, domain.ErrPromotionNotApplicable):
		return "promotion_not_applicable"
	case errors.Is(err, domain.ErrInvalidPeriodicity):
		return "invalid_periodicity"
	}
	return "error"
}
