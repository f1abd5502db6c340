package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magnani/frota-tvde/backend/internal/domain"
	"github.com/magnani/frota-tvde/backend/internal/ports"
)

// OverrideService gere os preços e descontos definidos por administradores.
// Só administradores podem escrever; o repositório garante no máximo um override ativo.
type OverrideService struct {
	writer ports.OverrideWriter
	clock  ports.Clock
	logger *slog.Logger
}

// NewOverrideService cria o serviço
func NewOverrideService(writer ports.OverrideWriter, clock ports.Clock, logger *slog.Logger) *OverrideService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OverrideService{writer: writer, clock: clock, logger: logger.With("component", "overrides")}
}

// SetFixedPriceOverride substitui o override ativo por um preço fixo mensal (bruto)
func (s *OverrideService) SetFixedPriceOverride(ctx context.Context, p domain.Principal, subscriberID string, price decimal.Decimal, reason string) (*domain.DiscountOverride, error) {
	return s.replace(ctx, p, domain.NewFixedPriceOverride(subscriberID, price, reason))
}

// SetPercentageOverride substitui o override ativo por uma percentagem de desconto (0-100)
func (s *OverrideService) SetPercentageOverride(ctx context.Context, p domain.Principal, subscriberID string, pct decimal.Decimal, reason string) (*domain.DiscountOverride, error) {
	return s.replace(ctx, p, domain.NewPercentageOverride(subscriberID, pct, reason))
}

// ClearOverride desativa os overrides do subscritor
func (s *OverrideService) ClearOverride(ctx context.Context, p domain.Principal, subscriberID string) (int, error) {
	if !p.IsAdmin {
		return 0, fmt.Errorf("%w: apenas administradores alteram overrides", domain.ErrForbidden)
	}
	n, err := s.writer.DeactivateOverrides(ctx, subscriberID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("overrides desativados", "subscriber_id", subscriberID, "count", n, "actor_id", p.ActorID)
	return n, nil
}

func (s *OverrideService) replace(ctx context.Context, p domain.Principal, o *domain.DiscountOverride) (*domain.DiscountOverride, error) {
	if !p.IsAdmin {
		return nil, fmt.Errorf("%w: apenas administradores alteram overrides", domain.ErrForbidden)
	}
	o.ID = uuid.NewString()
	o.CreatedAt = s.clock.Now()
	if err := o.Validate(); err != nil {
		return nil, err
	}

	if err := s.writer.ReplaceActiveOverride(ctx, o); err != nil {
		return nil, err
	}
	s.logger.Info("override definido",
		"subscriber_id", o.SubscriberID,
		"kind", o.Kind(),
		"actor_id", p.ActorID,
		"reason", o.Reason,
	)
	return o, nil
}
