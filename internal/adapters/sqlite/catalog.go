package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magnani/frota-tvde/backend/internal/domain"
)

// GetPlan devolve domain.ErrNotFound se o plano não existir
func (s *Store) GetPlan(ctx context.Context, id string) (*domain.Plan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, target_user_type, base_price, per_vehicle_price, per_driver_price,
		       included_modules, allows_trial, trial_days, active, created_at, updated_at
		FROM plans WHERE id = ?`, id)

	var (
		p        domain.Plan
		included string
	)
	err := row.Scan(&p.ID, &p.Name, &p.TargetUserType, &p.BasePrice, &p.PerVehiclePrice, &p.PerDriverPrice,
		&included, &p.AllowsTrial, &p.TrialDays, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: plano %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(included), &p.IncludedModules); err != nil {
		return nil, fmt.Errorf("plano %s: included_modules inválido: %w", id, err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// SavePlan insere ou substitui um plano
func (s *Store) SavePlan(ctx context.Context, p *domain.Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}
	included, err := json.Marshal(nonNil(p.IncludedModules))
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (id, name, target_user_type, base_price, per_vehicle_price, per_driver_price,
		                   included_modules, allows_trial, trial_days, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			target_user_type = excluded.target_user_type,
			base_price = excluded.base_price,
			per_vehicle_price = excluded.per_vehicle_price,
			per_driver_price = excluded.per_driver_price,
			included_modules = excluded.included_modules,
			allows_trial = excluded.allows_trial,
			trial_days = excluded.trial_days,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, p.TargetUserType, p.BasePrice, p.PerVehiclePrice, p.PerDriverPrice,
		string(included), p.AllowsTrial, p.TrialDays, p.IsActive, utc(p.CreatedAt), utc(p.UpdatedAt))
	return err
}

// GetModules devolve os módulos pedidos que existem
func (s *Store) GetModules(ctx context.Context, ids []string) (map[string]domain.Module, error) {
	out := make(map[string]domain.Module, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT id, name, billing_type, fixed_price, vehicle_price, driver_price, active
		FROM modules WHERE id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m                      domain.Module
			billingType            string
			fixed, vehicle, driver decimal.Decimal
		)
		if err := rows.Scan(&m.ID, &m.Name, &billingType, &fixed, &vehicle, &driver, &m.IsActive); err != nil {
			return nil, err
		}
		m.Billing, err = domain.ParseModuleBilling(billingType, fixed, vehicle, driver)
		if err != nil {
			return nil, fmt.Errorf("módulo %s: %w", m.ID, err)
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

// SaveModule insere ou substitui um módulo
func (s *Store) SaveModule(ctx context.Context, m *domain.Module) error {
	if m.Billing == nil {
		return fmt.Errorf("%w: módulo %s sem faturação", domain.ErrInvalidConfiguration, m.ID)
	}
	fixed, vehicle, driver := domain.BillingPrices(m.Billing)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO modules (id, name, billing_type, fixed_price, vehicle_price, driver_price, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			billing_type = excluded.billing_type,
			fixed_price = excluded.fixed_price,
			vehicle_price = excluded.vehicle_price,
			driver_price = excluded.driver_price,
			active = excluded.active`,
		m.ID, m.Name, string(m.Billing.Type()), fixed, vehicle, driver, m.IsActive)
	return err
}

// ListPromotions lista as promoções do plano
func (s *Store) ListPromotions(ctx context.Context, planID string) ([]domain.Promotion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, kind, percentage, code, starts_at, ends_at
		FROM promotions WHERE plan_id = ? ORDER BY id`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Promotion
	for rows.Next() {
		var p domain.Promotion
		if err := rows.Scan(&p.ID, &p.PlanID, &p.Kind, &p.Percentage, &p.Code, &p.StartsAt, &p.EndsAt); err != nil {
			return nil, err
		}
		p.StartsAt = p.StartsAt.UTC()
		p.EndsAt = p.EndsAt.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// SavePromotion insere ou substitui uma promoção
func (s *Store) SavePromotion(ctx context.Context, p *domain.Promotion) error {
	if p.EndsAt.Before(p.StartsAt) {
		return fmt.Errorf("%w: promoção %s termina antes de começar", domain.ErrInvalidConfiguration, p.ID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO promotions (id, plan_id, kind, percentage, code, starts_at, ends_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			plan_id = excluded.plan_id,
			kind = excluded.kind,
			percentage = excluded.percentage,
			code = excluded.code,
			starts_at = excluded.starts_at,
			ends_at = excluded.ends_at`,
		p.ID, p.PlanID, p.Kind, p.Percentage, p.Code, utc(p.StartsAt), utc(p.EndsAt))
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
