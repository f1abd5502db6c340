package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/magnani/frota-tvde/backend/internal/domain"
)

// ActiveOverrides lista os overrides ativos do subscritor
func (s *Store) ActiveOverrides(ctx context.Context, subscriberID string) ([]domain.DiscountOverride, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subscriber_id, fixed_price, percentage, reason, active, created_at
		FROM discount_overrides
		WHERE subscriber_id = ? AND active = 1
		ORDER BY created_at`, subscriberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DiscountOverride
	for rows.Next() {
		var (
			o          domain.DiscountOverride
			fixed, pct decimal.NullDecimal
		)
		if err := rows.Scan(&o.ID, &o.SubscriberID, &fixed, &pct, &o.Reason, &o.IsActive, &o.CreatedAt); err != nil {
			return nil, err
		}
		if fixed.Valid {
			o.FixedPrice = &fixed.Decimal
		}
		if pct.Valid {
			o.Percentage = &pct.Decimal
		}
		o.CreatedAt = o.CreatedAt.UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}

// ReplaceActiveOverride desativa o override ativo e insere o novo na mesma transação
func (s *Store) ReplaceActiveOverride(ctx context.Context, o *domain.DiscountOverride) error {
	if err := o.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE discount_overrides SET active = 0 WHERE subscriber_id = ? AND active = 1`,
			o.SubscriberID); err != nil {
			return fmt.Errorf("erro ao desativar override: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO discount_overrides (id, subscriber_id, fixed_price, percentage, reason, active, created_at)
			VALUES (?, ?, ?, ?, ?, 1, ?)`,
			o.ID, o.SubscriberID, nullDecimal(o.FixedPrice), nullDecimal(o.Percentage), o.Reason, utc(o.CreatedAt))
		if err != nil {
			return fmt.Errorf("erro ao gravar override: %w", err)
		}
		o.IsActive = true
		return nil
	})
}

// DeactivateOverrides desativa todos os overrides do subscritor
func (s *Store) DeactivateOverrides(ctx context.Context, subscriberID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE discount_overrides SET active = 0 WHERE subscriber_id = ? AND active = 1`, subscriberID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
