package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/magnani/frota-tvde/backend/internal/domain"
)

const subscriptionColumns = `id, subscriber_id, plan_id, module_ids, periodicity, vehicle_count, driver_count,
	promo_code, payment_method, quoted_at, computed_gross, monthly_gross, discount_kind, promotion_id,
	status, next_billing_date, trial_ends_at, contact, payment_reference,
	payment_request_in_flight, payment_request_key, payment_attempts, last_payment_error,
	version, created_at, updated_at, cancelled_at, cancel_reason`

// Create insere uma subscrição nova com version = 1
func (s *Store) Create(ctx context.Context, sub *domain.Subscription) error {
	sub.Version = 1
	args, err := subscriptionArgs(sub, sub.Version)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`, payment_gateway_id, payment_reference_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...)
	if err != nil {
		return fmt.Errorf("erro ao inserir subscrição: %w", err)
	}
	return nil
}

// Get devolve domain.ErrNotFound se não existir
func (s *Store) Get(ctx context.Context, id string) (*domain.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: subscrição %s", domain.ErrNotFound, id)
	}
	return sub, err
}

// Update grava com compare-and-swap em version
func (s *Store) Update(ctx context.Context, sub *domain.Subscription) error {
	args, err := subscriptionArgs(sub, sub.Version+1)
	if err != nil {
		return err
	}
	// args[0] é o id; o resto segue a ordem das colunas
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET
			subscriber_id = ?, plan_id = ?, module_ids = ?, periodicity = ?, vehicle_count = ?, driver_count = ?,
			promo_code = ?, payment_method = ?, quoted_at = ?, computed_gross = ?, monthly_gross = ?,
			discount_kind = ?, promotion_id = ?, status = ?, next_billing_date = ?, trial_ends_at = ?,
			contact = ?, payment_reference = ?, payment_request_in_flight = ?, payment_request_key = ?,
			payment_attempts = ?, last_payment_error = ?, version = ?, created_at = ?, updated_at = ?,
			cancelled_at = ?, cancel_reason = ?, payment_gateway_id = ?, payment_reference_code = ?
		WHERE id = ? AND version = ?`,
		append(args[1:], sub.ID, sub.Version)...)
	if err != nil {
		return fmt.Errorf("erro ao atualizar subscrição: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE id = ?)`, sub.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: subscrição %s", domain.ErrNotFound, sub.ID)
		}
		return fmt.Errorf("%w: subscrição %s (versão %d)", domain.ErrConcurrentUpdate, sub.ID, sub.Version)
	}
	sub.Version++
	return nil
}

// HasSubscriptionForPlan indica se existe alguma subscrição, em qualquer estado
func (s *Store) HasSubscriptionForPlan(ctx context.Context, subscriberID, planID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE subscriber_id = ? AND plan_id = ?)`,
		subscriberID, planID).Scan(&exists)
	return exists, err
}

// FindByPaymentKey procura pela chave de idempotência, id do gateway ou número da referência
func (s *Store) FindByPaymentKey(ctx context.Context, key string) (*domain.Subscription, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: chave de pagamento vazia", domain.ErrNotFound)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE payment_request_key = ? OR payment_gateway_id = ? OR payment_reference_code = ?
		ORDER BY updated_at DESC LIMIT 1`, key, key, key)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: pagamento %s", domain.ErrNotFound, key)
	}
	return sub, err
}

// ListBillingDue lista subscrições active/pending_payment com next_billing_date < before
func (s *Store) ListBillingDue(ctx context.Context, before time.Time) ([]*domain.Subscription, error) {
	return s.list(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status IN ('active', 'pending_payment') AND next_billing_date < ?
		ORDER BY next_billing_date`, utc(before))
}

// ListTrialsEnded lista trials com trial_ends_at <= now
func (s *Store) ListTrialsEnded(ctx context.Context, now time.Time) ([]*domain.Subscription, error) {
	return s.list(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status = 'trial' AND trial_ends_at <= ?
		ORDER BY trial_ends_at`, utc(now))
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// subscriptionArgs devolve os valores na ordem de subscriptionColumns, seguidos de
// payment_gateway_id e payment_reference_code. version é o valor a gravar.
func subscriptionArgs(sub *domain.Subscription, version int64) ([]any, error) {
	moduleIDs, err := json.Marshal(nonNil(sub.ModuleIDs))
	if err != nil {
		return nil, err
	}
	contact, err := json.Marshal(sub.Contact)
	if err != nil {
		return nil, err
	}

	var (
		ref                  sql.NullString
		gatewayID, refNumber string
	)
	if sub.PaymentReference != nil {
		b, err := json.Marshal(sub.PaymentReference)
		if err != nil {
			return nil, err
		}
		ref = sql.NullString{String: string(b), Valid: true}
		gatewayID = sub.PaymentReference.GatewayID
		refNumber = sub.PaymentReference.Reference
	}

	return []any{
		sub.ID, sub.SubscriberID, sub.PlanID, string(moduleIDs), sub.Periodicity, sub.VehicleCount, sub.DriverCount,
		sub.PromoCode, sub.PaymentMethod, utc(sub.QuotedAt), sub.ComputedGross, sub.MonthlyGross, sub.DiscountKind, sub.PromotionID,
		sub.Status, utc(sub.NextBillingDate), nullTime(sub.TrialEndsAt), string(contact), ref,
		sub.PaymentRequestInFlight, sub.PaymentRequestKey, sub.PaymentAttempts, sub.LastPaymentError,
		version, utc(sub.CreatedAt), utc(sub.UpdatedAt), nullTime(sub.CancelledAt), sub.CancelReason,
		gatewayID, refNumber,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row scanner) (*domain.Subscription, error) {
	var (
		sub                    domain.Subscription
		moduleIDs, contact     string
		ref                    sql.NullString
		trialEnds, cancelledAt sql.NullTime
	)
	err := row.Scan(
		&sub.ID, &sub.SubscriberID, &sub.PlanID, &moduleIDs, &sub.Periodicity, &sub.VehicleCount, &sub.DriverCount,
		&sub.PromoCode, &sub.PaymentMethod, &sub.QuotedAt, &sub.ComputedGross, &sub.MonthlyGross, &sub.DiscountKind, &sub.PromotionID,
		&sub.Status, &sub.NextBillingDate, &trialEnds, &contact, &ref,
		&sub.PaymentRequestInFlight, &sub.PaymentRequestKey, &sub.PaymentAttempts, &sub.LastPaymentError,
		&sub.Version, &sub.CreatedAt, &sub.UpdatedAt, &cancelledAt, &sub.CancelReason,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(moduleIDs), &sub.ModuleIDs); err != nil {
		return nil, fmt.Errorf("subscrição %s: module_ids inválido: %w", sub.ID, err)
	}
	if err := json.Unmarshal([]byte(contact), &sub.Contact); err != nil {
		return nil, fmt.Errorf("subscrição %s: contact inválido: %w", sub.ID, err)
	}
	if ref.Valid {
		var pr domain.PaymentReference
		if err := json.Unmarshal([]byte(ref.String), &pr); err != nil {
			return nil, fmt.Errorf("subscrição %s: payment_reference inválido: %w", sub.ID, err)
		}
		pr.ExpiresAt = pr.ExpiresAt.UTC()
		pr.CreatedAt = pr.CreatedAt.UTC()
		sub.PaymentReference = &pr
	}

	sub.QuotedAt = sub.QuotedAt.UTC()
	sub.NextBillingDate = sub.NextBillingDate.UTC()
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	sub.TrialEndsAt = timePtr(trialEnds)
	sub.CancelledAt = timePtr(cancelledAt)
	return &sub, nil
}
