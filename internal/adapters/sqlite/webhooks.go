package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/magnani/frota-tvde/backend/internal/domain"
)

// SaveWebhookEvent insere o evento; created=false se (gateway, event_id) já existia
func (s *Store) SaveWebhookEvent(ctx context.Context, e *domain.WebhookEvent) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_events (id, gateway, event_id, event_type, payment_key, payload, status,
		                            processed_at, error_message, retry_count, next_retry_at, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (gateway, event_id) DO NOTHING`,
		e.ID, e.Gateway, e.EventID, e.EventType, e.PaymentKey, string(e.Payload), e.Status,
		nullTime(e.ProcessedAt), nullString(e.ErrorMessage), e.RetryCount, nullTime(e.NextRetryAt), utc(e.ReceivedAt))
	if err != nil {
		return false, fmt.Errorf("erro ao inserir webhook: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateWebhookEvent grava o estado de processamento do evento
func (s *Store) UpdateWebhookEvent(ctx context.Context, e *domain.WebhookEvent) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE webhook_events
		SET status = ?, processed_at = ?, error_message = ?, retry_count = ?, next_retry_at = ?
		WHERE gateway = ? AND event_id = ?`,
		e.Status, nullTime(e.ProcessedAt), nullString(e.ErrorMessage), e.RetryCount, nullTime(e.NextRetryAt),
		e.Gateway, e.EventID)
	if err != nil {
		return fmt.Errorf("erro ao atualizar webhook: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: webhook %s/%s", domain.ErrNotFound, e.Gateway, e.EventID)
	}
	return nil
}

// ListRetryableWebhookEvents lista eventos falhados cuja nova tentativa já venceu
func (s *Store) ListRetryableWebhookEvents(ctx context.Context, now time.Time, limit int) ([]*domain.WebhookEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, gateway, event_id, event_type, payment_key, payload, status,
		       processed_at, error_message, retry_count, next_retry_at, received_at
		FROM webhook_events
		WHERE status = ? AND retry_count <= ? AND next_retry_at <= ?
		ORDER BY next_retry_at
		LIMIT ?`,
		domain.WebhookStatusFailed, domain.MaxWebhookRetries, utc(now), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.WebhookEvent
	for rows.Next() {
		var (
			e                    domain.WebhookEvent
			payload              string
			processedAt, nextTry sql.NullTime
			errMsg               sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Gateway, &e.EventID, &e.EventType, &e.PaymentKey, &payload, &e.Status,
			&processedAt, &errMsg, &e.RetryCount, &nextTry, &e.ReceivedAt); err != nil {
			return nil, err
		}
		if payload != "" {
			e.Payload = json.RawMessage(payload)
		}
		if errMsg.Valid {
			e.ErrorMessage = &errMsg.String
		}
		e.ProcessedAt = timePtr(processedAt)
		e.NextRetryAt = timePtr(nextTry)
		e.ReceivedAt = e.ReceivedAt.UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
