package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/magnani/frota-tvde/backend/internal/domain"
	"github.com/magnani/frota-tvde/backend/internal/metrics"
	"github.com/magnani/frota-tvde/backend/internal/ports"
)

// retryBatchSize limita os eventos reprocessados por execução do job
const retryBatchSize = 100

// ErrInvalidSignature indica webhook com assinatura inválida
var ErrInvalidSignature = errors.New("assinatura do webhook inválida")

// PaymentConfirmer é a parte do serviço de subscrições usada pelos webhooks
type PaymentConfirmer interface {
	ConfirmPaymentForKey(ctx context.Context, id, paymentKey string) (*domain.Subscription, error)
}

// WebhookService grava e processa as notificações do gateway (idempotente por event_id)
type WebhookService struct {
	parser    ports.WebhookParser
	store     ports.WebhookEventStore
	repo      ports.SubscriptionRepository
	confirmer PaymentConfirmer
	clock     ports.Clock
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewWebhookService cria o serviço
func NewWebhookService(parser ports.WebhookParser, store ports.WebhookEventStore, repo ports.SubscriptionRepository, confirmer PaymentConfirmer, clock ports.Clock, m *metrics.Metrics, logger *slog.Logger) *WebhookService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookService{
		parser:    parser,
		store:     store,
		repo:      repo,
		confirmer: confirmer,
		clock:     clock,
		metrics:   m,
		logger:    logger.With("component", "webhooks"),
	}
}

// HandleWebhook valida, grava e processa uma notificação. Eventos repetidos são ignorados.
// Erros de processamento ficam registados no evento para nova tentativa e não são devolvidos.
func (s *WebhookService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*domain.WebhookEvent, error) {
	if !s.parser.ValidateWebhookSignature(payload, signature) {
		return nil, ErrInvalidSignature
	}

	in, err := s.parser.ParseWebhookEvent(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}

	ev := domain.NewWebhookEvent(in.Gateway, in.EventID, in.EventType, in.PaymentKey, in.Payload, s.clock.Now())
	ev.ID = uuid.NewString()

	created, err := s.store.SaveWebhookEvent(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("erro ao gravar webhook: %w", err)
	}
	if !created {
		s.logger.Info("webhook duplicado ignorado", "gateway", ev.Gateway, "event_id", ev.EventID)
		s.metrics.WebhookEvent("duplicate")
		return ev, nil
	}

	s.process(ctx, ev, in.Paid)
	return ev, nil
}

// RetryFailed reprocessa os eventos falhados cuja nova tentativa já venceu
func (s *WebhookService) RetryFailed(ctx context.Context) (int, error) {
	events, err := s.store.ListRetryableWebhookEvents(ctx, s.clock.Now(), retryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("erro ao listar webhooks: %w", err)
	}

	processed := 0
	for _, ev := range events {
		in, err := s.parser.ParseWebhookEvent(ev.Payload)
		if err != nil {
			ev.MarkSkipped("payload inválido: "+err.Error(), s.clock.Now())
			s.save(ctx, ev)
			continue
		}
		s.process(ctx, ev, in.Paid)
		if ev.Status == domain.WebhookStatusProcessed {
			processed++
		}
	}
	return processed, nil
}

func (s *WebhookService) process(ctx context.Context, ev *domain.WebhookEvent, paid bool) {
	ev.MarkProcessing()
	now := s.clock.Now()

	if !paid {
		ev.MarkSkipped("evento sem pagamento confirmado: "+ev.EventType, now)
		s.save(ctx, ev)
		return
	}

	sub, err := s.repo.FindByPaymentKey(ctx, ev.PaymentKey)
	if err != nil {
		ev.MarkFailed(err.Error(), now)
		s.save(ctx, ev)
		return
	}

	if _, err := s.confirmer.ConfirmPaymentForKey(ctx, sub.ID, ev.PaymentKey); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// já ativa, terminal ou pagamento de outro ciclo: nada a fazer
			ev.MarkSkipped(err.Error(), now)
		} else {
			ev.MarkFailed(err.Error(), now)
		}
		s.save(ctx, ev)
		return
	}

	ev.MarkProcessed(now)
	s.save(ctx, ev)
}

func (s *WebhookService) save(ctx context.Context, ev *domain.WebhookEvent) {
	s.metrics.WebhookEvent(string(ev.Status))
	if ev.Status == domain.WebhookStatusFailed {
		s.logger.Warn("falha ao processar webhook",
			"event_id", ev.EventID,
			"payment_key", ev.PaymentKey,
			"retry_count", ev.RetryCount,
			"error", *ev.ErrorMessage,
		)
	}
	if err := s.store.UpdateWebhookEvent(ctx, ev); err != nil {
		s.logger.Error("erro ao atualizar webhook", "event_id", ev.EventID, "error", err)
	}
}
