package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/magnani/frota-tvde/backend/internal/domain"
	"github.com/magnani/frota-tvde/backend/internal/ports"
)

// O pedido de referência decorre em três fases:
//
//  1. com o lock da subscrição: valida, marca PaymentRequestInFlight e grava (CAS)
//  2. sem lock: chama o gateway, com retry exponencial
//  3. com o lock: grava a referência e limpa a marca
//
// Um segundo pedido concorrente encontra a marca e falha com ErrInvalidTransition.

// beginPaymentRequest marca o pedido em curso. Chamar com o lock da subscrição.
func beginPaymentRequest(sub *domain.Subscription) error {
	if sub.PaymentRequestInFlight {
		return fmt.Errorf("%w: pedido de referência já em curso para %s", domain.ErrInvalidTransition, sub.ID)
	}
	sub.PaymentRequestInFlight = true
	sub.PaymentRequestKey = sub.ID + "-" + uuid.NewString()[:8]
	return nil
}

// reserve executa a fase 1 sobre uma subscrição existente. mutate aplica a transição
// pretendida; se falhar nada é gravado.
func (s *SubscriptionService) reserve(ctx context.Context, id string, mutate func(sub *domain.Subscription, now time.Time) error) (*domain.Subscription, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.PaymentRequestInFlight {
		return nil, fmt.Errorf("%w: pedido de referência já em curso para %s", domain.ErrInvalidTransition, sub.ID)
	}

	now := s.clock.Now()
	from := sub.Status
	if err := mutate(sub, now); err != nil {
		return nil, err
	}
	// a referência anterior pertence ao ciclo já pago ou expirou
	sub.PaymentReference = nil
	if err := beginPaymentRequest(sub); err != nil {
		return nil, err
	}
	sub.UpdatedAt = now

	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}
	s.committed(sub, from)
	return sub, nil
}

// issueReference executa as fases 2 e 3 para uma subscrição já reservada
func (s *SubscriptionService) issueReference(ctx context.Context, reserved *domain.Subscription) (*domain.Subscription, *domain.PaymentReference, error) {
	now := s.clock.Now()
	req := &ports.PaymentReferenceRequest{
		SubscriptionID: reserved.ID,
		Method:         reserved.PaymentMethod,
		Amount:         reserved.ComputedGross.Round(2),
		SubscriberID:   reserved.SubscriberID,
		Contact:        reserved.Contact,
		ExpiresAt:      now.Add(s.cfg.ReferenceTTL),
		IdempotencyKey: reserved.PaymentRequestKey,
	}

	res, attempts, callErr := s.requestReference(ctx, req)

	// a fase 3 tem de correr mesmo que o pedido HTTP original tenha sido cancelado,
	// senão a marca ficava presa
	ctx = context.WithoutCancel(ctx)

	unlock := s.locks.Lock(reserved.ID)
	defer unlock()

	sub, err := s.repo.Get(ctx, reserved.ID)
	if err != nil {
		return nil, nil, err
	}

	// MB WAY pode ser pago antes da fase 3: o webhook encontra a subscrição pela chave
	if sub.PaymentRequestKey == req.IdempotencyKey && !sub.PaymentRequestInFlight &&
		sub.Status == domain.SubscriptionStatusActive {
		s.logger.Info("pagamento confirmado durante o pedido de referência", "subscription_id", sub.ID)
		if callErr != nil {
			return sub, nil, nil
		}
		ref := newPaymentReference(sub.ID, req, res, now)
		sub.PaymentReference = ref
		sub.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, sub); err != nil {
			return nil, nil, err
		}
		return sub, ref, nil
	}

	if !sub.PaymentRequestInFlight || sub.PaymentRequestKey != req.IdempotencyKey {
		s.logger.Warn("referência descartada: subscrição alterada durante o pedido",
			"subscription_id", sub.ID,
			"status", sub.Status,
		)
		return sub, nil, fmt.Errorf("%w: subscrição %s alterada durante o pedido de referência (%s)",
			domain.ErrInvalidTransition, sub.ID, sub.Status)
	}

	sub.PaymentRequestInFlight = false
	sub.PaymentAttempts += attempts
	sub.UpdatedAt = s.clock.Now()

	if callErr != nil {
		sub.LastPaymentError = callErr.Error()
		if err := s.repo.Update(ctx, sub); err != nil {
			return nil, nil, err
		}
		s.logger.Error("gateway indisponível, subscrição fica sem referência",
			"subscription_id", sub.ID,
			"attempts", attempts,
			"error", callErr,
		)
		return sub, nil, fmt.Errorf("%w: %v", domain.ErrPaymentGatewayUnavailable, callErr)
	}

	ref := newPaymentReference(sub.ID, req, res, now)
	sub.PaymentReference = ref
	sub.LastPaymentError = ""

	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, nil, err
	}
	s.logger.Info("referência de pagamento emitida",
		"subscription_id", sub.ID,
		"method", ref.Method,
		"amount", ref.Amount.StringFixed(2),
		"attempts", attempts,
	)
	return sub, ref, nil
}

func newPaymentReference(subscriptionID string, req *ports.PaymentReferenceRequest, res *ports.PaymentReferenceResult, now time.Time) *domain.PaymentReference {
	expiresAt := res.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = req.ExpiresAt
	}
	return &domain.PaymentReference{
		Method:         req.Method,
		Entity:         res.Entity,
		Reference:      res.Reference,
		Amount:         req.Amount,
		ExpiresAt:      expiresAt,
		SubscriptionID: subscriptionID,
		GatewayID:      res.GatewayID,
		CreatedAt:      now,
	}
}

// requestReference chama o gateway até GatewayMaxAttempts vezes. Pedidos recusados
// (ports.ErrRequestRejected) não são repetidos.
func (s *SubscriptionService) requestReference(ctx context.Context, req *ports.PaymentReferenceRequest) (*ports.PaymentReferenceResult, int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.GatewayInitialBackoff
	b.MaxElapsedTime = 0

	attempts := 0
	op := func() (*ports.PaymentReferenceResult, error) {
		attempts++
		s.logger.Debug("pedido de referência ao gateway",
			"subscription_id", req.SubscriptionID,
			"idempotency_key", req.IdempotencyKey,
			"attempt", attempts,
		)
		res, err := s.gateway.CreatePaymentReference(ctx, req)
		if err == nil && res == nil {
			err = errors.New("resposta vazia do gateway")
		}
		if err != nil {
			s.metrics.GatewayCall(string(req.Method), "error")
			s.logger.Warn("falha no pedido de referência",
				"subscription_id", req.SubscriptionID,
				"attempt", attempts,
				"error", err,
			)
			if errors.Is(err, ports.ErrRequestRejected) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		s.metrics.GatewayCall(string(req.Method), "ok")
		return res, nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.GatewayMaxAttempts-1)), ctx)
	res, err := backoff.RetryWithData(op, policy)
	return res, attempts, err
}
