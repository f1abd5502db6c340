package ports

import (
	"context"
	"time"

	"github.com/magnani/frota-tvde/backend/internal/domain"
)

// CatalogReader lê o catálogo (planos, módulos, promoções) e os overrides ativos
type CatalogReader interface {
	// GetPlan devolve domain.ErrNotFound se o plano não existir
	GetPlan(ctx context.Context, id string) (*domain.Plan, error)

	// GetModules devolve os módulos existentes entre ids; os ausentes ficam fora do mapa
	GetModules(ctx context.Context, ids []string) (map[string]domain.Module, error)

	// ListPromotions lista todas as promoções do plano, abertas ou não
	ListPromotions(ctx context.Context, planID string) ([]domain.Promotion, error)

	// ActiveOverrides lista os overrides ativos do subscritor (normalmente zero ou um)
	ActiveOverrides(ctx context.Context, subscriberID string) ([]domain.DiscountOverride, error)
}

// SubscriptionRepository persiste subscrições. Nunca apaga registos.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *domain.Subscription) error

	// Get devolve domain.ErrNotFound se não existir
	Get(ctx context.Context, id string) (*domain.Subscription, error)

	// Update grava com compare-and-swap sobre sub.Version. Em caso de sucesso
	// incrementa sub.Version; se outro escritor gravou antes devolve domain.ErrConcurrentUpdate.
	Update(ctx context.Context, sub *domain.Subscription) error

	// HasSubscriptionForPlan indica se o subscritor já teve alguma subscrição ao plano, em qualquer estado
	HasSubscriptionForPlan(ctx context.Context, subscriberID, planID string) (bool, error)

	// FindByPaymentKey procura pela referência, id do gateway ou chave de idempotência
	FindByPaymentKey(ctx context.Context, key string) (*domain.Subscription, error)

	// ListBillingDue lista subscrições active/pending_payment com next_billing_date anterior a before
	ListBillingDue(ctx context.Context, before time.Time) ([]*domain.Subscription, error)

	// ListTrialsEnded lista subscrições em trial cujo trial terminou até now
	ListTrialsEnded(ctx context.Context, now time.Time) ([]*domain.Subscription, error)
}

// OverrideWriter altera overrides. Cada chamada é uma transação.
type OverrideWriter interface {
	// ReplaceActiveOverride desativa o override ativo do subscritor e insere o novo
	ReplaceActiveOverride(ctx context.Context, o *domain.DiscountOverride) error

	// DeactivateOverrides desativa todos os overrides do subscritor e devolve quantos foram alterados
	DeactivateOverrides(ctx context.Context, subscriberID string) (int, error)
}

// WebhookEventStore guarda as notificações recebidas
type WebhookEventStore interface {
	// SaveWebhookEvent insere o evento; created=false se já existia (gateway, event_id)
	SaveWebhookEvent(ctx context.Context, e *domain.WebhookEvent) (created bool, err error)

	UpdateWebhookEvent(ctx context.Context, e *domain.WebhookEvent) error

	// ListRetryableWebhookEvents lista eventos falhados com nova tentativa vencida
	ListRetryableWebhookEvents(ctx context.Context, now time.Time, limit int) ([]*domain.WebhookEvent, error)
}
