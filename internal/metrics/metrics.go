// Package metrics reúne os coletores Prometheus do serviço.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics agrupa os coletores. Os testes usam um registo próprio para não colidir com o global.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	quotesTotal        *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	gatewayCallsTotal  *prometheus.CounterVec
	webhookEventsTotal *prometheus.CounterVec
	invariantViolation prometheus.Counter
}

// New cria e regista os coletores em reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// contador de pedidos por rota (padrão chi, não o path real)
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Número total de pedidos HTTP recebidos.",
			},
			[]string{"method", "path", "code"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duração dos pedidos HTTP em segundos.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "code"},
		),
		quotesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_quotes_total",
				Help: "Orçamentos calculados, por periodicidade e resultado.",
			},
			[]string{"periodicity", "result"},
		),
		transitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscription_transitions_total",
				Help: "Transições de estado aplicadas às subscrições.",
			},
			[]string{"from", "to"},
		),
		gatewayCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_gateway_calls_total",
				Help: "Pedidos de referência ao gateway, por resultado.",
			},
			[]string{"method", "result"},
		),
		webhookEventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_events_total",
				Help: "Notificações do gateway, por estado final.",
			},
			[]string{"status"},
		),
		invariantViolation: f.NewCounter(
			prometheus.CounterOpts{
				Name: "pricing_invariant_violations_total",
				Help: "Violações de invariante detetadas ao calcular preços.",
			},
		),
	}
}

// Middleware coleta contagem e latência por rota
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(ww.Status())

		routePattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		m.httpRequestsTotal.WithLabelValues(r.Method, routePattern, code).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, routePattern, code).Observe(duration)
	})
}

// QuoteComputed regista um orçamento; result é "ok" ou o tipo de erro
func (m *Metrics) QuoteComputed(periodicity, result string) {
	if m == nil {
		return
	}
	m.quotesTotal.WithLabelValues(periodicity, result).Inc()
}

// Transition regista uma transição de estado
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

// GatewayCall regista uma tentativa ao gateway
func (m *Metrics) GatewayCall(method, result string) {
	if m == nil {
		return
	}
	m.gatewayCallsTotal.WithLabelValues(method, result).Inc()
}

// WebhookEvent regista o estado final de uma notificação
func (m *Metrics) WebhookEvent(status string) {
	if m == nil {
		return
	}
	m.webhookEventsTotal.WithLabelValues(status).Inc()
}

// InvariantViolation regista uma violação de invariante
func (m *Metrics) InvariantViolation() {
	if m == nil {
		return
	}
	m.invariantViolation.Inc()
}
