// Package main é o ponto de entrada da API Frota TVDE
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magnani/frota-tvde/backend/internal/adapters/easypay"
	"github.com/magnani/frota-tvde/backend/internal/adapters/sqlite"
	"github.com/magnani/frota-tvde/backend/internal/config"
	"github.com/magnani/frota-tvde/backend/internal/handlers"
	"github.com/magnani/frota-tvde/backend/internal/metrics"
	"github.com/magnani/frota-tvde/backend/internal/pricing"
	"github.com/magnani/frota-tvde/backend/internal/services"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger, level); err != nil {
		logger.Error("erro fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, level *slog.LevelVar) error {
	logger.Info("a iniciar Frota TVDE API")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.IsDevelopment() {
		level.Set(slog.LevelDebug)
	}
	logger.Info("configuração carregada", "env", cfg.Env, "easypay_sandbox", cfg.Easypay.Sandbox)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("base de dados pronta", "path", cfg.DatabasePath)

	gateway, err := easypay.NewClient(&cfg.Easypay, cfg.Webhook.Secret)
	if err != nil {
		return err
	}
	if cfg.Webhook.Secret == "" {
		logger.Warn("webhook sem segredo: assinaturas não são verificadas")
	}

	engine, err := pricing.NewEngine(cfg.Billing.IVARate, pricing.PeriodDiscounts{
		Quarterly:  cfg.Billing.QuarterlyDiscount,
		SemiAnnual: cfg.Billing.SemiAnnualDiscount,
		Annual:     cfg.Billing.AnnualDiscount,
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	subscriptions := services.NewSubscriptionService(services.Dependencies{
		Catalog: store,
		Repo:    store,
		Gateway: gateway,
		Engine:  engine,
		Metrics: m,
		Logger:  logger,
	}, services.Config{
		GracePeriod:           cfg.Billing.GracePeriod,
		ReferenceTTL:          cfg.Billing.ReferenceTTL,
		GatewayMaxAttempts:    cfg.Billing.GatewayMaxAttempts,
		GatewayInitialBackoff: cfg.Billing.GatewayInitialBackoff,
	})
	overrides := services.NewOverrideService(store, nil, logger)
	webhooks := services.NewWebhookService(gateway, store, store, subscriptions, nil, m, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(handlers.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(m.Middleware)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Mount("/", handlers.NewHandler(subscriptions, overrides, webhooks, store, logger).Routes())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go runJobs(ctx, logger, cfg.Billing.JobInterval, subscriptions, webhooks)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("servidor a correr", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("a encerrar servidor")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runJobs corre periodicamente as transições temporais e o reprocessamento de webhooks
func runJobs(ctx context.Context, logger *slog.Logger, interval time.Duration, subs *services.SubscriptionService, webhooks *services.WebhookService) {
	jobs := []struct {
		name string
		fn   func(context.Context) (int, error)
	}{
		{"end_trials", subs.EndTrials},
		{"renew_due", subs.RenewDue},
		{"expire_overdue", subs.ExpireOverdue},
		{"retry_webhooks", webhooks.RetryFailed},
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, job := range jobs {
			n, err := job.fn(ctx)
			if err != nil {
				logger.Error("job falhou", "job", job.name, "error", err)
				continue
			}
			if n > 0 {
				logger.Info("job executado", "job", job.name, "affected", n)
			}
		}
	}
}
