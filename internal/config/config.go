// Package config gere as configurações da aplicação
// a partir de variáveis de ambiente e do ficheiro .env
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config armazena todas as configurações da aplicação
type Config struct {
	// Servidor
	Port string
	Env  string

	// Base de dados
	DatabasePath string

	// Easypay
	Easypay EasypayConfig

	// Webhook
	Webhook WebhookConfig

	// Faturação
	Billing BillingConfig
}

// EasypayConfig armazena configurações específicas da Easypay
type EasypayConfig struct {
	AccountID           string
	APIKey              string
	BaseURL             string
	Sandbox             bool
	CertificatePath     string // opcional, mTLS com .p12
	CertificatePassword string
	Timeout             time.Duration
}

// WebhookConfig armazena configurações de webhook
type WebhookConfig struct {
	Secret string
}

// BillingConfig parâmetros do motor de preços e dos jobs de faturação
type BillingConfig struct {
	IVARate decimal.Decimal

	// Descontos por periodicidade, em fração (0.05 = 5%)
	QuarterlyDiscount  decimal.Decimal
	SemiAnnualDiscount decimal.Decimal
	AnnualDiscount     decimal.Decimal

	GracePeriod           time.Duration
	ReferenceTTL          time.Duration
	GatewayMaxAttempts    int
	GatewayInitialBackoff time.Duration
	JobInterval           time.Duration
}

// Load carrega as configurações do ficheiro .env e variáveis de ambiente
// O ficheiro .env é opcional - variáveis de ambiente têm prioridade
func Load() (*Config, error) {
	// Tenta carregar .env (ignora erro se não existir)
	_ = godotenv.Load()

	var errs []error
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("ENV", "development"),
		DatabasePath: getEnv("DATABASE_PATH", "frota.db"),
		Easypay: EasypayConfig{
			AccountID:           getEnv("EASYPAY_ACCOUNT_ID", ""),
			APIKey:              getEnv("EASYPAY_API_KEY", ""),
			BaseURL:             getEnv("EASYPAY_BASE_URL", ""),
			Sandbox:             getEnvBool("EASYPAY_SANDBOX", true),
			CertificatePath:     getEnv("EASYPAY_CERTIFICATE_PATH", ""),
			CertificatePassword: getEnv("EASYPAY_CERTIFICATE_PASSWORD", ""),
			Timeout:             getEnvDuration("EASYPAY_TIMEOUT", 30*time.Second, &errs),
		},
		Webhook: WebhookConfig{
			Secret: getEnv("WEBHOOK_SECRET", ""),
		},
		Billing: BillingConfig{
			IVARate:               getEnvDecimal("IVA_RATE", "0.23", &errs),
			QuarterlyDiscount:     getEnvDecimal("BILLING_DISCOUNT_QUARTERLY", "0.05", &errs),
			SemiAnnualDiscount:    getEnvDecimal("BILLING_DISCOUNT_SEMI_ANNUAL", "0.10", &errs),
			AnnualDiscount:        getEnvDecimal("BILLING_DISCOUNT_ANNUAL", "0.15", &errs),
			GracePeriod:           getEnvDuration("BILLING_GRACE_PERIOD", 72*time.Hour, &errs),
			ReferenceTTL:          getEnvDuration("PAYMENT_REFERENCE_TTL", 72*time.Hour, &errs),
			GatewayMaxAttempts:    getEnvInt("PAYMENT_GATEWAY_MAX_ATTEMPTS", 4, &errs),
			GatewayInitialBackoff: getEnvDuration("PAYMENT_GATEWAY_INITIAL_BACKOFF", 500*time.Millisecond, &errs),
			JobInterval:           getEnvDuration("BILLING_JOB_INTERVAL", time.Minute, &errs),
		},
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	// Validação básica
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate verifica se as configurações obrigatórias estão presentes
func (c *Config) validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH é obrigatório")
	}
	if c.Billing.IVARate.IsNegative() || c.Billing.IVARate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("IVA_RATE deve estar em [0, 1), recebido %s", c.Billing.IVARate)
	}
	if c.Billing.GatewayMaxAttempts < 1 {
		return fmt.Errorf("PAYMENT_GATEWAY_MAX_ATTEMPTS deve ser >= 1")
	}
	if c.Billing.JobInterval <= 0 {
		return fmt.Errorf("BILLING_JOB_INTERVAL deve ser positivo")
	}
	if c.IsProduction() {
		if c.Easypay.AccountID == "" {
			return fmt.Errorf("EASYPAY_ACCOUNT_ID é obrigatório")
		}
		if c.Easypay.APIKey == "" {
			return fmt.Errorf("EASYPAY_API_KEY é obrigatório")
		}
		if c.Webhook.Secret == "" {
			return fmt.Errorf("WEBHOOK_SECRET é obrigatório em produção")
		}
	}
	return nil
}

// IsDevelopment devolve true se estiver em ambiente de desenvolvimento
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction devolve true se estiver em ambiente de produção
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv obtém uma variável de ambiente ou devolve o valor por omissão
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool obtém uma variável de ambiente como bool
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// Os getters abaixo acumulam os erros de parse em errs

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return parsed
}

func getEnvDecimal(key, defaultValue string, errs *[]error) decimal.Decimal {
	value := getEnv(key, defaultValue)
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return decimal.Zero
	}
	return parsed
}
