package easypay

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/pkcs12"

	"github.com/magnani/frota-tvde/backend/internal/config"
)

// Client implementa ports.PaymentReferenceGateway e ports.WebhookParser para a API Easypay
type Client struct {
	baseURL       string
	accountID     string
	apiKey        string
	webhookSecret string
	httpClient    *http.Client
}

// NewClient cria um novo cliente Easypay. O mTLS só é configurado se houver certificado.
func NewClient(cfg *config.EasypayConfig, webhookSecret string) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = APIURLProd
		if cfg.Sandbox {
			baseURL = APIURLSandbox
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	if cfg.CertificatePath != "" {
		tlsConfig, err := loadCertificate(cfg.CertificatePath, cfg.CertificatePassword)
		if err != nil {
			return nil, fmt.Errorf("erro ao carregar certificado: %w", err)
		}
		httpClient.Transport = &http.Transport{TLSClientConfig: tlsConfig}
	}

	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		accountID:     cfg.AccountID,
		apiKey:        cfg.APIKey,
		webhookSecret: webhookSecret,
		httpClient:    httpClient,
	}, nil
}

// loadCertificate carrega um certificado .p12 para mTLS
func loadCertificate(certPath, password string) (*tls.Config, error) {
	certData, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler certificado: %w", err)
	}

	privateKey, certificate, err := pkcs12.Decode(certData, password)
	if err != nil {
		return nil, fmt.Errorf("erro ao decodificar certificado PKCS12: %w", err)
	}

	tlsCert := tls.Certificate{
		Certificate: [][]byte{certificate.Raw},
		PrivateKey:  privateKey,
	}

	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// doRequest executa um pedido HTTP autenticado. Respostas >= 400 devolvem *APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, headers map[string]string) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("erro ao serializar body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar pedido: %w", err)
	}

	req.Header.Set("AccountId", c.accountID)
	req.Header.Set("ApiKey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erro no pedido HTTP: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler resposta: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Error() == "" {
			apiErr.Message = []string{fmt.Sprintf("status %d - %s", resp.StatusCode, string(respBody))}
		}
		return nil, apiErr
	}

	return respBody, nil
}
