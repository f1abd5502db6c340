package easypay

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/magnani/frota-tvde/backend/internal/ports"
)

// Erros sentinela para condições comuns
var (
	// ErrUnauthorized indica falha de autenticação (AccountId/ApiKey)
	ErrUnauthorized = errors.New("easypay: não autorizado")

	// ErrRateLimited indica rate limiting
	ErrRateLimited = errors.New("easypay: rate limit atingido")

	// ErrServerError indica erro interno do servidor Easypay
	ErrServerError = errors.New("easypay: erro do servidor")
)

// ClassifyError converte um erro da API para um erro sentinela quando apropriado.
// Erros definitivos do pedido ficam envolvidos em ports.ErrRequestRejected.
func ClassifyError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.HTTPStatus {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w: %s", ports.ErrRequestRejected, ErrUnauthorized, apiErr.Error())
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Error())
	case http.StatusRequestTimeout:
		return err
	}

	if apiErr.HTTPStatus >= 500 {
		return fmt.Errorf("%w: %s", ErrServerError, apiErr.Error())
	}
	if apiErr.HTTPStatus >= 400 {
		return fmt.Errorf("%w: status %d: %s", ports.ErrRequestRejected, apiErr.HTTPStatus, apiErr.Error())
	}

	return err
}
