package domain

import "errors"

// Erros sentinela do motor de subscrições.
// Os serviços envolvem-nos com fmt.Errorf("%w: ...") para acrescentar contexto;
// os chamadores devem comparar com errors.Is.
var (
	// ErrInvalidConfiguration indica referência a plano/módulo inexistente ou inativo
	ErrInvalidConfiguration = errors.New("configuração inválida")

	// ErrInvariantViolation indica estado de override em conflito (fatal, nunca resolvido em silêncio)
	ErrInvariantViolation = errors.New("violação de invariante")

	// ErrPromotionNotApplicable indica código promocional inválido ou fora de validade
	ErrPromotionNotApplicable = errors.New("promoção não aplicável")

	// ErrInvalidPeriodicity indica periodicidade desconhecida
	ErrInvalidPeriodicity = errors.New("periodicidade inválida")

	// ErrInvalidTransition indica transição de estado não permitida
	ErrInvalidTransition = errors.New("transição de estado inválida")

	// ErrPaymentGatewayUnavailable indica falha do gateway de referências de pagamento
	ErrPaymentGatewayUnavailable = errors.New("gateway de pagamento indisponível")

	// ErrNotFound indica que o registo não existe
	ErrNotFound = errors.New("registo não encontrado")

	// ErrConcurrentUpdate indica que outro escritor alterou o registo entre a leitura e o commit
	ErrConcurrentUpdate = errors.New("atualização concorrente")

	// ErrForbidden indica que o principal não pode executar a operação
	ErrForbidden = errors.New("operação não permitida")
)
