// Package easypay implementa o adaptador para a API 2.0 da Easypay.
//
// Este pacote implementa:
//   - Referências Multibanco (entidade + referência)
//   - Pedidos MB WAY (notificação no telemóvel do subscritor)
//   - Validação e parse das notificações genéricas (webhooks)
//
// # Autenticação
//
// A API usa os headers AccountId e ApiKey (do backoffice Easypay).
// Opcionalmente, um certificado .p12 pode ser configurado para mTLS.
//
// # Início Rápido
//
//	client, err := easypay.NewClient(&cfg.Easypay, cfg.Webhook.Secret)
//
//	res, err := client.CreatePaymentReference(ctx, &ports.PaymentReferenceRequest{
//	    SubscriptionID: "sub-123",
//	    Method:         domain.PaymentMethodMultibanco,
//	    Amount:         decimal.RequireFromString("72.00"),
//	    IdempotencyKey: "sub-123-1a2b3c4d",
//	})
//
// A chave de idempotência é enviada como "key" do pagamento; a Easypay
// devolve-a nas notificações e é com ela que o webhook encontra a subscrição.
//
// # Tratamento de Erros
//
// Respostas 4xx (exceto 408 e 429) são envolvidas em ports.ErrRequestRejected
// e não devem ser repetidas:
//
//	if errors.Is(err, ports.ErrRequestRejected) {
//	    // pedido inválido, não repetir
//	}
//	if errors.Is(err, easypay.ErrServerError) {
//	    // falha temporária
//	}
//
// # Documentação da API
//
// https://docs.easypay.pt
package easypay
