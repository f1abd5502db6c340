package easypay

const (
	// Produção
	APIURLProd = "https://api.prod.easypay.pt/2.0"

	// Sandbox/Testes
	APIURLSandbox = "https://api.test.easypay.pt/2.0"
)

// Métodos de pagamento na API Easypay
const (
	MethodMultibanco = "mb"
	MethodMBWay      = "mbw"
)

// Tipos e estados das notificações genéricas
const (
	NotificationTypeCapture = "capture"
	NotificationStatusOK    = "success"
)

// GatewayName identifica a Easypay nos eventos de webhook gravados
const GatewayName = "easypay"

// SignatureHeader é o header com a assinatura HMAC do webhook
const SignatureHeader = "X-Easypay-Signature"

// expirationLayout é o formato de datas de expiração aceite pela API
const expirationLayout = "2006-01-02 15:04"
