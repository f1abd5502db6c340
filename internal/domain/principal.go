package domain

// Principal identifica quem executa um pedido e, no caso de administradores,
// em nome de que subscritor. É passado explicitamente em cada chamada.
type Principal struct {
	ActorID              string
	ActingAsSubscriberID string
	IsAdmin              bool
}

// EffectiveSubscriber devolve o subscritor a que o pedido diz respeito.
// Só administradores podem agir em nome de outro subscritor.
func (p Principal) EffectiveSubscriber() string {
	if p.IsAdmin && p.ActingAsSubscriberID != "" {
		return p.ActingAsSubscriberID
	}
	return p.ActorID
}

// CanAccess verifica se o principal pode ler ou alterar dados do subscritor
func (p Principal) CanAccess(subscriberID string) bool {
	return p.IsAdmin || (p.ActorID != "" && p.ActorID == subscriberID)
}
