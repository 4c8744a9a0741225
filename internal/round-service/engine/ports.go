package engine

import (
	"context"

	"github.com/radieske/risefall-round-service/internal/round-service/ledger"
	"github.com/radieske/risefall-round-service/internal/round-service/wallet"
	"github.com/radieske/risefall-round-service/pkg/contracts/events"
)

// WalletStore é o acesso externo às carteiras.
// ApplyDelta deve ser atômico por carteira e retornar o estado após a mutação.
type WalletStore interface {
	GetWallet(ctx context.Context, userID string) (wallet.Account, error)
	ApplyDelta(ctx context.Context, userID string, d wallet.Delta) (wallet.Account, error)
}

// BetLedger é o acesso externo ao histórico de apostas
type BetLedger interface {
	InsertBet(ctx context.Context, b *ledger.Bet) (string, error)
	FindPendingByRound(ctx context.Context, roundID string) ([]ledger.Bet, error)
	BulkSettle(ctx context.Context, updates []ledger.Settlement) error
}

// Notifier entrega eventos a todos os inscritos ou ao canal privado de um participante
type Notifier interface {
	Broadcast(event string, payload any)
	SendToUser(userID string, event string, payload any)
}

// Session representa quem fez a requisição; respostas e rejeições vão só para ele
type Session interface {
	JoinPrivate(userID string)
	Send(event string, payload any)
}

// EventPublisher publica eventos de domínio para consumidores externos (ex: Kafka)
type EventPublisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
	PublishRoundSettled(ctx context.Context, e events.RoundSettled) error
}

type noopPublisher struct{}

func (noopPublisher) PublishBetPlaced(context.Context, events.BetPlaced) error       { return nil }
func (noopPublisher) PublishRoundSettled(context.Context, events.RoundSettled) error { return nil }
