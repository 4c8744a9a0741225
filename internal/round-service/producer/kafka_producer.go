package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	sharedkafka "github.com/radieske/risefall-round-service/internal/shared/kafka"
	"github.com/radieske/risefall-round-service/pkg/contracts/events"
)

// KafkaPublisher publica os eventos de domínio do round-service.
// Mensagens de aposta usam user_id como chave e de rodada usam round_id,
// preservando a ordem por usuário e por rodada dentro da partição.
type KafkaPublisher struct {
	BetPlaced    *kafka.Writer
	RoundSettled *kafka.Writer
}

func NewKafkaPublisher(betPlaced, roundSettled *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{BetPlaced: betPlaced, RoundSettled: roundSettled}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return sharedkafka.WriteJSON(ctx, p.BetPlaced, e.UserID, b)
}

func (p *KafkaPublisher) PublishRoundSettled(ctx context.Context, e events.RoundSettled) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return sharedkafka.WriteJSON(ctx, p.RoundSettled, e.RoundID, b)
}

// Close fecha os writers
func (p *KafkaPublisher) Close() error {
	err := p.BetPlaced.Close()
	if cerr := p.RoundSettled.Close(); err == nil {
		err = cerr
	}
	return err
}
