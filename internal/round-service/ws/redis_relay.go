package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel é o canal Redis Pub/Sub usado para fan-out entre instâncias
const DefaultChannel = "risefall_broadcast"

// relayMsg é o que trafega no canal: sala de destino e mensagem já serializada
type relayMsg struct {
	Room    string          `json:"room"`
	Message json.RawMessage `json:"message"`
}

// RedisRelay implementa engine.Notifier publicando no Redis em vez de entregar direto.
// Cada instância entrega no seu Hub local via StartRedisSubscriber.
type RedisRelay struct {
	r       *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisRelay(r *redis.Client, channel string, log *zap.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{r: r, channel: channel, log: log}
}

func (b *RedisRelay) Broadcast(event string, payload any) {
	b.publish(RoundRoom, event, payload)
}

func (b *RedisRelay) SendToUser(userID string, event string, payload any) {
	b.publish(userRoom(userID), event, payload)
}

func (b *RedisRelay) publish(room, event string, payload any) {
	msg, err := json.Marshal(ServerMsg{Type: event, Payload: payload})
	if err != nil {
		b.log.Error("relay marshal failed", zap.String("event", event), zap.Error(err))
		return
	}
	raw, _ := json.Marshal(relayMsg{Room: room, Message: msg})
	if err := b.r.Publish(context.Background(), b.channel, raw).Err(); err != nil {
		b.log.Error("relay publish failed",
			zap.String("room", room),
			zap.String("event", event),
			zap.Error(err))
	}
}

// StartRedisSubscriber inicia uma goroutine que escuta o canal Redis Pub/Sub
// e entrega as mensagens recebidas nas salas do Hub local
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) {
	if channel == "" {
		channel = DefaultChannel
	}
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var rm relayMsg
				if err := json.Unmarshal([]byte(msg.Payload), &rm); err != nil {
					log.Warn("relay unmarshal failed", zap.Error(err))
					continue
				}
				hub.Deliver(rm.Room, rm.Message)
			}
		}
	}()
}
