// Package lease garante um único dono do scheduler de rodadas entre instâncias,
// usando uma chave Redis com TTL renovada periodicamente.
package lease

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultKey é a chave Redis disputada pelas instâncias
const DefaultKey = "risefall:scheduler:owner"

// DefaultTTL é a validade da posse sem renovação
const DefaultTTL = 10 * time.Second

var ErrHeld = errors.New("lease held by another instance")

// renova só se o token ainda for nosso
var renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`

// libera só se o token ainda for nosso
var releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// Store é o subconjunto do cliente Redis usado pela posse
type Store interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type Lease struct {
	r     Store
	key   string
	token string
	ttl   time.Duration
	log   *zap.Logger
}

func New(r Store, key string, ttl time.Duration, log *zap.Logger) *Lease {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Lease{r: r, key: key, token: uuid.NewString(), ttl: ttl, log: log}
}

// Token identifica esta instância como dona
func (l *Lease) Token() string { return l.token }

// Acquire tenta tomar a posse; ErrHeld se outra instância já é dona
func (l *Lease) Acquire(ctx context.Context) error {
	ok, err := l.r.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrHeld
	}
	return nil
}

// Keep renova a posse a cada ttl/3 até ctx terminar.
// onLost é chamado uma vez se a chave deixou de ser nossa.
func (l *Lease) Keep(ctx context.Context, onLost func()) {
	t := time.NewTicker(l.ttl / 3)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := l.r.Eval(ctx, renewScript, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// erro transitório; se a chave expirar, a próxima renovação retorna 0
				l.log.Warn("lease renew failed", zap.String("key", l.key), zap.Error(err))
				continue
			}
			if n == 0 {
				l.log.Error("lease lost", zap.String("key", l.key))
				onLost()
				return
			}
		}
	}
}

// Release devolve a posse se ainda for nossa
func (l *Lease) Release(ctx context.Context) error {
	return l.r.Eval(ctx, releaseScript, []string{l.key}, l.token).Err()
}
