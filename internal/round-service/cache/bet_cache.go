package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// BetCache guarda apostas já liquidadas; won/lost não mudam mais, então o TTL só limita memória
type BetCache struct {
	R   *redis.Client
	TTL time.Duration
}

func New(r *redis.Client, ttl time.Duration) *BetCache { return &BetCache{R: r, TTL: ttl} }

func keyBet(betID string) string { return "risefall:bet:" + betID }

func (c *BetCache) GetBet(ctx context.Context, betID string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyBet(betID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *BetCache) SetBet(ctx context.Context, betID string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, keyBet(betID), b, c.TTL).Err()
}
