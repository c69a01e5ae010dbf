package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyCurrent = "round:snapshot:current"

// RoundCache guarda o último snapshot serializado da rodada no Redis.
// Amortece tempestades de reconexão WS: o snapshot sai do cache em vez de
// bater no ledger a cada handshake.
type RoundCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func New(c *redis.Client, ttl time.Duration) *RoundCache {
	return &RoundCache{Client: c, TTL: ttl}
}

// GetSnapshot retorna o payload cacheado; (nil, false) em miss.
func (r *RoundCache) GetSnapshot(ctx context.Context) ([]byte, bool, error) {
	b, err := r.Client.Get(ctx, keyCurrent).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// SetSnapshot grava o payload com TTL curto; rodada muda a cada admissão,
// então o cache só precisa sobreviver a uma rajada de conexões.
func (r *RoundCache) SetSnapshot(ctx context.Context, payload []byte) error {
	return r.Client.Set(ctx, keyCurrent, payload, r.TTL).Err()
}
