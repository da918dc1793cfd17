package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited indica que la llave superó el techo por minuto.
var ErrRateLimited = errors.New("rate limited")

// RateLimiter decide la admisión de cada request contra un contador de
// ventana fija por minuto calendario (UTC). La ventana fija admite
// ráfagas en los bordes; es una aproximación aceptada, no un sliding
// window.
type RateLimiter interface {
	Admit(ctx context.Context, bucketKey string) error
}

// INCR atómico; el primer escritor del minuto fija el TTL de 60s.
const rateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisRateLimiter struct {
	client *redis.Client
	limit  int
	prefix string
	now    func() time.Time
}

// NewRedisRateLimiter crea el gate de admisión respaldado en Redis con el
// techo de requests por minuto indicado.
func NewRedisRateLimiter(client *redis.Client, limit int) RateLimiter {
	if client == nil {
		return nil
	}
	if limit <= 0 {
		limit = 120
	}
	return &redisRateLimiter{
		client: client,
		limit:  limit,
		prefix: "ratelimit:",
		now:    time.Now,
	}
}

func (l *redisRateLimiter) Admit(ctx context.Context, bucketKey string) error {
	bucketKey = strings.TrimSpace(bucketKey)
	if bucketKey == "" {
		return ErrRateLimited
	}
	minute := l.now().UTC().Unix() / 60
	key := fmt.Sprintf("%s%s:%d", l.prefix, bucketKey, minute)
	count, err := l.client.Eval(ctx, rateLimitScript, []string{key}, 60).Int()
	if err != nil {
		// Un fallo del store jamás se interpreta como "no limitado":
		// se propaga para que el caller responda 503, no 200.
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if count > l.limit {
		return ErrRateLimited
	}
	return nil
}
