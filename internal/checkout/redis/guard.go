// Package redis keeps a short-lived marker per buyer and ticket while a
// checkout is being created, so a double submit does not open two sessions.
// It is not an inventory hold.
package redis

import (
	"context"
	"fmt"
	"time"

	"ms-livestream/internal/logger"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "checkout_guard:"

// releaseScript deletes the key only while it still belongs to the holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Guard struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewGuard(client *redis.Client, ttl time.Duration, log *logger.Logger) *Guard {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Guard{Client: client, TTL: ttl, Logger: log}
}

func guardKey(key string) string {
	return keyPrefix + key
}

// Acquire returns false when another checkout for the same key is in flight.
func (g *Guard) Acquire(ctx context.Context, key, holder string) (bool, error) {
	ok, err := g.Client.SetNX(ctx, guardKey(key), holder, g.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire checkout guard %s: %w", key, err)
	}
	if !ok {
		g.Logger.Debug("REDIS", fmt.Sprintf("Checkout guard %s already held", key))
	}
	return ok, nil
}

func (g *Guard) Release(ctx context.Context, key, holder string) error {
	if err := releaseScript.Run(ctx, g.Client, []string{guardKey(key)}, holder).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release checkout guard %s: %w", key, err)
	}
	return nil
}

// Held reports whether a checkout for key is in flight.
func (g *Guard) Held(ctx context.Context, key string) (bool, error) {
	n, err := g.Client.Exists(ctx, guardKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
