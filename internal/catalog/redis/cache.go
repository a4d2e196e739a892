package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-livestream/internal/models"

	"github.com/go-redis/redis/v8"
)

// EventCache holds the public event detail by slug. Stream references are never
// serialized, so a cached event cannot be used for playback.
type EventCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewEventCache(client *redis.Client, ttl time.Duration) *EventCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &EventCache{Client: client, TTL: ttl}
}

func eventKey(slug string) string {
	return "event:" + slug
}

func (c *EventCache) GetEvent(ctx context.Context, slug string) (*models.Event, bool, error) {
	raw, err := c.Client.Get(ctx, eventKey(slug)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var e models.Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("decode cached event %s: %w", slug, err)
	}
	return &e, true, nil
}

func (c *EventCache) SetEvent(ctx context.Context, e *models.Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, eventKey(e.Slug), raw, c.TTL).Err()
}

func (c *EventCache) Invalidate(ctx context.Context, slug string) error {
	return c.Client.Del(ctx, eventKey(slug)).Err()
}
