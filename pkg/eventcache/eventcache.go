package eventcache

import (
	"context"
	"errors"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyHandledEvent = "token_purchases:handled_event:"

// DefaultTTL is how long a handled event id is remembered. Gateways stop redelivering well before this.
const DefaultTTL = 72 * time.Hour

// RedisAPI is the subset of the go-redis client the cache uses.
type RedisAPI interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Cache remembers gateway event ids that were fully handled, so redeliveries can be acknowledged
// without touching the ledger. A nil *Cache is valid and remembers nothing. The ledger's conditional
// writes stay the source of truth; the cache only saves work.
type Cache struct {
	client RedisAPI
	ttl    time.Duration
}

// New creates a Cache over client. A nil client yields a nil Cache.
func New(client RedisAPI, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// NewRedisClient connects to addr. An empty addr disables the cache.
func NewRedisClient(addr string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis addr is empty")
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

// Seen reports whether eventID was marked handled.
func (c *Cache) Seen(ctx context.Context, eventID string) (bool, error) {
	if c == nil || eventID == "" {
		return false, nil
	}
	n, err := c.client.Exists(ctx, keyHandledEvent+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkHandled records eventID. Call it only after the event was applied or acknowledged.
func (c *Cache) MarkHandled(ctx context.Context, eventID string) error {
	if c == nil || eventID == "" {
		return nil
	}
	return c.client.SetNX(ctx, keyHandledEvent+eventID, time.Now().UTC().Format(time.RFC3339), c.ttl).Err()
}
