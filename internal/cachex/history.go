// Package cachex caches API responses in Redis so repeated history lookups
// do not hammer the resolution API.
package cachex

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("demorelay-cachex")

// HistoryCache stores serialized history responses per account.
type HistoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewHistoryCache(addr, password string, db int, ttl time.Duration) (*HistoryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &HistoryCache{client: client, ttl: ttl}, nil
}

func (c *HistoryCache) Close() error {
	return c.client.Close()
}

func historyKey(accountID string) string {
	return fmt.Sprintf("history:%s", accountID)
}

// Get returns the cached response for the account, or nil on a miss.
// A cache miss is not an error.
func (c *HistoryCache) Get(ctx context.Context, accountID string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "cachex.get_history")
	defer span.End()

	data, err := c.client.Get(ctx, historyKey(accountID)).Bytes()
	if err == redis.Nil {
		span.SetAttributes(attribute.Bool("cache_hit", false))
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reading history cache: %w", err)
	}

	span.SetAttributes(attribute.Bool("cache_hit", true))
	return data, nil
}

// Set stores the response for the account for the cache TTL.
func (c *HistoryCache) Set(ctx context.Context, accountID string, data []byte) error {
	ctx, span := tracer.Start(ctx, "cachex.set_history")
	defer span.End()

	if err := c.client.Set(ctx, historyKey(accountID), data, c.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("writing history cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached response for the account. Called when the
// account's settings or requested matches change.
func (c *HistoryCache) Invalidate(ctx context.Context, accountID string) error {
	ctx, span := tracer.Start(ctx, "cachex.invalidate_history")
	defer span.End()

	if err := c.client.Del(ctx, historyKey(accountID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("invalidating history cache: %w", err)
	}
	return nil
}
