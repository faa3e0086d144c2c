package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cicadacove/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

// StorageKey is the client-storage key the serialized cart lives under.
const StorageKey = "cicada-cove-cart"

var ErrCacheMiss = errors.New("cache miss")

// CartCache holds serialized carts. Set overwrites and is used after a write to
// the store; Fill only writes when no entry exists, so a read that raced a
// newer write cannot replace it.
type CartCache interface {
	Get(ctx context.Context, sessionID string) (*domain.Cart, error)
	Set(ctx context.Context, sessionID string, cart *domain.Cart) error
	Fill(ctx context.Context, sessionID string, cart *domain.Cart) error
	Delete(ctx context.Context, sessionID string) error
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

func cacheKey(sessionID string) string {
	return fmt.Sprintf("%s:%s", StorageKey, sessionID)
}
