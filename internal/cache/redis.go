package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

// setIfCurrent writes KEYS[1] unless ARGV[2] is below the floor in KEYS[2].
var setIfCurrent = redis.NewScript(`
local floor = tonumber(redis.call('GET', KEYS[2]) or '-1')
if tonumber(ARGV[2]) < floor then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// invalidate raises the floor in KEYS[2] to ARGV[1] and drops KEYS[1].
var invalidate = redis.NewScript(`
local floor = tonumber(redis.call('GET', KEYS[2]) or '-1')
if tonumber(ARGV[1]) > floor then
	redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[2])
end
redis.call('DEL', KEYS[1])
return 1
`)

type RedisCache struct {
	client  redis.Cmdable
	baseTTL time.Duration
	jitter  time.Duration
}

func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
		jitter:  5 * time.Minute,
	}
}

func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

func (r *RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	// spread expiry so carts cached together don't expire together
	ttl := r.baseTTL + rand.N(r.jitter+1)
	keys := []string{cacheKey(userID), floorKey(userID)}
	if err := setIfCurrent.Run(ctx, r.client, keys, data, cart.Version, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Invalidate(ctx context.Context, userID string, version int64) error {
	// the floor must outlive any entry written before it
	ttl := r.baseTTL + r.jitter
	keys := []string{cacheKey(userID), floorKey(userID)}
	if err := invalidate.Run(ctx, r.client, keys, version, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func floorKey(userID string) string {
	return fmt.Sprintf("cart:%s:floor", userID)
}
