package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// quoteTTL bounds staleness after a rate table reload.
const quoteTTL = 15 * time.Minute

// RedisQuoteCache backs QuoteCache with a Redis instance.
type RedisQuoteCache struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisQuoteCache connects to Redis at the given address.
func NewRedisQuoteCache(addr string) *RedisQuoteCache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisQuoteCache{
		client: rdb,
		ctx:    context.Background(),
	}
}

// Get returns the cached value for key, if present.
func (r *RedisQuoteCache) Get(key string) (string, bool) {
	val, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Set stores the value with the standard TTL.
func (r *RedisQuoteCache) Set(key string, value string) error {
	return r.client.Set(r.ctx, key, value, quoteTTL).Err()
}
