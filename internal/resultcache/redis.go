package resultcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/redis/go-redis/v9"
	"github.com/skybi/impds-proxy/internal/beneficiary"
	"time"
)

const redisKeyPrefix = "impds:results:"

// Redis implements Cache using a Redis server, storing records as JSON
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ Cache = (*Redis)(nil)

// NewRedis creates a new Redis backed cache whose entries expire after the given TTL
func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		ttl:    ttl,
	}
}

// DialRedis parses a redis:// URL and verifies the server is reachable
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("could not reach redis: %w", err)
	}
	return client, nil
}

// Get returns the cached records for the given key
func (cache *Redis) Get(ctx context.Context, key string) ([]*beneficiary.Record, bool, error) {
	raw, err := cache.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var records []*beneficiary.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, false, fmt.Errorf("corrupt cache entry: %w", err)
	}
	return records, true, nil
}

// Set caches the records for the given key
func (cache *Redis) Set(ctx context.Context, key string, records []*beneficiary.Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return cache.client.Set(ctx, redisKeyPrefix+key, raw, cache.ttl).Err()
}
