package resultcache

import (
	"context"
	"github.com/skybi/impds-proxy/internal/beneficiary"
	"github.com/skybi/impds-proxy/internal/hashmap"
	"time"
)

// Memory implements Cache using an in-process expiring map
type Memory struct {
	entries *hashmap.ExpiringMap[string, []*beneficiary.Record]
}

var _ Cache = (*Memory)(nil)

// NewMemory creates a new in-memory cache whose entries live for the given TTL.
// Call Close to stop the background sweep.
func NewMemory(ttl time.Duration) *Memory {
	entries := hashmap.NewExpiring[string, []*beneficiary.Record](ttl)
	entries.ScheduleSweepTask(sweepInterval(ttl))
	return &Memory{entries: entries}
}

// Get returns the cached records for the given key
func (cache *Memory) Get(_ context.Context, key string) ([]*beneficiary.Record, bool, error) {
	records, ok := cache.entries.Lookup(key)
	return records, ok, nil
}

// Set caches the records for the given key
func (cache *Memory) Set(_ context.Context, key string, records []*beneficiary.Record) error {
	cache.entries.Set(key, records)
	return nil
}

// Close stops the background sweep
func (cache *Memory) Close() {
	cache.entries.StopSweepTask()
}

func sweepInterval(ttl time.Duration) time.Duration {
	interval := ttl / 2
	if interval < time.Second {
		return time.Second
	}
	if interval > time.Minute {
		return time.Minute
	}
	return interval
}
