package resultcache

import (
	"context"
	"github.com/skybi/impds-proxy/internal/beneficiary"
)

// Cache stores the records of successful searches, keyed by identifier fingerprints
type Cache interface {
	// Get returns the cached records for the given key and whether there were any
	Get(ctx context.Context, key string) ([]*beneficiary.Record, bool, error)

	// Set caches the records for the given key
	Set(ctx context.Context, key string, records []*beneficiary.Record) error
}

// Nop is a Cache that never stores anything
type Nop struct{}

var _ Cache = Nop{}

// Get never finds anything
func (Nop) Get(context.Context, string) ([]*beneficiary.Record, bool, error) {
	return nil, false, nil
}

// Set discards the records
func (Nop) Set(context.Context, string, []*beneficiary.Record) error {
	return nil
}
