package storage

import (
	"context"
	"github.com/skybi/impds-proxy/internal/searchlog"
)

// Driver represents a storage driver
type Driver interface {
	// Initialize initializes the storage driver (i.e. opens a database connection)
	Initialize(ctx context.Context) error

	// Searches provides a search log repository implementation
	Searches() searchlog.Repository

	// Close closes the storage driver (i.e. closes a database connection)
	Close()
}
