package inmem

import (
	"context"
	"github.com/hashicorp/go-memdb"
	"github.com/skybi/impds-proxy/internal/searchlog"
	"github.com/skybi/impds-proxy/internal/storage"
)

const searchesTable = "searches"

var dbSchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		searchesTable: {
			Name: searchesTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:         "id",
					Unique:       true,
					AllowMissing: false,
					Indexer:      entryIDIndex{},
				},
				"fingerprint": {
					Name:         "fingerprint",
					Unique:       false,
					AllowMissing: true,
					Indexer:      fingerprintIndex{},
				},
			},
		},
	},
}

// Driver represents the in-memory storage driver built using hashicorp/go-memdb.
// Everything it stores is lost on process restart.
type Driver struct {
	db       *memdb.MemDB
	searches *SearchRepository
}

var _ storage.Driver = (*Driver)(nil)

// New creates a new empty in-memory storage driver.
// Use Initialize to create the database and the repository implementations.
func New() *Driver {
	return &Driver{}
}

// Initialize creates the in-memory database
func (driver *Driver) Initialize(_ context.Context) error {
	db, err := memdb.NewMemDB(dbSchema)
	if err != nil {
		return err
	}
	driver.db = db
	driver.searches = &SearchRepository{db: db}
	return nil
}

// Searches provides the in-memory search log repository implementation
func (driver *Driver) Searches() searchlog.Repository {
	return driver.searches
}

// Close discards the repository implementations and the database
func (driver *Driver) Close() {
	driver.searches = nil
	driver.db = nil
}
