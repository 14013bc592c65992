package inmem

import (
	"context"
	"github.com/hashicorp/go-memdb"
	"github.com/skybi/impds-proxy/internal/searchlog"
	"sort"
	"sync/atomic"
)

// storedEntry carries an insertion sequence number to order entries created within the same second
type storedEntry struct {
	seq   uint64
	entry searchlog.Entry
}

// SearchRepository implements the searchlog.Repository interface using go-memdb
type SearchRepository struct {
	db  *memdb.MemDB
	seq atomic.Uint64
}

var _ searchlog.Repository = (*SearchRepository)(nil)

// GetByFilter retrieves multiple entries following a filter, ordered by their creation date (descending).
// If limit <= 0, searchlog.DefaultLimit is used.
func (repo *SearchRepository) GetByFilter(_ context.Context, filter *searchlog.Filter, offset, limit uint64) ([]*searchlog.Entry, uint64, error) {
	if limit == 0 {
		limit = searchlog.DefaultLimit
	}

	txn := repo.db.Txn(false)
	defer txn.Abort()

	var (
		it  memdb.ResultIterator
		err error
	)
	if filter != nil && filter.Fingerprint != nil {
		it, err = txn.Get(searchesTable, "fingerprint", *filter.Fingerprint)
	} else {
		it, err = txn.Get(searchesTable, "id")
	}
	if err != nil {
		return nil, 0, err
	}

	matching := []*storedEntry{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		stored := obj.(*storedEntry)
		if filter.Matches(&stored.entry) {
			matching = append(matching, stored)
		}
	}
	sort.Slice(matching, func(i, j int) bool {
		if matching[i].entry.CreatedAt != matching[j].entry.CreatedAt {
			return matching[i].entry.CreatedAt > matching[j].entry.CreatedAt
		}
		return matching[i].seq > matching[j].seq
	})

	n := uint64(len(matching))
	if offset >= n {
		return []*searchlog.Entry{}, n, nil
	}
	end := offset + limit
	if end > n {
		end = n
	}

	page := make([]*searchlog.Entry, 0, end-offset)
	for _, stored := range matching[offset:end] {
		entry := stored.entry
		page = append(page, &entry)
	}
	return page, n, nil
}

// Create stores a new entry
func (repo *SearchRepository) Create(_ context.Context, entry *searchlog.Entry) error {
	stored := &storedEntry{
		seq:   repo.seq.Add(1),
		entry: *entry,
	}

	txn := repo.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(searchesTable, stored); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// DeleteOlderThan deletes all entries created before the given unix timestamp
func (repo *SearchRepository) DeleteOlderThan(_ context.Context, unix int64) (int64, error) {
	txn := repo.db.Txn(true)
	defer txn.Abort()

	it, err := txn.Get(searchesTable, "id")
	if err != nil {
		return 0, err
	}

	expired := []*storedEntry{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		stored := obj.(*storedEntry)
		if stored.entry.CreatedAt < unix {
			expired = append(expired, stored)
		}
	}
	for _, stored := range expired {
		if err := txn.Delete(searchesTable, stored); err != nil {
			return 0, err
		}
	}

	txn.Commit()
	return int64(len(expired)), nil
}
