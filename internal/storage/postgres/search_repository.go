package postgres

import (
	"context"
	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/skybi/impds-proxy/internal/searchlog"
)

var searchColumns = []string{
	"search_id",
	"masked_identifier",
	"fingerprint",
	"search_type",
	"outcome",
	"result_count",
	"duration_ms",
	"created_at",
}

// SearchRepository implements the searchlog.Repository interface using PostgreSQL
type SearchRepository struct {
	db *pgxpool.Pool
}

var _ searchlog.Repository = (*SearchRepository)(nil)

// GetByFilter retrieves multiple entries following a filter, ordered by their creation date (descending).
// If limit <= 0, searchlog.DefaultLimit is used.
func (repo *SearchRepository) GetByFilter(ctx context.Context, filter *searchlog.Filter, offset, limit uint64) ([]*searchlog.Entry, uint64, error) {
	if limit == 0 {
		limit = searchlog.DefaultLimit
	}

	countQuery := applyFilter(squirrel.Select("COUNT(*)").From("searches"), filter)
	countSQL, countVals, err := countQuery.PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return nil, 0, err
	}

	pageQuery := applyFilter(squirrel.Select(searchColumns...).From("searches"), filter).
		OrderBy("created_at DESC", "search_id").
		Offset(offset).
		Limit(limit)
	pageSQL, pageVals, err := pageQuery.PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return nil, 0, err
	}

	// Fetch the total amount of entries that match the given filter
	var n uint64
	if err := repo.db.QueryRow(ctx, countSQL, countVals...).Scan(&n); err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return []*searchlog.Entry{}, 0, nil
	}

	rows, err := repo.db.Query(ctx, pageSQL, pageVals...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := []*searchlog.Entry{}
	for rows.Next() {
		entry, err := rowToEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, n, nil
}

// Create stores a new entry
func (repo *SearchRepository) Create(ctx context.Context, entry *searchlog.Entry) error {
	sql, vals, err := squirrel.Insert("searches").
		Columns(searchColumns...).
		Values(
			entry.ID,
			entry.MaskedIdentifier,
			entry.Fingerprint,
			entry.SearchType,
			string(entry.Outcome),
			entry.ResultCount,
			entry.DurationMillis,
			entry.CreatedAt,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	_, err = repo.db.Exec(ctx, sql, vals...)
	return err
}

// DeleteOlderThan deletes all entries created before the given unix timestamp
func (repo *SearchRepository) DeleteOlderThan(ctx context.Context, unix int64) (int64, error) {
	tag, err := repo.db.Exec(ctx, "DELETE FROM searches WHERE created_at < $1", unix)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func applyFilter(query squirrel.SelectBuilder, filter *searchlog.Filter) squirrel.SelectBuilder {
	if filter == nil {
		return query
	}
	if filter.Outcome != nil {
		query = query.Where(squirrel.Eq{"outcome": string(*filter.Outcome)})
	}
	if filter.Fingerprint != nil {
		query = query.Where(squirrel.Eq{"fingerprint": *filter.Fingerprint})
	}
	if filter.CreatedBefore != nil {
		query = query.Where(squirrel.Lt{"created_at": *filter.CreatedBefore})
	}
	if filter.CreatedAfter != nil {
		query = query.Where(squirrel.Gt{"created_at": *filter.CreatedAfter})
	}
	return query
}

func rowToEntry(row pgx.Row) (*searchlog.Entry, error) {
	entry := new(searchlog.Entry)
	var outcome string
	if err := row.Scan(
		&entry.ID,
		&entry.MaskedIdentifier,
		&entry.Fingerprint,
		&entry.SearchType,
		&outcome,
		&entry.ResultCount,
		&entry.DurationMillis,
		&entry.CreatedAt,
	); err != nil {
		return nil, err
	}
	entry.Outcome = searchlog.Outcome(outcome)
	return entry, nil
}
