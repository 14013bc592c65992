package searchlog

import (
	"context"
)

// DefaultLimit is used by GetByFilter if no positive limit is given
const DefaultLimit = 10

// Repository defines the search log repository API
type Repository interface {
	// GetByFilter retrieves multiple entries following a filter, ordered by their creation date (descending).
	// It also returns the total amount of entries matching the filter.
	// If limit <= 0, DefaultLimit is used.
	GetByFilter(ctx context.Context, filter *Filter, offset, limit uint64) ([]*Entry, uint64, error)

	// Create stores a new entry
	Create(ctx context.Context, entry *Entry) error

	// DeleteOlderThan deletes all entries created before the given unix timestamp and returns their amount
	DeleteOlderThan(ctx context.Context, unix int64) (int64, error)
}

// Filter is used to query entries based on a filter
type Filter struct {
	Outcome       *Outcome
	Fingerprint   *string
	CreatedBefore *int64
	CreatedAfter  *int64
}

// Matches reports whether the given entry satisfies the filter
func (filter *Filter) Matches(entry *Entry) bool {
	if filter == nil {
		return true
	}
	if filter.Outcome != nil && entry.Outcome != *filter.Outcome {
		return false
	}
	if filter.Fingerprint != nil && entry.Fingerprint != *filter.Fingerprint {
		return false
	}
	if filter.CreatedBefore != nil && entry.CreatedAt >= *filter.CreatedBefore {
		return false
	}
	if filter.CreatedAfter != nil && entry.CreatedAt <= *filter.CreatedAfter {
		return false
	}
	return true
}

// ParseOutcome checks whether the given string names a known outcome
func ParseOutcome(raw string) (Outcome, bool) {
	outcome := Outcome(raw)
	switch outcome {
	case OutcomeSuccess, OutcomeCached, OutcomeNoDataFound, OutcomeInvalidInput, OutcomeSessionFailure,
		OutcomeSessionExpired, OutcomePortalUnavailable, OutcomeParseError, OutcomeInternalError:
		return outcome, true
	default:
		return "", false
	}
}
