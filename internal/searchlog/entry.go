package searchlog

import (
	"github.com/google/uuid"
	"time"
)

// Outcome describes how a search ended
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeCached            Outcome = "cached"
	OutcomeNoDataFound       Outcome = "no_data_found"
	OutcomeInvalidInput      Outcome = "invalid_input"
	OutcomeSessionFailure    Outcome = "session_failure"
	OutcomeSessionExpired    Outcome = "session_expired"
	OutcomePortalUnavailable Outcome = "portal_unavailable"
	OutcomeParseError        Outcome = "parse_error"
	OutcomeInternalError     Outcome = "internal_error"
)

// Entry represents a single logged search.
// The searched identifier itself is never stored, only its masked form and a keyed fingerprint.
type Entry struct {
	ID               uuid.UUID `json:"id"`
	MaskedIdentifier string    `json:"masked_identifier"`
	Fingerprint      string    `json:"fingerprint"`
	SearchType       string    `json:"search_type"`
	Outcome          Outcome   `json:"outcome"`
	ResultCount      int       `json:"result_count"`
	DurationMillis   int64     `json:"duration_ms"`
	CreatedAt        int64     `json:"created_at"`
}

// CreatedTime returns the creation timestamp as a time.Time
func (entry *Entry) CreatedTime() time.Time {
	return time.Unix(entry.CreatedAt, 0)
}
