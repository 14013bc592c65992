package search

import (
	"errors"
	"github.com/skybi/impds-proxy/internal/parser"
	"github.com/skybi/impds-proxy/internal/session"
)

var (
	// ErrInvalidIdentifier is returned if the identifier does not consist of exactly 12 digits after whitespace removal
	ErrInvalidIdentifier = errors.New("invalid Aadhaar number. Must be 12 digits")

	// ErrInvalidSearchType is returned if the search type is not a single letter
	ErrInvalidSearchType = errors.New("invalid search type. Must be a single letter")

	// ErrSessionExpired is returned if the portal rejected the session token; the session has been invalidated
	ErrSessionExpired = errors.New("the portal session expired")

	// ErrPortalUnavailable is returned on network failures, timeouts and unexpected responses of the portal
	ErrPortalUnavailable = errors.New("the portal is unavailable")

	// ErrNoDataFound is returned if the portal reported no match
	ErrNoDataFound = parser.ErrNoDataFound
)

// ErrorKind classifies search errors for callers that must branch on them
type ErrorKind string

const (
	KindNone                    ErrorKind = ""
	KindInvalidIdentifier       ErrorKind = "InvalidIdentifier"
	KindInvalidSearchType       ErrorKind = "InvalidSearchType"
	KindSessionTimeout          ErrorKind = "SessionTimeout"
	KindSessionAcquisitionError ErrorKind = "SessionAcquisitionError"
	KindSessionFormatError      ErrorKind = "SessionFormatError"
	KindSessionExpired          ErrorKind = "SessionExpired"
	KindNoDataFound             ErrorKind = "NoDataFound"
	KindParseError              ErrorKind = "ParseError"
	KindPortalUnavailable       ErrorKind = "PortalUnavailable"
	KindInternal                ErrorKind = "InternalError"
)

// Kind returns the kind of the given error
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var parseErr *parser.ParseError
	var acquisitionErr *session.AcquisitionError
	switch {
	case errors.Is(err, ErrInvalidIdentifier):
		return KindInvalidIdentifier
	case errors.Is(err, ErrInvalidSearchType):
		return KindInvalidSearchType
	case errors.Is(err, session.ErrSessionTimeout):
		return KindSessionTimeout
	case errors.Is(err, session.ErrSessionFormat):
		return KindSessionFormatError
	case errors.As(err, &acquisitionErr):
		return KindSessionAcquisitionError
	case errors.Is(err, ErrSessionExpired):
		return KindSessionExpired
	case errors.Is(err, ErrNoDataFound):
		return KindNoDataFound
	case errors.As(err, &parseErr):
		return KindParseError
	case errors.Is(err, ErrPortalUnavailable):
		return KindPortalUnavailable
	default:
		return KindInternal
	}
}

// Retryable reports whether re-invoking the search may succeed without any change of input
func (kind ErrorKind) Retryable() bool {
	switch kind {
	case KindSessionTimeout, KindSessionAcquisitionError, KindSessionFormatError, KindSessionExpired, KindPortalUnavailable:
		return true
	default:
		return false
	}
}
