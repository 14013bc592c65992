package search

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/skybi/impds-proxy/internal/aadhaar"
	"github.com/skybi/impds-proxy/internal/beneficiary"
	"github.com/skybi/impds-proxy/internal/metrics"
	"github.com/skybi/impds-proxy/internal/portal"
	"github.com/skybi/impds-proxy/internal/resultcache"
	"github.com/skybi/impds-proxy/internal/searchlog"
	"github.com/skybi/impds-proxy/internal/secret"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"regexp"
	"strings"
	"time"
)

// DefaultSearchType is used if a search is issued without a type
const DefaultSearchType = "A"

var (
	searchTypePattern = regexp.MustCompile(`^[A-Z]$`)
	tracer            = otel.Tracer("github.com/skybi/impds-proxy/internal/search")
)

// Result represents the outcome of a successful search
type Result struct {
	ID         uuid.UUID
	SearchType string
	Records    []*beneficiary.Record
	Cached     bool
}

// Options configures optional collaborators of a Service
type Options struct {
	// Cache stores successful results; caching is disabled if nil
	Cache resultcache.Cache

	// Searches receives a log entry per search; nothing is logged if nil
	Searches searchlog.Repository

	// Fingerprinter derives cache keys and search log fingerprints; a randomly keyed one is used if nil
	Fingerprinter *secret.Fingerprinter

	Metrics *metrics.Metrics
}

// Service coordinates single searches against the portal
type Service struct {
	sessions      SessionProvider
	encrypter     Encrypter
	portal        PortalSearcher
	parser        ResultParser
	cache         resultcache.Cache
	searches      searchlog.Repository
	fingerprinter *secret.Fingerprinter
	metrics       *metrics.Metrics
}

// NewService creates a new search service
func NewService(sessions SessionProvider, encrypter Encrypter, portal PortalSearcher, parser ResultParser, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = resultcache.Nop{}
	}
	if opts.Fingerprinter == nil {
		opts.Fingerprinter = secret.NewFingerprinter("")
	}
	return &Service{
		sessions:      sessions,
		encrypter:     encrypter,
		portal:        portal,
		parser:        parser,
		cache:         opts.Cache,
		searches:      opts.Searches,
		fingerprinter: opts.Fingerprinter,
		metrics:       opts.Metrics,
	}
}

// NormalizeSearchType trims and upper-cases the given search type, falling back to DefaultSearchType if it is empty
func NormalizeSearchType(raw string) (string, error) {
	searchType := strings.ToUpper(strings.TrimSpace(raw))
	if searchType == "" {
		return DefaultSearchType, nil
	}
	if !searchTypePattern.MatchString(searchType) {
		return "", ErrInvalidSearchType
	}
	return searchType, nil
}

// Search looks up the given identifier at the portal.
// Input is validated before any session or network activity takes place.
// A rejected session is invalidated and reported as ErrSessionExpired; the search is never retried.
func (service *Service) Search(ctx context.Context, rawIdentifier, rawSearchType string) (*Result, error) {
	start := time.Now()

	identifier, err := aadhaar.Normalize(rawIdentifier)
	if err != nil {
		service.metrics.ObserveSearch(string(searchlog.OutcomeInvalidInput), time.Since(start))
		return nil, ErrInvalidIdentifier
	}
	searchType, err := NormalizeSearchType(rawSearchType)
	if err != nil {
		service.metrics.ObserveSearch(string(searchlog.OutcomeInvalidInput), time.Since(start))
		return nil, err
	}

	result := &Result{
		ID:         uuid.New(),
		SearchType: searchType,
	}
	masked := aadhaar.Mask(identifier)
	fingerprint := service.fingerprinter.Fingerprint(searchType + ":" + identifier)

	ctx, span := tracer.Start(ctx, "search", trace.WithAttributes(
		attribute.String("search.id", result.ID.String()),
		attribute.String("search.type", searchType),
	))
	defer span.End()

	records, cached := service.lookup(ctx, fingerprint)
	if cached {
		result.Records = records
		result.Cached = true
	} else {
		records, err = service.query(ctx, identifier, searchType)
		if err == nil {
			result.Records = records
			if len(records) > 0 {
				service.store(ctx, fingerprint, records)
			}
		}
	}

	outcome := outcomeOf(err, cached)
	duration := time.Since(start)
	service.metrics.ObserveSearch(string(outcome), duration)
	span.SetAttributes(attribute.String("search.outcome", string(outcome)))
	if err != nil && !errors.Is(err, ErrNoDataFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(Kind(err)))
	}

	service.record(ctx, &searchlog.Entry{
		ID:               result.ID,
		MaskedIdentifier: masked,
		Fingerprint:      fingerprint,
		SearchType:       searchType,
		Outcome:          outcome,
		ResultCount:      beneficiary.MemberCount(result.Records),
		DurationMillis:   duration.Milliseconds(),
		CreatedAt:        time.Now().Unix(),
	})

	event := log.Info()
	switch Kind(err) {
	case KindNone, KindNoDataFound:
	case KindSessionExpired, KindPortalUnavailable:
		event = log.Warn().Err(err)
	default:
		event = log.Error().Err(err)
	}
	event.
		Str("search_id", result.ID.String()).
		Str("identifier", masked).
		Str("search_type", searchType).
		Str("outcome", string(outcome)).
		Int("records", len(result.Records)).
		Dur("duration", duration).
		Msg("search finished")

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (service *Service) query(ctx context.Context, identifier, searchType string) ([]*beneficiary.Record, error) {
	token, err := service.sessions.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	ciphertext, err := service.encrypter.Encrypt(identifier)
	if err != nil {
		return nil, fmt.Errorf("could not encrypt the identifier: %w", err)
	}

	raw, err := service.portal.Search(ctx, token, searchType, ciphertext)
	if err != nil {
		if errors.Is(err, portal.ErrSessionRejected) {
			service.sessions.Invalidate()
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrPortalUnavailable, err)
	}

	return service.parser.Parse(raw)
}

func (service *Service) lookup(ctx context.Context, fingerprint string) ([]*beneficiary.Record, bool) {
	records, ok, err := service.cache.Get(ctx, fingerprint)
	switch {
	case err != nil:
		service.metrics.IncrementCacheLookup("error")
		log.Warn().Err(err).Msg("could not look up the result cache")
		return nil, false
	case ok:
		service.metrics.IncrementCacheLookup("hit")
		return records, true
	default:
		service.metrics.IncrementCacheLookup("miss")
		return nil, false
	}
}

func (service *Service) store(ctx context.Context, fingerprint string, records []*beneficiary.Record) {
	if err := service.cache.Set(context.WithoutCancel(ctx), fingerprint, records); err != nil {
		log.Warn().Err(err).Msg("could not store a result in the result cache")
	}
}

func (service *Service) record(ctx context.Context, entry *searchlog.Entry) {
	if service.searches == nil {
		return
	}
	if err := service.searches.Create(context.WithoutCancel(ctx), entry); err != nil {
		log.Error().Err(err).Str("search_id", entry.ID.String()).Msg("could not write the search log entry")
	}
}

func outcomeOf(err error, cached bool) searchlog.Outcome {
	switch Kind(err) {
	case KindNone:
		if cached {
			return searchlog.OutcomeCached
		}
		return searchlog.OutcomeSuccess
	case KindNoDataFound:
		return searchlog.OutcomeNoDataFound
	case KindSessionTimeout, KindSessionAcquisitionError, KindSessionFormatError:
		return searchlog.OutcomeSessionFailure
	case KindSessionExpired:
		return searchlog.OutcomeSessionExpired
	case KindPortalUnavailable:
		return searchlog.OutcomePortalUnavailable
	case KindParseError:
		return searchlog.OutcomeParseError
	default:
		return searchlog.OutcomeInternalError
	}
}
