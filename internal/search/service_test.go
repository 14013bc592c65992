package search

import (
	"context"
	"errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/skybi/impds-proxy/internal/beneficiary"
	"github.com/skybi/impds-proxy/internal/metrics"
	"github.com/skybi/impds-proxy/internal/parser"
	"github.com/skybi/impds-proxy/internal/portal"
	"github.com/skybi/impds-proxy/internal/resultcache"
	"github.com/skybi/impds-proxy/internal/search/mocks"
	"github.com/skybi/impds-proxy/internal/searchlog"
	"github.com/skybi/impds-proxy/internal/secret"
	"github.com/skybi/impds-proxy/internal/session"
	"github.com/skybi/impds-proxy/internal/storage/inmem"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"testing"
	"time"
)

const (
	testIdentifier = "123456789012"
	testToken      = "0123456789ABCDEF0123456789ABCDEF"
	testCiphertext = "U2FsdGVkX1+ciphertext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	sessions  *mocks.MockSessionProvider
	encrypter *mocks.MockEncrypter
	portal    *mocks.MockPortalSearcher
	parser    *mocks.MockResultParser
	storage   *inmem.Driver
	metrics   *metrics.Metrics
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.sessions = mocks.NewMockSessionProvider(s.ctrl)
	s.encrypter = mocks.NewMockEncrypter(s.ctrl)
	s.portal = mocks.NewMockPortalSearcher(s.ctrl)
	s.parser = mocks.NewMockResultParser(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())

	s.storage = inmem.New()
	s.Require().NoError(s.storage.Initialize(context.Background()))

	s.service = NewService(s.sessions, s.encrypter, s.portal, s.parser, Options{
		Searches:      s.storage.Searches(),
		Fingerprinter: secret.NewFingerprinter("test"),
		Metrics:       s.metrics,
	})
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
	s.storage.Close()
}

func (s *ServiceSuite) records() []*beneficiary.Record {
	return []*beneficiary.Record{
		{
			Details: &beneficiary.Details{CardNumber: "12345"},
			Members: []*beneficiary.Member{
				{SequenceNumber: 1, MemberName: "John"},
				{SequenceNumber: 2, MemberName: "Jane"},
			},
			AdditionalInfo: beneficiary.DefaultAdditionalInfo(),
		},
	}
}

func (s *ServiceSuite) expectPortalSearch(raw []byte, err error) {
	s.sessions.EXPECT().Acquire(gomock.Any()).Return(testToken, nil)
	s.encrypter.EXPECT().Encrypt(testIdentifier).Return(testCiphertext, nil)
	s.portal.EXPECT().Search(gomock.Any(), testToken, "A", testCiphertext).Return(raw, err)
}

func (s *ServiceSuite) loggedEntries() []*searchlog.Entry {
	entries, _, err := s.storage.Searches().GetByFilter(context.Background(), nil, 0, 100)
	s.Require().NoError(err)
	return entries
}

func (s *ServiceSuite) TestSearchSuccess() {
	records := s.records()
	s.expectPortalSearch([]byte("<html/>"), nil)
	s.parser.EXPECT().Parse([]byte("<html/>")).Return(records, nil)

	result, err := s.service.Search(context.Background(), "1234 5678 9012", "")
	s.Require().NoError(err)
	s.Equal(records, result.Records)
	s.Equal("A", result.SearchType)
	s.False(result.Cached)

	entries := s.loggedEntries()
	s.Require().Len(entries, 1)
	s.Equal(result.ID, entries[0].ID)
	s.Equal(searchlog.OutcomeSuccess, entries[0].Outcome)
	s.Equal("XXXXXXXX9012", entries[0].MaskedIdentifier)
	s.Equal(2, entries[0].ResultCount)
	s.NotContains(entries[0].Fingerprint, testIdentifier)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Searches.WithLabelValues("success")))
}

func (s *ServiceSuite) TestInvalidIdentifierHasNoSideEffects() {
	for _, raw := range []string{"", "12345678901", "1234567890123", "12345678901a", "１２３４５６７８９０１２"} {
		_, err := s.service.Search(context.Background(), raw, "A")
		s.ErrorIs(err, ErrInvalidIdentifier, "identifier %q", raw)
		s.Equal(KindInvalidIdentifier, Kind(err))
	}
	s.Empty(s.loggedEntries())
}

func (s *ServiceSuite) TestInvalidSearchType() {
	for _, searchType := range []string{"AB", "1", "-"} {
		_, err := s.service.Search(context.Background(), testIdentifier, searchType)
		s.ErrorIs(err, ErrInvalidSearchType, "search type %q", searchType)
	}
}

func (s *ServiceSuite) TestSessionFailuresSurfaceUnchanged() {
	for _, sessionErr := range []error{
		session.ErrSessionTimeout,
		session.ErrSessionFormat,
		&session.AcquisitionError{Output: "Failed to get CAPTCHA", Cause: errors.New("exit status 1")},
	} {
		s.sessions.EXPECT().Acquire(gomock.Any()).Return("", sessionErr)

		_, err := s.service.Search(context.Background(), testIdentifier, "A")
		s.ErrorIs(err, sessionErr)
		s.True(Kind(err).Retryable())
	}

	for _, entry := range s.loggedEntries() {
		s.Equal(searchlog.OutcomeSessionFailure, entry.Outcome)
	}
}

func (s *ServiceSuite) TestRejectedSessionIsInvalidated() {
	s.expectPortalSearch(nil, portal.ErrSessionRejected)
	s.sessions.EXPECT().Invalidate().Times(1)

	_, err := s.service.Search(context.Background(), testIdentifier, "A")
	s.ErrorIs(err, ErrSessionExpired)
	s.Equal(KindSessionExpired, Kind(err))
	s.Equal(searchlog.OutcomeSessionExpired, s.loggedEntries()[0].Outcome)
}

func (s *ServiceSuite) TestPortalUnavailable() {
	cause := &portal.UnavailableError{StatusCode: 502}
	s.expectPortalSearch(nil, cause)

	_, err := s.service.Search(context.Background(), testIdentifier, "A")
	s.ErrorIs(err, ErrPortalUnavailable)
	var unavailable *portal.UnavailableError
	s.ErrorAs(err, &unavailable)
	s.Equal(KindPortalUnavailable, Kind(err))
}

func (s *ServiceSuite) TestNoDataFound() {
	s.expectPortalSearch([]byte("<html/>"), nil)
	s.parser.EXPECT().Parse(gomock.Any()).Return(nil, parser.ErrNoDataFound)

	_, err := s.service.Search(context.Background(), testIdentifier, "A")
	s.ErrorIs(err, ErrNoDataFound)
	s.Equal(KindNoDataFound, Kind(err))
	s.Equal(searchlog.OutcomeNoDataFound, s.loggedEntries()[0].Outcome)
}

func (s *ServiceSuite) TestParseError() {
	s.expectPortalSearch([]byte("<html/>"), nil)
	s.parser.EXPECT().Parse(gomock.Any()).Return(nil, &parser.ParseError{Cause: errors.New("boom")})

	_, err := s.service.Search(context.Background(), testIdentifier, "A")
	s.Equal(KindParseError, Kind(err))
	s.False(Kind(err).Retryable())
}

func (s *ServiceSuite) TestEncryptionFailure() {
	s.sessions.EXPECT().Acquire(gomock.Any()).Return(testToken, nil)
	s.encrypter.EXPECT().Encrypt(testIdentifier).Return("", errors.New("no entropy"))

	_, err := s.service.Search(context.Background(), testIdentifier, "A")
	s.Equal(KindInternal, Kind(err))
	s.Equal(searchlog.OutcomeInternalError, s.loggedEntries()[0].Outcome)
}

func (s *ServiceSuite) TestCachedResults() {
	cache := resultcache.NewMemory(time.Minute)
	defer cache.Close()
	service := NewService(s.sessions, s.encrypter, s.portal, s.parser, Options{
		Cache:    cache,
		Searches: s.storage.Searches(),
		Metrics:  s.metrics,
	})

	records := s.records()
	s.expectPortalSearch([]byte("<html/>"), nil)
	s.parser.EXPECT().Parse(gomock.Any()).Return(records, nil)

	first, err := service.Search(context.Background(), testIdentifier, "A")
	s.Require().NoError(err)
	s.False(first.Cached)

	second, err := service.Search(context.Background(), "1234 5678 9012", "a")
	s.Require().NoError(err)
	s.True(second.Cached)
	s.Equal(records, second.Records)
	s.NotEqual(first.ID, second.ID)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.CacheLookups.WithLabelValues("hit")))
	s.Equal(searchlog.OutcomeCached, s.loggedEntries()[0].Outcome)
}

func (s *ServiceSuite) TestEmptyResultsAreNotCached() {
	cache := resultcache.NewMemory(time.Minute)
	defer cache.Close()
	service := NewService(s.sessions, s.encrypter, s.portal, s.parser, Options{Cache: cache})

	for i := 0; i < 2; i++ {
		s.expectPortalSearch([]byte("<html/>"), nil)
		s.parser.EXPECT().Parse(gomock.Any()).Return([]*beneficiary.Record{}, nil)

		result, err := service.Search(context.Background(), testIdentifier, "A")
		s.Require().NoError(err)
		s.Empty(result.Records)
		s.False(result.Cached)
	}
}

func (s *ServiceSuite) TestSearchLogFailureIsNotFatal() {
	service := NewService(s.sessions, s.encrypter, s.portal, s.parser, Options{Searches: failingRepository{}})

	s.expectPortalSearch([]byte("<html/>"), nil)
	s.parser.EXPECT().Parse(gomock.Any()).Return(s.records(), nil)

	_, err := service.Search(context.Background(), testIdentifier, "A")
	s.NoError(err)
}

func TestNormalizeSearchType(t *testing.T) {
	for raw, expected := range map[string]string{"": "A", " ": "A", "A": "A", "b": "B", " Z ": "Z"} {
		searchType, err := NormalizeSearchType(raw)
		if err != nil || searchType != expected {
			t.Errorf("NormalizeSearchType(%q) = %q, %v; expected %q", raw, searchType, err, expected)
		}
	}
}

type failingRepository struct{}

func (failingRepository) GetByFilter(context.Context, *searchlog.Filter, uint64, uint64) ([]*searchlog.Entry, uint64, error) {
	return nil, 0, errors.New("unavailable")
}

func (failingRepository) Create(context.Context, *searchlog.Entry) error {
	return errors.New("unavailable")
}

func (failingRepository) DeleteOlderThan(context.Context, int64) (int64, error) {
	return 0, errors.New("unavailable")
}
