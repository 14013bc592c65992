package session

import (
	"context"
	"errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/skybi/impds-proxy/internal/metrics"
	"github.com/stretchr/testify/suite"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	tokenA = "0123456789ABCDEF0123456789ABCDEF"
	tokenB = "FEDCBA9876543210FEDCBA9876543210"
)

type fakeClock struct {
	mtx sync.Mutex
	now time.Time
}

func (clock *fakeClock) Now() time.Time {
	clock.mtx.Lock()
	defer clock.mtx.Unlock()
	return clock.now
}

func (clock *fakeClock) Advance(d time.Duration) {
	clock.mtx.Lock()
	defer clock.mtx.Unlock()
	clock.now = clock.now.Add(d)
}

type ManagerSuite struct {
	suite.Suite
	clock *fakeClock
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.clock = &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *ManagerSuite) newManager(acquirer Acquirer, lifetime time.Duration) *Manager {
	return NewManager(acquirer, Options{
		Lifetime: lifetime,
		Timeout:  time.Second,
		Now:      s.clock.Now,
	})
}

func (s *ManagerSuite) TestAcquireCachesToken() {
	acquirer := NewStaticToken(tokenA)
	manager := s.newManager(acquirer, DefaultLifetime)

	_, ok := manager.Current()
	s.False(ok, "a new manager starts empty")

	for i := 0; i < 3; i++ {
		token, err := manager.Acquire(context.Background())
		s.Require().NoError(err)
		s.Equal(tokenA, token)
	}
	s.EqualValues(1, acquirer.Calls())

	current, ok := manager.Current()
	s.True(ok)
	s.Equal(tokenA, current.Token)
	s.Equal(s.clock.Now(), current.ObtainedAt)
	s.Require().NotNil(current.ValidUntil)
	s.Equal(s.clock.Now().Add(DefaultLifetime), *current.ValidUntil)
}

func (s *ManagerSuite) TestAcquireExtractsTokenFromNoisyOutput() {
	acquirer := &StaticAcquirer{Output: "Starting IMPDS authentication...\nLogging in as: someone\n✅ Login successful\nJSESSIONID: " + tokenB + "\n"}
	manager := s.newManager(acquirer, DefaultLifetime)

	token, err := manager.Acquire(context.Background())
	s.Require().NoError(err)
	s.Equal(tokenB, token)
}

func (s *ManagerSuite) TestWindowPolicyExpires() {
	acquirer := NewStaticToken(tokenA)
	manager := s.newManager(acquirer, 25*time.Minute)

	_, err := manager.Acquire(context.Background())
	s.Require().NoError(err)

	s.clock.Advance(24 * time.Minute)
	_, err = manager.Acquire(context.Background())
	s.Require().NoError(err)
	s.EqualValues(1, acquirer.Calls())

	s.clock.Advance(time.Minute)
	_, ok := manager.Current()
	s.False(ok, "the session expires exactly at the end of its window")

	_, err = manager.Acquire(context.Background())
	s.Require().NoError(err)
	s.EqualValues(2, acquirer.Calls())
}

func (s *ManagerSuite) TestInvalidationPolicyNeverExpires() {
	acquirer := NewStaticToken(tokenA)
	manager := s.newManager(acquirer, 0)

	_, err := manager.Acquire(context.Background())
	s.Require().NoError(err)

	s.clock.Advance(30 * 24 * time.Hour)
	current, ok := manager.Current()
	s.True(ok)
	s.Nil(current.ValidUntil)

	_, err = manager.Acquire(context.Background())
	s.Require().NoError(err)
	s.EqualValues(1, acquirer.Calls())

	manager.Invalidate()
	_, err = manager.Acquire(context.Background())
	s.Require().NoError(err)
	s.EqualValues(2, acquirer.Calls())
}

func (s *ManagerSuite) TestInvalidateIsIdempotent() {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	manager := NewManager(NewStaticToken(tokenA), Options{Lifetime: DefaultLifetime, Metrics: m, Now: s.clock.Now})

	manager.Invalidate()
	_, err := manager.Acquire(context.Background())
	s.Require().NoError(err)

	manager.Invalidate()
	manager.Invalidate()
	_, ok := manager.Current()
	s.False(ok)
	s.Equal(1.0, testutil.ToFloat64(m.SessionInvalidations))
	s.Equal(1.0, testutil.ToFloat64(m.SessionAcquisitions.WithLabelValues("success")))
}

func (s *ManagerSuite) TestConcurrentAcquireIsSingleFlight() {
	acquirer := NewStaticToken(tokenA)
	acquirer.Delay = 100 * time.Millisecond
	manager := s.newManager(acquirer, DefaultLifetime)

	const callers = 50
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = manager.Acquire(context.Background())
		}(i)
	}
	wg.Wait()

	s.EqualValues(1, acquirer.Calls())
	for i := 0; i < callers; i++ {
		s.Require().NoError(errs[i])
		s.Equal(tokenA, tokens[i])
	}
}

func (s *ManagerSuite) TestConcurrentFailureIsShared() {
	acquirer := &StaticAcquirer{Output: "Authentication failed", Err: errors.New("exit status 1"), Delay: 50 * time.Millisecond}
	manager := s.newManager(acquirer, DefaultLifetime)

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = manager.Acquire(context.Background())
		}(i)
	}
	wg.Wait()

	s.EqualValues(1, acquirer.Calls())
	for _, err := range errs {
		var acquisitionErr *AcquisitionError
		s.Require().ErrorAs(err, &acquisitionErr)
		s.Equal("Authentication failed", acquisitionErr.Output)
	}
}

func (s *ManagerSuite) TestCallerCancellationDoesNotCancelRefresh() {
	acquirer := NewStaticToken(tokenA)
	acquirer.Delay = 150 * time.Millisecond
	manager := s.newManager(acquirer, DefaultLifetime)

	impatient, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	var patientToken string
	var patientErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		patientToken, patientErr = manager.Acquire(context.Background())
	}()

	_, err := manager.Acquire(impatient)
	s.ErrorIs(err, context.DeadlineExceeded)

	wg.Wait()
	s.Require().NoError(patientErr)
	s.Equal(tokenA, patientToken)
	s.EqualValues(1, acquirer.Calls())

	current, ok := manager.Current()
	s.True(ok)
	s.Equal(tokenA, current.Token)
}

func (s *ManagerSuite) TestAcquireTimeout() {
	acquirer := NewStaticToken(tokenA)
	acquirer.Delay = time.Second
	manager := NewManager(acquirer, Options{Timeout: 30 * time.Millisecond, Now: s.clock.Now})

	_, err := manager.Acquire(context.Background())
	s.ErrorIs(err, ErrSessionTimeout)

	_, ok := manager.Current()
	s.False(ok)
}

func (s *ManagerSuite) TestAcquireFormatError() {
	for _, output := range []string{
		"",
		"Authentication failed",
		"JSESSIONID: 0123456789abcdef0123456789abcdef",
		"JSESSIONID: 0123456789ABCDEF",
		"SESSION: " + tokenA,
	} {
		manager := s.newManager(&StaticAcquirer{Output: output}, DefaultLifetime)
		_, err := manager.Acquire(context.Background())
		s.ErrorIs(err, ErrSessionFormat, "output %q", output)
	}
}

func (s *ManagerSuite) TestAcquisitionErrorIsRecoverable() {
	acquirer := &StaticAcquirer{Output: "Failed to get CAPTCHA", Err: errors.New("exit status 1")}
	manager := s.newManager(acquirer, DefaultLifetime)

	_, err := manager.Acquire(context.Background())
	var acquisitionErr *AcquisitionError
	s.Require().ErrorAs(err, &acquisitionErr)
	s.True(strings.Contains(acquisitionErr.Output, "CAPTCHA"))

	acquirer.Err = nil
	acquirer.Output = "JSESSIONID: " + tokenA
	token, err := manager.Acquire(context.Background())
	s.Require().NoError(err)
	s.Equal(tokenA, token)
	s.EqualValues(2, acquirer.Calls())
}

func (s *ManagerSuite) TestSessionIsValid() {
	now := s.clock.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	var empty *Session
	s.False(empty.IsValid(now))
	s.False((&Session{}).IsValid(now))
	s.True((&Session{Token: tokenA}).IsValid(now))
	s.True((&Session{Token: tokenA, ValidUntil: &future}).IsValid(now))
	s.False((&Session{Token: tokenA, ValidUntil: &past}).IsValid(now))
	s.False((&Session{Token: tokenA, ValidUntil: &now}).IsValid(now))
}

func (s *ManagerSuite) TestRedact() {
	s.Equal("012345***", redact(tokenA))
	s.Equal("***", redact("abc"))
}
