package session

import (
	"context"
	"errors"
	"github.com/rs/zerolog/log"
	"github.com/skybi/impds-proxy/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
	"sync"
	"time"
)

const (
	// DefaultLifetime is the validity window applied to fresh sessions if none is configured
	DefaultLifetime = 25 * time.Minute

	// DefaultTimeout bounds a single credential acquirer invocation if no timeout is configured
	DefaultTimeout = 30 * time.Second

	refreshKey = "refresh"
)

var tracer = otel.Tracer("github.com/skybi/impds-proxy/internal/session")

// Options configures a Manager
type Options struct {
	// Lifetime is the validity window of a freshly acquired session.
	// If it is zero, sessions stay valid until Invalidate is called.
	Lifetime time.Duration

	// Timeout bounds a single credential acquirer invocation; DefaultTimeout is used if zero
	Timeout time.Duration

	Metrics *metrics.Metrics

	// Now replaces time.Now (tests)
	Now func() time.Time
}

// Manager owns the cached portal session and its refresh protocol.
// Reads of a valid session only take a read lock; refreshes are coalesced so that concurrent callers share a single
// acquirer invocation.
type Manager struct {
	acquirer Acquirer
	lifetime time.Duration
	timeout  time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time

	mtx     sync.RWMutex
	current *Session

	refreshes singleflight.Group
}

// NewManager creates a new session manager in its empty state
func NewManager(acquirer Acquirer, opts Options) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		acquirer: acquirer,
		lifetime: opts.Lifetime,
		timeout:  opts.Timeout,
		metrics:  opts.Metrics,
		now:      opts.Now,
	}
}

// Acquire returns a valid session token, acquiring a new one if necessary.
// Cancelling ctx only stops the caller from waiting; an in-flight refresh keeps running for other callers.
func (manager *Manager) Acquire(ctx context.Context) (string, error) {
	if token, ok := manager.cached(); ok {
		return token, nil
	}

	detached := context.WithoutCancel(ctx)
	results := manager.refreshes.DoChan(refreshKey, func() (any, error) {
		return manager.refresh(detached)
	})

	select {
	case result := <-results:
		if result.Err != nil {
			return "", result.Err
		}
		return result.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Invalidate drops the cached session unconditionally.
// Calling it on an empty manager is a no-op.
func (manager *Manager) Invalidate() {
	manager.mtx.Lock()
	dropped := manager.current != nil
	manager.current = nil
	manager.mtx.Unlock()

	if dropped {
		manager.metrics.IncrementSessionInvalidations()
		log.Info().Msg("invalidated the cached portal session")
	}
}

// Current returns a copy of the cached session and whether it is still valid
func (manager *Manager) Current() (Session, bool) {
	manager.mtx.RLock()
	defer manager.mtx.RUnlock()
	if manager.current == nil {
		return Session{}, false
	}
	return *manager.current, manager.current.IsValid(manager.now())
}

func (manager *Manager) cached() (string, bool) {
	manager.mtx.RLock()
	defer manager.mtx.RUnlock()
	if manager.current.IsValid(manager.now()) {
		return manager.current.Token, true
	}
	return "", false
}

func (manager *Manager) refresh(ctx context.Context) (string, error) {
	// A refresh may have completed between the caller's cache miss and joining this flight
	if token, ok := manager.cached(); ok {
		return token, nil
	}

	ctx, span := tracer.Start(ctx, "session.refresh")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, manager.timeout)
	defer cancel()

	log.Info().Dur("timeout", manager.timeout).Msg("acquiring a new portal session...")
	start := time.Now()

	output, err := manager.acquirer.Acquire(ctx)
	if err != nil {
		err = manager.classify(ctx, err)
		manager.metrics.ObserveSessionAcquisition(resultOf(err), time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "session acquisition failed")

		event := log.Error().Err(err)
		var acquisitionErr *AcquisitionError
		if errors.As(err, &acquisitionErr) && acquisitionErr.Output != "" {
			event = event.Str("output", acquisitionErr.Output)
		}
		event.Msg("could not acquire a new portal session")
		return "", err
	}

	token, err := ExtractToken(output)
	if err != nil {
		manager.metrics.ObserveSessionAcquisition(resultOf(err), time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed acquirer output")
		log.Error().Err(err).Msg("could not acquire a new portal session")
		return "", err
	}

	obtained := manager.now()
	session := &Session{
		Token:      token,
		ObtainedAt: obtained,
	}
	if manager.lifetime > 0 {
		validUntil := obtained.Add(manager.lifetime)
		session.ValidUntil = &validUntil
	}

	manager.mtx.Lock()
	manager.current = session
	manager.mtx.Unlock()

	manager.metrics.ObserveSessionAcquisition(resultOf(nil), time.Since(start))
	event := log.Info().Str("token", redact(token))
	if session.ValidUntil != nil {
		event = event.Time("valid_until", *session.ValidUntil)
	}
	event.Msg("acquired a new portal session")
	return token, nil
}

func (manager *Manager) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrSessionTimeout
	}
	if errors.Is(err, ErrSessionFormat) || errors.Is(err, ErrSessionTimeout) {
		return err
	}
	var acquisitionErr *AcquisitionError
	if errors.As(err, &acquisitionErr) {
		return err
	}
	return &AcquisitionError{Cause: err}
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSessionTimeout):
		return "timeout"
	case errors.Is(err, ErrSessionFormat):
		return "format"
	default:
		return "failure"
	}
}
