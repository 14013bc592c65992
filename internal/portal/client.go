package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/skybi/impds-proxy/internal/metrics"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the base URL of the deduplication portal
	DefaultBaseURL = "https://impds.nic.in/impdsdeduplication"

	// DefaultUserAgent is the browser-like user agent the portal expects
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

	// DefaultTimeout bounds a single search request
	DefaultTimeout = 30 * time.Second

	sessionCookieName = "JSESSIONID"
	maxResponseBytes  = 10 << 20
)

// loginMarkers are fragments that only occur on the portal's login page, which it serves in place of search results
// once a session is no longer accepted
var loginMarkers = []string{"USER_SALT", "session expired", "session has expired"}

// ErrSessionRejected is returned if the portal refused the session token
var ErrSessionRejected = errors.New("the portal rejected the session")

// UnavailableError represents a network failure, timeout or unexpected response status of the portal
type UnavailableError struct {
	StatusCode int
	Cause      error
}

func (err *UnavailableError) Error() string {
	if err.Cause != nil {
		return fmt.Sprintf("the portal is unavailable: %v", err.Cause)
	}
	return fmt.Sprintf("the portal is unavailable: unexpected status %d", err.StatusCode)
}

func (err *UnavailableError) Unwrap() error {
	return err.Cause
}

// Options configures a Client
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// HTTPClient replaces the default HTTP client; its redirect policy is overridden
	HTTPClient *http.Client

	Metrics *metrics.Metrics
}

// Client issues authenticated search requests against the portal
type Client struct {
	searchURL string
	userAgent string
	http      *http.Client
	metrics   *metrics.Metrics
}

// New creates a new portal client
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	httpClient := &http.Client{}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		httpClient = &copied
	}
	httpClient.Timeout = opts.Timeout
	httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{
		searchURL: strings.TrimSuffix(opts.BaseURL, "/") + "/search",
		userAgent: opts.UserAgent,
		http:      httpClient,
		metrics:   opts.Metrics,
	}
}

// Search submits a search for the given encrypted identifier and returns the raw response markup.
// ErrSessionRejected is returned if the portal did not accept the session token; every other failure is reported as
// an *UnavailableError.
func (client *Client) Search(ctx context.Context, token, searchType, ciphertext string) ([]byte, error) {
	body := "search=" + url.QueryEscape(searchType) + "&aadhar=" + url.QueryEscape(ciphertext)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.searchURL, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.Header.Set("User-Agent", client.userAgent)
	request.Header.Set("Referer", client.searchURL)
	request.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})

	start := time.Now()
	response, err := client.http.Do(request)
	if err != nil {
		client.metrics.ObservePortalRequest("error", time.Since(start))
		return nil, &UnavailableError{Cause: err}
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	client.metrics.ObservePortalRequest(statusClass(response.StatusCode), time.Since(start))
	if err != nil {
		return nil, &UnavailableError{StatusCode: response.StatusCode, Cause: err}
	}

	switch {
	case response.StatusCode == http.StatusInternalServerError,
		response.StatusCode == http.StatusUnauthorized,
		response.StatusCode == http.StatusForbidden:
		return nil, ErrSessionRejected
	case response.StatusCode >= 300 && response.StatusCode < 400:
		if isLoginRedirect(response.Header.Get("Location")) {
			return nil, ErrSessionRejected
		}
		return nil, &UnavailableError{StatusCode: response.StatusCode}
	case response.StatusCode < 200 || response.StatusCode >= 300:
		return nil, &UnavailableError{StatusCode: response.StatusCode}
	}

	if isLoginPage(raw) {
		return nil, ErrSessionRejected
	}
	return raw, nil
}

func isLoginRedirect(location string) bool {
	location = strings.ToLower(location)
	return strings.Contains(location, "login") || strings.Contains(location, "sessionexpired")
}

func isLoginPage(raw []byte) bool {
	lower := bytes.ToLower(raw)
	for _, marker := range loginMarkers {
		if bytes.Contains(lower, bytes.ToLower([]byte(marker))) {
			return true
		}
	}
	return false
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
