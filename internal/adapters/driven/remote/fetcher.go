package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
	"github.com/custodia-labs/cellstore/internal/logger"
)

// Ensure HTTPFetcher implements the interface.
var _ driven.RemoteFetcher = (*HTTPFetcher)(nil)

// DefaultMaxBytes caps a single download.
const DefaultMaxBytes = 64 << 20

// ErrTooLarge is returned when a download exceeds the size cap.
var ErrTooLarge = errors.New("remote content too large")

// ErrRateLimited is returned when the origin answers 429.
var ErrRateLimited = errors.New("remote origin rate limited the request")

// HTTPFetcher downloads remote content over HTTP(S).
type HTTPFetcher struct {
	client   *http.Client
	limiter  *RateLimiter
	maxBytes int64
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithMaxBytes sets the download size cap.
func WithMaxBytes(n int64) Option {
	return func(f *HTTPFetcher) { f.maxBytes = n }
}

// NewHTTPFetcher creates a fetcher allowing requestsPerSecond downloads.
func NewHTTPFetcher(requestsPerSecond float64, opts ...Option) *HTTPFetcher {
	if requestsPerSecond <= 0 {
		requestsPerSecond = domain.DefaultSettings().Remote.RequestsPerSecond
	}
	f := &HTTPFetcher{
		client:   &http.Client{Timeout: 60 * time.Second},
		limiter:  NewRateLimiter(requestsPerSecond, 2),
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads rawURL. Only http and https are accepted.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: unsupported remote url %q", domain.ErrInvalidInput, rawURL)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	logger.Debug("remote: GET %s", u.Redacted())

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		f.limiter.Backoff(retryAfter(resp.Header.Get("Retry-After")))
		return nil, fmt.Errorf("fetching %s: %w", u.Redacted(), ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("fetching %s: unexpected status %s", u.Redacted(), resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", u.Redacted(), err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("fetching %s: %w (limit %d bytes)", u.Redacted(), ErrTooLarge, f.maxBytes)
	}
	return data, nil
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
