package host

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "assetsync/internal/errors"
	"assetsync/internal/logger"
)

const (
	copyBufferSize   = 32 * 1024
	defaultUserAgent = "assetsync/1.0 (Go updater)"
	cacheBustParam   = "_ts"
)

// HTTPClient represents the subset of http.Client methods required by the transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPConfig tunes the HTTP transport.
type HTTPConfig struct {
	Timeout    time.Duration
	MaxRetries int
	RetryWait  time.Duration
	UserAgent  string
	CacheBust  bool
}

// HTTPTransport implements Transport over net/http with retries and
// cache-busting.
type HTTPTransport struct {
	cfg      HTTPConfig
	logger   logger.Logger
	client   HTTPClient
	reporter ProgressReporter
	now      func() time.Time
}

// TransportOption customises HTTPTransport construction.
type TransportOption func(*HTTPTransport)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client HTTPClient) TransportOption {
	return func(t *HTTPTransport) {
		t.client = client
	}
}

// WithProgressReporter overrides the progress reporter for byte transfers.
func WithProgressReporter(reporter ProgressReporter) TransportOption {
	return func(t *HTTPTransport) {
		t.reporter = reporter
	}
}

// WithClock overrides the clock used for cache-busting tokens.
func WithClock(now func() time.Time) TransportOption {
	return func(t *HTTPTransport) {
		t.now = now
	}
}

// NewHTTPTransport constructs an HTTPTransport, filling unset config values
// with defaults.
func NewHTTPTransport(cfg HTTPConfig, log logger.Logger, opts ...TransportOption) (*HTTPTransport, error) {
	if log == nil {
		return nil, apperrors.SystemError(apperrors.CodeSystemGeneric, "logger must not be nil", nil).
			WithModule("host").
			WithOperation("NewHTTPTransport")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryWait < 0 {
		cfg.RetryWait = 0
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}

	t := &HTTPTransport{
		cfg:      cfg,
		logger:   log,
		client:   defaultHTTPClient(cfg.Timeout),
		reporter: NoopProgressReporter{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = defaultHTTPClient(cfg.Timeout)
	}
	if t.reporter == nil {
		t.reporter = NoopProgressReporter{}
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t, nil
}

// FetchText fetches url and returns the body as a string.
func (t *HTTPTransport) FetchText(ctx context.Context, rawURL string) (string, error) {
	body, err := t.fetch(ctx, rawURL, false)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchBytes fetches url and returns the raw body, reporting progress.
func (t *HTTPTransport) FetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	return t.fetch(ctx, rawURL, true)
}

func (t *HTTPTransport) fetch(ctx context.Context, rawURL string, report bool) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= t.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			t.logger.Info("Retrying request (attempt %d/%d): %s", attempt, t.cfg.MaxRetries, rawURL)
			if err := t.wait(ctx, time.Duration(attempt-1)*t.cfg.RetryWait); err != nil {
				return nil, apperrors.TransportError(apperrors.CodeTransportGeneric, "request cancelled", err).
					WithModule("host").
					WithOperation("fetch").
					WithField("url", rawURL)
			}
		}

		body, retryable, err := t.do(ctx, rawURL, report)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			return nil, err
		}
		t.logger.Warn("Request attempt %d failed: %v", attempt, err)
	}

	return nil, apperrors.TransportError(apperrors.CodeTransportRetries, "request failed after retries", lastErr).
		WithModule("host").
		WithOperation("fetch").
		WithFields(apperrors.Metadata{
			"url":      rawURL,
			"attempts": t.cfg.MaxRetries,
		})
}

func (t *HTTPTransport) do(ctx context.Context, rawURL string, report bool) ([]byte, bool, error) {
	target, err := t.requestURL(rawURL)
	if err != nil {
		return nil, false, apperrors.TransportError(apperrors.CodeTransportGeneric, "invalid request url", err).
			WithModule("host").
			WithOperation("do").
			WithField("url", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false, apperrors.TransportError(apperrors.CodeTransportGeneric, "failed to create request", err).
			WithModule("host").
			WithOperation("do").
			WithField("url", rawURL)
	}
	req.Header.Set("User-Agent", t.cfg.UserAgent)
	if t.cfg.CacheBust {
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, true, apperrors.TransportError(apperrors.CodeTransportGeneric, "request failed", err).
			WithModule("host").
			WithOperation("do").
			WithField("url", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode >= 500, apperrors.TransportError(apperrors.CodeTransportStatus, "request failed with unexpected status", nil).
			WithModule("host").
			WithOperation("do").
			WithFields(apperrors.Metadata{
				"url":    rawURL,
				"status": resp.StatusCode,
			})
	}

	var reader io.Reader = resp.Body
	var progress *ProgressReader
	if report {
		progress = NewProgressReader(resp.Body, resp.ContentLength, t.reporter, rawURL)
		reader = progress
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	if _, err := io.CopyBuffer(&buf, reader, make([]byte, copyBufferSize)); err != nil {
		return nil, true, apperrors.TransportError(apperrors.CodeTransportGeneric, "failed to read response body", err).
			WithModule("host").
			WithOperation("do").
			WithField("url", rawURL)
	}
	if progress != nil {
		progress.Finish()
	}

	return buf.Bytes(), false, nil
}

// requestURL appends the cache-busting token when enabled.
func (t *HTTPTransport) requestURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if !t.cfg.CacheBust {
		return u.String(), nil
	}
	q := u.Query()
	q.Set(cacheBustParam, strconv.FormatInt(t.now().UnixNano(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (t *HTTPTransport) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func defaultHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

var _ Transport = (*HTTPTransport)(nil)
