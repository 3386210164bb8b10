// Package fetcher retrieves remote image bytes over HTTP, streaming
// them to a temporary file and validating that they are a real image.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sotarylen/mediapress/internal/logger"
)

// ErrEmptyBody is returned when the origin answered 2xx with no bytes.
var ErrEmptyBody = errors.New("empty response body")

// TransportError wraps DNS, connect, and timeout failures. Retryable.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response, carrying the status code. Retryable.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d fetching %s", e.StatusCode, e.URL)
}

// NotImageError means the transfer succeeded but the bytes are not a
// decodable image. Permanent for this URL.
type NotImageError struct {
	URL    string
	Detail string
}

func (e *NotImageError) Error() string {
	return fmt.Sprintf("fetched content from %s is not an image: %s", e.URL, e.Detail)
}

// Config holds fetcher settings.
type Config struct {
	Timeout time.Duration
	// UserAgent is sent on every request. Some origins reject Go's
	// default agent, so a browser-like string is used.
	UserAgent string
	// HostHeader overrides the Host header when non-empty, for origins
	// that require SNI/Host alignment distinct from the resolved IP.
	HostHeader string
	// MaxBodyBytes caps the streamed response size.
	MaxBodyBytes int64
}

// Result is a successful fetch: the temp file holding the body and the
// response headers. The caller owns the temp file.
type Result struct {
	TempPath string
	Header   http.Header
	Size     int64
}

// Fetcher retrieves remote images.
type Fetcher struct {
	client *http.Client
	cfg    Config
	log    logger.Interface
}

// New creates a fetcher.
func New(cfg Config, log logger.Interface) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		log:    log,
	}
}

// Fetch downloads rawURL to a temporary file and validates the bytes as
// a genuine image. On any error path the temp file is removed before
// returning.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}

	req.Header.Set("User-Agent", f.cfg.UserAgent)
	if f.cfg.HostHeader != "" {
		req.Host = f.cfg.HostHeader
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &HTTPError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	tmp, err := os.CreateTemp("", "mediapress-fetch-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	// Stream to disk rather than buffering the body in memory; remote
	// responses are unbounded until proven otherwise.
	body := io.Reader(resp.Body)
	if f.cfg.MaxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, f.cfg.MaxBodyBytes)
	}

	size, copyErr := io.Copy(tmp, body)
	closeErr := tmp.Close()

	if copyErr != nil {
		f.discard(tmp.Name())
		return nil, &TransportError{URL: rawURL, Err: copyErr}
	}
	if closeErr != nil {
		f.discard(tmp.Name())
		return nil, fmt.Errorf("close temp file: %w", closeErr)
	}
	if size == 0 {
		f.discard(tmp.Name())
		return nil, ErrEmptyBody
	}

	if probeErr := ProbeImage(tmp.Name()); probeErr != nil {
		f.discard(tmp.Name())
		return nil, &NotImageError{URL: rawURL, Detail: probeErr.Error()}
	}

	f.log.Debug("fetched image",
		"url", rawURL,
		"size_bytes", size,
		"content_type", resp.Header.Get("Content-Type"),
	)

	return &Result{TempPath: tmp.Name(), Header: resp.Header, Size: size}, nil
}

// discard removes a temp file, logging rather than failing on error.
func (f *Fetcher) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		f.log.Warn("failed to remove temp file", "path", path, "error", err)
	}
}
