// Package fetch downloads release archives over HTTP.
//
// Downloads are streamed to "<dest>.tmp" and renamed into place only after
// the body has been fully written, so an interrupted transfer never leaves a
// file at the destination. Transient failures are retried with exponential
// backoff; client errors are not.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rezpkg/oidnpkg/internal/logging"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 5 * time.Minute
	// DefaultRetries is the number of retries after the first attempt.
	DefaultRetries = 3
	// DefaultUserAgent is sent with every request. GitHub's release CDN
	// rejects some non-browser agents.
	DefaultUserAgent = "Mozilla/5.0"
	// maxRedirects bounds the redirect chain (GitHub redirects release
	// assets to its object store).
	maxRedirects = 10
)

// HTTPStatusError is returned when the server answers with a non-200 status.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status code: %d", e.URL, e.StatusCode)
}

// Temporary reports whether the status is worth retrying.
func (e *HTTPStatusError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// Downloader handles HTTP downloads with retry logic.
type Downloader struct {
	client          *http.Client
	userAgent       string
	retries         uint
	initialInterval time.Duration
	logger          logging.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(d *Downloader) {
		if ua != "" {
			d.userAgent = ua
		}
	}
}

// WithRetries sets the number of retries after the first attempt.
func WithRetries(n uint) Option {
	return func(d *Downloader) { d.retries = n }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Downloader) {
		if timeout > 0 {
			d.client.Timeout = timeout
		}
	}
}

// WithInitialInterval sets the first backoff delay.
func WithInitialInterval(interval time.Duration) Option {
	return func(d *Downloader) {
		if interval > 0 {
			d.initialInterval = interval
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(d *Downloader) { d.logger = logging.OrNop(l) }
}

// NewDownloader creates a new downloader.
func NewDownloader(opts ...Option) *Downloader {
	d := &Downloader{
		client: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent:       DefaultUserAgent,
		retries:         DefaultRetries,
		initialInterval: time.Second,
		logger:          logging.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DownloadToFile downloads url to destPath, retrying transient failures.
// It returns the number of bytes written.
func (d *Downloader) DownloadToFile(ctx context.Context, url, destPath string) (int64, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.initialInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0

	attempt := 0
	op := func() (int64, error) {
		attempt++
		n, err := d.downloadOnce(ctx, url, destPath)
		if err == nil {
			return n, nil
		}
		if ctx.Err() != nil {
			return 0, backoff.Permanent(ctx.Err())
		}
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			return 0, backoff.Permanent(err)
		}
		return 0, err
	}

	notify := func(err error, wait time.Duration) {
		d.logger.Warn("download attempt failed", "url", url, "attempt", attempt, "retry_in", wait.String(), "error", err)
	}

	n, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(d.retries+1),
		backoff.WithNotify(notify),
	)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("download failed after %d attempt(s): %w", attempt, err)
	}
	return n, nil
}

// downloadOnce performs a single download attempt.
func (d *Downloader) downloadOnce(ctx context.Context, url, destPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, fmt.Errorf("create dest dir: %w", err)
	}

	tmpPath := destPath + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}

	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmpFile, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("copy response body: %w", err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return 0, fmt.Errorf("short body: got %d of %d bytes", n, resp.ContentLength)
	}

	if err := tmpFile.Sync(); err != nil {
		return 0, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("rename temp file: %w", err)
	}

	cleanupNeeded = false
	return n, nil
}

// IsCached reports whether path exists as a non-empty regular file.
func IsCached(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}
