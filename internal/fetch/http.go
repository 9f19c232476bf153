package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"fedigraph/internal/errs"
	"fedigraph/internal/metrics"
	"fedigraph/internal/retry"

	"github.com/google/uuid"
)

// HTTPFetcher downloads the collection as a zip archive.
type HTTPFetcher struct {
	url      string
	username string
	key      string
	// leading path components dropped from archive entries
	strip   int
	client  *http.Client
	retry   retry.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*HTTPFetcher)

// WithCredentials sends HTTP basic auth, as the Kaggle API expects.
func WithCredentials(username, key string) Option {
	return func(f *HTTPFetcher) {
		f.username = username
		f.key = key
	}
}

func WithStripComponents(n int) Option {
	return func(f *HTTPFetcher) { f.strip = n }
}

func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) { f.client = c }
}

func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) { f.client = &http.Client{Timeout: d} }
}

func WithRetry(cfg retry.Config) Option {
	return func(f *HTTPFetcher) { f.retry = cfg }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *HTTPFetcher) { f.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *HTTPFetcher) { f.metrics = m }
}

func NewHTTPFetcher(url string, opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Minute},
		retry:  retry.DefaultConfig(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// EnsureLocal downloads and publishes the collection unless root already
// holds one.
func (f *HTTPFetcher) EnsureLocal(ctx context.Context, root string) error {
	if IsPresent(root) {
		f.metrics.ObserveFetch(metrics.FetchPresent)
		return nil
	}

	err := f.fetch(ctx, root)
	if err != nil {
		f.metrics.ObserveFetch(metrics.FetchFailed)
		return err
	}
	f.metrics.ObserveFetch(metrics.FetchDownloaded)
	return nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, root string) error {
	if err := checkRoot(root); err != nil {
		return errs.Fetch("prepare", err)
	}
	parent := filepath.Dir(root)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return errs.Fetch("prepare", err)
	}

	archive, err := os.CreateTemp(parent, ".fedigraph-download-*.zip")
	if err != nil {
		return errs.Fetch("prepare", err)
	}
	defer os.Remove(archive.Name())
	defer archive.Close()

	start := time.Now()
	f.logger.Info("downloading dataset", "url", f.url, "root", root)
	err = retry.Do(ctx, f.retry, func(attempt int) error {
		if attempt > 1 {
			f.logger.Warn("retrying dataset download", "attempt", attempt)
		}
		return f.download(ctx, archive)
	})
	if err != nil {
		return errs.Fetch("download", err)
	}

	staging := filepath.Join(parent, ".fedigraph-staging-"+uuid.NewString())
	defer os.RemoveAll(staging)

	n, err := extract(archive.Name(), staging, f.strip)
	if err != nil {
		return errs.Fetch("extract", err)
	}
	marker := fmt.Sprintf("url=%s\nfetched=%s\n", f.url, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(filepath.Join(staging, CompleteMarker), []byte(marker), 0o644); err != nil {
		return errs.Fetch("extract", err)
	}

	if err := publish(staging, root); err != nil {
		return errs.Fetch("publish", err)
	}
	f.logger.Info("dataset ready", "root", root, "files", n, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (f *HTTPFetcher) download(ctx context.Context, dst *os.File) error {
	if _, err := dst.Seek(0, io.SeekStart); err != nil {
		return retry.Permanent(err)
	}
	if err := dst.Truncate(0); err != nil {
		return retry.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if f.username != "" {
		req.SetBasicAuth(f.username, f.key)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return retry.Permanent(fmt.Errorf("archive rejected credentials: %s", resp.Status))
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return fmt.Errorf("archive unavailable: %s", resp.Status)
	default:
		return retry.Permanent(fmt.Errorf("unexpected archive response: %s", resp.Status))
	}

	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read archive body: %w", err)
	}
	f.logger.Debug("archive downloaded", "bytes", n)
	return nil
}

// publish moves staging onto root. Losing a race against another process
// that published first is success.
func publish(staging, root string) error {
	if IsPresent(root) {
		return nil
	}
	if err := checkRoot(root); err != nil {
		return err
	}
	// Only an empty directory gets here; Remove refuses anything else.
	if err := os.Remove(root); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.Rename(staging, root); err != nil {
		if IsPresent(root) {
			return nil
		}
		return err
	}
	return nil
}

// checkRoot accepts a missing root or an empty directory. Anything else at
// that path belongs to the user and is never replaced.
func checkRoot(root string) error {
	info, err := os.Lstat(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("root %s exists and is not a directory", root)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("root %s is not empty", root)
	}
	return nil
}
