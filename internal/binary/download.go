package binary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultTimeout is the default per-request timeout
	DefaultTimeout = 5 * time.Minute
	// DefaultMaxRedirects is the default redirect hop limit
	DefaultMaxRedirects = 10
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "autocommit-install/dev"

	partSuffix = ".part"
)

// Fetcher streams HTTP downloads to disk, following redirects itself.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxRedirects int
	timeout      time.Duration
	logger       *log.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient uses client for requests. Its redirect policy is replaced.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		c := *client
		f.client = &c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithMaxRedirects sets how many redirects are followed before giving up.
func WithMaxRedirects(n int) FetcherOption {
	return func(f *Fetcher) { f.maxRedirects = n }
}

// WithTimeout bounds each request, headers and body included.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.timeout = d }
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(l *log.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher creates a new fetcher
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:       &http.Client{},
		userAgent:    DefaultUserAgent,
		maxRedirects: DefaultMaxRedirects,
		timeout:      DefaultTimeout,
		logger:       discardLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}

	// Redirects are followed by Fetch so the hop limit and logging live in one place.
	f.client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if f.maxRedirects < 0 {
		f.maxRedirects = 0
	}

	return f
}

// Fetch downloads url to destPath.
//
// Any existing destPath and stale partial download are removed first, so on
// failure nothing is left at destPath. The body is written to destPath+".part"
// and renamed into place once synced and closed.
func (f *Fetcher) Fetch(ctx context.Context, url, destPath string) (*FetchResult, error) {
	start := time.Now()

	if err := removeIfExists(destPath); err != nil {
		return nil, &FileSystemError{Op: "remove", Path: destPath, Err: err}
	}
	if err := removeIfExists(destPath + partSuffix); err != nil {
		return nil, &FileSystemError{Op: "remove", Path: destPath + partSuffix, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, &FileSystemError{Op: "mkdir", Path: filepath.Dir(destPath), Err: err}
	}

	task := &DownloadTask{URL: url, DestinationPath: destPath}
	redirects := 0

	for {
		next, written, err := f.fetchOnce(ctx, task)
		if err != nil {
			return nil, err
		}

		if next == "" {
			f.logger.Debug("download complete", "url", task.URL, "bytes", written, "redirects", redirects)
			return &FetchResult{
				URL:       task.URL,
				Path:      destPath,
				Bytes:     written,
				Redirects: redirects,
				Duration:  time.Since(start),
			}, nil
		}

		if redirects >= f.maxRedirects {
			return nil, fmt.Errorf("%w: more than %d redirects fetching %s", ErrTooManyRedirects, f.maxRedirects, url)
		}
		redirects++

		f.logger.Debug("following redirect", "from", task.URL, "to", next, "hop", redirects)
		task.URL = next
	}
}

// fetchOnce issues one GET. It returns the resolved Location for a redirect,
// or the number of bytes written to the destination otherwise.
func (f *Fetcher) fetchOnce(ctx context.Context, task *DownloadTask) (string, int64, error) {
	reqCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, task.URL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, f.transportError(ctx, reqCtx, task.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if location := resp.Header.Get("Location"); location != "" {
			next, err := resp.Request.URL.Parse(location)
			if err != nil {
				return "", 0, fmt.Errorf("invalid redirect location %q from %s: %w", location, task.URL, err)
			}
			return next.String(), 0, nil
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, &HTTPError{StatusCode: resp.StatusCode, URL: task.URL}
	}

	written, err := f.writeBody(ctx, reqCtx, task, resp.Body)
	if err != nil {
		return "", 0, err
	}
	return "", written, nil
}

// writeBody streams body into the .part file and renames it into place.
func (f *Fetcher) writeBody(ctx, reqCtx context.Context, task *DownloadTask, body io.Reader) (int64, error) {
	partPath := task.DestinationPath + partSuffix

	partFile, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, &FileSystemError{Op: "create", Path: partPath, Err: err}
	}

	// Track whether we need to clean up the partial file
	cleanupNeeded := true
	defer func() {
		partFile.Close()
		if cleanupNeeded {
			os.Remove(partPath)
		}
	}()

	w := &trackingWriter{w: partFile}
	written, err := io.Copy(w, body)
	if err != nil {
		if w.err != nil {
			return 0, &FileSystemError{Op: "write", Path: partPath, Err: w.err}
		}
		return 0, f.transportError(ctx, reqCtx, task.URL, err)
	}

	if err := partFile.Sync(); err != nil {
		return 0, &FileSystemError{Op: "sync", Path: partPath, Err: err}
	}
	if err := partFile.Close(); err != nil {
		return 0, &FileSystemError{Op: "close", Path: partPath, Err: err}
	}

	if err := os.Rename(partPath, task.DestinationPath); err != nil {
		return 0, &FileSystemError{Op: "rename", Path: task.DestinationPath, Err: err}
	}

	cleanupNeeded = false
	return written, nil
}

// transportError classifies a failed request. Cancellation of the caller's
// context is returned as is; a per-request deadline becomes ErrTimeout.
func (f *Fetcher) transportError(ctx, reqCtx context.Context, url string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var netErr net.Error
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &NetworkError{URL: url, Err: ErrTimeout}
	}

	return &NetworkError{URL: url, Err: err}
}

// trackingWriter records write failures so they are not mistaken for
// network failures.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
