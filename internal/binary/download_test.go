package binary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetcherFetch(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantStatus int
	}{
		{
			name:       "successful_download",
			statusCode: http.StatusOK,
			body:       "test binary content",
		},
		{
			name:       "404_not_found",
			statusCode: http.StatusNotFound,
			body:       "not found",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "500_server_error",
			statusCode: http.StatusInternalServerError,
			body:       "server error",
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("User-Agent") != DefaultUserAgent {
					t.Errorf("unexpected User-Agent: %s", r.Header.Get("User-Agent"))
				}
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			destPath := filepath.Join(t.TempDir(), "archive.tar.gz")
			result, err := NewFetcher().Fetch(context.Background(), server.URL, destPath)

			if tt.wantStatus != 0 {
				var httpErr *HTTPError
				if !errors.As(err, &httpErr) || httpErr.StatusCode != tt.wantStatus {
					t.Fatalf("expected HTTPError{%d}, got %v", tt.wantStatus, err)
				}
				if _, statErr := os.Stat(destPath); !os.IsNotExist(statErr) {
					t.Error("destination file exists after failed fetch")
				}
				if _, statErr := os.Stat(destPath + ".part"); !os.IsNotExist(statErr) {
					t.Error("partial file exists after failed fetch")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := readFile(t, destPath); got != tt.body {
				t.Errorf("content = %q, want %q", got, tt.body)
			}
			if result.Bytes != int64(len(tt.body)) || result.Redirects != 0 || result.Path != destPath {
				t.Errorf("result = %+v", result)
			}
		})
	}
}

// redirectChain serves /hop/N redirecting to /hop/N-1, and /hop/0 with the payload.
func redirectChain(t *testing.T, payload string, requests *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		var n int
		if _, err := fmt.Sscanf(r.URL.Path, "/hop/%d", &n); err != nil {
			http.NotFound(w, r)
			return
		}
		if n == 0 {
			_, _ = w.Write([]byte(payload))
			return
		}
		// Relative Location exercises resolution against the current URL.
		http.Redirect(w, r, fmt.Sprintf("%d", n-1), http.StatusFound)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetcherFetch_Redirects(t *testing.T) {
	tests := []struct {
		name         string
		hops         int
		maxRedirects int
		wantErr      bool
	}{
		{"no_redirect", 0, 5, false},
		{"within_limit", 3, 5, false},
		{"at_limit", 5, 5, false},
		{"over_limit", 6, 5, true},
		{"zero_limit", 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests int32
			server := redirectChain(t, "payload", &requests)

			destPath := filepath.Join(t.TempDir(), "out")
			fetcher := NewFetcher(WithMaxRedirects(tt.maxRedirects))
			result, err := fetcher.Fetch(context.Background(), fmt.Sprintf("%s/hop/%d", server.URL, tt.hops), destPath)

			if tt.wantErr {
				if !errors.Is(err, ErrTooManyRedirects) {
					t.Fatalf("expected ErrTooManyRedirects, got %v", err)
				}
				if got := atomic.LoadInt32(&requests); got != int32(tt.maxRedirects+1) {
					t.Errorf("requests = %d, want %d", got, tt.maxRedirects+1)
				}
				if _, statErr := os.Stat(destPath); !os.IsNotExist(statErr) {
					t.Error("destination written despite redirect failure")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Redirects != tt.hops {
				t.Errorf("Redirects = %d, want %d", result.Redirects, tt.hops)
			}
			if !strings.HasSuffix(result.URL, "/hop/0") {
				t.Errorf("final URL = %q, want /hop/0", result.URL)
			}
			if got := readFile(t, destPath); got != "payload" {
				t.Errorf("content = %q", got)
			}
		})
	}
}

func TestFetcherFetch_RedirectLoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path, http.StatusMovedPermanently)
	}))
	defer server.Close()

	_, err := NewFetcher().Fetch(context.Background(), server.URL+"/loop", filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, ErrTooManyRedirects) {
		t.Fatalf("expected ErrTooManyRedirects, got %v", err)
	}
}

func TestFetcherFetch_RedirectWithoutLocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	_, err := NewFetcher().Fetch(context.Background(), server.URL, filepath.Join(t.TempDir(), "out"))
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusFound {
		t.Fatalf("expected HTTPError{302}, got %v", err)
	}
}

func TestFetcherFetch_RemovesStaleFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	dir := t.TempDir()
	destPath := writeFixture(t, filepath.Join(dir, "archive.tar.gz"), []byte("old complete archive"))
	writeFixture(t, destPath+".part", []byte("interrupted"))

	if _, err := NewFetcher().Fetch(context.Background(), server.URL, destPath); err == nil {
		t.Fatal("expected error")
	}

	for _, p := range []string{destPath, destPath + ".part"} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s survived a failed fetch", filepath.Base(p))
		}
	}
}

func TestFetcherFetch_Overwrites(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("new"))
	}))
	defer server.Close()

	destPath := writeFixture(t, filepath.Join(t.TempDir(), "nested", "archive"), []byte("old content that is longer"))

	if _, err := NewFetcher().Fetch(context.Background(), server.URL, destPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readFile(t, destPath); got != "new" {
		t.Errorf("content = %q, want new", got)
	}
}

func TestFetcherFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	destPath := filepath.Join(t.TempDir(), "out")
	_, err := NewFetcher(WithTimeout(50*time.Millisecond)).Fetch(context.Background(), server.URL, destPath)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout cause, got %v", netErr.Err)
	}
	if !IsRetryable(err) {
		t.Error("timeout should be retryable")
	}
}

func TestFetcherFetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewFetcher().Fetch(context.Background(), url, filepath.Join(t.TempDir(), "out"))
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if netErr.URL != url {
		t.Errorf("URL = %q, want %q", netErr.URL, url)
	}
}

func TestFetcherFetch_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFetcher().Fetch(ctx, server.URL, filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("cancellation should not be retryable")
	}
}

func TestFetcherFetch_TruncatedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte("short"))
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "out")
	_, err := NewFetcher().Fetch(context.Background(), server.URL, destPath)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	for _, p := range []string{destPath, destPath + ".part"} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s left behind after truncated body", filepath.Base(p))
		}
	}
}

func TestFetcherFetch_UserAgent(t *testing.T) {
	agents := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.Header.Get("User-Agent")
	}))
	defer server.Close()

	fetcher := NewFetcher(WithUserAgent("autocommit-install/v9.9.9"))
	if _, err := fetcher.Fetch(context.Background(), server.URL, filepath.Join(t.TempDir(), "out")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := <-agents; got != "autocommit-install/v9.9.9" {
		t.Errorf("User-Agent = %q", got)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", &NetworkError{URL: "u", Err: errors.New("reset")}, true},
		{"wrapped_network", fmt.Errorf("fetch: %w", &NetworkError{URL: "u", Err: ErrTimeout}), true},
		{"503", &HTTPError{StatusCode: 503}, true},
		{"404", &HTTPError{StatusCode: 404}, false},
		{"redirects", ErrTooManyRedirects, false},
		{"filesystem", &FileSystemError{Op: "write", Path: "p", Err: os.ErrPermission}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
