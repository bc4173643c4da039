package binary

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTooManyRedirects is returned when a redirect chain exceeds the hop limit.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrTimeout is the cause of a NetworkError raised by a request timeout.
	ErrTimeout = errors.New("timeout")
	// ErrUnsupportedArchiveType is returned for archives with an unrecognized suffix.
	ErrUnsupportedArchiveType = errors.New("unsupported archive type")
	// ErrInvalidRelease is returned when a release reference cannot be built.
	ErrInvalidRelease = errors.New("invalid release")
	// ErrSmokeTestFailed is returned when the installed binary does not run as expected.
	ErrSmokeTestFailed = errors.New("smoke test failed")
)

// HTTPError reports a response with a non-2xx, non-redirect status.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d %s fetching %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// NetworkError reports a transport failure: DNS, connection reset, timeout.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ExtractionError reports a failure while unpacking an archive.
type ExtractionError struct {
	Archive string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Archive, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// FileSystemError reports a permission or creation failure on a local path.
type FileSystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileSystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileSystemError) Unwrap() error {
	return e.Err
}

// VerificationError reports a failed checksum or signature check.
type VerificationError struct {
	Method VerificationMethod
	Err    error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s verification failed: %v", e.Method, e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// StageError is the terminal failure of an install: the stage that failed
// and its cause.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is worth another download attempt:
// transport failures and 5xx responses. Redirect loops, 4xx responses and
// local filesystem failures are not.
func IsRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}

	var netErr *NetworkError
	return errors.As(err, &netErr)
}
