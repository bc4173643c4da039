package binary

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/urstruelysv/autocommit-installer/internal/platform"
)

const (
	// DefaultSmokeBanner is printed by autocommit-cli --help.
	DefaultSmokeBanner = "Welcome to autocommit-cli!"
	// DefaultSmokeTimeout bounds a smoke test run.
	DefaultSmokeTimeout = 30 * time.Second
)

// finalize checks that the extracted binary is a regular file, not a link,
// and, for non-windows targets, makes it executable. It reports whether the
// file is executable afterwards.
func finalize(path string, target platform.Identity) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, &FileSystemError{Op: "stat", Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return false, &FileSystemError{Op: "stat", Path: path, Err: fmt.Errorf("not a regular file (mode %s)", info.Mode())}
	}

	// Windows binaries rely on the .exe extension instead of a permission bit.
	if target.IsWindows() {
		return true, nil
	}

	if err := SetExecutable(path); err != nil {
		return false, &FileSystemError{Op: "chmod", Path: path, Err: err}
	}

	info, err = os.Stat(path)
	if err != nil {
		return false, &FileSystemError{Op: "stat", Path: path, Err: err}
	}
	return runtime.GOOS == "windows" || info.Mode().Perm()&0o111 != 0, nil
}

// SetExecutable sets executable permissions on a file
func SetExecutable(path string) error {
	// Set permissions to 0755 (rwxr-xr-x)
	if err := os.Chmod(path, 0o755); err != nil {
		return fmt.Errorf("set executable: %w", err)
	}
	return nil
}

// SmokeTest runs the installed binary and checks its output.
type SmokeTest struct {
	Args    []string      // defaults to --help
	Banner  string        // required substring of the combined output; empty accepts any output
	Timeout time.Duration // defaults to DefaultSmokeTimeout
}

// Run executes binaryPath. A non-zero exit or missing banner fails with
// ErrSmokeTestFailed.
func (s *SmokeTest) Run(ctx context.Context, binaryPath string) error {
	args := s.Args
	if len(args) == 0 {
		args = []string{"--help"}
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultSmokeTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, binaryPath, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrSmokeTestFailed, binaryPath, strings.Join(args, " "), err)
	}
	if s.Banner != "" && !strings.Contains(string(out), s.Banner) {
		return fmt.Errorf("%w: output of %s does not contain %q", ErrSmokeTestFailed, binaryPath, s.Banner)
	}

	return nil
}
