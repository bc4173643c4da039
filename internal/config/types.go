package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/urstruelysv/autocommit-installer/internal/binary"
)

// DefaultVersion is the release installed when nothing overrides it.
// Set at build time with -ldflags "-X <module>/internal/config.DefaultVersion=vX.Y.Z".
var DefaultVersion = "v0.1.0"

// Config is the fully resolved installer configuration.
type Config struct {
	// Home holds the journal, the lock and the bin directory.
	Home string

	// RepoURL and Version select the release to install.
	RepoURL string
	Version string

	MaxRedirects int
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
	KeepArchive  bool

	Verify    VerifyConfig
	SmokeTest SmokeTestConfig
	Log       LogConfig

	// ManifestPath is the manifest that was applied, empty if none.
	ManifestPath string
}

// VerifyConfig enables the optional verifiers.
type VerifyConfig struct {
	// Checksums checks the archive against the release checksums.txt.
	Checksums bool
	// KeyringPath, when set, checks the archive's OpenPGP signature against this keyring.
	KeyringPath string
}

// Enabled reports whether any verifier is configured.
func (v VerifyConfig) Enabled() bool {
	return v.Checksums || v.KeyringPath != ""
}

// SmokeTestConfig controls the post-install run of the binary.
type SmokeTestConfig struct {
	Enabled bool
	Banner  string
	Timeout time.Duration
}

// LogConfig controls installer output.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

// Default returns the built-in configuration for home.
func Default(home string) *Config {
	return &Config{
		Home:         home,
		RepoURL:      binary.DefaultRepoURL,
		Version:      DefaultVersion,
		MaxRedirects: binary.DefaultMaxRedirects,
		Timeout:      binary.DefaultTimeout,
		Retries:      binary.DefaultRetries,
		RetryBackoff: binary.DefaultRetryBackoff,
		SmokeTest: SmokeTestConfig{
			Banner:  binary.DefaultSmokeBanner,
			Timeout: binary.DefaultSmokeTimeout,
		},
		Log: LogConfig{
			Level:  "info",
			Format: logFormatText,
		},
	}
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Home == "" {
		errs = append(errs, errors.New("home directory is required"))
	} else if !filepath.IsAbs(c.Home) {
		errs = append(errs, fmt.Errorf("home directory must be absolute: %s", c.Home))
	}

	if strings.TrimSpace(c.RepoURL) == "" {
		errs = append(errs, errors.New("repo_url is required"))
	}
	if err := binary.ValidateVersion(c.Version); err != nil {
		errs = append(errs, err)
	}

	if c.MaxRedirects < 0 {
		errs = append(errs, fmt.Errorf("max_redirects must not be negative, got %d", c.MaxRedirects))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries must not be negative, got %d", c.Retries))
	}
	if c.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("retry_backoff must not be negative, got %s", c.RetryBackoff))
	}
	if c.SmokeTest.Enabled && c.SmokeTest.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("smoke_test.timeout must be positive, got %s", c.SmokeTest.Timeout))
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != logFormatText && c.Log.Format != logFormatJSON {
		errs = append(errs, fmt.Errorf("log.format must be %q or %q, got %q", logFormatText, logFormatJSON, c.Log.Format))
	}

	return errors.Join(errs...)
}

// BinDir returns the directory the binary is installed into.
func (c *Config) BinDir() string {
	return filepath.Join(c.Home, "bin")
}
