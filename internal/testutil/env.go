// Package testutil provides utilities for testing the installer in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// installerEnv lists every variable the installer reads. SetupTestEnv
// blanks them so a developer's shell cannot leak into a test.
var installerEnv = []string{
	"AUTOCOMMIT_CONFIG",
	"AUTOCOMMIT_REPO_URL",
	"AUTOCOMMIT_VERSION",
	"AUTOCOMMIT_MAX_REDIRECTS",
	"AUTOCOMMIT_TIMEOUT",
	"AUTOCOMMIT_RETRIES",
	"AUTOCOMMIT_RETRY_BACKOFF",
	"AUTOCOMMIT_KEEP_ARCHIVE",
	"AUTOCOMMIT_VERIFY_CHECKSUMS",
	"AUTOCOMMIT_VERIFY_KEYRING",
	"AUTOCOMMIT_SMOKE_TEST_ENABLED",
	"AUTOCOMMIT_SMOKE_TEST_BANNER",
	"AUTOCOMMIT_SMOKE_TEST_TIMEOUT",
	"AUTOCOMMIT_LOG_LEVEL",
	"AUTOCOMMIT_LOG_FORMAT",
}

// SetupTestEnv points AUTOCOMMIT_HOME at a fresh temporary directory and
// clears the other AUTOCOMMIT_* variables. It returns the home directory.
//
// Cleanup is handled by t.TempDir and t.Setenv.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	home := filepath.Join(t.TempDir(), ".autocommit")
	if err := os.MkdirAll(home, 0o750); err != nil {
		t.Fatalf("failed to create test home %s: %v", home, err)
	}

	t.Setenv("AUTOCOMMIT_HOME", home)
	for _, name := range installerEnv {
		t.Setenv(name, "")
	}

	return home
}
