package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// newEnv returns a viper instance bound to AUTOCOMMIT_* variables.
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// applyEnv overrides cfg with every AUTOCOMMIT_* variable that is set.
// Malformed values are errors, not silently zeroed.
func applyEnv(v *viper.Viper, cfg *Config) error {
	e := &envReader{v: v}

	e.string(keyRepoURL, &cfg.RepoURL)
	e.string(keyVersion, &cfg.Version)
	e.int(keyMaxRedirects, &cfg.MaxRedirects)
	e.duration(keyTimeout, &cfg.Timeout)
	e.int(keyRetries, &cfg.Retries)
	e.duration(keyRetryBackoff, &cfg.RetryBackoff)
	e.bool(keyKeepArchive, &cfg.KeepArchive)
	e.bool(keyVerifyChecksums, &cfg.Verify.Checksums)
	e.string(keyVerifyKeyring, &cfg.Verify.KeyringPath)
	e.bool(keySmokeEnabled, &cfg.SmokeTest.Enabled)
	e.string(keySmokeBanner, &cfg.SmokeTest.Banner)
	e.duration(keySmokeTimeout, &cfg.SmokeTest.Timeout)
	e.string(keyLogLevel, &cfg.Log.Level)
	e.string(keyLogFormat, &cfg.Log.Format)

	return e.err
}

// EnvName returns the environment variable that sets key.
func EnvName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

type envReader struct {
	v   *viper.Viper
	err error
}

func (e *envReader) lookup(key string) (interface{}, bool) {
	if e.err != nil || !e.v.IsSet(key) {
		return nil, false
	}
	return e.v.Get(key), true
}

func (e *envReader) fail(key string, err error) {
	e.err = fmt.Errorf("%s: %w", EnvName(key), err)
}

func (e *envReader) string(key string, dst *string) {
	if raw, ok := e.lookup(key); ok {
		*dst = cast.ToString(raw)
	}
}

func (e *envReader) int(key string, dst *int) {
	raw, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := cast.ToIntE(strings.TrimSpace(cast.ToString(raw)))
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = n
}

func (e *envReader) bool(key string, dst *bool) {
	raw, ok := e.lookup(key)
	if !ok {
		return
	}
	b, err := cast.ToBoolE(strings.TrimSpace(cast.ToString(raw)))
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	raw, ok := e.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(strings.TrimSpace(cast.ToString(raw)))
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = d
}
