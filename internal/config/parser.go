package config

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/urstruelysv/autocommit-installer/internal/platform"
)

// Parser evaluates Lua install manifests with platform detection.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a new manifest parser with the given platform detector.
// A nil detector leaves the platform table undefined.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseFile evaluates the manifest at path and applies it on top of base.
func (p *Parser) ParseFile(ctx context.Context, path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	cfg, err := p.ParseString(ctx, string(data), base)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	cfg.ManifestPath = path
	return cfg, nil
}

// ParseString evaluates manifest code and returns a copy of base with the
// values of the global "install" table applied.
func (p *Parser) ParseString(ctx context.Context, luaCode string, base *Config) (*Config, error) {
	L, err := newSandboxedVM(ctx)
	if err != nil {
		return nil, err
	}
	defer L.Close()

	if p.detector != nil {
		platformInfo, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, platformInfo); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ParseError{
			Message: "Lua error",
			Detail:  err.Error(),
		}
	}

	cfg := *base
	if err := extractConfig(L, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseError represents a manifest error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error or offending field)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractConfig applies the global "install" table to cfg.
func extractConfig(L *lua.LState, cfg *Config) error {
	installVal := L.GetGlobal(luaGlobalInstall)
	if installVal.Type() != lua.LTTable {
		return &ParseError{
			Message: "missing or invalid 'install' table",
			Detail:  fmt.Sprintf("expected table, got %s", installVal.Type()),
		}
	}

	r := newTableReader(installVal.(*lua.LTable), luaGlobalInstall)
	r.checkKeys(luaFieldRepoURL, luaFieldVersion, luaFieldMaxRedirects, luaFieldTimeout,
		luaFieldRetries, luaFieldRetryBackoff, luaFieldKeepArchive, luaFieldVerify,
		luaFieldSmokeTest, luaFieldLog)

	r.string(luaFieldRepoURL, &cfg.RepoURL)
	r.string(luaFieldVersion, &cfg.Version)
	r.int(luaFieldMaxRedirects, &cfg.MaxRedirects)
	r.duration(luaFieldTimeout, &cfg.Timeout)
	r.int(luaFieldRetries, &cfg.Retries)
	r.duration(luaFieldRetryBackoff, &cfg.RetryBackoff)
	r.bool(luaFieldKeepArchive, &cfg.KeepArchive)

	if verify := r.sub(luaFieldVerify); verify != nil {
		verify.checkKeys(luaFieldChecksums, luaFieldKeyring)
		verify.bool(luaFieldChecksums, &cfg.Verify.Checksums)
		verify.string(luaFieldKeyring, &cfg.Verify.KeyringPath)
	}

	if smoke := r.sub(luaFieldSmokeTest); smoke != nil {
		smoke.checkKeys(luaFieldEnabled, luaFieldBanner, luaFieldTimeout)
		smoke.bool(luaFieldEnabled, &cfg.SmokeTest.Enabled)
		smoke.string(luaFieldBanner, &cfg.SmokeTest.Banner)
		smoke.duration(luaFieldTimeout, &cfg.SmokeTest.Timeout)
	}

	if logTable := r.sub(luaFieldLog); logTable != nil {
		logTable.checkKeys(luaFieldLevel, luaFieldFormat)
		logTable.string(luaFieldLevel, &cfg.Log.Level)
		logTable.string(luaFieldFormat, &cfg.Log.Format)
	}

	return r.firstErr()
}

// tableReader copies typed fields out of a Lua table. Absent (nil) fields
// leave the destination untouched, which is what platform conditionals such
// as platform.when(false, x) produce. Readers for nested tables share one
// error slot and only the first error is kept.
type tableReader struct {
	table *lua.LTable
	path  string
	errs  *readErr
}

type readErr struct {
	err error
}

func newTableReader(table *lua.LTable, path string) *tableReader {
	return &tableReader{table: table, path: path, errs: &readErr{}}
}

func (r *tableReader) fail(field, format string, args ...interface{}) {
	if r.errs.err != nil {
		return
	}
	r.errs.err = &ParseError{
		Message: "invalid manifest value",
		Detail:  fmt.Sprintf("%s.%s: %s", r.path, field, fmt.Sprintf(format, args...)),
	}
}

func (r *tableReader) firstErr() error {
	return r.errs.err
}

func (r *tableReader) get(field string) lua.LValue {
	if r.errs.err != nil {
		return lua.LNil
	}
	return r.table.RawGetString(field)
}

func (r *tableReader) checkKeys(allowed ...string) {
	known := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		known[k] = true
	}

	var unknown []string
	r.table.ForEach(func(key, _ lua.LValue) {
		if key.Type() != lua.LTString || !known[key.String()] {
			unknown = append(unknown, key.String())
		}
	})
	if len(unknown) > 0 {
		sort.Strings(unknown)
		r.fail(unknown[0], "unknown field (allowed: %s)", strings.Join(allowed, ", "))
	}
}

func (r *tableReader) sub(field string) *tableReader {
	switch v := r.get(field).(type) {
	case *lua.LNilType:
		return nil
	case *lua.LTable:
		return &tableReader{table: v, path: r.path + "." + field, errs: r.errs}
	default:
		r.fail(field, "expected table, got %s", v.Type())
		return nil
	}
}

func (r *tableReader) string(field string, dst *string) {
	switch v := r.get(field).(type) {
	case *lua.LNilType:
	case lua.LString:
		*dst = string(v)
	default:
		r.fail(field, "expected string, got %s", v.Type())
	}
}

func (r *tableReader) bool(field string, dst *bool) {
	switch v := r.get(field).(type) {
	case *lua.LNilType:
	case lua.LBool:
		*dst = bool(v)
	default:
		r.fail(field, "expected boolean, got %s", v.Type())
	}
}

func (r *tableReader) int(field string, dst *int) {
	switch v := r.get(field).(type) {
	case *lua.LNilType:
	case lua.LNumber:
		f := float64(v)
		if f != math.Trunc(f) {
			r.fail(field, "expected integer, got %v", f)
			return
		}
		*dst = int(f)
	default:
		r.fail(field, "expected integer, got %s", v.Type())
	}
}

// duration accepts a Go duration string or a number of seconds.
func (r *tableReader) duration(field string, dst *time.Duration) {
	switch v := r.get(field).(type) {
	case *lua.LNilType:
	case lua.LString:
		d, err := time.ParseDuration(string(v))
		if err != nil {
			r.fail(field, "%v", err)
			return
		}
		*dst = d
	case lua.LNumber:
		*dst = time.Duration(float64(v) * float64(time.Second))
	default:
		r.fail(field, "expected duration, got %s", v.Type())
	}
}
