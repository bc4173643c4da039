package config

// Lua schema field names and globals
const (
	luaGlobalInstall = "install"

	luaFieldRepoURL      = "repo_url"
	luaFieldVersion      = "version"
	luaFieldMaxRedirects = "max_redirects"
	luaFieldTimeout      = "timeout"
	luaFieldRetries      = "retries"
	luaFieldRetryBackoff = "retry_backoff"
	luaFieldKeepArchive  = "keep_archive"
	luaFieldVerify       = "verify"
	luaFieldChecksums    = "checksums"
	luaFieldKeyring      = "keyring"
	luaFieldSmokeTest    = "smoke_test"
	luaFieldEnabled      = "enabled"
	luaFieldBanner       = "banner"
	luaFieldLog          = "log"
	luaFieldLevel        = "level"
	luaFieldFormat       = "format"
)

// Environment keys. viper resolves each as AUTOCOMMIT_<KEY> with dots
// replaced by underscores.
const (
	envPrefix = "AUTOCOMMIT"

	keyHome            = "home"
	keyConfig          = "config"
	keyRepoURL         = "repo_url"
	keyVersion         = "version"
	keyMaxRedirects    = "max_redirects"
	keyTimeout         = "timeout"
	keyRetries         = "retries"
	keyRetryBackoff    = "retry_backoff"
	keyKeepArchive     = "keep_archive"
	keyVerifyChecksums = "verify.checksums"
	keyVerifyKeyring   = "verify.keyring"
	keySmokeEnabled    = "smoke_test.enabled"
	keySmokeBanner     = "smoke_test.banner"
	keySmokeTimeout    = "smoke_test.timeout"
	keyLogLevel        = "log.level"
	keyLogFormat       = "log.format"
)

const (
	manifestFileName   = "install.lua"
	defaultHomeDirName = ".autocommit"

	logFormatText = "text"
	logFormatJSON = "json"
)
