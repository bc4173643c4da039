// Package config loads installer settings.
//
// Settings are layered, later layers winning:
//
//  1. Built-in defaults (Default).
//  2. An optional Lua manifest, {home}/install.lua or the file named by
//     AUTOCOMMIT_CONFIG. The manifest runs in a sandboxed gopher-lua VM with
//     a read-only "platform" table and must assign a global "install" table.
//  3. AUTOCOMMIT_* environment variables, read through viper.
//
// The result is validated before it is returned.
//
// # Manifest
//
//	install = {
//	    version = "v0.1.0",
//	    retries = platform.is_windows and 5 or 3,
//	    timeout = "2m",
//	    verify = { checksums = true },
//	    smoke_test = { enabled = true },
//	    log = { level = platform.when(platform.is_linux, "debug") },
//	}
//
// Unknown keys are rejected so typos surface instead of being ignored.
// Durations are Go duration strings ("90s", "5m") or a number of seconds.
package config
