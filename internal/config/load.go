package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/urstruelysv/autocommit-installer/internal/platform"
)

// LoadOptions configures Load.
type LoadOptions struct {
	// Home overrides AUTOCOMMIT_HOME and the default ~/.autocommit.
	Home string
	// Detector feeds the manifest's platform table. Defaults to the host.
	Detector platform.Detector
	Logger   *log.Logger
}

// Load resolves the configuration: defaults, then the Lua manifest if one
// exists, then AUTOCOMMIT_* environment variables.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	env := newEnv()

	home, err := resolveHome(opts.Home, env.GetString(keyHome))
	if err != nil {
		return nil, err
	}
	cfg := Default(home)

	detector := opts.Detector
	if detector == nil {
		detector = platform.NewDetector()
	}

	manifest, explicit := filepath.Join(home, manifestFileName), false
	if path := env.GetString(keyConfig); path != "" {
		manifest, explicit = path, true
	}

	if _, statErr := os.Stat(manifest); statErr == nil {
		cfg, err = NewParser(detector).ParseFile(ctx, manifest, cfg)
		if err != nil {
			return nil, err
		}
		if opts.Logger != nil {
			opts.Logger.Debug("applied install manifest", "path", manifest)
		}
	} else if explicit || !errors.Is(statErr, os.ErrNotExist) {
		return nil, fmt.Errorf("manifest %s: %w", manifest, statErr)
	}

	if err := applyEnv(env, cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func resolveHome(explicit, fromEnv string) (string, error) {
	home := explicit
	if home == "" {
		home = fromEnv
	}
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locate home directory: %w", err)
		}
		home = filepath.Join(userHome, defaultHomeDirName)
	}

	abs, err := filepath.Abs(home)
	if err != nil {
		return "", fmt.Errorf("resolve home directory %s: %w", home, err)
	}
	return abs, nil
}
