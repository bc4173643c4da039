package config

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// NewLogger builds the installer logger from the log settings. JSON output
// is meant for CI, text output for terminals.
func NewLogger(w io.Writer, cfg LogConfig) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	opts := log.Options{
		Level:           level,
		Prefix:          "autocommit-install",
		ReportTimestamp: cfg.Format == logFormatJSON,
		Formatter:       log.TextFormatter,
	}
	if cfg.Format == logFormatJSON {
		opts.Formatter = log.JSONFormatter
	}

	return log.NewWithOptions(w, opts), nil
}
