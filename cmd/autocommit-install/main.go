package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/urstruelysv/autocommit-installer/internal/binary"
	"github.com/urstruelysv/autocommit-installer/internal/config"
	"github.com/urstruelysv/autocommit-installer/internal/shell"
)

// Version is set at build time using ldflags
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the root command and returns the process exit code.
func run(ctx context.Context, stdout, stderr io.Writer) int {
	err := newRootCommand(stdout, stderr).ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitCode(err)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "autocommit-install",
		Short: "Install the autocommit-cli binary for this platform",
		Long: `autocommit-install downloads the autocommit-cli release archive for the
running OS and architecture, extracts it into $AUTOCOMMIT_HOME/bin and makes
the binary executable.

Configuration comes from $AUTOCOMMIT_HOME/install.lua (or $AUTOCOMMIT_CONFIG)
and AUTOCOMMIT_* environment variables.`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return install(cmd.Context(), stdout, stderr)
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	return rootCmd
}

func install(ctx context.Context, stdout, stderr io.Writer) error {
	cfg, err := config.Load(ctx, config.LoadOptions{})
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(stderr, cfg.Log)
	if err != nil {
		return err
	}
	if cfg.ManifestPath != "" {
		logger.Debug("loaded install manifest", "path", cfg.ManifestPath)
	}

	installer, err := newInstaller(cfg, logger)
	if err != nil {
		return err
	}

	installed, err := installer.Install(ctx)
	if err != nil {
		return err
	}

	logger.Info("installed autocommit-cli",
		"version", installed.Version,
		"platform", installed.Platform,
		"executable", installed.Executable,
	)
	fmt.Fprintln(stdout, installed.Path)

	pathHint(ctx, logger, installer.BinDir(), os.Getenv("PATH"))
	return nil
}

// pathHint tells the user how to put dir on PATH when it is missing.
func pathHint(ctx context.Context, logger *log.Logger, dir, pathList string) {
	if shell.OnPath(dir, pathList) {
		return
	}

	detected := shell.NewDetector().DetectShell(ctx)
	line, err := shell.PathLine(detected.Shell, dir)
	if err != nil {
		logger.Warn("install directory is not on PATH", "dir", dir)
		return
	}

	home, err := os.UserHomeDir()
	if err != nil {
		logger.Warn("install directory is not on PATH", "dir", dir, "line", line)
		return
	}
	rcFile, err := shell.RCFilePath(detected.Shell, home)
	if err != nil || rcFile == "" {
		logger.Warn("install directory is not on PATH", "dir", dir, "line", line)
		return
	}
	logger.Warn("install directory is not on PATH; add this line to "+rcFile, "shell", detected.Shell, "line", line)
}

// newInstaller wires the configured fetcher, verifiers and smoke test into
// an installer.
func newInstaller(cfg *config.Config, logger *log.Logger) (*binary.Installer, error) {
	fetcher := binary.NewFetcher(
		binary.WithUserAgent("autocommit-install/"+Version),
		binary.WithMaxRedirects(cfg.MaxRedirects),
		binary.WithTimeout(cfg.Timeout),
		binary.WithFetcherLogger(logger),
	)

	opts := binary.Options{
		Home:         cfg.Home,
		RepoURL:      cfg.RepoURL,
		Version:      cfg.Version,
		Retries:      cfg.Retries,
		RetryBackoff: cfg.RetryBackoff,
		KeepArchive:  cfg.KeepArchive,
		Fetcher:      fetcher,
		Extractor:    binary.NewExtractor(binary.WithExtractorLogger(logger)),
		Verifier:     newVerifier(cfg, fetcher),
		Logger:       logger,
		OnStage: func(stage binary.Stage) {
			if stage != binary.StageDone {
				logger.Info(stage.String() + "...")
			}
		},
	}
	if cfg.SmokeTest.Enabled {
		opts.SmokeTest = &binary.SmokeTest{
			Banner:  cfg.SmokeTest.Banner,
			Timeout: cfg.SmokeTest.Timeout,
		}
	}

	return binary.NewInstaller(opts)
}

// newVerifier returns nil when no verification is configured.
func newVerifier(cfg *config.Config, fetcher *binary.Fetcher) binary.Verifier {
	if !cfg.Verify.Enabled() {
		return nil
	}

	var chain binary.ChainVerifier
	if cfg.Verify.Checksums {
		chain = append(chain, binary.NewChecksumVerifier(fetcher, cfg.BinDir()))
	}
	if cfg.Verify.KeyringPath != "" {
		chain = append(chain, binary.NewSignatureVerifier(fetcher, cfg.Verify.KeyringPath, cfg.BinDir()))
	}
	return chain
}
