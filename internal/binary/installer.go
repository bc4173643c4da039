package binary

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/urstruelysv/autocommit-installer/internal/platform"
	"github.com/urstruelysv/autocommit-installer/internal/transaction"
)

const (
	// DefaultRetries is the default number of download retries
	DefaultRetries = 3
	// DefaultRetryBackoff is the delay before the first retry; it doubles per attempt
	DefaultRetryBackoff = time.Second
	// MaxRetryBackoff caps the delay between retries
	MaxRetryBackoff = 2 * time.Minute
)

// Options configures an Installer.
type Options struct {
	// Home holds the journal and lock; binaries go to Home/bin. Required.
	Home string
	// RepoURL and Version select the release. Both required.
	RepoURL string
	Version string

	// Retries is the number of extra download attempts after a retryable failure.
	Retries      int
	RetryBackoff time.Duration
	// KeepArchive leaves the downloaded archive next to the binary.
	KeepArchive bool

	Detector  platform.Detector // defaults to the running host
	Fetcher   *Fetcher          // defaults to NewFetcher()
	Extractor *Extractor        // defaults to NewExtractor()
	Verifier  Verifier          // nil skips the verifying stage
	SmokeTest *SmokeTest        // nil skips the smoke test

	Logger *log.Logger
	// OnStage is called on every stage transition, Done included.
	OnStage func(Stage)
}

// Installer drives the install pipeline.
type Installer struct {
	home        string
	binDir      string
	repoURL     string
	version     string
	retries     int
	backoff     time.Duration
	keepArchive bool

	detector  platform.Detector
	fetcher   *Fetcher
	extractor *Extractor
	verifier  Verifier
	smokeTest *SmokeTest
	logger    *log.Logger
	onStage   func(Stage)

	journal *transaction.Journal
}

// NewInstaller creates a new installer
func NewInstaller(opts Options) (*Installer, error) {
	if opts.Home == "" {
		return nil, fmt.Errorf("home directory is required")
	}
	if opts.RepoURL == "" {
		return nil, fmt.Errorf("repository URL is required")
	}
	if err := ValidateVersion(opts.Version); err != nil {
		return nil, err
	}
	if opts.Retries < 0 {
		return nil, fmt.Errorf("retries must not be negative, got %d", opts.Retries)
	}

	inst := &Installer{
		home:        opts.Home,
		binDir:      filepath.Join(opts.Home, "bin"),
		repoURL:     opts.RepoURL,
		version:     opts.Version,
		retries:     opts.Retries,
		backoff:     opts.RetryBackoff,
		keepArchive: opts.KeepArchive,
		detector:    opts.Detector,
		fetcher:     opts.Fetcher,
		extractor:   opts.Extractor,
		verifier:    opts.Verifier,
		smokeTest:   opts.SmokeTest,
		logger:      opts.Logger,
		onStage:     opts.OnStage,
	}

	if inst.detector == nil {
		inst.detector = platform.NewDetector()
	}
	if inst.logger == nil {
		inst.logger = discardLogger()
	}
	if inst.fetcher == nil {
		inst.fetcher = NewFetcher(WithFetcherLogger(inst.logger))
	}
	if inst.extractor == nil {
		inst.extractor = NewExtractor(WithExtractorLogger(inst.logger))
	}
	if inst.backoff <= 0 {
		inst.backoff = DefaultRetryBackoff
	}

	return inst, nil
}

// BinDir returns the directory the binary is installed into.
func (i *Installer) BinDir() string {
	return i.binDir
}

// Install runs the pipeline from a clean slate and returns the installed
// binary. Failures are returned as *StageError, except for a held install
// lock which is returned before any stage runs.
func (i *Installer) Install(ctx context.Context) (*InstalledBinary, error) {
	lock, err := transaction.AcquireLock(ctx, i.home)
	if err != nil {
		return nil, fmt.Errorf("acquire install lock: %w", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			i.logger.Warn("failed to release install lock", "path", lock.Path(), "err", err)
		}
	}()

	i.discardInterrupted()

	i.journal = transaction.NewJournal(i.version)
	i.journal.Begin()
	i.saveJournal()

	installed, err := i.run(ctx)
	if err != nil {
		i.journal.Fail(err)
		i.saveJournal()
		return nil, err
	}

	i.journal.Complete(installed.Path)
	i.saveJournal()
	i.enter(StageDone)

	return installed, nil
}

func (i *Installer) run(ctx context.Context) (*InstalledBinary, error) {
	i.enter(StageResolvingPlatform)
	info, err := i.detector.Detect(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageResolvingPlatform, Err: err}
	}
	i.journal.OS, i.journal.Arch = info.OS, info.Arch
	i.logger.Info("resolved platform", "platform", info.Identity, "raw_arch", info.ArchRaw)

	i.enter(StageLocatingRelease)
	ref, err := Locate(i.repoURL, i.version, info.Identity)
	if err != nil {
		return nil, &StageError{Stage: StageLocatingRelease, Err: err}
	}

	i.enter(StageDownloading)
	if err := os.MkdirAll(i.binDir, 0o755); err != nil {
		return nil, &StageError{Stage: StageDownloading, Err: &FileSystemError{Op: "mkdir", Path: i.binDir, Err: err}}
	}
	archivePath := filepath.Join(i.binDir, ref.ArchiveFileName())
	i.journal.ArchivePath = archivePath
	i.saveJournal()

	result, err := i.download(ctx, ref.DownloadURL(), archivePath)
	if err != nil {
		return nil, &StageError{Stage: StageDownloading, Err: err}
	}
	i.logger.Info("downloaded release", "url", result.URL, "bytes", result.Bytes, "duration", result.Duration.Round(time.Millisecond))
	if !i.keepArchive {
		defer i.removeArchive(archivePath)
	}

	var verification *VerificationResult
	if i.verifier != nil {
		i.enter(StageVerifying)
		verification, err = i.verifier.Verify(ctx, archivePath, ref)
		if err != nil {
			return nil, &StageError{Stage: StageVerifying, Err: err}
		}
		i.logger.Info("verified archive", "methods", verification.String())
	}

	i.enter(StageExtracting)
	if err := i.extractor.Extract(archivePath, i.binDir); err != nil {
		return nil, &StageError{Stage: StageExtracting, Err: err}
	}

	i.enter(StageFinalizing)
	binaryPath := filepath.Join(i.binDir, ref.BinaryName())
	executable, err := finalize(binaryPath, ref.Platform)
	if err != nil {
		return nil, &StageError{Stage: StageFinalizing, Err: err}
	}
	if i.smokeTest != nil {
		if err := i.smokeTest.Run(ctx, binaryPath); err != nil {
			return nil, &StageError{Stage: StageFinalizing, Err: err}
		}
	}

	return &InstalledBinary{
		Path:         binaryPath,
		Executable:   executable,
		Version:      ref.Version,
		Platform:     ref.Platform,
		Verification: verification,
	}, nil
}

// download fetches with retries. Only network failures and 5xx responses
// are retried, with exponential backoff.
func (i *Installer) download(ctx context.Context, url, destPath string) (*FetchResult, error) {
	var lastErr error

	for attempt := 0; attempt <= i.retries; attempt++ {
		if attempt > 0 {
			backoff := backoffFor(i.backoff, attempt)
			i.logger.Warn("retrying download", "attempt", attempt, "backoff", backoff, "err", lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := i.fetcher.Fetch(ctx, url, destPath)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("download failed after %d retries: %w", i.retries, lastErr)
}

// backoffFor returns the delay before retry number attempt (1-based): base
// doubled per attempt, capped at MaxRetryBackoff or base when base is larger.
func backoffFor(base time.Duration, attempt int) time.Duration {
	limit := max(MaxRetryBackoff, base)
	backoff := base
	for n := 1; n < attempt && backoff < limit; n++ {
		backoff *= 2
	}
	return min(backoff, limit)
}

func (i *Installer) enter(stage Stage) {
	i.logger.Debug("entering stage", "stage", stage)
	if i.journal != nil && stage != StageDone {
		i.journal.Advance(stage.String())
	}
	if i.onStage != nil {
		i.onStage(stage)
	}
}

func (i *Installer) saveJournal() {
	if err := i.journal.Save(i.home); err != nil {
		i.logger.Warn("failed to write install journal", "err", err)
	}
}

// discardInterrupted removes the partial archive of a run that never
// reached a terminal state.
func (i *Installer) discardInterrupted() {
	prev, err := transaction.LoadJournal(i.home)
	if err != nil {
		i.logger.Warn("ignoring unreadable install journal", "err", err)
		return
	}
	if prev == nil || !prev.Interrupted() {
		return
	}

	i.logger.Warn("previous install was interrupted", "id", prev.ID, "version", prev.Version, "stage", prev.Stage)

	if prev.ArchivePath == "" || filepath.Dir(prev.ArchivePath) != i.binDir ||
		!strings.HasPrefix(filepath.Base(prev.ArchivePath), ArchiveBaseName+".") {
		return
	}
	for _, path := range []string{prev.ArchivePath, prev.ArchivePath + partSuffix} {
		if err := removeIfExists(path); err != nil {
			i.logger.Warn("failed to discard partial archive", "path", path, "err", err)
		}
	}
}

func (i *Installer) removeArchive(path string) {
	if err := removeIfExists(path); err != nil {
		i.logger.Warn("failed to remove archive", "path", path, "err", err)
	}
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}
