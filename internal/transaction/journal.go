// Package transaction provides the install lock and the install journal that
// records each run so an interrupted install is detectable by the next one.
package transaction

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// JournalFileName is the name of the journal inside the install home.
const JournalFileName = "install.toml"

// State represents the current state of an install run.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Journal is the persisted record of one install run.
type Journal struct {
	SchemaVersion int       `toml:"schema_version"`
	ID            string    `toml:"id"`
	Version       string    `toml:"version"`
	OS            string    `toml:"os,omitempty"`
	Arch          string    `toml:"arch,omitempty"`
	Stage         string    `toml:"stage,omitempty"`
	State         State     `toml:"state"`
	ArchivePath   string    `toml:"archive_path,omitempty"`
	BinaryPath    string    `toml:"binary_path,omitempty"`
	StartedAt     time.Time `toml:"started_at"`
	FinishedAt    time.Time `toml:"finished_at,omitempty"`
	LastError     string    `toml:"last_error,omitempty"`
}

// NewJournal creates a pending journal for installing version.
func NewJournal(version string) *Journal {
	return &Journal{
		SchemaVersion: 1,
		ID:            uuid.New().String(),
		Version:       version,
		State:         StatePending,
		StartedAt:     time.Now().UTC(),
	}
}

// JournalPath returns the journal path inside dir.
func JournalPath(dir string) string {
	return filepath.Join(dir, JournalFileName)
}

// Begin marks the run as in progress.
func (j *Journal) Begin() {
	j.State = StateInProgress
	j.LastError = ""
}

// Advance records entry into stage.
func (j *Journal) Advance(stage string) {
	j.Stage = stage
}

// Complete marks the run as completed with the installed binary path.
func (j *Journal) Complete(binaryPath string) {
	j.State = StateCompleted
	j.BinaryPath = binaryPath
	j.FinishedAt = time.Now().UTC()
	j.LastError = ""
}

// Fail marks the run as failed at the current stage.
func (j *Journal) Fail(err error) {
	j.State = StateFailed
	j.FinishedAt = time.Now().UTC()
	if err != nil {
		j.LastError = err.Error()
	}
}

// Interrupted reports whether the run never reached a terminal state.
func (j *Journal) Interrupted() bool {
	return j.State == StateInProgress || j.State == StatePending
}

// Save writes the journal to dir atomically.
// Uses write-then-rename pattern for atomicity.
func (j *Journal) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(j); err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}

	finalPath := JournalPath(dir)
	tmpPath := finalPath + ".tmp"

	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write temporary journal file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename journal file: %w", err)
	}

	return nil
}

// LoadJournal reads the journal from dir. It returns (nil, nil) when no
// journal has been written yet.
func LoadJournal(dir string) (*Journal, error) {
	var j Journal
	if _, err := toml.DecodeFile(JournalPath(dir), &j); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode journal: %w", err)
	}

	return &j, nil
}
