package binary

import (
	"strings"
	"time"

	"github.com/urstruelysv/autocommit-installer/internal/platform"
)

// Stage is a step of the install pipeline.
type Stage int

const (
	StageResolvingPlatform Stage = iota
	StageLocatingRelease
	StageDownloading
	StageVerifying
	StageExtracting
	StageFinalizing
	StageDone
)

var stageNames = map[Stage]string{
	StageResolvingPlatform: "resolving platform",
	StageLocatingRelease:   "locating release",
	StageDownloading:       "downloading",
	StageVerifying:         "verifying",
	StageExtracting:        "extracting",
	StageFinalizing:        "finalizing",
	StageDone:              "done",
}

// String returns the human-readable stage name.
func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// DownloadTask is a single fetch. URL is replaced as redirects are followed.
type DownloadTask struct {
	URL             string
	DestinationPath string
}

// FetchResult describes a completed download.
type FetchResult struct {
	URL       string // final URL after redirects
	Path      string
	Bytes     int64
	Redirects int
	Duration  time.Duration
}

// VerificationMethod indicates how an archive was verified.
type VerificationMethod int

const (
	// VerificationNone indicates no verification was configured
	VerificationNone VerificationMethod = iota
	// VerificationSHA256 indicates SHA256 checksum verification was used
	VerificationSHA256
	// VerificationOpenPGP indicates OpenPGP detached signature verification was used
	VerificationOpenPGP
)

// String returns the string representation of the verification method
func (v VerificationMethod) String() string {
	switch v {
	case VerificationSHA256:
		return "SHA256"
	case VerificationOpenPGP:
		return "OpenPGP"
	case VerificationNone:
		return "None"
	default:
		return "Unknown"
	}
}

// VerificationResult lists the checks an archive passed.
type VerificationResult struct {
	Methods []VerificationMethod
}

// String joins the passed methods, e.g. "SHA256+OpenPGP".
func (r *VerificationResult) String() string {
	if r == nil || len(r.Methods) == 0 {
		return VerificationNone.String()
	}
	names := make([]string, len(r.Methods))
	for i, m := range r.Methods {
		names[i] = m.String()
	}
	return strings.Join(names, "+")
}

// InstalledBinary is the outcome of a successful install.
type InstalledBinary struct {
	Path         string
	Executable   bool
	Version      string
	Platform     platform.Identity
	Verification *VerificationResult
}
