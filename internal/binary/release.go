package binary

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/urstruelysv/autocommit-installer/internal/platform"
)

const (
	// DefaultRepoURL is the project that publishes autocommit-cli releases.
	DefaultRepoURL = "https://github.com/urstruelysv/autocommit-cli"

	// BinaryName is the executable name inside every release archive.
	BinaryName = "autocommit-cli"

	// ArchiveBaseName is the local file name a downloaded archive is saved under.
	ArchiveBaseName = "autocommit-cli-archive"

	// ChecksumsFileName is the checksum manifest published with each release.
	ChecksumsFileName = "checksums.txt"
)

// ReleaseRef fully determines the asset to download for one platform.
type ReleaseRef struct {
	RepoURL  string
	Version  string
	Platform platform.Identity
}

// Locate builds a ReleaseRef. It performs no network access.
func Locate(repoURL, version string, p platform.Identity) (*ReleaseRef, error) {
	repoURL = strings.TrimRight(strings.TrimSpace(repoURL), "/")
	u, err := url.Parse(repoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: repository URL %q: %v", ErrInvalidRelease, repoURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: repository URL %q must be an absolute http(s) URL", ErrInvalidRelease, repoURL)
	}

	if err := ValidateVersion(version); err != nil {
		return nil, err
	}

	canonical, err := platform.Resolve(p.OS, p.Arch)
	if err != nil {
		return nil, err
	}
	if canonical != p {
		return nil, fmt.Errorf("%w: platform %s is not canonical", ErrInvalidRelease, p)
	}

	return &ReleaseRef{
		RepoURL:  repoURL,
		Version:  version,
		Platform: p,
	}, nil
}

// ValidateVersion checks that version is a semantic version tag. A missing
// leading "v" is tolerated for validation only.
func ValidateVersion(version string) error {
	if version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidRelease)
	}
	normalized := version
	if !strings.HasPrefix(normalized, "v") {
		normalized = "v" + normalized
	}
	if !semver.IsValid(normalized) {
		return fmt.Errorf("%w: version %q is not a semantic version", ErrInvalidRelease, version)
	}
	return nil
}

// ArchiveExtension returns "zip" on windows and "tar.gz" everywhere else.
func (r *ReleaseRef) ArchiveExtension() string {
	if r.Platform.IsWindows() {
		return "zip"
	}
	return "tar.gz"
}

// AssetName returns the published asset name, e.g. autocommit-cli-linux-amd64.tar.gz.
func (r *ReleaseRef) AssetName() string {
	return fmt.Sprintf("%s-%s-%s.%s", BinaryName, r.Platform.OS, r.Platform.Arch, r.ArchiveExtension())
}

// ArchiveFileName returns the local name the downloaded archive is saved under.
func (r *ReleaseRef) ArchiveFileName() string {
	return ArchiveBaseName + "." + r.ArchiveExtension()
}

// BinaryName returns the executable name for the target platform.
func (r *ReleaseRef) BinaryName() string {
	if r.Platform.IsWindows() {
		return BinaryName + ".exe"
	}
	return BinaryName
}

func (r *ReleaseRef) releaseDir() string {
	return r.RepoURL + "/releases/download/" + r.Version
}

// DownloadURL returns {repo}/releases/download/{version}/{asset}.
func (r *ReleaseRef) DownloadURL() string {
	return r.releaseDir() + "/" + r.AssetName()
}

// ChecksumURL returns the URL of the release checksum manifest.
func (r *ReleaseRef) ChecksumURL() string {
	return r.releaseDir() + "/" + ChecksumsFileName
}

// SignatureURL returns the URL of the asset's detached signature.
func (r *ReleaseRef) SignatureURL() string {
	return r.DownloadURL() + ".sig"
}
