// Package platform resolves the host operating system and CPU architecture
// to the canonical identity used in autocommit-cli release asset names.
//
// Resolution is a pure mapping over raw values (see Resolve). The Detector
// feeds it the values reported by the Go runtime and, on Linux, enriches the
// result with distribution details from gopsutil. Distribution data is only
// used for diagnostics and the Lua platform table; it never influences which
// asset gets downloaded.
package platform

import "context"

// Canonical operating system identifiers.
const (
	OSDarwin  = "darwin"
	OSLinux   = "linux"
	OSWindows = "windows"
)

// Canonical architecture identifiers.
const (
	ArchAMD64 = "amd64"
	ArchARM64 = "arm64"
)

// Linux distribution family constants.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Identity is the canonical (os, arch) pair a release asset is published for.
// Both fields always hold one of the constants above.
type Identity struct {
	OS   string // "darwin", "linux", "windows"
	Arch string // "amd64", "arm64"
}

// String returns the identity as "os/arch".
func (id Identity) String() string {
	return id.OS + "/" + id.Arch
}

// IsWindows returns true if the identity targets Windows.
func (id Identity) IsWindows() bool {
	return id.OS == OSWindows
}

// Info contains platform detection information.
type Info struct {
	Identity

	OSRaw    string // original GOOS or equivalent
	ArchRaw  string // original GOARCH (e.g., "x86_64", "aarch64")
	Platform string // distro ID (Linux only, e.g., "ubuntu", "arch")
	Family   string // canonical family (e.g., "debian", "rhel")
	Version  string // distro version (Linux only, e.g., "22.04")
}

// Distro contains Linux distribution information.
type Distro struct {
	ID      string
	Family  string
	Version string
}

// GetDistro returns distro information if this is a Linux platform.
// Returns nil for non-Linux platforms or if distro detection failed.
func (i *Info) GetDistro() *Distro {
	if i.OS != OSLinux || i.Platform == "" {
		return nil
	}
	return &Distro{
		ID:      i.Platform,
		Family:  i.Family,
		Version: i.Version,
	}
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == OSLinux
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == OSDarwin
}

// IsAppleSilicon returns true if running on Apple Silicon (macOS + arm64).
func (i *Info) IsAppleSilicon() bool {
	return i.OS == OSDarwin && i.Arch == ArchARM64
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}
