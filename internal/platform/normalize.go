package platform

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedPlatform is returned for an operating system no release is published for.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrUnsupportedArchitecture is returned for a CPU architecture no release is published for.
	ErrUnsupportedArchitecture = errors.New("unsupported architecture")
)

// osMap maps raw operating system names to canonical identifiers.
// "win32" is the name Node-style tooling reports for Windows.
var osMap = map[string]string{
	"darwin":  OSDarwin,
	"linux":   OSLinux,
	"windows": OSWindows,
	"win32":   OSWindows,
}

// archMap maps raw architecture names to canonical identifiers.
var archMap = map[string]string{
	"amd64":   ArchAMD64,
	"x64":     ArchAMD64,
	"x86_64":  ArchAMD64,
	"arm64":   ArchARM64,
	"aarch64": ArchARM64,
}

// familyMap maps distribution names to their canonical family names.
var familyMap = map[string]string{
	"debian":   FamilyDebian,
	"ubuntu":   FamilyDebian,
	"rhel":     FamilyRHEL,
	"centos":   FamilyRHEL,
	"rocky":    FamilyRHEL,
	"fedora":   FamilyFedora,
	"suse":     FamilySUSE,
	"opensuse": FamilySUSE,
	"arch":     FamilyArch,
	"manjaro":  FamilyArch,
	"alpine":   FamilyAlpine,
}

// Resolve maps a raw operating system and architecture name to an Identity.
// The OS is checked first; an unrecognized value is reported and never
// replaced by a fallback.
func Resolve(rawOS, rawArch string) (Identity, error) {
	osName, err := normalizeOS(rawOS)
	if err != nil {
		return Identity{}, err
	}

	arch, err := normalizeArch(rawArch)
	if err != nil {
		return Identity{}, err
	}

	return Identity{OS: osName, Arch: arch}, nil
}

func normalizeOS(raw string) (string, error) {
	if osName, ok := osMap[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return osName, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, raw)
}

func normalizeArch(raw string) (string, error) {
	if arch, ok := archMap[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return arch, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedArchitecture, raw)
}

// normalizePlatform converts platform IDs to lowercase for consistency.
func normalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

// mapFamily maps distribution family strings to canonical family names.
func mapFamily(family string) string {
	if canonical, ok := familyMap[normalizePlatform(family)]; ok {
		return canonical
	}
	return FamilyUnknown
}
