package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector from raw OS/arch values, normally the
// ones reported by the Go runtime.
type RealDetector struct {
	goos   string
	goarch string

	// platformInformation is a test seam for gopsutil distro detection.
	platformInformation func(ctx context.Context) (string, string, string, error)
}

// NewDetector creates a detector for the running host.
func NewDetector() Detector {
	return NewDetectorFor(runtime.GOOS, runtime.GOARCH)
}

// NewDetectorFor creates a detector that resolves the given raw values
// instead of the runtime's. Distro detection only runs when goos names the
// Linux host this process is running on.
func NewDetectorFor(goos, goarch string) Detector {
	return &RealDetector{
		goos:                goos,
		goarch:              goarch,
		platformInformation: host.PlatformInformationWithContext,
	}
}

// Detect resolves the raw values to an Identity and, on Linux, attaches
// distribution details.
//
// If gopsutil fails to detect the distribution the distro fields stay
// empty and detection still succeeds. A cancelled context is a hard failure.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	id, err := Resolve(d.goos, d.goarch)
	if err != nil {
		return nil, fmt.Errorf("platform detection failed: %w", err)
	}

	info := &Info{
		Identity: id,
		OSRaw:    d.goos,
		ArchRaw:  d.goarch,
	}

	if id.OS != OSLinux || runtime.GOOS != OSLinux || d.platformInformation == nil {
		return info, nil
	}

	platform, family, version, err := d.platformInformation(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
		return info, nil
	}

	if platform = normalizePlatform(platform); platform != "" {
		info.Platform = platform
		info.Family = mapFamily(family)
		info.Version = normalizePlatform(version)
	}

	return info, nil
}
