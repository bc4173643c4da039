// Package binary downloads, verifies, extracts and installs the
// autocommit-cli release binary.
//
// # Pipeline
//
// An install runs as a strictly sequential stage machine:
//
//	ResolvingPlatform → LocatingRelease → Downloading → (Verifying) →
//	Extracting → Finalizing → Done
//
// Any failure stops the pipeline and is reported as a *StageError naming the
// stage and the cause. Verifying only runs when a Verifier is configured.
//
// # Downloads
//
// The Fetcher follows redirects itself, one GET per hop, up to a bounded hop
// count. Bodies stream into a ".part" file next to the destination that is
// renamed into place only after it has been synced and closed, so a failed or
// interrupted download never leaves a file at the destination path. The
// Fetcher never retries; the Installer retries network failures and 5xx
// responses with exponential backoff.
//
// # Usage
//
//	inst, err := binary.NewInstaller(binary.Options{
//	    Home:    "/home/user/.autocommit",
//	    RepoURL: binary.DefaultRepoURL,
//	    Version: "v0.1.0",
//	})
//	if err != nil {
//	    return err
//	}
//
//	installed, err := inst.Install(ctx)
//
// # Architecture
//
// The package is organized into several components:
//   - Installer: stage orchestration, retries, finalization, journal
//   - Fetcher: bounded redirect following and atomic streaming downloads
//   - Extractor: tar+gzip and zip extraction strategies
//   - Verifier: optional SHA256 checksum and OpenPGP signature checks
//   - ReleaseRef: release asset naming and URL construction
package binary
