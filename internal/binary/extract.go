package binary

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// DefaultMaxEntrySize bounds the decompressed size of a single archive entry.
const DefaultMaxEntrySize int64 = 500 << 20

// extractFunc unpacks one archive format into destDir.
type extractFunc func(archivePath, destDir string) error

// Extractor handles archive extraction
type Extractor struct {
	maxEntrySize int64
	logger       *log.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMaxEntrySize overrides DefaultMaxEntrySize.
func WithMaxEntrySize(n int64) ExtractorOption {
	return func(e *Extractor) { e.maxEntrySize = n }
}

// WithExtractorLogger sets the logger.
func WithExtractorLogger(l *log.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor creates a new extractor
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		maxEntrySize: DefaultMaxEntrySize,
		logger:       discardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract unpacks archivePath into destDir, picking the strategy from the
// file suffix. An unrecognized suffix fails before destDir is touched.
// Existing files not present in the archive are left alone.
func (e *Extractor) Extract(archivePath, destDir string) error {
	extract, err := e.strategyFor(archivePath)
	if err != nil {
		return err
	}

	if err := extract(archivePath, destDir); err != nil {
		return &ExtractionError{Archive: archivePath, Err: err}
	}
	return nil
}

func (e *Extractor) strategyFor(archivePath string) (extractFunc, error) {
	name := strings.ToLower(filepath.Base(archivePath))
	switch {
	case strings.HasSuffix(name, ".zip"):
		return e.extractZip, nil
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return e.extractTarGz, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedArchiveType, filepath.Base(archivePath))
	}
}

// extractTarGz extracts a .tar.gz archive to a destination directory
func (e *Extractor) extractTarGz(archivePath, destDir string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}
		if err := checkParents(destDir, target, header.Name); err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}

		case tar.TypeReg:
			if header.Size > e.maxEntrySize {
				return fmt.Errorf("entry %s is %d bytes, limit is %d", header.Name, header.Size, e.maxEntrySize)
			}
			if err := e.writeFile(target, tarReader, fs.FileMode(header.Mode)); err != nil {
				return err
			}

		case tar.TypeSymlink:
			if err := checkSymlink(destDir, target, header.Linkname); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create parent dir for %s: %w", target, err)
			}
			if err := removeIfExists(target); err != nil {
				return fmt.Errorf("replace %s: %w", target, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("create symlink %s: %w", target, err)
			}

		case tar.TypeLink:
			if err := e.copyHardLink(destDir, target, header.Linkname); err != nil {
				return err
			}

		default:
			// Skip other types (char devices, block devices, etc.)
			e.logger.Warn("skipping tar entry", "name", header.Name, "type", string(header.Typeflag))
		}
	}
}

// extractZip extracts a .zip archive to a destination directory
func (e *Extractor) extractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	for _, file := range reader.File {
		target, err := safeJoin(destDir, file.Name)
		if err != nil {
			return err
		}
		if err := checkParents(destDir, target, file.Name); err != nil {
			return err
		}

		mode := file.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}

		case mode.IsRegular():
			if file.UncompressedSize64 > uint64(e.maxEntrySize) {
				return fmt.Errorf("entry %s is %d bytes, limit is %d", file.Name, file.UncompressedSize64, e.maxEntrySize)
			}
			if err := e.writeZipEntry(target, file); err != nil {
				return err
			}

		default:
			e.logger.Warn("skipping zip entry", "name", file.Name, "mode", mode)
		}
	}

	return nil
}

func (e *Extractor) writeZipEntry(target string, file *zip.File) error {
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", file.Name, err)
	}
	defer rc.Close()

	return e.writeFile(target, rc, file.Mode())
}

// copyHardLink materializes a tar hard link as a copy of an entry that was
// already extracted. The source must be a regular file inside destDir.
func (e *Extractor) copyHardLink(destDir, target, linkname string) error {
	source, err := safeJoin(destDir, linkname)
	if err != nil {
		return err
	}
	if err := checkParents(destDir, source, linkname); err != nil {
		return err
	}

	info, err := os.Lstat(source)
	if err != nil {
		return fmt.Errorf("hard link %s -> %s: %w", filepath.Base(target), linkname, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("hard link %s -> %s: target is not a regular file", filepath.Base(target), linkname)
	}

	sourceFile, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open %s: %w", source, err)
	}
	defer sourceFile.Close()

	return e.writeFile(target, sourceFile, info.Mode())
}

// writeFile streams r into target+".part" and renames it over target once
// it is complete, so a failed entry never replaces an existing file. Writes
// are capped at maxEntrySize bytes. Renaming replaces a symlink at target
// instead of writing through it.
func (e *Extractor) writeFile(target string, r io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}

	partPath := target + partSuffix
	if err := removeIfExists(partPath); err != nil {
		return fmt.Errorf("remove stale %s: %w", partPath, err)
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}

	// O_EXCL refuses to follow a symlink planted at the .part path.
	partFile, err := os.OpenFile(partPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("create file %s: %w", partPath, err)
	}

	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			partFile.Close()
			os.Remove(partPath)
		}
	}()

	n, err := io.Copy(partFile, io.LimitReader(r, e.maxEntrySize+1))
	if err != nil {
		return fmt.Errorf("write file %s: %w", target, err)
	}
	if n > e.maxEntrySize {
		return fmt.Errorf("entry %s exceeds %d bytes", filepath.Base(target), e.maxEntrySize)
	}

	if err := partFile.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", partPath, err)
	}
	if err := os.Rename(partPath, target); err != nil {
		return fmt.Errorf("rename %s: %w", target, err)
	}

	cleanupNeeded = false
	return nil
}

// safeJoin resolves an archive entry name under destDir and rejects names
// that escape it.
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(filepath.Clean(destDir), filepath.FromSlash(name))
	if !within(destDir, target) {
		return "", fmt.Errorf("illegal file path: %s", name)
	}
	return target, nil
}

// checkParents rejects an entry whose parent directories below destDir
// include a symlink, so no entry is ever written through a link, including
// one created earlier from the same archive.
func checkParents(destDir, target, name string) error {
	root := filepath.Clean(destDir)
	rel, err := filepath.Rel(root, filepath.Dir(target))
	if err != nil {
		return fmt.Errorf("illegal file path: %s", name)
	}
	if rel == "." {
		return nil
	}

	current := root
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("inspect %s: %w", current, err)
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("illegal file path: %s passes through symlink %s", name, part)
		}
	}
	return nil
}

// checkSymlink rejects links whose target leaves destDir. The link target is
// walked one component at a time against the files already on disk; passing
// through an existing symlink is rejected since its own target would decide
// where ".." leads.
func checkSymlink(destDir, target, linkname string) error {
	illegal := fmt.Errorf("illegal symlink %s -> %s", filepath.Base(target), linkname)
	if filepath.IsAbs(linkname) || filepath.VolumeName(linkname) != "" || strings.HasPrefix(linkname, "/") {
		return illegal
	}

	root := filepath.Clean(destDir)
	current := filepath.Dir(target)
	for _, part := range strings.Split(filepath.FromSlash(linkname), string(os.PathSeparator)) {
		switch part {
		case "", ".":
			continue
		case "..":
			current = filepath.Dir(current)
		default:
			current = filepath.Join(current, part)
			if info, err := os.Lstat(current); err == nil && info.Mode()&fs.ModeSymlink != 0 {
				return illegal
			}
		}
		if !within(root, current) {
			return illegal
		}
	}
	return nil
}

func within(root, path string) bool {
	root = filepath.Clean(root)
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}
