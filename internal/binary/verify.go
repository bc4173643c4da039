package binary

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// Verifier checks a downloaded archive before it is extracted.
type Verifier interface {
	Verify(ctx context.Context, archivePath string, ref *ReleaseRef) (*VerificationResult, error)
}

// ChecksumVerifier compares the archive's SHA256 against the release
// checksums.txt (sha256sum format).
type ChecksumVerifier struct {
	fetcher *Fetcher
	workDir string
}

// NewChecksumVerifier creates a checksum verifier that downloads the
// checksum manifest into workDir.
func NewChecksumVerifier(fetcher *Fetcher, workDir string) *ChecksumVerifier {
	return &ChecksumVerifier{fetcher: fetcher, workDir: workDir}
}

// Verify implements Verifier.
func (v *ChecksumVerifier) Verify(ctx context.Context, archivePath string, ref *ReleaseRef) (*VerificationResult, error) {
	checksumPath := filepath.Join(v.workDir, ChecksumsFileName)
	defer os.Remove(checksumPath)

	if _, err := v.fetcher.Fetch(ctx, ref.ChecksumURL(), checksumPath); err != nil {
		return nil, &VerificationError{Method: VerificationSHA256, Err: fmt.Errorf("download checksums: %w", err)}
	}

	if err := verifySHA256(archivePath, checksumPath, ref.AssetName()); err != nil {
		return nil, &VerificationError{Method: VerificationSHA256, Err: err}
	}

	return &VerificationResult{Methods: []VerificationMethod{VerificationSHA256}}, nil
}

// SignatureVerifier checks an OpenPGP detached signature ({asset}.sig)
// against a keyring file.
type SignatureVerifier struct {
	fetcher     *Fetcher
	keyringPath string
	workDir     string
}

// NewSignatureVerifier creates a signature verifier.
func NewSignatureVerifier(fetcher *Fetcher, keyringPath, workDir string) *SignatureVerifier {
	return &SignatureVerifier{fetcher: fetcher, keyringPath: keyringPath, workDir: workDir}
}

// Verify implements Verifier.
func (v *SignatureVerifier) Verify(ctx context.Context, archivePath string, ref *ReleaseRef) (*VerificationResult, error) {
	if !keyringExists(v.keyringPath) {
		return nil, &VerificationError{Method: VerificationOpenPGP, Err: fmt.Errorf("keyring %s is missing or empty", v.keyringPath)}
	}

	keyring, err := LoadKeyring(v.keyringPath)
	if err != nil {
		return nil, &VerificationError{Method: VerificationOpenPGP, Err: err}
	}

	signaturePath := filepath.Join(v.workDir, ref.AssetName()+".sig")
	defer os.Remove(signaturePath)

	if _, err := v.fetcher.Fetch(ctx, ref.SignatureURL(), signaturePath); err != nil {
		return nil, &VerificationError{Method: VerificationOpenPGP, Err: fmt.Errorf("download signature: %w", err)}
	}

	if err := verifySignature(keyring, archivePath, signaturePath); err != nil {
		return nil, &VerificationError{Method: VerificationOpenPGP, Err: err}
	}

	return &VerificationResult{Methods: []VerificationMethod{VerificationOpenPGP}}, nil
}

// ChainVerifier runs verifiers in order; all must pass.
type ChainVerifier []Verifier

// Verify implements Verifier.
func (c ChainVerifier) Verify(ctx context.Context, archivePath string, ref *ReleaseRef) (*VerificationResult, error) {
	combined := &VerificationResult{}
	for _, v := range c {
		result, err := v.Verify(ctx, archivePath, ref)
		if err != nil {
			return nil, err
		}
		combined.Methods = append(combined.Methods, result.Methods...)
	}
	return combined, nil
}

// verifySignature checks an armored or binary detached signature.
func verifySignature(keyring openpgp.EntityList, archivePath, signaturePath string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sigFile.Close()

	// Try armored first
	_, err = openpgp.CheckArmoredDetachedSignature(keyring, archiveFile, sigFile, nil)
	if err != nil {
		if _, seekErr := archiveFile.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind archive: %w", seekErr)
		}
		if _, seekErr := sigFile.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind signature: %w", seekErr)
		}
		_, err = openpgp.CheckDetachedSignature(keyring, archiveFile, sigFile, nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}

	return nil
}

// verifySHA256 compares the file's digest with the entry for assetName in
// the checksum file.
func verifySHA256(archivePath, checksumPath, assetName string) error {
	actual, err := calculateSHA256(archivePath)
	if err != nil {
		return fmt.Errorf("calculate checksum: %w", err)
	}

	expected, err := findChecksum(checksumPath, assetName)
	if err != nil {
		return fmt.Errorf("find checksum: %w", err)
	}

	// Compare checksums (case-insensitive)
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("checksum mismatch: actual %s, expected %s", actual, expected)
	}

	return nil
}

// calculateSHA256 calculates the SHA256 checksum of a file
func calculateSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

var errChecksumNotFound = errors.New("checksum not found")

// findChecksum finds the checksum for a specific filename in a checksum file
// Format: "abc123def456  filename.tar.gz" (a "*" marks binary mode)
func findChecksum(checksumPath, filename string) (string, error) {
	file, err := os.Open(checksumPath)
	if err != nil {
		return "", fmt.Errorf("open checksum file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		name := strings.TrimPrefix(parts[1], "*")
		if name == filename || filepath.Base(name) == filename {
			return parts[0], nil
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan checksum file: %w", err)
	}

	return "", fmt.Errorf("%w for %s", errChecksumNotFound, filename)
}
