package binary

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"        //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/ProtonMail/go-crypto/openpgp/armor"  //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/ProtonMail/go-crypto/openpgp/packet" //nolint:staticcheck // Using ProtonMail's maintained fork

	"github.com/urstruelysv/autocommit-installer/internal/platform"
)

// releaseServer serves fixed paths under /releases/download/v0.1.0/.
func releaseServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/r/releases/download/v0.1.0/")
		data, ok := files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(server.Close)
	return server
}

func testRef(t *testing.T, serverURL string) *ReleaseRef {
	t.Helper()
	ref, err := Locate(serverURL+"/r", "v0.1.0", platform.Identity{OS: "linux", Arch: "amd64"})
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	return ref
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// newSigner generates a throwaway signing key.
func newSigner(t *testing.T) *openpgp.Entity {
	t.Helper()
	entity, err := openpgp.NewEntity("Release Signer", "test", "release@example.com", &packet.Config{Algorithm: packet.PubKeyAlgoEdDSA})
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return entity
}

func writeArmoredKeyring(t *testing.T, path string, entity *openpgp.Entity) string {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("armor encode: %v", err)
	}
	if err := entity.Serialize(w); err != nil {
		t.Fatalf("serialize key: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close armor: %v", err)
	}
	return writeFixture(t, path, buf.Bytes())
}

func writeBinaryKeyring(t *testing.T, path string, entity *openpgp.Entity) string {
	t.Helper()
	var buf bytes.Buffer
	if err := entity.Serialize(&buf); err != nil {
		t.Fatalf("serialize key: %v", err)
	}
	return writeFixture(t, path, buf.Bytes())
}

func detachSign(t *testing.T, entity *openpgp.Entity, data []byte, armored bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	var err error
	if armored {
		err = openpgp.ArmoredDetachSign(&buf, entity, bytes.NewReader(data), nil)
	} else {
		err = openpgp.DetachSign(&buf, entity, bytes.NewReader(data), nil)
	}
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return buf.Bytes()
}

func TestChecksumVerifier(t *testing.T) {
	archive := []byte("archive bytes")
	asset := "autocommit-cli-linux-amd64.tar.gz"

	tests := []struct {
		name      string
		checksums string
		wantErr   string
	}{
		{
			name:      "match",
			checksums: sha256Hex(archive) + "  " + asset + "\n",
		},
		{
			name:      "match_uppercase_binary_mode",
			checksums: "deadbeef  other.zip\n" + strings.ToUpper(sha256Hex(archive)) + " *" + asset + "\n",
		},
		{
			name:      "mismatch",
			checksums: sha256Hex([]byte("other")) + "  " + asset + "\n",
			wantErr:   "checksum mismatch",
		},
		{
			name:      "missing_entry",
			checksums: sha256Hex(archive) + "  autocommit-cli-darwin-arm64.tar.gz\n",
			wantErr:   "checksum not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := releaseServer(t, map[string][]byte{"checksums.txt": []byte(tt.checksums)})
			dir := t.TempDir()
			archivePath := writeFixture(t, filepath.Join(dir, "autocommit-cli-archive.tar.gz"), archive)

			result, err := NewChecksumVerifier(NewFetcher(), dir).Verify(context.Background(), archivePath, testRef(t, server.URL))

			if tt.wantErr != "" {
				var verr *VerificationError
				if !errors.As(err, &verr) || verr.Method != VerificationSHA256 {
					t.Fatalf("expected SHA256 VerificationError, got %v", err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if result.String() != "SHA256" {
				t.Errorf("result = %s", result)
			}
			if _, err := os.Stat(filepath.Join(dir, ChecksumsFileName)); !os.IsNotExist(err) {
				t.Error("checksum manifest left behind")
			}
		})
	}
}

func TestChecksumVerifier_ManifestMissing(t *testing.T) {
	server := releaseServer(t, nil)
	dir := t.TempDir()
	archivePath := writeFixture(t, filepath.Join(dir, "a.tar.gz"), []byte("x"))

	_, err := NewChecksumVerifier(NewFetcher(), dir).Verify(context.Background(), archivePath, testRef(t, server.URL))

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected wrapped HTTPError{404}, got %v", err)
	}
	var verr *VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected VerificationError, got %v", err)
	}
}

func TestSignatureVerifier(t *testing.T) {
	signer := newSigner(t)
	stranger := newSigner(t)
	archive := []byte("signed archive bytes")
	sigName := "autocommit-cli-linux-amd64.tar.gz.sig"

	tests := []struct {
		name    string
		keyring func(t *testing.T, path string) string
		sig     []byte
		wantErr bool
	}{
		{
			name:    "armored_signature_armored_keyring",
			keyring: func(t *testing.T, p string) string { return writeArmoredKeyring(t, p, signer) },
			sig:     detachSign(t, signer, archive, true),
		},
		{
			name:    "binary_signature_binary_keyring",
			keyring: func(t *testing.T, p string) string { return writeBinaryKeyring(t, p, signer) },
			sig:     detachSign(t, signer, archive, false),
		},
		{
			name:    "wrong_key",
			keyring: func(t *testing.T, p string) string { return writeArmoredKeyring(t, p, stranger) },
			sig:     detachSign(t, signer, archive, true),
			wantErr: true,
		},
		{
			name:    "tampered_archive",
			keyring: func(t *testing.T, p string) string { return writeArmoredKeyring(t, p, signer) },
			sig:     detachSign(t, signer, []byte("original bytes"), true),
			wantErr: true,
		},
		{
			name:    "missing_keyring",
			keyring: func(t *testing.T, p string) string { return p },
			sig:     detachSign(t, signer, archive, true),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := releaseServer(t, map[string][]byte{sigName: tt.sig})
			dir := t.TempDir()
			archivePath := writeFixture(t, filepath.Join(dir, "autocommit-cli-archive.tar.gz"), archive)
			keyringPath := tt.keyring(t, filepath.Join(dir, "keys", "release.gpg"))

			verifier := NewSignatureVerifier(NewFetcher(), keyringPath, dir)
			result, err := verifier.Verify(context.Background(), archivePath, testRef(t, server.URL))

			if tt.wantErr {
				var verr *VerificationError
				if !errors.As(err, &verr) || verr.Method != VerificationOpenPGP {
					t.Fatalf("expected OpenPGP VerificationError, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if result.String() != "OpenPGP" {
				t.Errorf("result = %s", result)
			}
		})
	}
}

func TestChainVerifier(t *testing.T) {
	signer := newSigner(t)
	archive := []byte("archive")
	server := releaseServer(t, map[string][]byte{
		"checksums.txt": []byte(sha256Hex(archive) + "  autocommit-cli-linux-amd64.tar.gz\n"),
		"autocommit-cli-linux-amd64.tar.gz.sig": detachSign(t, signer, archive, true),
	})

	dir := t.TempDir()
	archivePath := writeFixture(t, filepath.Join(dir, "autocommit-cli-archive.tar.gz"), archive)
	keyringPath := writeArmoredKeyring(t, filepath.Join(dir, "release.asc"), signer)
	fetcher := NewFetcher()

	chain := ChainVerifier{
		NewChecksumVerifier(fetcher, dir),
		NewSignatureVerifier(fetcher, keyringPath, dir),
	}

	result, err := chain.Verify(context.Background(), archivePath, testRef(t, server.URL))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got := result.String(); got != "SHA256+OpenPGP" {
		t.Errorf("result = %q, want SHA256+OpenPGP", got)
	}

	t.Run("stops_at_first_failure", func(t *testing.T) {
		tampered := writeFixture(t, filepath.Join(t.TempDir(), "autocommit-cli-archive.tar.gz"), []byte("tampered"))
		_, err := chain.Verify(context.Background(), tampered, testRef(t, server.URL))

		var verr *VerificationError
		if !errors.As(err, &verr) || verr.Method != VerificationSHA256 {
			t.Fatalf("expected SHA256 VerificationError, got %v", err)
		}
	})
}

func TestLoadKeyring(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty_file", func(t *testing.T) {
		path := writeFixture(t, filepath.Join(dir, "empty.gpg"), nil)
		if _, err := LoadKeyring(path); err == nil {
			t.Fatal("expected error for empty keyring")
		}
		if keyringExists(path) {
			t.Error("keyringExists() = true for empty file")
		}
	})

	t.Run("garbage", func(t *testing.T) {
		path := writeFixture(t, filepath.Join(dir, "garbage.gpg"), []byte("not a key"))
		if _, err := LoadKeyring(path); err == nil {
			t.Fatal("expected error for garbage keyring")
		}
	})

	t.Run("armored", func(t *testing.T) {
		path := writeArmoredKeyring(t, filepath.Join(dir, "release.asc"), newSigner(t))
		keyring, err := LoadKeyring(path)
		if err != nil {
			t.Fatalf("LoadKeyring() error = %v", err)
		}
		if len(keyring) != 1 {
			t.Errorf("len(keyring) = %d, want 1", len(keyring))
		}
		if !keyringExists(path) {
			t.Error("keyringExists() = false")
		}
	})
}
