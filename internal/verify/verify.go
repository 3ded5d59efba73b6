// Package verify checks downloaded archives against digests and detached
// signatures declared by the package descriptor.
package verify

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/jedisct1/go-minisign"

	"github.com/rezpkg/oidnpkg/internal/logging"
)

// Method represents a verification method.
type Method int

const (
	MethodNone Method = iota
	MethodSHA256
	MethodPGP
	MethodMinisign
)

// String returns the string representation of the method.
func (m Method) String() string {
	switch m {
	case MethodSHA256:
		return "sha256"
	case MethodPGP:
		return "pgp"
	case MethodMinisign:
		return "minisign"
	default:
		return "none"
	}
}

var (
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrInvalidSignature = errors.New("signature verification failed")
)

// Verifier handles verification of downloaded archives.
type Verifier struct {
	logger logging.Logger
}

// NewVerifier creates a new verifier.
func NewVerifier(logger logging.Logger) *Verifier {
	return &Verifier{logger: logging.OrNop(logger)}
}

// SHA256File returns the lowercase hex SHA-256 digest of the file at path.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifySHA256 compares the digest of path with expected (hex, any case).
func (v *Verifier) VerifySHA256(path, expected string) error {
	expected = strings.ToLower(strings.TrimSpace(expected))
	if len(expected) != sha256.Size*2 {
		return fmt.Errorf("expected digest %q is not a SHA-256 hex string", expected)
	}

	actual, err := SHA256File(path)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual)
	}

	v.logger.Debug("checksum verified", "method", MethodSHA256.String(), "digest", actual)
	return nil
}

// VerifyPGP checks a detached OpenPGP signature. Both the signature and the
// keyring may be armored or binary.
func (v *Verifier) VerifyPGP(path, signaturePath string, keyring []byte) error {
	keys, err := readKeyRing(keyring)
	if err != nil {
		return err
	}

	signed, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer signed.Close()

	sig, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sig.Close()

	signer, err := openpgp.CheckArmoredDetachedSignature(keys, signed, sig, nil)
	if err != nil {
		if _, seekErr := signed.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind archive: %w", seekErr)
		}
		if _, seekErr := sig.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind signature: %w", seekErr)
		}
		signer, err = openpgp.CheckDetachedSignature(keys, signed, sig, nil)
	}
	if err != nil {
		return fmt.Errorf("%w: pgp: %v", ErrInvalidSignature, err)
	}

	v.logger.Debug("signature verified", "method", MethodPGP.String(), "key_id", fmt.Sprintf("%X", signer.PrimaryKey.KeyId))
	return nil
}

func readKeyRing(data []byte) (openpgp.EntityList, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("pgp keyring is empty")
	}
	keys, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		keys, err = openpgp.ReadKeyRing(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("read pgp keyring: %w", err)
	}
	return keys, nil
}

// VerifyMinisign checks a minisign signature file against a base64 public
// key (the second line of a minisign .pub file).
func (v *Verifier) VerifyMinisign(path, signaturePath, publicKey string) error {
	pubKey, err := minisign.NewPublicKey(strings.TrimSpace(publicKey))
	if err != nil {
		return fmt.Errorf("read minisign pubkey: %w", err)
	}

	sig, err := minisign.NewSignatureFromFile(signaturePath)
	if err != nil {
		return fmt.Errorf("read minisign signature: %w", err)
	}

	// #nosec G304 -- path is the archive this process just downloaded
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}

	valid, err := pubKey.Verify(content, sig)
	if err != nil {
		return fmt.Errorf("%w: minisign: %v", ErrInvalidSignature, err)
	}
	if !valid {
		return fmt.Errorf("%w: minisign", ErrInvalidSignature)
	}

	v.logger.Debug("signature verified", "method", MethodMinisign.String(), "trusted_comment", strings.TrimPrefix(sig.TrustedComment, "trusted comment: "))
	return nil
}
