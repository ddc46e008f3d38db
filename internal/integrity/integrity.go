// Package integrity verifies downloaded and staged source files against declared digests.
package integrity

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
)

// Algorithm names a supported digest.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// Skip disables verification for one source.
const Skip = "SKIP"

// Verifier checks files against index-aligned digest lists.
type Verifier struct {
	SHA256Sums []string
	SHA512Sums []string
}

// MissingDigestError reports a source with no usable declared digest.
type MissingDigestError struct {
	File  string
	Index int
}

func (e *MissingDigestError) Error() string {
	return fmt.Sprintf("no digest declared for source %d (%s)", e.Index, e.File)
}

// MismatchError reports a file whose content does not match its declared digest.
type MismatchError struct {
	File      string
	Algorithm Algorithm
	Expected  string
	Computed  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s mismatch for %s: computed %s", e.Algorithm, e.File, e.Computed)
}

// Result describes a successful verification.
type Result struct {
	Algorithm Algorithm
	Digest    string
	Skipped   bool
}

// Algorithm returns the digest used for verification. SHA-512 wins when both are declared.
func (v Verifier) Algorithm() (Algorithm, bool) {
	switch {
	case len(v.SHA512Sums) > 0:
		return SHA512, true
	case len(v.SHA256Sums) > 0:
		return SHA256, true
	default:
		return "", false
	}
}

func (v Verifier) expected(index int) (Algorithm, string, bool) {
	alg, ok := v.Algorithm()
	if !ok {
		return "", "", false
	}
	sums := v.SHA256Sums
	if alg == SHA512 {
		sums = v.SHA512Sums
	}
	if index < 0 || index >= len(sums) {
		return alg, "", false
	}
	want := strings.TrimSpace(sums[index])
	return alg, want, want != ""
}

// Verify checks the file at path against the digest declared at index.
func (v Verifier) Verify(path string, index int) (Result, error) {
	alg, want, ok := v.expected(index)
	if !ok {
		missing := &MissingDigestError{File: path, Index: index}
		return Result{}, foundationerrors.WrapError(missing, foundationerrors.CategoryMissingDigest, "missing digest").
			Fatal().
			WithContext("file", path).
			WithContext("index", index).
			Build()
	}
	if want == Skip {
		return Result{Algorithm: alg, Skipped: true}, nil
	}

	got, err := Sum(path, alg)
	if err != nil {
		return Result{}, err
	}
	if !strings.EqualFold(got, want) {
		mismatch := &MismatchError{File: path, Algorithm: alg, Expected: want, Computed: got}
		return Result{}, foundationerrors.WrapError(mismatch, foundationerrors.CategoryDigestMismatch, "digest mismatch").
			Fatal().
			WithContext("file", path).
			WithContext("computed", got).
			Build()
	}
	return Result{Algorithm: alg, Digest: got}, nil
}

// Sum returns the lowercase hex digest of the complete content of the file at path.
func Sum(path string, alg Algorithm) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", foundationerrors.IOError("failed to open file for hashing").
			WithContext("path", path).
			WithCause(err).
			Build()
	}
	defer func() { _ = f.Close() }()

	var h hash.Hash
	switch alg {
	case SHA512:
		h = sha512.New()
	case SHA256:
		h = sha256.New()
	default:
		return "", foundationerrors.InternalError(fmt.Sprintf("unsupported digest %q", alg)).Build()
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", foundationerrors.IOError("failed to hash file").
			WithContext("path", path).
			WithCause(err).
			Build()
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
