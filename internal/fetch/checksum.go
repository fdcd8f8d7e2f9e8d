// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"
)

// DefaultChecksumAsset is the sha256sum-format file published with each release.
const DefaultChecksumAsset = "SHA2-256SUMS"

// ErrChecksumMismatch is wrapped by DigestMismatchError.
var ErrChecksumMismatch = errors.New("checksum mismatch")

type (
	// Sums maps release asset names to lowercase hex SHA-256 digests.
	Sums map[string]string

	// DigestMismatchError reports a download whose bytes do not hash to the
	// published digest.
	DigestMismatchError struct {
		Asset string
		Want  string
		Got   string
	}

	// digestWriter hashes everything written through it.
	digestWriter struct {
		w io.Writer
		h hash.Hash
	}
)

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("%s: sha256 is %s, release lists %s", e.Asset, e.Got, e.Want)
}

// Unwrap returns ErrChecksumMismatch.
func (e *DigestMismatchError) Unwrap() error { return ErrChecksumMismatch }

// ParseSums reads sha256sum output ("<hex>  <name>" or "<hex> *<name>").
// Malformed lines are ignored; a file without a single usable line is an
// error.
func ParseSums(r io.Reader) (Sums, error) {
	sums := Sums{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		digest, name, ok := strings.Cut(strings.TrimSpace(sc.Text()), " ")
		if !ok || len(digest) != sha256.Size*2 {
			continue
		}
		if _, err := hex.DecodeString(digest); err != nil {
			continue
		}
		name = strings.TrimPrefix(strings.TrimSpace(name), "*")
		if name != "" {
			sums[name] = strings.ToLower(digest)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading checksum file: %w", err)
	}
	if len(sums) == 0 {
		return nil, errors.New("checksum file lists no assets")
	}
	return sums, nil
}

func newDigestWriter(w io.Writer) *digestWriter {
	return &digestWriter{w: w, h: sha256.New()}
}

func (d *digestWriter) Write(p []byte) (int, error) {
	n, err := d.w.Write(p)
	_, _ = d.h.Write(p[:n]) // hash.Hash writes never fail
	return n, err
}

// Sum returns the lowercase hex digest of the bytes written so far.
func (d *digestWriter) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// check compares the written bytes against want; an empty want always passes.
func (d *digestWriter) check(asset, want string) error {
	if want == "" {
		return nil
	}
	if got := d.Sum(); got != want {
		return &DigestMismatchError{Asset: asset, Want: want, Got: got}
	}
	return nil
}
