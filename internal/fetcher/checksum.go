package fetcher

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnverifiable marks hashes whose shape does not name a known digest.
var ErrUnverifiable = errors.New("hash format is not verifiable")

// digestFor picks the digest implied by the length of a hex hash.
func digestFor(expected string) (hash.Hash, error) {
	if _, err := hex.DecodeString(expected); err != nil {
		return nil, ErrUnverifiable
	}
	switch len(expected) {
	case sha256.Size * 2:
		return sha256.New(), nil
	case md5.Size * 2:
		return md5.New(), nil
	default:
		return nil, ErrUnverifiable
	}
}

// CalculateChecksum returns the hex digest of payload using the algorithm
// implied by expected.
func CalculateChecksum(payload []byte, expected string) (string, error) {
	h, err := digestFor(normalizeHash(expected))
	if err != nil {
		return "", err
	}
	if _, err := h.Write(payload); err != nil {
		return "", errors.Wrap(err, "failed to hash payload")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ValidateChecksum ensures payload matches expectedHash. Hashes that are not
// sha256 or md5 hex digests are accepted without checking.
func ValidateChecksum(payload []byte, expectedHash string) error {
	expected := normalizeHash(expectedHash)
	if expected == "" {
		return nil
	}

	actual, err := CalculateChecksum(payload, expected)
	if errors.Is(err, ErrUnverifiable) {
		return nil
	}
	if err != nil {
		return err
	}

	if actual != expected {
		return errors.Errorf("checksum mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}

func normalizeHash(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if i := strings.IndexByte(h, ':'); i >= 0 {
		h = h[i+1:]
	}
	return h
}
