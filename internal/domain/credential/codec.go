package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	prefixBytes = 4
	secretBytes = 24
)

// IssuedKey is the result of generating a fresh API key. FullKey is shown to the
// caller exactly once; only Digest is ever persisted.
type IssuedKey struct {
	FullKey string
	Prefix  string
	Digest  string
}

// Issue generates a new opaque API key of the form "prefix.secret". The prefix
// is safe to display; the secret comes from crypto/rand and is never stored.
func Issue() (IssuedKey, error) {
	prefix, err := randomHex(prefixBytes)
	if err != nil {
		return IssuedKey{}, fmt.Errorf("failed to generate key prefix: %w", err)
	}
	secret, err := randomHex(secretBytes)
	if err != nil {
		return IssuedKey{}, fmt.Errorf("failed to generate key secret: %w", err)
	}

	fullKey := prefix + "." + secret
	return IssuedKey{
		FullKey: fullKey,
		Prefix:  prefix,
		Digest:  Digest(fullKey),
	}, nil
}

// Digest returns the hex-encoded SHA-256 digest of a presented key string.
// Lookups go through this so raw keys are never stored or logged.
func Digest(presented string) string {
	sum := sha256.Sum256([]byte(presented))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
