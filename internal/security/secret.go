package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// RefreshSecretBytes is the entropy of an opaque refresh secret.
// 32 bytes = 64 hex chars on the wire.
const RefreshSecretBytes = 32

// ErrWeakDigestKey is returned when the digest key is shorter than 32 bytes.
// This is fatal at startup: a guessable key would let a storage-only
// compromise forge valid secret digests.
var ErrWeakDigestKey = errors.New("digest key must be at least 32 bytes")

// NewRefreshSecret returns a new opaque refresh secret, hex-encoded.
// The secret travels to the client; only its keyed digest is ever stored.
func NewRefreshSecret() (string, error) {
	b := make([]byte, RefreshSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// SecretDigester computes keyed, deterministic digests of refresh secrets
// for at-rest storage and equality lookup. The digest is HMAC-SHA256 over
// the secret, hex-encoded, so it has a fixed length and cannot be produced
// without the key.
type SecretDigester struct {
	key []byte
}

// NewSecretDigester returns a SecretDigester keyed with key.
// Returns ErrWeakDigestKey if key has fewer than 32 bytes.
func NewSecretDigester(key []byte) (*SecretDigester, error) {
	if len(key) < 32 {
		return nil, ErrWeakDigestKey
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &SecretDigester{key: k}, nil
}

// Digest returns the hex-encoded HMAC-SHA256 digest of secret.
// Deterministic: the same secret always yields the same digest.
func (d *SecretDigester) Digest(secret string) string {
	mac := hmac.New(sha256.New, d.key)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal reports whether the digest of secret matches storedDigest,
// comparing in constant time.
func (d *SecretDigester) Equal(secret, storedDigest string) bool {
	computed := d.Digest(secret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedDigest)) == 1
}
