package security

import (
	"strings"
	"testing"
)

func testDigester(t *testing.T) *SecretDigester {
	t.Helper()
	d, err := NewSecretDigester([]byte(strings.Repeat("k", 32)))
	if err != nil {
		t.Fatalf("NewSecretDigester: %v", err)
	}
	return d
}

func TestSecretDigester_Deterministic(t *testing.T) {
	d := testDigester(t)
	secret := "opaque-secret-123"

	d1 := d.Digest(secret)
	d2 := d.Digest(secret)
	if d1 != d2 {
		t.Errorf("Digest not deterministic: %q vs %q", d1, d2)
	}
	if len(d1) != 64 {
		t.Errorf("digest length = %d, want 64 (HMAC-SHA256 hex)", len(d1))
	}
}

func TestSecretDigester_KeyedDigestsDiffer(t *testing.T) {
	d1, err := NewSecretDigester([]byte(strings.Repeat("a", 32)))
	if err != nil {
		t.Fatalf("NewSecretDigester: %v", err)
	}
	d2, err := NewSecretDigester([]byte(strings.Repeat("b", 32)))
	if err != nil {
		t.Fatalf("NewSecretDigester: %v", err)
	}
	if d1.Digest("same-secret") == d2.Digest("same-secret") {
		t.Error("digests under different keys should differ")
	}
}

func TestSecretDigester_DifferentSecrets(t *testing.T) {
	d := testDigester(t)
	if d.Digest("secret-1") == d.Digest("secret-2") {
		t.Error("different secrets produced the same digest")
	}
}

func TestSecretDigester_Equal(t *testing.T) {
	d := testDigester(t)
	stored := d.Digest("the-secret")

	if !d.Equal("the-secret", stored) {
		t.Error("Equal should match the correct secret")
	}
	if d.Equal("wrong-secret", stored) {
		t.Error("Equal should reject an incorrect secret")
	}
	if d.Equal("the-secret", "a"+stored) {
		t.Error("Equal should reject a digest of different length")
	}
}

func TestNewSecretDigester_WeakKeyRejected(t *testing.T) {
	if _, err := NewSecretDigester([]byte("short")); err != ErrWeakDigestKey {
		t.Errorf("short key: want ErrWeakDigestKey, got %v", err)
	}
}

func TestNewRefreshSecret(t *testing.T) {
	s1, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("NewRefreshSecret: %v", err)
	}
	if len(s1) != RefreshSecretBytes*2 {
		t.Errorf("secret length = %d, want %d hex chars", len(s1), RefreshSecretBytes*2)
	}
	s2, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("NewRefreshSecret: %v", err)
	}
	if s1 == s2 {
		t.Error("two generated secrets should not collide")
	}
}
