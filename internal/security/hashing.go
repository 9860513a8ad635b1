package security

import (
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies login passwords using bcrypt. Callers
// must not log or persist plaintext passwords.
type PasswordHasher struct {
	Cost int
}

// NewPasswordHasher returns a PasswordHasher with the given bcrypt cost (4–31).
// Cost 12 is a reasonable default for interactive login.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{Cost: cost}
}

// Hash produces a bcrypt hash of password suitable for storage.
func (h *PasswordHasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies password against the stored hash in constant time.
// Returns nil on match; bcrypt.ErrMismatchedHashAndPassword or another
// error otherwise.
func (h *PasswordHasher) Compare(hash string, password []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), password)
}
