// Package domain defines the Session record and its revocation vocabulary.
package domain

import (
	"errors"
	"time"
)

// Revocation reasons. These are stored verbatim and appear in security events,
// so they form a stable vocabulary.
const (
	ReasonRotation         = "rotation"
	ReasonLogout           = "logout"
	ReasonLogoutAll        = "logout-all"
	ReasonExpired          = "expired"
	ReasonSessionLimit     = "session-limit-exceeded"
	ReasonReuseDetected    = "reuse-detected"
	ReasonAdmin            = "admin"
	ReasonAccountSuspended = "account-suspended"
)

// Session is one authentication session per device/login. A rotation replaces
// the whole record: the predecessor is revoked with ReasonRotation and the
// successor points back at it through PrevSessionID.
type Session struct {
	ID            string
	SubjectID     string
	RefreshDigest string // keyed digest of the active refresh secret; never the plaintext
	Fingerprint   string // optional device fingerprint
	Origin        string // optional masked network origin
	Agent         string // optional client agent
	CreatedAt     time.Time
	ExpiresAt     time.Time
	LastUsedAt    *time.Time
	RevokedAt     *time.Time // nil when not revoked
	RevokedReason string     // set iff RevokedAt is set
	Suspicious    bool
	PrevSessionID string // weak lineage pointer; empty for a chain root
}

// Revoked reports whether the session has been revoked.
func (s *Session) Revoked() bool {
	return s.RevokedAt != nil
}

// Expired reports whether the session's own validity window has passed at t.
func (s *Session) Expired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// Live reports whether the session is usable at t: not revoked and not expired.
func (s *Session) Live(t time.Time) bool {
	return !s.Revoked() && !s.Expired(t)
}

// Validate checks the session's structural invariants before persistence.
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session: id is required")
	}
	if s.SubjectID == "" {
		return errors.New("session: subject is required")
	}
	if s.RefreshDigest == "" {
		return errors.New("session: refresh digest is required")
	}
	if !s.ExpiresAt.After(s.CreatedAt) {
		return errors.New("session: expiry must be after creation")
	}
	if s.RevokedAt != nil && s.RevokedAt.Before(s.CreatedAt) {
		return errors.New("session: revocation must not precede creation")
	}
	if s.PrevSessionID == s.ID && s.ID != "" && s.PrevSessionID != "" {
		return errors.New("session: must not reference itself as predecessor")
	}
	return nil
}
