package repository

import (
	"context"
	"errors"
	"time"

	"modelplane/authcore/internal/session/domain"
)

var (
	// ErrDigestConflict is returned by Create when another session (live or
	// retired) already holds the same refresh digest. Enforced by the storage
	// layer's unique index, not in process memory.
	ErrDigestConflict = errors.New("refresh digest already in use")
	// ErrAlreadyRotated is returned by Rotate when the predecessor was no
	// longer live, i.e. a concurrent rotation or revocation won the race.
	ErrAlreadyRotated = errors.New("session already rotated or revoked")
)

// Store defines persistence for sessions. All mutation paths that must be
// atomic across concurrent service instances (digest uniqueness, the
// revoke-on-rotation transition, FIFO cap eviction) are implemented with
// storage-layer constraints and conditional updates, never in-process locks.
type Store interface {
	// Create persists a new session. When the owning subject is at the
	// configured live-session cap, the oldest live sessions are revoked with
	// reason "session-limit-exceeded" first (FIFO eviction), in the same
	// transaction. Returns ErrDigestConflict on digest collision.
	Create(ctx context.Context, s *domain.Session) error
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// GetByDigest returns the session holding the given refresh digest,
	// live or retired, or nil if no session ever held it.
	GetByDigest(ctx context.Context, digest string) (*domain.Session, error)
	// Rotate atomically revokes the predecessor (reason "rotation") and
	// inserts its successor. Returns ErrAlreadyRotated when the predecessor
	// was not live anymore; the transition either fully completes or fully
	// fails.
	Rotate(ctx context.Context, predecessorID string, successor *domain.Session) error
	// Revoke marks the session revoked with the given reason. Revoking an
	// already-revoked session is a no-op (the original reason is kept).
	Revoke(ctx context.Context, id, reason string) error
	// RevokeAllForSubject revokes every live session of the subject, except
	// exceptID when non-empty. Returns the number of sessions revoked.
	RevokeAllForSubject(ctx context.Context, subjectID, reason, exceptID string) (int64, error)
	// CountLive returns the number of live (unrevoked, unexpired) sessions
	// for the subject.
	CountLive(ctx context.Context, subjectID string) (int, error)
	// ListLiveBySubject returns the subject's live sessions, oldest first.
	ListLiveBySubject(ctx context.Context, subjectID string) ([]*domain.Session, error)
	// Touch sets the session's last-used timestamp. Called on login and
	// rotation only, never from verification.
	Touch(ctx context.Context, id string, at time.Time) error
	// DeleteRevokedBefore removes sessions revoked before cutoff (retention
	// sweep) and returns the count deleted.
	DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// IsLive reports whether the session exists, is unrevoked, and is
	// unexpired. A pure read used by credential verification.
	IsLive(ctx context.Context, id string) (bool, error)
}
