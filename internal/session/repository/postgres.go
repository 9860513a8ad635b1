package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"modelplane/authcore/internal/session/domain"
)

const sessionColumns = `id, subject_id, refresh_digest, fingerprint, origin, agent,
	created_at, expires_at, last_used_at, revoked_at, revoked_reason, suspicious, prev_session_id`

// PostgresStore implements Store on a sessions table with a unique index on
// refresh_digest. One store may be shared by any number of service instances;
// every atomicity guarantee lives in the database.
type PostgresStore struct {
	db            *sql.DB
	maxPerSubject int
}

// NewPostgresStore returns a session store that persists to db and enforces
// maxPerSubject concurrently live sessions per subject (FIFO eviction).
func NewPostgresStore(db *sql.DB, maxPerSubject int) *PostgresStore {
	if maxPerSubject < 1 {
		maxPerSubject = 1
	}
	return &PostgresStore{db: db, maxPerSubject: maxPerSubject}
}

// Create persists the session, evicting the subject's oldest live sessions
// first when the cap is reached. Eviction and insert share one transaction so
// a concurrent Create cannot overshoot the cap.
func (r *PostgresStore) Create(ctx context.Context, s *domain.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	// Expired-but-unrevoked rows do not hold cap slots; retire them under
	// their own reason before counting.
	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = $2, revoked_reason = $3
		WHERE subject_id = $1 AND revoked_at IS NULL AND expires_at <= $2`,
		s.SubjectID, now, domain.ReasonExpired); err != nil {
		return err
	}

	// Lock the subject's live rows in creation order so concurrent creates
	// serialize per subject and eviction stays first-in-first-out.
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM sessions
		WHERE subject_id = $1 AND revoked_at IS NULL
		ORDER BY created_at, id
		FOR UPDATE`, s.SubjectID)
	if err != nil {
		return err
	}
	var liveIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		liveIDs = append(liveIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if excess := len(liveIDs) - r.maxPerSubject + 1; excess > 0 {
		for _, id := range liveIDs[:excess] {
			if _, err := tx.ExecContext(ctx, `
				UPDATE sessions SET revoked_at = $2, revoked_reason = $3
				WHERE id = $1 AND revoked_at IS NULL`,
				id, now, domain.ReasonSessionLimit); err != nil {
				return err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.SubjectID, s.RefreshDigest,
		nullString(s.Fingerprint), nullString(s.Origin), nullString(s.Agent),
		s.CreatedAt, s.ExpiresAt, nullTime(s.LastUsedAt), nullTime(s.RevokedAt),
		nullString(s.RevokedReason), s.Suspicious, nullString(s.PrevSessionID),
	); err != nil {
		if isUniqueViolation(err) {
			return ErrDigestConflict
		}
		return err
	}
	return tx.Commit()
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresStore) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// GetByDigest returns the session holding digest, live or retired, or nil.
func (r *PostgresStore) GetByDigest(ctx context.Context, digest string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE refresh_digest = $1`, digest)
	return scanSession(row)
}

// Rotate revokes the predecessor and inserts the successor in one
// transaction. The conditional update is the per-session critical section:
// of two concurrent rotations presenting the same secret, exactly one
// commits; the other gets ErrAlreadyRotated.
func (r *PostgresStore) Rotate(ctx context.Context, predecessorID string, successor *domain.Session) error {
	if err := successor.Validate(); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = $2, revoked_reason = $3
		WHERE id = $1 AND revoked_at IS NULL`,
		predecessorID, time.Now().UTC(), domain.ReasonRotation)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyRotated
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		successor.ID, successor.SubjectID, successor.RefreshDigest,
		nullString(successor.Fingerprint), nullString(successor.Origin), nullString(successor.Agent),
		successor.CreatedAt, successor.ExpiresAt, nullTime(successor.LastUsedAt), nullTime(successor.RevokedAt),
		nullString(successor.RevokedReason), successor.Suspicious, nullString(successor.PrevSessionID),
	); err != nil {
		if isUniqueViolation(err) {
			return ErrDigestConflict
		}
		return err
	}
	return tx.Commit()
}

// Revoke marks the session revoked. Already-revoked sessions keep their
// original revocation time and reason.
func (r *PostgresStore) Revoke(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = $2, revoked_reason = $3
		WHERE id = $1 AND revoked_at IS NULL`,
		id, time.Now().UTC(), reason)
	return err
}

// RevokeAllForSubject revokes the subject's live sessions, except exceptID
// when non-empty, and returns the count revoked.
func (r *PostgresStore) RevokeAllForSubject(ctx context.Context, subjectID, reason, exceptID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = $2, revoked_reason = $3
		WHERE subject_id = $1 AND revoked_at IS NULL AND ($4 = '' OR id <> $4)`,
		subjectID, time.Now().UTC(), reason, exceptID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountLive returns the number of live sessions for the subject.
func (r *PostgresStore) CountLive(ctx context.Context, subjectID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE subject_id = $1 AND revoked_at IS NULL AND expires_at > $2`,
		subjectID, time.Now().UTC()).Scan(&n)
	return n, err
}

// ListLiveBySubject returns the subject's live sessions, oldest first.
func (r *PostgresStore) ListLiveBySubject(ctx context.Context, subjectID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE subject_id = $1 AND revoked_at IS NULL AND expires_at > $2
		ORDER BY created_at, id`,
		subjectID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Touch sets the session's last-used timestamp.
func (r *PostgresStore) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET last_used_at = $2 WHERE id = $1`, id, at)
	return err
}

// DeleteRevokedBefore removes sessions revoked before cutoff and returns the
// count deleted. Lineage pointers into deleted rows become NULL (weak
// reference, ON DELETE SET NULL).
func (r *PostgresStore) DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE revoked_at IS NOT NULL AND revoked_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// IsLive reports whether the session is unrevoked and unexpired.
func (r *PostgresStore) IsLive(ctx context.Context, id string) (bool, error) {
	var live bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sessions
			WHERE id = $1 AND revoked_at IS NULL AND expires_at > $2
		)`, id, time.Now().UTC()).Scan(&live)
	return live, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	s, err := scanSessionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func scanSessionRow(row rowScanner) (*domain.Session, error) {
	var (
		s             domain.Session
		fingerprint   sql.NullString
		origin        sql.NullString
		agent         sql.NullString
		lastUsedAt    sql.NullTime
		revokedAt     sql.NullTime
		revokedReason sql.NullString
		prevSessionID sql.NullString
	)
	err := row.Scan(&s.ID, &s.SubjectID, &s.RefreshDigest, &fingerprint, &origin, &agent,
		&s.CreatedAt, &s.ExpiresAt, &lastUsedAt, &revokedAt, &revokedReason, &s.Suspicious, &prevSessionID)
	if err != nil {
		return nil, err
	}
	s.Fingerprint = fingerprint.String
	s.Origin = origin.String
	s.Agent = agent.String
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		s.LastUsedAt = &t
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		s.RevokedAt = &t
	}
	s.RevokedReason = revokedReason.String
	s.PrevSessionID = prevSessionID.String
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)
