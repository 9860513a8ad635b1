package securityevent

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// PostgresSink persists security events to the security_events table.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink returns a sink that uses the given db for persistence.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// Record inserts the event. A zero ID or timestamp is filled in.
func (s *PostgresSink) Record(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO security_events (id, severity, event_type, subject_id, session_id, ip, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Severity, e.Type, e.SubjectID, e.SessionID, e.IP, e.Detail, e.At)
	return err
}

// ListBySubject returns the subject's events, newest first, paginated by
// limit and offset.
func (s *PostgresSink) ListBySubject(ctx context.Context, subjectID string, limit, offset int32) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, severity, event_type, subject_id, session_id, ip, detail, created_at
		FROM security_events
		WHERE subject_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, subjectID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Severity, &e.Type, &e.SubjectID, &e.SessionID, &e.IP, &e.Detail, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
