// Package securityevent records auth-relevant occurrences for audit and
// anomaly review. Recording is always best-effort: no authentication flow
// ever fails because an event could not be written.
package securityevent

import (
	"context"
	"log/slog"
	"time"
)

// Severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Event types. Stored verbatim; treat as a stable vocabulary.
const (
	TypeLogin               = "login"
	TypeLoginFailed         = "login-failed"
	TypeRotation            = "rotation"
	TypeReuseDetected       = "reuse-detected"
	TypeLogout              = "logout"
	TypeLogoutAll           = "logout-all"
	TypeSessionEvicted      = "session-evicted"
	TypeFingerprintMismatch = "fingerprint-mismatch"
	TypeChainDepthExceeded  = "chain-depth-exceeded"
	TypeAccountSuspended    = "account-suspended"
	TypeAuthzDenied         = "authz-denied"
	TypeRateLimited         = "rate-limited"
)

// Event is one security-relevant occurrence tied to a subject and,
// optionally, a session.
type Event struct {
	ID        string
	Severity  string
	Type      string
	SubjectID string
	SessionID string
	IP        string // masked network origin, never a full address
	Detail    string
	At        time.Time
}

// Sink receives security events. Implementations must be safe for
// concurrent use.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// recordTimeout bounds a single async record. Used by RecordAsync and by
// DrainDuration.
const recordTimeout = 5 * time.Second

// DrainDuration is how long shutdown waits after the server stops accepting
// requests, so in-flight async records have time to complete. Must be
// >= recordTimeout.
const DrainDuration = recordTimeout

// RecordAsync runs Record in a goroutine so the caller is not blocked.
// Use from request handlers for fire-and-forget recording; errors are logged.
//
// The goroutine uses context.Background() with recordTimeout so request
// cancellation does not abort an in-flight record.
func RecordAsync(sink Sink, e Event) {
	if sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := sink.Record(ctx, e); err != nil {
			slog.Error("security event record failed",
				"type", e.Type, "subject", e.SubjectID, "error", err)
		}
	}()
}
