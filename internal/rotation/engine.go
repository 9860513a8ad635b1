// Package rotation implements refresh-secret rotation: validating a
// presented secret against the session store, detecting reuse of retired
// secrets, and atomically replacing the session's active secret.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"modelplane/authcore/internal/security"
	"modelplane/authcore/internal/securityevent"
	"modelplane/authcore/internal/session/domain"
	"modelplane/authcore/internal/session/repository"
)

var tracer = otel.Tracer("modelplane/authcore/internal/rotation")

var (
	// ErrInvalidSecret is returned for secrets that were never issued, or
	// whose session was retired outside any path the caller may learn about.
	// Deliberately generic so a caller cannot distinguish "never issued"
	// from other rejections.
	ErrInvalidSecret = errors.New("invalid refresh secret")
	// ErrSessionExpired is returned when the session's own validity window
	// has passed. The session is revoked with reason "expired" on the way out.
	ErrSessionExpired = errors.New("session expired")
	// ErrReuseDetected is returned when a retired secret is presented within
	// the reuse-detection window. Non-retryable: the whole lineage has been
	// revoked and the subject must re-authenticate.
	ErrReuseDetected = errors.New("refresh secret reuse detected")
	// ErrSubjectInactive is returned when the owning account is no longer
	// active. The subject's sessions are revoked on the way out.
	ErrSubjectInactive = errors.New("subject account inactive")
)

// SubjectResolver reports the owning account's current role and status so a
// suspended account cannot keep rotating a session opened before suspension.
type SubjectResolver interface {
	ResolveSubject(ctx context.Context, subjectID string) (role string, active bool, err error)
}

// Issuer mints access credentials for a freshly rotated session.
type Issuer interface {
	Issue(sessionID, subject, role string, scopes []string) (token, jti string, expiresAt time.Time, err error)
}

// Request carries one rotation attempt.
type Request struct {
	Secret      string // the presented opaque refresh secret
	Fingerprint string // optional device fingerprint
	Origin      string // optional masked network origin
	Agent       string // optional client agent
}

// Result is a successful rotation: the successor session, the new opaque
// secret for the client, and a fresh access credential bound to the
// successor.
type Result struct {
	Session       *domain.Session
	RefreshSecret string
	AccessToken   string
	TokenID       string
	TokenExpires  time.Time
}

// Engine drives the rotation state machine. All per-session atomicity lives
// in the store; the engine holds no locks and is safe for concurrent use.
type Engine struct {
	store       repository.Store
	digester    *security.SecretDigester
	issuer      Issuer
	subjects    SubjectResolver
	events      securityevent.Sink
	refreshTTL  time.Duration
	reuseWindow time.Duration
	maxDepth    int
	now         func() time.Time
}

// Config collects the engine's collaborators and tuning knobs.
type Config struct {
	Store       repository.Store
	Digester    *security.SecretDigester
	Issuer      Issuer
	Subjects    SubjectResolver
	Events      securityevent.Sink
	RefreshTTL  time.Duration
	ReuseWindow time.Duration
	// MaxDepth is the hard ceiling on rotation-chain depth. Past it, a fresh
	// root session is created instead of extending the chain, flagged
	// suspicious.
	MaxDepth int
}

// NewEngine builds an Engine. Store, Digester, Issuer, and Subjects are
// required; Events may be nil (events are then dropped).
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil || cfg.Digester == nil || cfg.Issuer == nil || cfg.Subjects == nil {
		return nil, errors.New("rotation: store, digester, issuer, and subjects are required")
	}
	if cfg.RefreshTTL <= 0 {
		return nil, errors.New("rotation: refresh TTL must be positive")
	}
	if cfg.MaxDepth < 1 {
		return nil, errors.New("rotation: max chain depth must be at least 1")
	}
	reuseWindow := cfg.ReuseWindow
	if reuseWindow <= 0 {
		reuseWindow = 24 * time.Hour
	}
	return &Engine{
		store:       cfg.Store,
		digester:    cfg.Digester,
		issuer:      cfg.Issuer,
		subjects:    cfg.Subjects,
		events:      cfg.Events,
		refreshTTL:  cfg.RefreshTTL,
		reuseWindow: reuseWindow,
		maxDepth:    cfg.MaxDepth,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Rotate validates the presented secret and, when it belongs to a live
// session, atomically replaces it: the predecessor is revoked with reason
// "rotation" and a successor carrying a fresh secret takes its place.
//
// A retired secret presented within the reuse-detection window is treated as
// theft evidence: every live session of the subject is revoked and
// ErrReuseDetected is returned. Of two concurrent rotations presenting the
// same secret exactly one succeeds; the loser takes the reuse path.
func (e *Engine) Rotate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "rotation.Rotate")
	defer span.End()

	digest := e.digester.Digest(req.Secret)
	sess, err := e.store.GetByDigest(ctx, digest)
	if err != nil {
		return nil, fmt.Errorf("rotation: digest lookup: %w", err)
	}
	if sess == nil {
		return nil, ErrInvalidSecret
	}
	span.SetAttributes(attribute.String("session.id", sess.ID))
	now := e.now()

	if sess.Revoked() {
		if sess.RevokedReason == domain.ReasonRotation && now.Sub(*sess.RevokedAt) <= e.reuseWindow {
			return nil, e.containReuse(ctx, sess)
		}
		// Revoked for another reason, or rotated so long ago the window
		// closed. Indistinguishable from never-issued for the caller.
		return nil, ErrInvalidSecret
	}

	if sess.Expired(now) {
		if err := e.store.Revoke(ctx, sess.ID, domain.ReasonExpired); err != nil {
			return nil, fmt.Errorf("rotation: revoke expired session: %w", err)
		}
		return nil, ErrSessionExpired
	}

	role, active, err := e.subjects.ResolveSubject(ctx, sess.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("rotation: resolve subject: %w", err)
	}
	if !active {
		if _, err := e.store.RevokeAllForSubject(ctx, sess.SubjectID, domain.ReasonAccountSuspended, ""); err != nil {
			return nil, fmt.Errorf("rotation: revoke suspended subject: %w", err)
		}
		e.record(securityevent.Event{
			Severity:  securityevent.SeverityWarning,
			Type:      securityevent.TypeAccountSuspended,
			SubjectID: sess.SubjectID,
			SessionID: sess.ID,
			Detail:    "rotation attempted on a suspended account",
			At:        now,
		})
		return nil, ErrSubjectInactive
	}

	depth, err := e.chainDepth(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("rotation: chain depth: %w", err)
	}
	forceFresh := depth >= e.maxDepth

	fingerprint := sess.Fingerprint
	mismatch := false
	if req.Fingerprint != "" {
		if sess.Fingerprint != "" && req.Fingerprint != sess.Fingerprint {
			mismatch = true
		}
		fingerprint = req.Fingerprint
	}

	secret, err := security.NewRefreshSecret()
	if err != nil {
		return nil, fmt.Errorf("rotation: %w", err)
	}

	lastUsed := now
	successor := &domain.Session{
		ID:            uuid.NewString(),
		SubjectID:     sess.SubjectID,
		RefreshDigest: e.digester.Digest(secret),
		Fingerprint:   fingerprint,
		Origin:        req.Origin,
		Agent:         req.Agent,
		CreatedAt:     now,
		ExpiresAt:     now.Add(e.refreshTTL),
		LastUsedAt:    &lastUsed,
		Suspicious:    mismatch || forceFresh,
	}
	if !forceFresh {
		successor.PrevSessionID = sess.ID
	}

	if err := e.store.Rotate(ctx, sess.ID, successor); err != nil {
		if errors.Is(err, repository.ErrAlreadyRotated) {
			// A concurrent rotation with the same secret already won. This
			// attempt is indistinguishable from a replay of a just-retired
			// secret, so it gets the same containment.
			return nil, e.containReuse(ctx, sess)
		}
		return nil, fmt.Errorf("rotation: rotate: %w", err)
	}

	token, jti, tokenExp, err := e.issuer.Issue(successor.ID, successor.SubjectID, role, nil)
	if err != nil {
		return nil, fmt.Errorf("rotation: issue credential: %w", err)
	}

	if forceFresh {
		e.record(securityevent.Event{
			Severity:  securityevent.SeverityWarning,
			Type:      securityevent.TypeChainDepthExceeded,
			SubjectID: sess.SubjectID,
			SessionID: successor.ID,
			Detail:    fmt.Sprintf("rotation chain depth %d reached ceiling %d, fresh root forced", depth, e.maxDepth),
			At:        now,
		})
	}
	if mismatch {
		e.record(securityevent.Event{
			Severity:  securityevent.SeverityWarning,
			Type:      securityevent.TypeFingerprintMismatch,
			SubjectID: sess.SubjectID,
			SessionID: successor.ID,
			Detail:    "device fingerprint changed between rotations",
			At:        now,
		})
	}
	e.record(securityevent.Event{
		Severity:  securityevent.SeverityInfo,
		Type:      securityevent.TypeRotation,
		SubjectID: sess.SubjectID,
		SessionID: successor.ID,
		IP:        req.Origin,
		At:        now,
	})

	return &Result{
		Session:       successor,
		RefreshSecret: secret,
		AccessToken:   token,
		TokenID:       jti,
		TokenExpires:  tokenExp,
	}, nil
}

// containReuse handles a reuse-of-retired-secret signal: revoke every live
// session of the subject and record a critical event. Always returns
// ErrReuseDetected unless containment itself fails, which fails closed.
func (e *Engine) containReuse(ctx context.Context, sess *domain.Session) error {
	n, err := e.store.RevokeAllForSubject(ctx, sess.SubjectID, domain.ReasonReuseDetected, "")
	if err != nil {
		return fmt.Errorf("rotation: reuse containment: %w", err)
	}
	e.record(securityevent.Event{
		Severity:  securityevent.SeverityCritical,
		Type:      securityevent.TypeReuseDetected,
		SubjectID: sess.SubjectID,
		SessionID: sess.ID,
		Detail:    fmt.Sprintf("retired refresh secret presented, %d live sessions revoked", n),
		At:        e.now(),
	})
	return ErrReuseDetected
}

// chainDepth walks the lineage from s toward its root, counting hops. The
// walk is iterative with a visited set and stops as soon as the ceiling is
// reached, so a pathological or cyclic lineage cannot stall the request.
func (e *Engine) chainDepth(ctx context.Context, s *domain.Session) (int, error) {
	depth := 0
	visited := map[string]bool{s.ID: true}
	prev := s.PrevSessionID
	for prev != "" && depth < e.maxDepth {
		if visited[prev] {
			return e.maxDepth, nil
		}
		visited[prev] = true
		ancestor, err := e.store.GetByID(ctx, prev)
		if err != nil {
			return 0, err
		}
		if ancestor == nil {
			// Predecessor swept by retention; the remaining chain is the
			// whole observable lineage.
			break
		}
		depth++
		prev = ancestor.PrevSessionID
	}
	return depth, nil
}

func (e *Engine) record(ev securityevent.Event) {
	securityevent.RecordAsync(e.events, ev)
}
