// Package service implements the authentication entry points: password
// login, session refresh, and logout. Every entry point that opens a session
// converges on StartSession so session creation has exactly one shape.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"modelplane/authcore/internal/identity/domain"
	"modelplane/authcore/internal/identity/repository"
	"modelplane/authcore/internal/rotation"
	"modelplane/authcore/internal/security"
	"modelplane/authcore/internal/securityevent"
	sessiondomain "modelplane/authcore/internal/session/domain"
	sessionrepo "modelplane/authcore/internal/session/repository"
)

var tracer = otel.Tracer("modelplane/authcore/internal/identity/service")

// Sentinel errors for the auth service; the boundary maps them to stable
// error codes.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is not active")
)

// AuthResult is the outcome of Login, StartSession, or Refresh.
type AuthResult struct {
	AccessToken   string
	RefreshSecret string
	TokenExpires  time.Time
	SessionID     string
	UserID        string
	Role          string
}

// Rotator performs refresh-secret rotation.
type Rotator interface {
	Rotate(ctx context.Context, req rotation.Request) (*rotation.Result, error)
}

// Issuer mints access credentials.
type Issuer interface {
	Issue(sessionID, subject, role string, scopes []string) (token, jti string, expiresAt time.Time, err error)
}

// ClientContext carries per-request client attributes into session creation.
type ClientContext struct {
	Fingerprint string
	Origin      string // masked network origin
	Agent       string
}

// AuthService orchestrates the entry points over the user, identity, and
// session stores.
type AuthService struct {
	users      repository.UserRepo
	identities repository.IdentityRepo
	sessions   sessionrepo.Store
	hasher     *security.PasswordHasher
	digester   *security.SecretDigester
	issuer     Issuer
	rotator    Rotator
	events     securityevent.Sink
	refreshTTL time.Duration
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(
	users repository.UserRepo,
	identities repository.IdentityRepo,
	sessions sessionrepo.Store,
	hasher *security.PasswordHasher,
	digester *security.SecretDigester,
	issuer Issuer,
	rotator Rotator,
	events securityevent.Sink,
	refreshTTL time.Duration,
) *AuthService {
	return &AuthService{
		users:      users,
		identities: identities,
		sessions:   sessions,
		hasher:     hasher,
		digester:   digester,
		issuer:     issuer,
		rotator:    rotator,
		events:     events,
		refreshTTL: refreshTTL,
	}
}

// Login authenticates with email/password and opens a session. Unknown
// emails, wrong passwords, and non-local accounts all collapse into
// ErrInvalidCredentials so the response cannot be used as an account oracle.
func (s *AuthService) Login(ctx context.Context, email, password string, client ClientContext) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "identity.Login")
	defer span.End()

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("login: user lookup: %w", err)
	}
	if user == nil {
		s.recordLoginFailed(ctx, "", client, "unknown email")
		return nil, ErrInvalidCredentials
	}
	if !user.Active() {
		s.recordLoginFailed(ctx, user.ID, client, "inactive account")
		return nil, ErrAccountInactive
	}
	ident, err := s.identities.GetByUserAndProvider(ctx, user.ID, domain.ProviderLocal)
	if err != nil {
		return nil, fmt.Errorf("login: identity lookup: %w", err)
	}
	if ident == nil || ident.PasswordHash == "" {
		s.recordLoginFailed(ctx, user.ID, client, "no local identity")
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(ident.PasswordHash, []byte(password)); err != nil {
		s.recordLoginFailed(ctx, user.ID, client, "wrong password")
		return nil, ErrInvalidCredentials
	}
	return s.StartSession(ctx, user, client)
}

// StartSession opens a session for an already-authenticated user. It is the
// single factory shared by every entry point: password login, passwordless
// consumption, and federated callbacks all call it after their own proof
// step.
func (s *AuthService) StartSession(ctx context.Context, user *domain.User, client ClientContext) (*AuthResult, error) {
	if !user.Active() {
		return nil, ErrAccountInactive
	}
	secret, err := security.NewRefreshSecret()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	now := time.Now().UTC()
	lastUsed := now
	sess := &sessiondomain.Session{
		ID:            uuid.NewString(),
		SubjectID:     user.ID,
		RefreshDigest: s.digester.Digest(secret),
		Fingerprint:   client.Fingerprint,
		Origin:        client.Origin,
		Agent:         client.Agent,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.refreshTTL),
		LastUsedAt:    &lastUsed,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("start session: create: %w", err)
	}
	token, _, tokenExp, err := s.issuer.Issue(sess.ID, user.ID, user.Role, nil)
	if err != nil {
		return nil, fmt.Errorf("start session: issue credential: %w", err)
	}
	securityevent.RecordAsync(s.events, securityevent.Event{
		Severity:  securityevent.SeverityInfo,
		Type:      securityevent.TypeLogin,
		SubjectID: user.ID,
		SessionID: sess.ID,
		IP:        client.Origin,
		At:        now,
	})
	return &AuthResult{
		AccessToken:   token,
		RefreshSecret: secret,
		TokenExpires:  tokenExp,
		SessionID:     sess.ID,
		UserID:        user.ID,
		Role:          user.Role,
	}, nil
}

// Refresh rotates the presented refresh secret. Validation, reuse detection,
// chain accounting, and the account-status re-check all live in the rotation
// engine; this is a thin delegation that shapes the result.
func (s *AuthService) Refresh(ctx context.Context, secret string, client ClientContext) (*AuthResult, error) {
	res, err := s.rotator.Rotate(ctx, rotation.Request{
		Secret:      secret,
		Fingerprint: client.Fingerprint,
		Origin:      client.Origin,
		Agent:       client.Agent,
	})
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, res.Session.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("refresh: resolve subject: %w", err)
	}
	var role string
	if user != nil {
		role = user.Role
	}
	return &AuthResult{
		AccessToken:   res.AccessToken,
		RefreshSecret: res.RefreshSecret,
		TokenExpires:  res.TokenExpires,
		SessionID:     res.Session.ID,
		UserID:        res.Session.SubjectID,
		Role:          role,
	}, nil
}

// Logout revokes the session holding the presented refresh secret. Failures
// are logged, never surfaced: the boundary clears the cookie and reports
// success regardless, so a client can always "log out".
func (s *AuthService) Logout(ctx context.Context, secret string, client ClientContext) {
	if secret == "" {
		return
	}
	sess, err := s.sessions.GetByDigest(ctx, s.digester.Digest(secret))
	if err != nil {
		slog.Error("logout: session lookup failed", "error", err)
		return
	}
	if sess == nil || sess.Revoked() {
		return
	}
	if err := s.sessions.Revoke(ctx, sess.ID, sessiondomain.ReasonLogout); err != nil {
		slog.Error("logout: revoke failed", "session", sess.ID, "error", err)
		return
	}
	securityevent.RecordAsync(s.events, securityevent.Event{
		Severity:  securityevent.SeverityInfo,
		Type:      securityevent.TypeLogout,
		SubjectID: sess.SubjectID,
		SessionID: sess.ID,
		IP:        client.Origin,
		At:        time.Now().UTC(),
	})
}

// LogoutAll revokes every live session of the subject, keeping exceptID
// alive when non-empty (the session making the request). Returns the count
// revoked; storage failures are logged and reported as zero.
func (s *AuthService) LogoutAll(ctx context.Context, subjectID, exceptID string) int64 {
	n, err := s.sessions.RevokeAllForSubject(ctx, subjectID, sessiondomain.ReasonLogoutAll, exceptID)
	if err != nil {
		slog.Error("logout-all: revoke failed", "subject", subjectID, "error", err)
		return 0
	}
	securityevent.RecordAsync(s.events, securityevent.Event{
		Severity:  securityevent.SeverityInfo,
		Type:      securityevent.TypeLogoutAll,
		SubjectID: subjectID,
		Detail:    fmt.Sprintf("%d sessions revoked", n),
		At:        time.Now().UTC(),
	})
	return n
}

// ListSessions returns the subject's live sessions, oldest first.
func (s *AuthService) ListSessions(ctx context.Context, subjectID string) ([]*sessiondomain.Session, error) {
	return s.sessions.ListLiveBySubject(ctx, subjectID)
}

func (s *AuthService) recordLoginFailed(ctx context.Context, subjectID string, client ClientContext, detail string) {
	securityevent.RecordAsync(s.events, securityevent.Event{
		Severity:  securityevent.SeverityWarning,
		Type:      securityevent.TypeLoginFailed,
		SubjectID: subjectID,
		IP:        client.Origin,
		Detail:    detail,
		At:        time.Now().UTC(),
	})
}
