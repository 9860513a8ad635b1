// Package server is the HTTP boundary: auth routes, the bearer middleware,
// role/scope guards, and a small protected surface that exercises them.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelplane/authcore/internal/authz"
	"modelplane/authcore/internal/identity/service"
	"modelplane/authcore/internal/ratelimit"
	"modelplane/authcore/internal/security"
	sessiondomain "modelplane/authcore/internal/session/domain"
)

// TokenVerifier verifies bearer access credentials.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*security.AccessClaims, error)
}

// SubjectResolver reports an account's current role and status for the
// authorization guard.
type SubjectResolver interface {
	ResolveSubject(ctx context.Context, subjectID string) (role string, active bool, err error)
}

// AuthService is the slice of the identity service the boundary consumes.
type AuthService interface {
	Login(ctx context.Context, email, password string, client service.ClientContext) (*service.AuthResult, error)
	Refresh(ctx context.Context, secret string, client service.ClientContext) (*service.AuthResult, error)
	Logout(ctx context.Context, secret string, client service.ClientContext)
	LogoutAll(ctx context.Context, subjectID, exceptID string) int64
	ListSessions(ctx context.Context, subjectID string) ([]*sessiondomain.Session, error)
}

// Config collects the server's dependencies.
type Config struct {
	Auth           AuthService
	Verifier       TokenVerifier
	Subjects       SubjectResolver
	Evaluator      *authz.Evaluator
	LoginLimiter   ratelimit.Limiter
	RefreshLimiter ratelimit.Limiter
	DB             *sql.DB // health checks only
	RefreshTTL     time.Duration
	CookieSecure   bool
}

// Server holds the boundary's dependencies and builds its routes.
type Server struct {
	auth           AuthService
	verifier       TokenVerifier
	subjects       SubjectResolver
	evaluator      *authz.Evaluator
	loginLimiter   ratelimit.Limiter
	refreshLimiter ratelimit.Limiter
	db             *sql.DB
	refreshTTL     time.Duration
	cookieSecure   bool
}

// New returns a Server over cfg.
func New(cfg Config) *Server {
	ev := cfg.Evaluator
	if ev == nil {
		ev = authz.NewEvaluator()
	}
	return &Server{
		auth:           cfg.Auth,
		verifier:       cfg.Verifier,
		subjects:       cfg.Subjects,
		evaluator:      ev,
		loginLimiter:   cfg.LoginLimiter,
		refreshLimiter: cfg.RefreshLimiter,
		db:             cfg.DB,
		refreshTTL:     cfg.RefreshTTL,
		cookieSecure:   cfg.CookieSecure,
	}
}

// Routes builds the HTTP handler: public auth routes, health and metrics,
// and the protected surface behind the bearer middleware and scope guards.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /v1/auth/login", s.observe("login", s.rateLimited(s.loginLimiter, "login", http.HandlerFunc(s.handleLogin))))
	mux.Handle("POST /v1/auth/refresh", s.observe("refresh", s.rateLimited(s.refreshLimiter, "refresh", http.HandlerFunc(s.handleRefresh))))
	mux.Handle("POST /v1/auth/logout", s.observe("logout", http.HandlerFunc(s.handleLogout)))
	mux.Handle("POST /v1/auth/logout-all", s.observe("logout-all", s.requireAuth(http.HandlerFunc(s.handleLogoutAll))))

	mux.Handle("GET /v1/models", s.observe("models-list",
		s.requireAuth(s.requireScopes(authz.Requirement{AllScopes: []string{authz.ScopeModelsRead}},
			http.HandlerFunc(s.handleListModels)))))
	mux.Handle("POST /v1/models", s.observe("models-create",
		s.requireAuth(s.requireScopes(authz.Requirement{AllScopes: []string{authz.ScopeModelsWrite}},
			http.HandlerFunc(s.handleCreateModel)))))
	mux.Handle("GET /v1/sessions", s.observe("sessions-list",
		s.requireAuth(s.requireScopes(authz.Requirement{AllScopes: []string{authz.ScopeSessionsManage}},
			http.HandlerFunc(s.handleListSessions)))))

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}
