package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"modelplane/authcore/internal/authz"
	"modelplane/authcore/internal/observability"
	"modelplane/authcore/internal/ratelimit"
	"modelplane/authcore/internal/security"
)

const bearerPrefix = "bearer "

// requireAuth validates the Bearer access credential and places the verified
// identity in context. Verification is a pure read; a storage failure during
// the live-session lookup denies rather than letting the request through.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, CodeAuthInvalid)
			return
		}
		claims, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, security.ErrTokenExpired), errors.Is(err, security.ErrSessionNotLive):
				writeError(w, http.StatusUnauthorized, CodeAuthExpired)
			case errors.Is(err, security.ErrInvalidToken):
				writeError(w, http.StatusUnauthorized, CodeAuthInvalid)
			default:
				writeError(w, http.StatusInternalServerError, CodeAuthUnavailable)
			}
			return
		}
		ctx := WithIdentity(r.Context(), Identity{
			UserID:    claims.Subject,
			Role:      claims.Role,
			Scopes:    claims.Scopes,
			SessionID: claims.SessionID,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireScopes guards a route with an authorization requirement. The
// account's current role and status are re-read so a suspension lands before
// the session's credentials run out.
func (s *Server) requireScopes(req authz.Requirement, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetIdentity(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, CodeAuthInvalid)
			return
		}
		status := authz.StatusActive
		role := id.Role
		if s.subjects != nil {
			currentRole, active, err := s.subjects.ResolveSubject(r.Context(), id.UserID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, CodeAuthUnavailable)
				return
			}
			if !active {
				status = authz.StatusSuspended
			}
			if currentRole != "" {
				role = currentRole
			}
		}
		decision := s.evaluator.Authorize(authz.Input{
			SubjectID: id.UserID,
			Role:      role,
			Scopes:    id.Scopes,
			Status:    status,
		}, req)
		if !decision.Allowed {
			observability.AuthzDenialsTotal.WithLabelValues(decision.Reason).Inc()
			if decision.Reason == authz.ReasonInactiveAccount {
				writeError(w, http.StatusForbidden, CodeAccountInactive)
				return
			}
			writeError(w, http.StatusForbidden, CodeForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimited sheds traffic over the per-client window before the handler
// does any work.
func (s *Server) rateLimited(l ratelimit.Limiter, route string, next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := l.Allow(r.Context(), clientOrigin(r)); err != nil {
			observability.RateLimitRejectedTotal.WithLabelValues(route).Inc()
			writeError(w, http.StatusTooManyRequests, CodeRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// observe records request duration by route and status class.
func (s *Server) observe(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		observability.RequestDuration.
			WithLabelValues(route, strconv.Itoa(sw.status/100*100)).
			Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// extractBearer returns the Bearer token from the Authorization header, or
// "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
