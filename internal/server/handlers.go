package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"modelplane/authcore/internal/identity/service"
	"modelplane/authcore/internal/observability"
	"modelplane/authcore/internal/rotation"
)

type loginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (s *Server) clientContext(r *http.Request, fingerprint string) service.ClientContext {
	return service.ClientContext{
		Fingerprint: fingerprint,
		Origin:      clientOrigin(r),
		Agent:       r.UserAgent(),
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observability.LoginsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, CodeInvalidRequest)
		return
	}
	res, err := s.auth.Login(r.Context(), req.Email, req.Password, s.clientContext(r, req.Fingerprint))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			observability.LoginsTotal.WithLabelValues("invalid").Inc()
			writeError(w, http.StatusUnauthorized, CodeAuthInvalid)
		case errors.Is(err, service.ErrAccountInactive):
			observability.LoginsTotal.WithLabelValues("inactive").Inc()
			writeError(w, http.StatusForbidden, CodeAccountInactive)
		default:
			observability.LoginsTotal.WithLabelValues("error").Inc()
			writeError(w, http.StatusInternalServerError, CodeAuthUnavailable)
		}
		return
	}
	observability.LoginsTotal.WithLabelValues("success").Inc()
	s.setRefreshCookie(w, res.RefreshSecret, s.refreshTTL)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(res.TokenExpires).Seconds()),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	secret := refreshSecretFromRequest(r)
	if secret == "" {
		observability.RotationsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusUnauthorized, CodeAuthInvalid)
		return
	}
	var req struct {
		Fingerprint string `json:"fingerprint,omitempty"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req) // body is optional

	res, err := s.auth.Refresh(r.Context(), secret, s.clientContext(r, req.Fingerprint))
	if err != nil {
		switch {
		case errors.Is(err, rotation.ErrReuseDetected):
			// Surfaced exactly like an ordinary invalid secret so an
			// attacker cannot tell containment from expiry.
			observability.RotationsTotal.WithLabelValues("reuse").Inc()
			observability.ReuseDetectionsTotal.Inc()
			s.clearRefreshCookie(w)
			writeError(w, http.StatusUnauthorized, CodeAuthInvalid)
		case errors.Is(err, rotation.ErrInvalidSecret):
			observability.RotationsTotal.WithLabelValues("invalid").Inc()
			s.clearRefreshCookie(w)
			writeError(w, http.StatusUnauthorized, CodeAuthInvalid)
		case errors.Is(err, rotation.ErrSessionExpired):
			observability.RotationsTotal.WithLabelValues("expired").Inc()
			s.clearRefreshCookie(w)
			writeError(w, http.StatusUnauthorized, CodeAuthExpired)
		case errors.Is(err, rotation.ErrSubjectInactive):
			observability.RotationsTotal.WithLabelValues("inactive").Inc()
			s.clearRefreshCookie(w)
			writeError(w, http.StatusForbidden, CodeAccountInactive)
		default:
			observability.RotationsTotal.WithLabelValues("error").Inc()
			writeError(w, http.StatusInternalServerError, CodeAuthUnavailable)
		}
		return
	}
	observability.RotationsTotal.WithLabelValues("success").Inc()
	s.setRefreshCookie(w, res.RefreshSecret, s.refreshTTL)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(res.TokenExpires).Seconds()),
	})
}

// handleLogout always clears the cookie and reports success: there is no
// useful recovery for a client that wants out, and failures are already
// logged inside the service.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if secret := refreshSecretFromRequest(r); secret != "" {
		s.auth.Logout(r.Context(), secret, s.clientContext(r, ""))
	}
	s.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	id, ok := GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeAuthInvalid)
		return
	}
	n := s.auth.LogoutAll(r.Context(), id.UserID, id.SessionID)
	writeJSON(w, http.StatusOK, map[string]int64{"revoked": n})
}

type sessionView struct {
	ID         string     `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	Origin     string     `json:"origin,omitempty"`
	Agent      string     `json:"agent,omitempty"`
	Suspicious bool       `json:"suspicious"`
	Current    bool       `json:"current"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentity(r.Context())
	sessions, err := s.auth.ListSessions(r.Context(), id.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeAuthUnavailable)
		return
	}
	out := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionView{
			ID:         sess.ID,
			CreatedAt:  sess.CreatedAt,
			ExpiresAt:  sess.ExpiresAt,
			LastUsedAt: sess.LastUsedAt,
			Origin:     sess.Origin,
			Agent:      sess.Agent,
			Suspicious: sess.Suspicious,
			Current:    sess.ID == id.SessionID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// The models surface is a representative protected resource; it exists to
// put the role/scope guards on a real route.
type modelView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": []modelView{}})
}

func (s *Server) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest)
		return
	}
	writeJSON(w, http.StatusCreated, modelView{ID: uuid.NewString(), Name: req.Name, Status: "pending"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
