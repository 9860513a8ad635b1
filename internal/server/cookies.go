package server

import (
	"net/http"
	"time"
)

// refreshCookieName is the cookie carrying the opaque refresh secret. Scoped
// to the auth routes only so the secret never rides along on API calls.
const refreshCookieName = "refresh_token"

const refreshCookiePath = "/v1/auth"

// setRefreshCookie installs the refresh secret for the auth routes.
// HttpOnly always; Secure except in development.
func (s *Server) setRefreshCookie(w http.ResponseWriter, secret string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    secret,
		Path:     refreshCookiePath,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearRefreshCookie expires the refresh cookie. Called on logout and on any
// refresh rejection so a dead secret does not keep riding along.
func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// refreshSecretFromRequest reads the refresh secret cookie, or "" if absent.
func refreshSecretFromRequest(r *http.Request) string {
	c, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
