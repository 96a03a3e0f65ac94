package session

import (
	"net/http"
	"time"
)

// CookieName is the client-held reference to the server session.
const CookieName = "portal_session"

// CookieOptions defines how session cookies are issued. The Secure flag
// and cross-site policy depend on the runtime environment: production
// serves the UI from a different origin and needs SameSite=None.
type CookieOptions struct {
	Secure   bool
	SameSite http.SameSite
}

// ProductionCookieOptions matches production hardening.
func ProductionCookieOptions() CookieOptions {
	return CookieOptions{Secure: true, SameSite: http.SameSiteNoneMode}
}

// DevelopmentCookieOptions relaxes the policy for localhost flows.
func DevelopmentCookieOptions() CookieOptions {
	return CookieOptions{Secure: false, SameSite: http.SameSiteLaxMode}
}

// SetCookie issues the session cookie to the client.
func SetCookie(w http.ResponseWriter, sessionID string, expiresAt time.Time, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// ClearCookie removes the session cookie from the client.
func ClearCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}
