package httpx

import (
	"net/http"
	"strings"
	"time"
)

// requestIsSecure reports whether the request arrived over TLS, directly or
// behind a terminating proxy.
func requestIsSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// setSessionCookie writes the session reference cookie. maxAge is in seconds.
func setSessionCookie(w http.ResponseWriter, r *http.Request, params sessionCookieParams) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    params.Value,
		Path:     "/",
		Domain:   params.Domain,
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   params.MaxAge,
	})
}

// sessionCookieParams groups values for setSessionCookie.
type sessionCookieParams struct {
	Value  string
	Domain string
	MaxAge int
}

// clearSessionCookie expires the session cookie immediately. It mirrors the
// attributes used when setting the cookie so browsers reliably delete it.
func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}
