package jwttoken

import (
	"net/http"
	"time"

	"eshop/pkg/platform/middleware/auth"
)

const (
	loggedOutValue = "loggedout"
	loggedOutTTL   = 10 * time.Second
)

// SetSessionCookie stores the token in an HTTP-only cookie expiring with it.
func SetSessionCookie(w http.ResponseWriter, token Token, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token.Value,
		Path:     "/",
		Expires:  token.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie overwrites the session cookie with a short-lived
// placeholder.
func ClearSessionCookie(w http.ResponseWriter, now time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    loggedOutValue,
		Path:     "/",
		Expires:  now.Add(loggedOutTTL),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
