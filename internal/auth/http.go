// ABOUTME: HTTP middleware for JWT authentication on admin endpoints
// ABOUTME: Reads the token from the session cookie or a bearer header

package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// SessionCookieName is the cookie holding the admin session token.
const SessionCookieName = "merti_admin_session"

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// tokenFromRequest prefers the session cookie and falls back to the
// Authorization header.
func tokenFromRequest(r *http.Request, cookieName string) (string, string) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, ""
	}
	return extractBearerToken(r.Header.Get("Authorization"))
}

// RequireSession creates middleware that rejects requests without a valid
// token and stores the token subject in the request context.
func RequireSession(verifier TokenVerifier, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := tokenFromRequest(r, cookieName)
			if errMsg != "" {
				writeUnauthorized(w, errMsg)
				return
			}

			subject, err := verifier.Verify(token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, ErrExpiredToken) {
					msg = "session expired"
				}
				writeUnauthorized(w, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// SetSessionCookie writes the session cookie for token.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, cookieName, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, cookieName string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
