// ABOUTME: Tests for the admin session middleware and cookie helpers
// ABOUTME: Covers cookie and bearer tokens, expiry, and missing credentials

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func runMiddleware(t *testing.T, v TokenVerifier, req *http.Request) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var gotSubject string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject, _ = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	RequireSession(v, SessionCookieName)(handler).ServeHTTP(rec, req)
	return rec, gotSubject
}

func TestRequireSession_Cookie(t *testing.T) {
	verifier := newTestVerifier(t)
	token, _ := verifier.Generate("admin@example.org", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

	rec, subject := runMiddleware(t, verifier, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if subject != "admin@example.org" {
		t.Errorf("expected subject admin@example.org, got %q", subject)
	}
}

func TestRequireSession_Bearer(t *testing.T) {
	verifier := newTestVerifier(t)
	token, _ := verifier.Generate("admin@example.org", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec, subject := runMiddleware(t, verifier, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if subject != "admin@example.org" {
		t.Errorf("expected subject admin@example.org, got %q", subject)
	}
}

func TestRequireSession_Rejects(t *testing.T) {
	verifier := newTestVerifier(t)
	expired, _ := verifier.Generate("admin@example.org", -time.Minute)

	tests := []struct {
		name    string
		header  string
		cookie  string
		wantMsg string
	}{
		{name: "no credentials", wantMsg: "missing authorization header"},
		{name: "basic auth", header: "Basic abc", wantMsg: "invalid authorization header format"},
		{name: "empty bearer", header: "Bearer ", wantMsg: "empty token"},
		{name: "garbage cookie", cookie: "nope", wantMsg: "invalid token"},
		{name: "expired", cookie: expired, wantMsg: "session expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}

			rec, subject := runMiddleware(t, verifier, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected status 401, got %d", rec.Code)
			}
			if subject != "" {
				t.Errorf("handler should not run, got subject %q", subject)
			}
			if !strings.Contains(rec.Body.String(), tt.wantMsg) {
				t.Errorf("expected body to contain %q, got %s", tt.wantMsg, rec.Body.String())
			}
		})
	}
}

func TestSessionCookieHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", nil)
	rec := httptest.NewRecorder()
	expires := time.Now().Add(time.Hour)
	SetSessionCookie(rec, req, SessionCookieName, "tok", expires)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if c := cookies[0]; c.Value != "tok" || !c.HttpOnly || c.Path != "/" {
		t.Errorf("unexpected cookie %+v", c)
	}

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec, SessionCookieName)
	cookies = rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("expected expired cookie, got %+v", cookies)
	}
}
