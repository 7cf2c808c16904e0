// Package auth issues and verifies the signed session tokens used by the
// admin API.
//
// Tokens are HS256 JWTs carrying the admin's email in the "sub" claim. The
// signing secret comes from admin.jwt_secret and must be at least
// MinSecretLength bytes.
//
// Middleware accepts the token from the session cookie or from an
// "Authorization: Bearer" header, so both the browser dashboard and
// scripted clients can call the same routes:
//
//	verifier, err := auth.NewJWTVerifier(secret)
//	mux.Handle("GET /api/admin/stats", auth.RequireSession(verifier, auth.SessionCookieName)(h))
//
// Handlers read the authenticated subject with SubjectFromContext.
package auth
