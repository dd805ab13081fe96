// Package middleware provides HTTP middleware for the optional HTTP
// transport. Reads Authorization: Bearer <token>, validates it, and
// injects the client id into the request context.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vmbridge/vagrantmcp/internal/api/ctxkeys"
	pkgauth "github.com/vmbridge/vagrantmcp/pkg/auth"
)

// NewAuthMiddleware returns a middleware that validates the Bearer JWT
// against secret and injects ctxkeys.ClientID.
//
// Flow:
//  1. Read "Authorization: Bearer <token>" header
//  2. Reject if missing or not Bearer scheme with 401
//  3. Parse + validate JWT, 401 on invalid or expired
//  4. Inject ctxkeys.ClientID and call the next handler
func NewAuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearerToken(r)
			if tokenString == "" {
				writeUnauthorized(w, "missing or invalid Authorization header")
				return
			}

			claims, err := pkgauth.ParseToken(secret, tokenString)
			if err != nil {
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := ctxkeys.WithValue(r.Context(), ctxkeys.ClientID, claims.ClientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
// Returns empty string if the header is missing, the scheme is wrong, or the
// token is empty. The "Bearer " prefix is case-sensitive per RFC 7235.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// writeUnauthorized writes a 401 JSON response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message}) //nolint:errcheck
}
