package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// withAuth requires a bearer token signed HS256 with the shared secret.
// The health and discovery endpoints stay open so probes and clients
// can find the service before authenticating.
func withAuth(secret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/health", "/api/v1/mcp/.well-known", "/metrics":
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || raw == "" {
			writeErr(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		_, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "invalid token: "+err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}
