package middleware

import (
	"net/http"
	"strings"

	"github.com/Strob0t/GovForge/internal/domain/actor"
)

// Headers used to name the caller when token auth is disabled.
const (
	HeaderActorID    = "X-Actor-ID"
	HeaderActorRoles = "X-Actor-Roles"
)

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/ready": true,
}

// Auth returns middleware that resolves the calling actor.
// With auth enabled a Bearer token (or ?token= on /ws) is required and
// verified. With auth disabled the actor is taken from X-Actor-ID and
// X-Actor-Roles, which is only suitable for local development.
func Auth(verifier *TokenVerifier, authEnabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if !authEnabled {
				id := strings.TrimSpace(r.Header.Get(HeaderActorID))
				if id == "" {
					next.ServeHTTP(w, r)
					return
				}
				a := actor.Actor{ID: id, Roles: splitRoles(r.Header.Get(HeaderActorRoles))}
				next.ServeHTTP(w, r.WithContext(actor.WithActor(r.Context(), a)))
				return
			}

			raw := bearerToken(r)
			if raw == "" {
				http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
				return
			}
			a, err := verifier.Verify(raw)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(actor.WithActor(r.Context(), a)))
		})
	}
}

// RequireActor rejects requests that carry no actor.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := actor.FromContext(r.Context()); !ok {
			http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	// Browsers cannot set headers on WebSocket upgrades.
	if r.URL.Path == "/ws" {
		if t := r.URL.Query().Get("token"); t != "" {
			return t
		}
	}
	h := r.Header.Get("Authorization")
	token := strings.TrimPrefix(h, "Bearer ")
	if token == h {
		return ""
	}
	return strings.TrimSpace(token)
}

func splitRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
