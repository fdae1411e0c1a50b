// Package middleware holds the HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mavrin/vpncore/pkg/token"
)

type contextKey string

// SubjectKey is the request-context key under which the authenticated
// caller's subject is stored.
const SubjectKey contextKey = "subject"

// Authenticator validates bearer tokens on API requests.
type Authenticator struct {
	key         []byte
	publicPaths map[string]bool
}

// NewAuthenticator creates an Authenticator. publicPaths are served
// without a token.
func NewAuthenticator(key []byte, publicPaths ...string) *Authenticator {
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}
	return &Authenticator{key: key, publicPaths: public}
}

// Middleware rejects requests without a valid bearer token and stashes
// the token subject in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := bearerToken(r)
		if !ok {
			http.Error(w, "Authorization required", http.StatusUnauthorized)
			return
		}
		subject, err := token.Verify(a.key, raw)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), SubjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Subject returns the authenticated subject from the request context.
func Subject(ctx context.Context) string {
	subject, _ := ctx.Value(SubjectKey).(string)
	return subject
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
