package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey struct{}

// Middleware holds dependencies for profile authentication.
type Middleware struct {
	tokens *TokenService
}

// NewMiddleware creates a new profile middleware.
func NewMiddleware(tokens *TokenService) *Middleware {
	return &Middleware{tokens: tokens}
}

// Require rejects requests without a valid profile token.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profileID, err := m.extract(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			status := http.StatusUnauthorized
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "A valid profile token is required",
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithProfile(r.Context(), profileID)))
	})
}

// Optional sets the profile in context when a valid token is present but
// lets the request through either way. Runs globally so rate limiting can
// key on the profile instead of the IP.
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if profileID, err := m.extract(r); err == nil {
			r = r.WithContext(WithProfile(r.Context(), profileID))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) extract(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", ErrInvalidToken
	}
	return m.tokens.Validate(strings.TrimPrefix(header, "Bearer "))
}

// WithProfile returns a context carrying the given profile id.
func WithProfile(ctx context.Context, profileID string) context.Context {
	return context.WithValue(ctx, contextKey{}, profileID)
}

// FromContext retrieves the profile id from the request context, or "".
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}
