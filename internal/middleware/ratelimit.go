package middleware

import (
	"log"
	"net/http"
	"strconv"

	"github.com/summari/backend/internal/api/response"
	"github.com/summari/backend/internal/profile"
	"github.com/summari/backend/internal/ratelimit"
)

// RateLimit applies the sliding-window limiter per profile, falling back to
// client IP for requests without a profile token. Limiter failures fail
// open: abuse protection must not take the service down with Redis.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := profile.FromContext(r.Context())
			if identifier == "" {
				identifier = clientIP(r)
			}

			allowed, remaining, err := limiter.Allow(r.Context(), identifier)
			if err != nil {
				log.Printf("[ratelimit] Check failed for %s, allowing request: %v", identifier, err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				response.TooManyRequests(w, "Rate limit exceeded, try again shortly")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	// X-Forwarded-For first (proxies/load balancers), first IP in the list
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == ':' {
			return ip[:i]
		}
		if ip[i] == ']' {
			// IPv6 address
			break
		}
	}
	return ip
}
