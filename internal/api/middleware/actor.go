package middleware

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// ActorHeader carries the authenticated user ID set by the upstream gateway.
const ActorHeader = "X-User-ID"

type actorKey struct{}

// Actor returns middleware that stores the caller's user ID in the request
// context. Requests without the header pass through anonymously.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(ActorHeader)); id != "" {
			r = r.WithContext(context.WithValue(r.Context(), actorKey{}, id))
		}
		next.ServeHTTP(w, r)
	})
}

// ActorID returns the caller's user ID, or "" for anonymous requests.
func ActorID(ctx context.Context) string {
	id, _ := ctx.Value(actorKey{}).(string)
	return id
}

// RequireActor rejects anonymous requests with 401.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ActorID(r.Context()) == "" {
			WriteError(w, http.StatusUnauthorized, ErrUnauthorized, ActorHeader+" header is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit rejects requests beyond the limiter's rate with 429.
func RateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				WriteError(w, http.StatusTooManyRequests, ErrRateLimited, "Too many requests, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
