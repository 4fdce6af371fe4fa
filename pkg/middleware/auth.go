// Package middleware provides HTTP middleware for the filegate API.
package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/filegate/filegate/pkg/perm"
	"github.com/filegate/filegate/pkg/services"
)

// AuthMiddleware resolves the session identity for incoming requests.
type AuthMiddleware struct {
	accountService *services.AccountService
	rateLimiter    *RateLimiter
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(accountService *services.AccountService) *AuthMiddleware {
	return &AuthMiddleware{
		accountService: accountService,
		rateLimiter:    NewRateLimiter(5, time.Minute), // 5 failed attempts per minute
	}
}

// Authenticate validates the request's credentials and seeds the request
// context with the authenticated username. Bearer tokens are session JWTs;
// Basic credentials are verified against the legacy hash.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip authentication for CORS preflight
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		username, password, hasBasicAuth := r.BasicAuth()
		authHeader := r.Header.Get("Authorization")

		var identity string
		var err error

		switch {
		case strings.HasPrefix(authHeader, "Bearer "):
			token := strings.TrimPrefix(authHeader, "Bearer ")
			identity, err = m.accountService.ValidateToken(token)

		case hasBasicAuth:
			if m.rateLimiter.IsLimited(username) {
				http.Error(w, "Too many authentication attempts, please try again later", http.StatusTooManyRequests)
				return
			}
			identity, err = m.accountService.Authenticate(username, password)
			if err != nil {
				m.rateLimiter.RecordAttempt(username)
			}

		default:
			http.Error(w, "Authorization required", http.StatusUnauthorized)
			return
		}

		if err != nil {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(perm.WithUsername(r.Context(), identity)))
	})
}

// RequireAdmin rejects requests whose authenticated identity may not enter
// the admin interface.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		username, ok := perm.UsernameFromContext(r.Context())
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		if !m.accountService.IsAdmin(username) {
			http.Error(w, "Admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimiter implements a sliding-window limit on failed authentication
// attempts per client.
type RateLimiter struct {
	attempts   map[string][]time.Time
	limit      int
	window     time.Duration
	mu         sync.Mutex
	cleanupInt time.Duration
	lastClean  time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		attempts:   make(map[string][]time.Time),
		limit:      limit,
		window:     window,
		cleanupInt: 5 * time.Minute,
		lastClean:  time.Now(),
	}
}

// IsLimited checks if a client is rate limited.
func (r *RateLimiter) IsLimited(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if time.Since(r.lastClean) > r.cleanupInt {
		r.cleanup()
		r.lastClean = time.Now()
	}

	cutoff := time.Now().Add(-r.window)
	count := 0
	for _, t := range r.attempts[clientID] {
		if t.After(cutoff) {
			count++
		}
	}
	return count >= r.limit
}

// RecordAttempt records a failed authentication attempt.
func (r *RateLimiter) RecordAttempt(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts[clientID] = append(r.attempts[clientID], time.Now())
}

// cleanup removes entries that fell out of the window.
func (r *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-r.window)
	for clientID, attempts := range r.attempts {
		var valid []time.Time
		for _, t := range attempts {
			if t.After(cutoff) {
				valid = append(valid, t)
			}
		}
		if len(valid) > 0 {
			r.attempts[clientID] = valid
		} else {
			delete(r.attempts, clientID)
		}
	}
}
