// Package perm decides who may administer the server. All functions are pure
// reads over account snapshots; nothing here mutates the store.
package perm

import (
	"context"

	"github.com/filegate/filegate/pkg/accounts"
)

// MembershipProvider answers group-derived capability questions for a
// username. Group resolution is owned elsewhere (the server's vfs/groups
// subsystem); the resolver only queries it.
type MembershipProvider interface {
	// IsAdmin reports whether group membership grants the username
	// administrative access.
	IsAdmin(username string) bool
}

// Resolver computes effective permissions for accounts.
type Resolver struct {
	membership MembershipProvider
}

// NewResolver creates a resolver. membership may be nil, in which case only
// the direct admin flag is consulted.
func NewResolver(membership MembershipProvider) *Resolver {
	return &Resolver{membership: membership}
}

// CanLoginAdmin reports whether the account may enter the admin interface:
// either its own admin flag is set, or group membership grants it.
func (r *Resolver) CanLoginAdmin(a accounts.Account) bool {
	if a.Admin != nil && *a.Admin {
		return true
	}
	if r.membership != nil {
		return r.membership.IsAdmin(a.Username)
	}
	return false
}

// Key type for context values
type contextKey string

const usernameKey contextKey = "username"

// WithUsername returns a context carrying the authenticated username. The
// session middleware seeds this after validating credentials.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// CurrentUsername returns the identity the request context is already
// authenticated as, or false if the request is anonymous. This is a read of
// transport-owned session state, not a store lookup.
func (r *Resolver) CurrentUsername(ctx context.Context) (string, bool) {
	return UsernameFromContext(ctx)
}

// UsernameFromContext retrieves the authenticated username from the context.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameKey).(string)
	return username, ok && username != ""
}
