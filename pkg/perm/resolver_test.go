package perm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/filegate/filegate/pkg/accounts"
)

type staticMembership struct {
	admins map[string]bool
}

func (m staticMembership) IsAdmin(username string) bool {
	return m.admins[username]
}

func TestCanLoginAdmin(t *testing.T) {
	yes, no := true, false

	t.Run("direct flag grants access", func(t *testing.T) {
		r := NewResolver(nil)
		assert.True(t, r.CanLoginAdmin(accounts.Account{Username: "alice", Admin: &yes}))
	})

	t.Run("explicit false denies", func(t *testing.T) {
		r := NewResolver(nil)
		assert.False(t, r.CanLoginAdmin(accounts.Account{Username: "bob", Admin: &no}))
	})

	t.Run("absent flag denies without membership", func(t *testing.T) {
		r := NewResolver(nil)
		assert.False(t, r.CanLoginAdmin(accounts.Account{Username: "carol"}))
	})

	t.Run("membership grants when flag absent", func(t *testing.T) {
		r := NewResolver(staticMembership{admins: map[string]bool{"carol": true}})
		assert.True(t, r.CanLoginAdmin(accounts.Account{Username: "carol"}))
		assert.False(t, r.CanLoginAdmin(accounts.Account{Username: "dave"}))
	})

	t.Run("direct flag wins without consulting membership", func(t *testing.T) {
		r := NewResolver(staticMembership{admins: map[string]bool{}})
		assert.True(t, r.CanLoginAdmin(accounts.Account{Username: "alice", Admin: &yes}))
	})
}

func TestCurrentUsername(t *testing.T) {
	r := NewResolver(nil)

	t.Run("anonymous context", func(t *testing.T) {
		_, ok := r.CurrentUsername(context.Background())
		assert.False(t, ok)
	})

	t.Run("authenticated context", func(t *testing.T) {
		ctx := WithUsername(context.Background(), "alice")
		username, ok := r.CurrentUsername(ctx)
		assert.True(t, ok)
		assert.Equal(t, "alice", username)
	})

	t.Run("empty username counts as anonymous", func(t *testing.T) {
		ctx := WithUsername(context.Background(), "")
		_, ok := r.CurrentUsername(ctx)
		assert.False(t, ok)
	})
}
