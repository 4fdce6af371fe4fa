package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filegate/filegate/pkg/accounts"
)

func TestMemoryAccountStore_Add(t *testing.T) {
	store := NewMemoryAccountStore()

	t.Run("successful add", func(t *testing.T) {
		a, err := store.Add("alice", map[string]any{"admin": true})
		require.NoError(t, err)
		assert.Equal(t, "alice", a.Username)
		require.NotNil(t, a.Admin)
		assert.True(t, *a.Admin)
	})

	t.Run("duplicate username rejected and record untouched", func(t *testing.T) {
		_, err := store.Add("alice", map[string]any{"admin": false})
		assert.ErrorIs(t, err, ErrAccountExists)

		a, err := store.Get("alice")
		require.NoError(t, err)
		require.NotNil(t, a.Admin)
		assert.True(t, *a.Admin)
	})

	t.Run("credential fields rejected in field map", func(t *testing.T) {
		_, err := store.Add("mallory", map[string]any{"hashed_password": "x"})
		assert.ErrorIs(t, err, ErrInvalidChange)
	})
}

func TestMemoryAccountStore_Set(t *testing.T) {
	store := NewMemoryAccountStore()
	_, err := store.Add("alice", map[string]any{"admin": true, "quota": 100})
	require.NoError(t, err)

	t.Run("merge keeps unspecified fields", func(t *testing.T) {
		a, err := store.Set("alice", map[string]any{"restrict": "/pub"})
		require.NoError(t, err)
		assert.Equal(t, 100, a.Extra["quota"])
		assert.Equal(t, "/pub", a.Extra["restrict"])
		require.NotNil(t, a.Admin)
	})

	t.Run("nil clears a field instead of storing it", func(t *testing.T) {
		a, err := store.Set("alice", map[string]any{"admin": nil})
		require.NoError(t, err)
		assert.Nil(t, a.Admin)

		a, err = store.Set("alice", map[string]any{"quota": nil})
		require.NoError(t, err)
		assert.NotContains(t, a.Extra, "quota")
	})

	t.Run("non-boolean admin rejected, record unchanged", func(t *testing.T) {
		before, err := store.Get("alice")
		require.NoError(t, err)

		_, err = store.Set("alice", map[string]any{"admin": "yes"})
		assert.ErrorIs(t, err, ErrInvalidChange)

		after, err := store.Get("alice")
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("absent account", func(t *testing.T) {
		_, err := store.Set("nobody", map[string]any{"admin": true})
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestMemoryAccountStore_Remove(t *testing.T) {
	store := NewMemoryAccountStore()
	_, err := store.Add("alice", nil)
	require.NoError(t, err)

	removed, err := store.Remove("alice")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = store.Get("alice")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	removed, err = store.Remove("alice")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMemoryAccountStore_Order(t *testing.T) {
	store := NewMemoryAccountStore()
	for _, name := range []string{"zoe", "alice", "mike"} {
		_, err := store.Add(name, nil)
		require.NoError(t, err)
	}

	names, err := store.Usernames()
	require.NoError(t, err)
	assert.Equal(t, []string{"zoe", "alice", "mike"}, names)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "zoe", list[0].Username)
}

func TestMemoryAccountStore_SetCredential(t *testing.T) {
	store := NewMemoryAccountStore()
	_, err := store.Add("alice", nil)
	require.NoError(t, err)

	err = store.SetCredential("alice", accounts.Credential{Salt: "aa", Verifier: "bb"})
	require.NoError(t, err)

	a, err := store.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, accounts.CredentialChallengeResponse, a.Credential.Kind())

	err = store.SetCredential("nobody", accounts.Credential{})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
