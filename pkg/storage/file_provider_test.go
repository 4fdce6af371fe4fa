package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filegate/filegate/pkg/accounts"
)

func newTestFileStore(t *testing.T) (*FileAccountStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	store, err := NewFileAccountStore(path)
	require.NoError(t, err)
	return store, path
}

func TestFileAccountStore_RoundTrip(t *testing.T) {
	store, path := newTestFileStore(t)

	_, err := store.Add("alice", map[string]any{"admin": true, "quota": 100})
	require.NoError(t, err)
	_, err = store.Add("bob", map[string]any{"restrict": "/pub"})
	require.NoError(t, err)
	require.NoError(t, store.SetCredential("bob", accounts.Credential{Salt: "aabb", Verifier: "ccdd"}))
	require.NoError(t, store.SetCredential("alice", accounts.Credential{LegacyHash: "$2a$10$xyz"}))

	// A fresh store reading the same file must reproduce the registry.
	reopened, err := NewFileAccountStore(path)
	require.NoError(t, err)

	names, err := reopened.Usernames()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)

	alice, err := reopened.Get("alice")
	require.NoError(t, err)
	require.NotNil(t, alice.Admin)
	assert.True(t, *alice.Admin)
	assert.Equal(t, 100, alice.Extra["quota"])
	assert.Equal(t, accounts.CredentialLegacyHash, alice.Credential.Kind())
	assert.Equal(t, "$2a$10$xyz", alice.Credential.LegacyHash)

	bob, err := reopened.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, "aabb", bob.Credential.Salt)
	assert.Equal(t, "ccdd", bob.Credential.Verifier)
	assert.Equal(t, "/pub", bob.Extra["restrict"])
}

func TestFileAccountStore_UnknownFieldsSurvive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")

	// A hand-edited registry with fields this subsystem knows nothing about.
	seed := `alice:
  admin: true
  disable_password_change: true
  redirect: /home/alice
bob:
  srp:
    salt: aabb
    verifier: ccdd
`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0600))

	store, err := NewFileAccountStore(path)
	require.NoError(t, err)

	// Mutate an unrelated account; the whole registry is rewritten.
	_, err = store.Set("bob", map[string]any{"quota": 5})
	require.NoError(t, err)

	reopened, err := NewFileAccountStore(path)
	require.NoError(t, err)

	alice, err := reopened.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, true, alice.Extra["disable_password_change"])
	assert.Equal(t, "/home/alice", alice.Extra["redirect"])

	bob, err := reopened.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, "aabb", bob.Credential.Salt)
	assert.Equal(t, 5, bob.Extra["quota"])

	names, err := reopened.Usernames()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)
}

func TestFileAccountStore_PersistFailureLeavesStateUntouched(t *testing.T) {
	// Point the store at a directory that is about to disappear, so the
	// staged write fails before the in-memory view is swapped.
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "accounts.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))

	store, err := NewFileAccountStore(path)
	require.NoError(t, err)
	_, err = store.Add("alice", nil)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Dir(path)))

	_, err = store.Add("bob", nil)
	require.Error(t, err)

	// The failed add must not be visible.
	_, err = store.Get("bob")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	names, err := store.Usernames()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, names)
}

func TestFileAccountStore_Reload(t *testing.T) {
	store, path := newTestFileStore(t)
	_, err := store.Add("alice", nil)
	require.NoError(t, err)

	// Simulate a hand edit while the server runs.
	edited := `alice:
  admin: true
carol: {}
`
	require.NoError(t, os.WriteFile(path, []byte(edited), 0600))
	require.NoError(t, store.Reload())

	names, err := store.Usernames()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, names)

	alice, err := store.Get("alice")
	require.NoError(t, err)
	require.NotNil(t, alice.Admin)
	assert.True(t, *alice.Admin)
}

func TestFileAccountStore_ConcurrentSets(t *testing.T) {
	store, _ := newTestFileStore(t)

	const workers = 8
	for i := 0; i < workers; i++ {
		_, err := store.Add(fmt.Sprintf("user%d", i), nil)
		require.NoError(t, err)
	}

	t.Run("different usernames", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.Set(fmt.Sprintf("user%d", i), map[string]any{"slot": i})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		list, err := store.List()
		require.NoError(t, err)
		require.Len(t, list, workers)
		for _, a := range list {
			assert.Contains(t, a.Extra, "slot")
		}
	})

	t.Run("same username never interleaves partial merges", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.Set("user0", map[string]any{fmt.Sprintf("field%d", i): i})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		// Each merge is disjoint, so a serial execution in any order keeps
		// all of them.
		a, err := store.Get("user0")
		require.NoError(t, err)
		for i := 0; i < workers; i++ {
			assert.Contains(t, a.Extra, fmt.Sprintf("field%d", i))
		}
	})
}

func TestFileAccountStore_EmptyAndMissingFile(t *testing.T) {
	t.Run("missing file means empty registry", func(t *testing.T) {
		store, err := NewFileAccountStore(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		names, err := store.Usernames()
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("empty file means empty registry", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "accounts.yaml")
		require.NoError(t, os.WriteFile(path, nil, 0600))
		store, err := NewFileAccountStore(path)
		require.NoError(t, err)
		names, err := store.Usernames()
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("non-mapping file is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "accounts.yaml")
		require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0600))
		_, err := NewFileAccountStore(path)
		assert.Error(t, err)
	})
}
