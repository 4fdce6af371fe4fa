package accounts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialKind(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		var c Credential
		assert.Equal(t, CredentialNone, c.Kind())
		assert.False(t, c.IsSet())
	})

	t.Run("legacy hash", func(t *testing.T) {
		c := Credential{LegacyHash: "$2a$10$abcdef"}
		assert.Equal(t, CredentialLegacyHash, c.Kind())
		assert.True(t, c.IsSet())
	})

	t.Run("challenge response", func(t *testing.T) {
		c := Credential{Salt: "aa", Verifier: "bb"}
		assert.Equal(t, CredentialChallengeResponse, c.Kind())
		assert.True(t, c.IsSet())
	})

	t.Run("challenge response wins over stale hash", func(t *testing.T) {
		c := Credential{LegacyHash: "$2a$10$abcdef", Salt: "aa", Verifier: "bb"}
		assert.Equal(t, CredentialChallengeResponse, c.Kind())
	})

	t.Run("half a pair is not a credential", func(t *testing.T) {
		c := Credential{Salt: "aa"}
		assert.Equal(t, CredentialNone, c.Kind())
	})
}

func TestAccountClone(t *testing.T) {
	admin := true
	a := Account{
		Username: "alice",
		Admin:    &admin,
		Extra:    map[string]any{"quota": 100},
	}

	clone := a.Clone()
	clone.Extra["quota"] = 200
	*clone.Admin = false

	assert.Equal(t, 100, a.Extra["quota"])
	assert.True(t, *a.Admin)
}

func TestViewMarshalJSON(t *testing.T) {
	admin := true

	t.Run("credential fields never leak", func(t *testing.T) {
		a := Account{
			Username:   "alice",
			Credential: Credential{Salt: "aa", Verifier: "bb"},
			Admin:      &admin,
			Extra: map[string]any{
				"restrict": "/pub",
				// A hand-edited file could smuggle these in as extras.
				"password": "oops",
				"srp":      "oops",
			},
		}

		data, err := json.Marshal(NewView(a, true))
		require.NoError(t, err)

		var obj map[string]any
		require.NoError(t, json.Unmarshal(data, &obj))

		assert.Equal(t, "alice", obj["username"])
		assert.Equal(t, true, obj["hasPassword"])
		assert.Equal(t, true, obj["adminActualAccess"])
		assert.Equal(t, true, obj["admin"])
		assert.Equal(t, "/pub", obj["restrict"])
		assert.NotContains(t, obj, "password")
		assert.NotContains(t, obj, "hashed_password")
		assert.NotContains(t, obj, "srp")
		assert.NotContains(t, obj, "salt")
		assert.NotContains(t, obj, "verifier")
	})

	t.Run("username present even without stored attribute", func(t *testing.T) {
		a := Account{Username: "bob"}
		data, err := json.Marshal(NewView(a, false))
		require.NoError(t, err)

		var obj map[string]any
		require.NoError(t, json.Unmarshal(data, &obj))

		assert.Equal(t, "bob", obj["username"])
		assert.Equal(t, false, obj["hasPassword"])
		assert.NotContains(t, obj, "admin")
	})
}
