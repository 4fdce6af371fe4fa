// Package accounts defines the account model for the filegate admin subsystem.
package accounts

import "encoding/json"

// CredentialKind identifies which credential scheme an account uses.
type CredentialKind int

const (
	// CredentialNone means the account has no password material at all.
	CredentialNone CredentialKind = iota

	// CredentialLegacyHash means the account still uses a server-side
	// salted hash of the password.
	CredentialLegacyHash

	// CredentialChallengeResponse means the account stores a client-derived
	// salt/verifier pair and the server never sees the password.
	CredentialChallengeResponse
)

// Credential holds an account's password material. Both representations may
// be populated while an account migrates off the legacy scheme; Kind resolves
// that ambiguity in favor of the challenge-response pair.
type Credential struct {
	// LegacyHash is a bcrypt hash of the password (legacy scheme).
	LegacyHash string

	// Salt and Verifier are the hex-encoded challenge-response pair,
	// computed by the client and stored verbatim.
	Salt     string
	Verifier string
}

// Kind reports the effective credential scheme. The challenge-response pair
// wins when both representations are present.
func (c Credential) Kind() CredentialKind {
	switch {
	case c.Salt != "" && c.Verifier != "":
		return CredentialChallengeResponse
	case c.LegacyHash != "":
		return CredentialLegacyHash
	default:
		return CredentialNone
	}
}

// IsSet reports whether the account has any usable credential.
func (c Credential) IsSet() bool {
	return c.Kind() != CredentialNone
}

// Account represents a user of the file server.
type Account struct {
	// Username is the identity key. In the persisted registry it is the map
	// key rather than a stored attribute, and is re-attached on load.
	Username string

	// Credential is the account's password material. It never leaves the
	// subsystem; API responses carry only the derived hasPassword flag.
	Credential Credential

	// Admin grants administrative access when true. nil means no explicit
	// grant; group membership may still grant access externally.
	Admin *bool

	// Extra carries policy fields this subsystem does not interpret
	// (resource restrictions and the like). They survive load/save cycles
	// unchanged.
	Extra map[string]any
}

// Clone returns a deep copy, so callers can hand out snapshots without
// sharing the Extra map.
func (a Account) Clone() Account {
	out := a
	if a.Admin != nil {
		v := *a.Admin
		out.Admin = &v
	}
	if a.Extra != nil {
		out.Extra = make(map[string]any, len(a.Extra))
		for k, v := range a.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// View is the sanitized projection of an Account returned by the API. It
// carries no credential material, only derived booleans.
type View struct {
	Username          string
	Admin             *bool
	HasPassword       bool
	AdminActualAccess bool
	Extra             map[string]any
}

// NewView builds the sanitized projection for an account. adminActualAccess
// is resolved by the caller (it may involve group membership, which this
// package does not know about).
func NewView(a Account, adminActualAccess bool) View {
	return View{
		Username:          a.Username,
		Admin:             a.Admin,
		HasPassword:       a.Credential.IsSet(),
		AdminActualAccess: adminActualAccess,
		Extra:             a.Extra,
	}
}

// MarshalJSON flattens the passthrough fields into the account object, the
// same shape the admin GUI consumed from the original registry. Reserved
// keys always come from the view itself.
func (v View) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(v.Extra)+4)
	for k, val := range v.Extra {
		obj[k] = val
	}
	obj["username"] = v.Username
	obj["hasPassword"] = v.HasPassword
	obj["adminActualAccess"] = v.AdminActualAccess
	if v.Admin != nil {
		obj["admin"] = *v.Admin
	} else {
		delete(obj, "admin")
	}
	// Credential material must never leak through passthrough fields.
	delete(obj, "password")
	delete(obj, "hashed_password")
	delete(obj, "srp")
	return json.Marshal(obj)
}
