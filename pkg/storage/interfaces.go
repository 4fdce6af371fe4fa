// Package storage provides persistence for the account registry.
package storage

import (
	"errors"
	"fmt"

	"github.com/filegate/filegate/pkg/accounts"
)

// Errors returned by account stores
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrInvalidChange   = errors.New("invalid change")
)

// AccountStore is the authoritative registry of accounts. Implementations
// serialize mutations (single-writer discipline) and persist the full
// registry before acknowledging a change; readers observe either the pre- or
// post-mutation snapshot, never a partially merged record.
type AccountStore interface {
	// List returns all accounts in insertion order.
	List() ([]accounts.Account, error)

	// Usernames returns all usernames in insertion order.
	Usernames() ([]string, error)

	// Get retrieves an account by username.
	Get(username string) (accounts.Account, error)

	// Add creates a new account with the given fields merged onto a fresh
	// record. It fails with ErrAccountExists if the username is taken.
	Add(username string, fields map[string]any) (accounts.Account, error)

	// Set merges changes onto an existing record. A nil change value clears
	// the field instead of storing it. It fails with ErrAccountNotFound if
	// the account is absent.
	Set(username string, changes map[string]any) (accounts.Account, error)

	// SetCredential replaces the account's password material. Credentials
	// never travel through the generic change maps.
	SetCredential(username string, cred accounts.Credential) error

	// Remove deletes an account. It reports whether an account existed.
	Remove(username string) (bool, error)
}

// Keys with fixed meaning in change/field maps. Credential-bearing keys are
// rejected there; they only move through SetCredential.
const (
	fieldAdmin = "admin"
)

var reservedFields = map[string]bool{
	"username":        true,
	"password":        true,
	"hashed_password": true,
	"srp":             true,
}

// applyChanges merges a change map onto an account. The API layer validates
// shapes before calling the store, but the store re-checks its own invariants
// rather than trusting the caller.
func applyChanges(a *accounts.Account, changes map[string]any) error {
	for key, value := range changes {
		if reservedFields[key] {
			return fmt.Errorf("%w: field %q cannot be set directly", ErrInvalidChange, key)
		}
		if key == fieldAdmin {
			if value == nil {
				a.Admin = nil
				continue
			}
			b, ok := value.(bool)
			if !ok {
				return fmt.Errorf("%w: admin must be a boolean", ErrInvalidChange)
			}
			a.Admin = &b
			continue
		}
		if value == nil {
			delete(a.Extra, key)
			continue
		}
		if a.Extra == nil {
			a.Extra = make(map[string]any)
		}
		a.Extra[key] = value
	}
	return nil
}
