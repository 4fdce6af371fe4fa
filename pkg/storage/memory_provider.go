package storage

import (
	"sync"

	"github.com/filegate/filegate/pkg/accounts"
)

// MemoryAccountStore implements the AccountStore interface using in-memory
// storage. It backs tests and the "memory" factory type; nothing is persisted
// across restarts.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]accounts.Account
	order    []string
}

// NewMemoryAccountStore creates a new in-memory account store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		accounts: make(map[string]accounts.Account),
	}
}

// List returns all accounts in insertion order.
func (s *MemoryAccountStore) List() ([]accounts.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]accounts.Account, 0, len(s.order))
	for _, username := range s.order {
		out = append(out, s.accounts[username].Clone())
	}
	return out, nil
}

// Usernames returns all usernames in insertion order.
func (s *MemoryAccountStore) Usernames() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out, nil
}

// Get retrieves an account by username.
func (s *MemoryAccountStore) Get(username string) (accounts.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[username]
	if !ok {
		return accounts.Account{}, ErrAccountNotFound
	}
	return a.Clone(), nil
}

// Add creates a new account.
func (s *MemoryAccountStore) Add(username string, fields map[string]any) (accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[username]; ok {
		return accounts.Account{}, ErrAccountExists
	}
	a := accounts.Account{Username: username}
	if err := applyChanges(&a, fields); err != nil {
		return accounts.Account{}, err
	}
	s.accounts[username] = a
	s.order = append(s.order, username)
	return a.Clone(), nil
}

// Set merges changes onto an existing account.
func (s *MemoryAccountStore) Set(username string, changes map[string]any) (accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[username]
	if !ok {
		return accounts.Account{}, ErrAccountNotFound
	}
	next := a.Clone()
	if err := applyChanges(&next, changes); err != nil {
		return accounts.Account{}, err
	}
	s.accounts[username] = next
	return next.Clone(), nil
}

// SetCredential replaces the account's password material.
func (s *MemoryAccountStore) SetCredential(username string, cred accounts.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[username]
	if !ok {
		return ErrAccountNotFound
	}
	next := a.Clone()
	next.Credential = cred
	s.accounts[username] = next
	return nil
}

// Remove deletes an account.
func (s *MemoryAccountStore) Remove(username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[username]; !ok {
		return false, nil
	}
	delete(s.accounts, username)
	for i, name := range s.order {
		if name == username {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}
