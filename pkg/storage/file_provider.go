package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/filegate/filegate/pkg/accounts"
)

// FileAccountStore implements the AccountStore interface on top of a single
// YAML file mapping username to record. The file is the source of truth: it
// is human-editable, keeps records in insertion order, and unknown fields on
// a record survive a load/save cycle unchanged.
//
// Mutations are serialized through a single writer. Each one stages the next
// registry, persists it atomically, and only then publishes the new in-memory
// snapshot, so a failed write leaves both the file and the visible state
// untouched.
type FileAccountStore struct {
	path string

	// writeMu serializes the whole read-modify-persist cycle.
	writeMu sync.Mutex

	// snapMu guards publication of the registry snapshot. Readers hold it
	// only long enough to grab the pointer.
	snapMu sync.RWMutex
	snap   *registry
}

// registry is an immutable-once-published snapshot of the accounts file.
type registry struct {
	order    []string
	accounts map[string]accounts.Account
}

func newRegistry() *registry {
	return &registry{accounts: make(map[string]accounts.Account)}
}

func (r *registry) clone() *registry {
	next := &registry{
		order:    make([]string, len(r.order)),
		accounts: make(map[string]accounts.Account, len(r.accounts)),
	}
	copy(next.order, r.order)
	for username, a := range r.accounts {
		next.accounts[username] = a.Clone()
	}
	return next
}

func (r *registry) put(a accounts.Account) {
	if _, ok := r.accounts[a.Username]; !ok {
		r.order = append(r.order, a.Username)
	}
	r.accounts[a.Username] = a
}

func (r *registry) remove(username string) {
	delete(r.accounts, username)
	for i, name := range r.order {
		if name == username {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// accountRecord is the persisted form of an account. The username is the
// mapping key, not a record field. Unrecognized fields land in Extra and are
// written back verbatim.
type accountRecord struct {
	HashedPassword string         `yaml:"hashed_password,omitempty"`
	SRP            *srpRecord     `yaml:"srp,omitempty"`
	Admin          *bool          `yaml:"admin,omitempty"`
	Extra          map[string]any `yaml:",inline"`
}

type srpRecord struct {
	Salt     string `yaml:"salt"`
	Verifier string `yaml:"verifier"`
}

func recordFromAccount(a accounts.Account) accountRecord {
	rec := accountRecord{
		HashedPassword: a.Credential.LegacyHash,
		Admin:          a.Admin,
		Extra:          a.Extra,
	}
	if a.Credential.Salt != "" || a.Credential.Verifier != "" {
		rec.SRP = &srpRecord{Salt: a.Credential.Salt, Verifier: a.Credential.Verifier}
	}
	return rec
}

func accountFromRecord(username string, rec accountRecord) accounts.Account {
	a := accounts.Account{
		Username: username,
		Admin:    rec.Admin,
		Extra:    rec.Extra,
	}
	a.Credential.LegacyHash = rec.HashedPassword
	if rec.SRP != nil {
		a.Credential.Salt = rec.SRP.Salt
		a.Credential.Verifier = rec.SRP.Verifier
	}
	return a
}

// NewFileAccountStore opens the accounts file at path, creating an empty
// registry if the file does not exist yet.
func NewFileAccountStore(path string) (*FileAccountStore, error) {
	s := &FileAccountStore{path: path}
	reg, err := loadRegistry(path)
	if err != nil {
		return nil, err
	}
	s.snap = reg
	return s, nil
}

// Reload re-reads the accounts file from disk, picking up edits made by hand
// while the server runs.
func (s *FileAccountStore) Reload() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	reg, err := loadRegistry(s.path)
	if err != nil {
		return err
	}
	s.publish(reg)
	return nil
}

func (s *FileAccountStore) snapshot() *registry {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

func (s *FileAccountStore) publish(reg *registry) {
	s.snapMu.Lock()
	s.snap = reg
	s.snapMu.Unlock()
}

// List returns all accounts in the order they appear in the file.
func (s *FileAccountStore) List() ([]accounts.Account, error) {
	reg := s.snapshot()
	out := make([]accounts.Account, 0, len(reg.order))
	for _, username := range reg.order {
		out = append(out, reg.accounts[username].Clone())
	}
	return out, nil
}

// Usernames returns all usernames in file order.
func (s *FileAccountStore) Usernames() ([]string, error) {
	reg := s.snapshot()
	out := make([]string, len(reg.order))
	copy(out, reg.order)
	return out, nil
}

// Get retrieves an account by username.
func (s *FileAccountStore) Get(username string) (accounts.Account, error) {
	reg := s.snapshot()
	a, ok := reg.accounts[username]
	if !ok {
		return accounts.Account{}, ErrAccountNotFound
	}
	return a.Clone(), nil
}

// Add creates a new account and persists the registry before acknowledging.
func (s *FileAccountStore) Add(username string, fields map[string]any) (accounts.Account, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.snapshot().clone()
	if _, ok := next.accounts[username]; ok {
		return accounts.Account{}, ErrAccountExists
	}
	a := accounts.Account{Username: username}
	if err := applyChanges(&a, fields); err != nil {
		return accounts.Account{}, err
	}
	next.put(a)
	if err := s.persist(next); err != nil {
		return accounts.Account{}, err
	}
	s.publish(next)
	return a.Clone(), nil
}

// Set merges changes onto an existing account.
func (s *FileAccountStore) Set(username string, changes map[string]any) (accounts.Account, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.snapshot().clone()
	a, ok := next.accounts[username]
	if !ok {
		return accounts.Account{}, ErrAccountNotFound
	}
	if err := applyChanges(&a, changes); err != nil {
		return accounts.Account{}, err
	}
	next.accounts[username] = a
	if err := s.persist(next); err != nil {
		return accounts.Account{}, err
	}
	s.publish(next)
	return a.Clone(), nil
}

// SetCredential replaces the account's password material.
func (s *FileAccountStore) SetCredential(username string, cred accounts.Credential) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.snapshot().clone()
	a, ok := next.accounts[username]
	if !ok {
		return ErrAccountNotFound
	}
	a.Credential = cred
	next.accounts[username] = a
	if err := s.persist(next); err != nil {
		return err
	}
	s.publish(next)
	return nil
}

// Remove deletes an account.
func (s *FileAccountStore) Remove(username string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.snapshot().clone()
	if _, ok := next.accounts[username]; !ok {
		return false, nil
	}
	next.remove(username)
	if err := s.persist(next); err != nil {
		return false, err
	}
	s.publish(next)
	return true, nil
}

// persist writes the staged registry to disk. The in-memory snapshot is only
// swapped after this succeeds.
func (s *FileAccountStore) persist(reg *registry) error {
	data, err := encodeRegistry(reg)
	if err != nil {
		return fmt.Errorf("encode accounts file: %w", err)
	}
	if err := writeFileAtomic(s.path, data, 0600); err != nil {
		return fmt.Errorf("persist accounts file: %w", err)
	}
	return nil
}

// encodeRegistry builds the YAML document by hand so records keep their
// insertion order; yaml.Marshal on a Go map would sort the keys.
func encodeRegistry(reg *registry) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, username := range reg.order {
		key := &yaml.Node{}
		if err := key.Encode(username); err != nil {
			return nil, err
		}
		value := &yaml.Node{}
		if err := value.Encode(recordFromAccount(reg.accounts[username])); err != nil {
			return nil, err
		}
		root.Content = append(root.Content, key, value)
	}
	return yaml.Marshal(root)
}

func loadRegistry(path string) (*registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newRegistry(), nil
		}
		return nil, fmt.Errorf("read accounts file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return newRegistry(), nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse accounts file: expected a mapping of username to record")
	}

	reg := newRegistry()
	for i := 0; i+1 < len(doc.Content); i += 2 {
		username := doc.Content[i].Value
		var rec accountRecord
		if err := doc.Content[i+1].Decode(&rec); err != nil {
			return nil, fmt.Errorf("parse accounts file: record %q: %w", username, err)
		}
		reg.put(accountFromRecord(username, rec))
	}
	return reg, nil
}

// writeFileAtomic writes data through a temp file in the same directory and
// renames it into place, fsyncing file and directory, so a crash mid-write
// never leaves a truncated registry behind.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".accounts-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
