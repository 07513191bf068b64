package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"cipherdm/internal/domain"
)

const idFilename = "identity.json.enc"

// IdentityFileStore persists the local identity to disk.
type IdentityFileStore struct {
	dir    string
	params scryptParams
	mu     sync.Mutex
}

// Option configures an IdentityFileStore.
type Option func(*IdentityFileStore)

// WithScryptCost overrides the scrypt cost parameter N (a power of two).
// Lower values only make sense in tests.
func WithScryptCost(n int) Option {
	return func(s *IdentityFileStore) { s.params.N = n }
}

// NewIdentityFileStore returns an IdentityFileStore rooted at dir.
func NewIdentityFileStore(dir string, opts ...Option) *IdentityFileStore {
	s := &IdentityFileStore{dir: dir, params: defaultScryptParams()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Path returns the location of the encrypted identity file.
func (s *IdentityFileStore) Path() string { return filepath.Join(s.dir, idFilename) }

// SaveIdentity writes the encrypted identity to disk, replacing any previous one.
func (s *IdentityFileStore) SaveIdentity(passphrase string, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	ct, err := seal(passphrase, raw, s.params)
	if err != nil {
		return fmt.Errorf("seal identity: %w", err)
	}
	return writeFile(s.Path(), ct, 0o600)
}

// LoadIdentity reads and decrypts the identity. It returns
// domain.ErrNoIdentity when none has been saved and ErrWrongPassphrase when
// the passphrase does not open it.
func (s *IdentityFileStore) LoadIdentity(passphrase string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(s.Path())
	if err != nil {
		return domain.Identity{}, err
	}
	if b == nil {
		return domain.Identity{}, domain.ErrNoIdentity
	}
	pt, err := open(passphrase, b)
	if err != nil {
		return domain.Identity{}, err
	}
	var id domain.Identity
	if err := json.Unmarshal(pt, &id); err != nil {
		return domain.Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	return id, nil
}

// HasIdentity reports whether an identity file exists.
func (s *IdentityFileStore) HasIdentity() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := readFile(s.Path())
	if err != nil {
		return false, err
	}
	return b != nil, nil
}

// Compile-time assertion that IdentityFileStore implements domain.IdentityStore.
var _ domain.IdentityStore = (*IdentityFileStore)(nil)
