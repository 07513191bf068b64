package interfaces

import domaintypes "cipherdm/internal/domain/types"

// IdentityStore persists your long-term identity keys, encrypted at rest.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
	HasIdentity() (bool, error)
}
