package types

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// SharedSecret is the raw output of X25519 between two identities. It only
// lives long enough to be fed into key derivation.
type SharedSecret [32]byte

// SessionKeys are the two symmetric keys derived for a pair of identities.
// Both parties derive identical values.
type SessionKeys struct {
	EncryptKey [32]byte
	AuthKey    [32]byte
}
