// Package identity manages creation, import, encryption and unlocking of the
// local identity.
//
// It enforces passphrase policy for new identities, generates X25519 key
// pairs, imports keys exported by the browser client (PKCS#8 / SPKI base64),
// and persists them via the domain.IdentityStore. Unlock attempts go through
// a failed-attempt limiter.
package identity
