// Package keyagree derives the pairwise session keys two identities share.
//
// # Overview
//
// Both parties run static X25519 between their own long-term private key and
// the peer's long-term public key, then expand the shared secret with
// HKDF-SHA256 (empty salt) into two independent 32-byte keys:
//   - info "enc": AES-256 key for the message codec
//   - info "mac": HMAC-SHA256 key for the message codec
//
// # Flows
//
//  1. Fetch the peer's base64 SPKI public key from the backend.
//  2. Agree: decode it and compute X25519(own private, peer public).
//  3. Derive: HKDF the secret into SessionKeys, then wipe the secret.
//
// # Errors
//
// ErrInvalidPeerKey (internal/domain) is returned when the peer key is not a
// decodable X25519 SPKI key or is a low-order point.
//
// # Security notes
//
// The agreement is static: the same two identities always derive the same
// keys, so there is no forward secrecy and compromise of either private key
// exposes every past and future message between the pair.
package keyagree
