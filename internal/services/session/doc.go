// Package session memoises the pairwise session keys shared with each peer.
//
// Keys are derived on first use: fetch the peer's public key from the
// backend, run key agreement with the local identity, expand with HKDF.
// Concurrent requests for the same peer share one derivation, and failures
// are never cached so a later call retries.
package session
