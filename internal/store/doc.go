// Package store provides file-based persistence for the local identity.
//
// The identity key pair is serialised as JSON and sealed with
// ChaCha20-Poly1305 under a scrypt-derived key before it touches disk, so
// the private key never leaves the process unencrypted. Writes go through a
// temp file and rename. IdentityFileStore is safe for concurrent use.
package store
