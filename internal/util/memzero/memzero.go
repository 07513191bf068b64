package memzero

import (
	"crypto/subtle"

	domaintypes "cipherdm/internal/domain/types"
)

// Zero overwrites b with zeros in a constant-time friendly way.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
}

// Secret wipes a shared secret once it has been fed into key derivation.
func Secret(s *domaintypes.SharedSecret) { Zero(s[:]) }

// Keys wipes both halves of a session key pair.
func Keys(k *domaintypes.SessionKeys) {
	Zero(k.EncryptKey[:])
	Zero(k.AuthKey[:])
}
