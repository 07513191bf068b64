package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"cipherdm/internal/domain"
)

// Fingerprint returns a short fingerprint of an X25519 public key for
// out-of-band comparison: the first 10 bytes of its SHA-256 in hex, grouped
// in blocks of four characters.
func Fingerprint(pub domain.X25519Public) domain.Fingerprint {
	sum := sha256.Sum256(pub[:])
	h := hex.EncodeToString(sum[:10])
	groups := make([]string, 0, len(h)/4)
	for i := 0; i < len(h); i += 4 {
		groups = append(groups, h[i:i+4])
	}
	return domain.Fingerprint(strings.Join(groups, " "))
}
