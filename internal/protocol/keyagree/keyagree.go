package keyagree

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"cipherdm/internal/crypto"
	"cipherdm/internal/domain"
	"cipherdm/internal/util/memzero"
)

const (
	infoEncrypt = "enc"
	infoAuth    = "mac"
)

// Agree computes the X25519 shared secret between priv and the peer public
// key given as base64 SPKI. Agree(a, B) == Agree(b, A).
func Agree(priv domain.X25519Private, peerPublic string) (domain.SharedSecret, error) {
	pub, err := crypto.ParseSPKI(peerPublic)
	if err != nil {
		return domain.SharedSecret{}, fmt.Errorf("%w: %v", domain.ErrInvalidPeerKey, err)
	}
	return AgreeRaw(priv, pub)
}

// AgreeRaw is Agree for an already decoded peer key.
func AgreeRaw(priv domain.X25519Private, pub domain.X25519Public) (domain.SharedSecret, error) {
	var out domain.SharedSecret
	secret, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		// low-order point
		return out, fmt.Errorf("%w: %v", domain.ErrInvalidPeerKey, err)
	}
	copy(out[:], secret)
	memzero.Zero(secret)
	return out, nil
}

// Derive expands a shared secret into the encryption and authentication keys.
// It is deterministic.
func Derive(secret domain.SharedSecret) (domain.SessionKeys, error) {
	var keys domain.SessionKeys
	if err := expand(secret[:], infoEncrypt, keys.EncryptKey[:]); err != nil {
		return domain.SessionKeys{}, err
	}
	if err := expand(secret[:], infoAuth, keys.AuthKey[:]); err != nil {
		memzero.Keys(&keys)
		return domain.SessionKeys{}, err
	}
	return keys, nil
}

// SessionKeys runs Agree then Derive and wipes the intermediate secret.
func SessionKeys(priv domain.X25519Private, peerPublic string) (domain.SessionKeys, error) {
	secret, err := Agree(priv, peerPublic)
	if err != nil {
		return domain.SessionKeys{}, err
	}
	defer memzero.Secret(&secret)
	return Derive(secret)
}

func expand(secret []byte, info string, out []byte) error {
	r := hkdf.New(sha256.New, secret, nil, []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		return fmt.Errorf("hkdf %s: %w", info, err)
	}
	return nil
}
