package crypto

import (
	"crypto/ecdh"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"

	"cipherdm/internal/domain"
)

var errNotX25519 = errors.New("key is not X25519")

// EncodeSPKI returns the base64 SubjectPublicKeyInfo encoding of pub, the
// same form WebCrypto exports with exportKey("spki").
func EncodeSPKI(pub domain.X25519Public) (string, error) {
	key, err := ecdh.X25519().NewPublicKey(pub[:])
	if err != nil {
		return "", err
	}
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", err
	}
	return B64(der), nil
}

// ParseSPKI decodes a base64 SubjectPublicKeyInfo X25519 public key.
func ParseSPKI(encoded string) (domain.X25519Public, error) {
	var out domain.X25519Public
	der, err := UnB64(strings.TrimSpace(encoded))
	if err != nil {
		return out, fmt.Errorf("decode spki: %w", err)
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return out, fmt.Errorf("parse spki: %w", err)
	}
	pk, ok := key.(*ecdh.PublicKey)
	if !ok || pk.Curve() != ecdh.X25519() {
		return out, errNotX25519
	}
	copy(out[:], pk.Bytes())
	return out, nil
}

// EncodePKCS8 returns the base64 PKCS#8 encoding of priv.
func EncodePKCS8(priv domain.X25519Private) (string, error) {
	key, err := ecdh.X25519().NewPrivateKey(priv[:])
	if err != nil {
		return "", err
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", err
	}
	return B64(der), nil
}

// ParsePKCS8 decodes a base64 PKCS#8 X25519 private key, as exported by
// WebCrypto with exportKey("pkcs8").
func ParsePKCS8(encoded string) (domain.X25519Private, error) {
	var out domain.X25519Private
	der, err := UnB64(strings.TrimSpace(encoded))
	if err != nil {
		return out, fmt.Errorf("decode pkcs8: %w", err)
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return out, fmt.Errorf("parse pkcs8: %w", err)
	}
	sk, ok := key.(*ecdh.PrivateKey)
	if !ok || sk.Curve() != ecdh.X25519() {
		return out, errNotX25519
	}
	copy(out[:], sk.Bytes())
	return out, nil
}
