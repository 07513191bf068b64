package keyagree_test

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"cipherdm/internal/crypto"
	"cipherdm/internal/domain"
	"cipherdm/internal/protocol/keyagree"
)

// makeIdentity returns a fresh key pair and its SPKI encoding.
func makeIdentity(t *testing.T) (domain.X25519Private, string) {
	t.Helper()
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	spki, err := crypto.EncodeSPKI(pub)
	if err != nil {
		t.Fatalf("EncodeSPKI: %v", err)
	}
	return priv, spki
}

func TestAgreeSymmetric(t *testing.T) {
	alicePriv, alicePub := makeIdentity(t)
	bobPriv, bobPub := makeIdentity(t)

	ab, err := keyagree.Agree(alicePriv, bobPub)
	if err != nil {
		t.Fatalf("Agree(alice, bob): %v", err)
	}
	ba, err := keyagree.Agree(bobPriv, alicePub)
	if err != nil {
		t.Fatalf("Agree(bob, alice): %v", err)
	}
	if ab != ba {
		t.Fatal("shared secrets differ")
	}
}

func TestAgreeRawRFC7748(t *testing.T) {
	var priv domain.X25519Private
	var pub domain.X25519Public
	mustHex(t, priv[:], "77076d0a7318a57d3c16c17251b26645df4c2f87ebc0992ab177fba51db92c2a")
	mustHex(t, pub[:], "de9edb7d7b7dc1b4d35b61c2ece435373f8343c85b78674dadfc7e146f882b4f")

	got, err := keyagree.AgreeRaw(priv, pub)
	if err != nil {
		t.Fatalf("AgreeRaw: %v", err)
	}
	want := "4a5d9d5ba4ce2de1728e3bf480350f25e07e21c947d19e3376f09b3c1e161742"
	if hex.EncodeToString(got[:]) != want {
		t.Fatalf("got %x, want %s", got, want)
	}
}

func TestAgreeRejectsBadPeerKey(t *testing.T) {
	priv, _ := makeIdentity(t)
	for _, in := range []string{"", "not-base64!", "aGVsbG8="} {
		if _, err := keyagree.Agree(priv, in); !errors.Is(err, domain.ErrInvalidPeerKey) {
			t.Errorf("Agree(%q): want ErrInvalidPeerKey, got %v", in, err)
		}
	}

	var zero domain.X25519Public
	if _, err := keyagree.AgreeRaw(priv, zero); !errors.Is(err, domain.ErrInvalidPeerKey) {
		t.Fatalf("AgreeRaw(low order): want ErrInvalidPeerKey, got %v", err)
	}
}

func TestDeriveDeterministic(t *testing.T) {
	var secret domain.SharedSecret
	for i := range secret {
		secret[i] = byte(i)
	}
	k1, err := keyagree.Derive(secret)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	k2, err := keyagree.Derive(secret)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if k1 != k2 {
		t.Fatal("derivation is not deterministic")
	}
	if bytes.Equal(k1.EncryptKey[:], k1.AuthKey[:]) {
		t.Fatal("encryption and auth keys must differ")
	}
}

func TestSessionKeysMatchForBothParties(t *testing.T) {
	alicePriv, alicePub := makeIdentity(t)
	bobPriv, bobPub := makeIdentity(t)

	a, err := keyagree.SessionKeys(alicePriv, bobPub)
	if err != nil {
		t.Fatalf("SessionKeys(alice): %v", err)
	}
	b, err := keyagree.SessionKeys(bobPriv, alicePub)
	if err != nil {
		t.Fatalf("SessionKeys(bob): %v", err)
	}
	if a != b {
		t.Fatal("session keys differ between parties")
	}
}

func mustHex(t *testing.T, dst []byte, s string) {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(dst) {
		t.Fatalf("bad hex %q", s)
	}
	copy(dst, b)
}
