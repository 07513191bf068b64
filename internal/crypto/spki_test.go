package crypto_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"cipherdm/internal/crypto"
)

func TestSPKIRoundTrip(t *testing.T) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	enc, err := crypto.EncodeSPKI(pub)
	if err != nil {
		t.Fatalf("EncodeSPKI: %v", err)
	}
	got, err := crypto.ParseSPKI(enc)
	if err != nil {
		t.Fatalf("ParseSPKI: %v", err)
	}
	if got != pub {
		t.Fatalf("public key mismatch after round trip")
	}

	penc, err := crypto.EncodePKCS8(priv)
	if err != nil {
		t.Fatalf("EncodePKCS8: %v", err)
	}
	gotPriv, err := crypto.ParsePKCS8(penc)
	if err != nil {
		t.Fatalf("ParsePKCS8: %v", err)
	}
	if gotPriv != priv {
		t.Fatalf("private key mismatch after round trip")
	}
	derived, err := crypto.PublicFromPrivate(gotPriv)
	if err != nil {
		t.Fatalf("PublicFromPrivate: %v", err)
	}
	if derived != pub {
		t.Fatalf("derived public key does not match")
	}
}

func TestSPKIFixedPrefix(t *testing.T) {
	_, pub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatal(err)
	}
	enc, err := crypto.EncodeSPKI(pub)
	if err != nil {
		t.Fatal(err)
	}
	der, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		t.Fatal(err)
	}
	// 30 2a 30 05 06 03 2b 65 6e 03 21 00 || key
	if len(der) != 44 || der[0] != 0x30 || der[8] != 0x6e {
		t.Fatalf("unexpected SPKI layout: % x", der)
	}
}

func TestParseSPKIRejects(t *testing.T) {
	cases := map[string]string{
		"not base64": "%%%",
		"garbage":    base64.StdEncoding.EncodeToString([]byte("hello world")),
		"empty":      "",
	}
	for name, in := range cases {
		if _, err := crypto.ParseSPKI(in); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestFingerprintStable(t *testing.T) {
	_, pub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatal(err)
	}
	a, b := crypto.Fingerprint(pub), crypto.Fingerprint(pub)
	if a != b {
		t.Fatalf("fingerprint not deterministic")
	}
	if len(strings.ReplaceAll(a.String(), " ", "")) != 20 {
		t.Fatalf("unexpected fingerprint %q", a)
	}
}
