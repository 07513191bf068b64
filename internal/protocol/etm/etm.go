package etm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"cipherdm/internal/crypto"
	"cipherdm/internal/domain"
)

const (
	// IVSize is the length in bytes of the random AES-CBC IV.
	IVSize = aes.BlockSize
	// TagSize is the length in bytes of the HMAC-SHA256 tag over IV and ciphertext.
	TagSize = sha256.Size
)

// Sealed is an encrypted message.
type Sealed struct {
	IV         []byte
	Ciphertext []byte
	Tag        []byte
}

// Encode returns the base64 transport form.
func (s Sealed) Encode() domain.WireSealed {
	return domain.WireSealed{
		IV:  crypto.B64(s.IV),
		CT:  crypto.B64(s.Ciphertext),
		Tag: crypto.B64(s.Tag),
	}
}

// DecodeWire parses the base64 transport form.
func DecodeWire(w domain.WireSealed) (Sealed, error) {
	var s Sealed
	var err error
	if s.IV, err = crypto.UnB64(w.IV); err != nil {
		return Sealed{}, fmt.Errorf("%w: iv: %v", domain.ErrCorruptMessage, err)
	}
	if s.Ciphertext, err = crypto.UnB64(w.CT); err != nil {
		return Sealed{}, fmt.Errorf("%w: ct: %v", domain.ErrCorruptMessage, err)
	}
	if s.Tag, err = crypto.UnB64(w.Tag); err != nil {
		return Sealed{}, fmt.Errorf("%w: tag: %v", domain.ErrCorruptMessage, err)
	}
	return s, nil
}

// Encrypt seals plaintext under keys with a fresh random IV.
func Encrypt(keys domain.SessionKeys, plaintext []byte) (Sealed, error) {
	return encrypt(keys, plaintext, rand.Reader)
}

func encrypt(keys domain.SessionKeys, plaintext []byte, rnd io.Reader) (Sealed, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rnd, iv); err != nil {
		return Sealed{}, fmt.Errorf("iv: %w", err)
	}
	block, err := aes.NewCipher(keys.EncryptKey[:])
	if err != nil {
		return Sealed{}, err
	}
	padded := pad(plaintext, aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)
	return Sealed{IV: iv, Ciphertext: ct, Tag: tag(keys.AuthKey[:], iv, ct)}, nil
}

// Decrypt verifies and opens s.
func Decrypt(keys domain.SessionKeys, s Sealed) ([]byte, error) {
	if !hmac.Equal(tag(keys.AuthKey[:], s.IV, s.Ciphertext), s.Tag) {
		return nil, domain.ErrTamperDetected
	}
	if len(s.IV) != IVSize {
		return nil, fmt.Errorf("%w: iv length %d", domain.ErrCorruptMessage, len(s.IV))
	}
	if len(s.Ciphertext) == 0 || len(s.Ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", domain.ErrCorruptMessage, len(s.Ciphertext))
	}
	block, err := aes.NewCipher(keys.EncryptKey[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(s.Ciphertext))
	cipher.NewCBCDecrypter(block, s.IV).CryptBlocks(out, s.Ciphertext)
	pt, err := unpad(out, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptMessage, err)
	}
	return pt, nil
}

// tag computes HMAC-SHA256(key, iv || ct).
func tag(key, iv, ct []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(iv)
	m.Write(ct)
	return m.Sum(nil)
}
