// Package crypto holds key material helpers used by cipherdm.
//
// Contents
//
//   - X25519 key generation and clamping (GenerateX25519, PublicFromPrivate)
//   - SPKI / PKCS#8 base64 encodings interoperable with WebCrypto exports
//     (EncodeSPKI, ParseSPKI, EncodePKCS8, ParsePKCS8)
//   - Short public-key fingerprints for display (Fingerprint)
//
// # Notes
//
// Keys are the fixed-size array types defined in internal/domain. Encoded
// forms are standard base64 without line breaks, which is what the backend
// stores and serves.
package crypto
