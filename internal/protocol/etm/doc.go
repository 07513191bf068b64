// Package etm is the authenticated channel codec for direct messages.
//
// Encrypt-then-MAC with AES-256-CBC (PKCS#7 padding, random 16-byte IV) and
// HMAC-SHA256 over IV || ciphertext. The layout matches what WebCrypto
// produces with AES-CBC and HMAC, so browser and Go clients interoperate.
//
// Decrypt always verifies the tag in constant time before touching the
// ciphertext. A tag mismatch is ErrTamperDetected; structural problems found
// after a valid tag (IV length, block alignment, padding, base64) are
// ErrCorruptMessage.
package etm
