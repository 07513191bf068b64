// Package trust pins the backend's TLS certificate.
//
// A Guard holds the set of accepted fingerprints: base64 SHA-256 digests of
// the leaf certificate's DER encoding. It is installed as
// tls.Config.VerifyConnection, so a mismatch aborts the handshake before any
// request bytes are written.
//
// ModeEnforce (the default) refuses unpinned certificates with
// domain.ErrCertificatePinningFailure. ModeDiagnostic only logs the observed
// fingerprint and is meant for first-time setup against a development
// backend.
package trust
