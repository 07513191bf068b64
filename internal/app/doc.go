// Package app loads configuration and wires the client together.
//
// LoadConfig merges defaults, an optional cipherdm.yaml, CIPHERDM_*
// environment variables and command line flags. NewWire builds everything
// that does not need the identity passphrase (stores, limiter, trust guard,
// HTTP client, backend client). Wire.Open unlocks the identity and adds the
// session key cache and chat engine on top.
package app
