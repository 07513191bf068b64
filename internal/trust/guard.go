package trust

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"cipherdm/internal/domain"
)

// Mode selects whether pin mismatches are enforced.
type Mode int

const (
	ModeEnforce Mode = iota
	ModeDiagnostic
)

func (m Mode) String() string {
	if m == ModeDiagnostic {
		return "diagnostic"
	}
	return "enforce"
}

// ParseMode maps a configuration value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "enforce":
		return ModeEnforce, nil
	case "diagnostic":
		return ModeDiagnostic, nil
	default:
		return ModeEnforce, fmt.Errorf("unknown trust mode %q", s)
	}
}

// Guard checks leaf certificates against a fixed pin set.
type Guard struct {
	pins map[string]struct{}
	mode Mode
	log  zerolog.Logger
}

// NewGuard returns a Guard for pins. Pins are trimmed; empty entries are ignored.
func NewGuard(pins []string, mode Mode, log zerolog.Logger) *Guard {
	g := &Guard{
		pins: make(map[string]struct{}, len(pins)),
		mode: mode,
		log:  log.With().Str("component", "trust").Logger(),
	}
	for _, p := range pins {
		if p = strings.TrimSpace(p); p != "" {
			g.pins[p] = struct{}{}
		}
	}
	return g
}

// Mode returns the guard's mode.
func (g *Guard) Mode() Mode { return g.mode }

// Pinned reports whether fp is in the pin set.
func (g *Guard) Pinned(fp string) bool {
	_, ok := g.pins[fp]
	return ok
}

// VerifyConnection implements tls.Config.VerifyConnection.
func (g *Guard) VerifyConnection(cs tls.ConnectionState) error {
	if len(cs.PeerCertificates) == 0 {
		return g.reject(cs.ServerName, "", errors.New("no peer certificate"))
	}
	fp := FingerprintDER(cs.PeerCertificates[0].Raw)
	if g.Pinned(fp) {
		return nil
	}
	return g.reject(cs.ServerName, fp, nil)
}

func (g *Guard) reject(host, fp string, cause error) error {
	if g.mode == ModeDiagnostic {
		g.log.Warn().Str("host", host).Str("fingerprint", fp).AnErr("cause", cause).
			Msg("certificate not pinned (diagnostic mode, allowing)")
		return nil
	}
	g.log.Error().Str("host", host).Str("fingerprint", fp).AnErr("cause", cause).
		Msg("certificate pinning failure")
	if cause != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrCertificatePinningFailure, host, cause)
	}
	return fmt.Errorf("%w: %s presented %s", domain.ErrCertificatePinningFailure, host, fp)
}

// FingerprintDER returns the pin for a DER-encoded certificate.
func FingerprintDER(der []byte) string {
	sum := sha256.Sum256(der)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// FingerprintPEM returns the pin of every certificate in a PEM bundle.
func FingerprintPEM(data []byte) ([]string, error) {
	var out []string
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		if _, err := x509.ParseCertificate(block.Bytes); err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		out = append(out, FingerprintDER(block.Bytes))
	}
	if len(out) == 0 {
		return nil, errors.New("no certificates found")
	}
	return out, nil
}
