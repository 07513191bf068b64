package identity

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/rs/zerolog"

	"cipherdm/internal/crypto"
	"cipherdm/internal/domain"
	"cipherdm/internal/ratelimit"
	"cipherdm/internal/store"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12

	limiterKey = "identity"
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
	// ErrKeyMismatch is returned when an imported public key does not belong
	// to the imported private key.
	ErrKeyMismatch = errors.New("public key does not match private key")
	// ErrNoUsername is returned when an identity is created without a username.
	ErrNoUsername = errors.New("username is required")
)

// Service manages identity key creation and access using a backing store.
type Service struct {
	store   domain.IdentityStore
	limiter *ratelimit.Limiter
	log     zerolog.Logger
}

// New returns an identity service backed by the given store. A nil limiter
// gets the default threshold.
func New(s domain.IdentityStore, limiter *ratelimit.Limiter, log zerolog.Logger) *Service {
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.DefaultMaxAttempts, ratelimit.DefaultLockout)
	}
	return &Service{
		store:   s,
		limiter: limiter,
		log:     log.With().Str("component", "identity").Logger(),
	}
}

// GenerateIdentity creates a new identity, saves it encrypted with the passphrase,
// and returns the identity plus a short fingerprint of the public key.
func (s *Service) GenerateIdentity(
	passphrase string,
	username domain.Username,
) (domain.Identity, domain.Fingerprint, error) {
	if username == "" {
		return domain.Identity{}, "", ErrNoUsername
	}
	if !isSecurePassphrase(passphrase) {
		return domain.Identity{}, "", ErrWeakPassphrase
	}
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.Identity{}, "", err
	}
	return s.save(passphrase, domain.Identity{Username: username, Public: pub, Private: priv})
}

// ImportIdentity stores a key pair exported elsewhere. publicSPKI may be
// empty, in which case it is derived from the private key.
func (s *Service) ImportIdentity(
	passphrase string,
	username domain.Username,
	privatePKCS8, publicSPKI string,
) (domain.Identity, domain.Fingerprint, error) {
	if username == "" {
		return domain.Identity{}, "", ErrNoUsername
	}
	if !isSecurePassphrase(passphrase) {
		return domain.Identity{}, "", ErrWeakPassphrase
	}
	priv, err := crypto.ParsePKCS8(privatePKCS8)
	if err != nil {
		return domain.Identity{}, "", fmt.Errorf("import private key: %w", err)
	}
	pub, err := crypto.PublicFromPrivate(priv)
	if err != nil {
		return domain.Identity{}, "", err
	}
	if publicSPKI != "" {
		given, err := crypto.ParseSPKI(publicSPKI)
		if err != nil {
			return domain.Identity{}, "", fmt.Errorf("import public key: %w", err)
		}
		if given != pub {
			return domain.Identity{}, "", ErrKeyMismatch
		}
	}
	return s.save(passphrase, domain.Identity{Username: username, Public: pub, Private: priv})
}

func (s *Service) save(passphrase string, id domain.Identity) (domain.Identity, domain.Fingerprint, error) {
	if err := s.store.SaveIdentity(passphrase, id); err != nil {
		return domain.Identity{}, "", err
	}
	fp := crypto.Fingerprint(id.Public)
	s.log.Info().Str("username", id.Username.String()).Str("fingerprint", fp.String()).Msg("identity saved")
	return id, fp, nil
}

// LoadIdentity decrypts and returns the local identity. Wrong passphrases
// count towards the lockout threshold.
func (s *Service) LoadIdentity(passphrase string) (domain.Identity, error) {
	if err := s.limiter.Allow(limiterKey); err != nil {
		return domain.Identity{}, err
	}
	id, err := s.store.LoadIdentity(passphrase)
	switch {
	case err == nil:
		s.limiter.Success(limiterKey)
		return id, nil
	case errors.Is(err, store.ErrWrongPassphrase):
		s.log.Warn().Msg("identity unlock failed")
		if lerr := s.limiter.Failure(limiterKey); lerr != nil {
			return domain.Identity{}, errors.Join(err, lerr)
		}
		return domain.Identity{}, err
	default:
		return domain.Identity{}, err
	}
}

// FingerprintIdentity returns a short fingerprint of the local public key.
func (s *Service) FingerprintIdentity(passphrase string) (domain.Fingerprint, error) {
	id, err := s.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(id.Public), nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
