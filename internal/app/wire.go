package app

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"cipherdm/internal/domain"
	"cipherdm/internal/push"
	"cipherdm/internal/ratelimit"
	"cipherdm/internal/relay"
	identitysvc "cipherdm/internal/services/identity"
	"cipherdm/internal/store"
	"cipherdm/internal/trust"
)

// Wire bundles the stores, services and clients that do not need the
// identity passphrase.
type Wire struct {
	Config   *Config
	Log      zerolog.Logger
	Store    domain.IdentityStore
	Identity domain.IdentityService
	Guard    *trust.Guard
	HTTP     *http.Client
	Relay    domain.RelayClient
	Events   domain.EventSource
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg *Config, log zerolog.Logger) (*Wire, error) {
	mode, err := trust.ParseMode(cfg.Trust.Mode)
	if err != nil {
		return nil, err
	}
	guard := trust.NewGuard(cfg.Trust.Pins, mode, log)
	if mode == trust.ModeDiagnostic {
		log.Warn().Msg("certificate pinning in diagnostic mode, mismatches are logged only")
	}

	// A plain http base URL never reaches the guard.
	if u, err := url.Parse(cfg.Server.BaseURL); err != nil || u.Scheme != "https" {
		if mode == trust.ModeEnforce {
			return nil, fmt.Errorf("%w: server.base_url %q is not https", domain.ErrCertificatePinningFailure, cfg.Server.BaseURL)
		}
		log.Warn().Str("base_url", cfg.Server.BaseURL).Msg("backend is not https, pinning is skipped")
	}

	opts := trust.ClientOptions{Timeout: cfg.Server.Timeout, RootCAFile: cfg.Trust.RootCA}
	// Every outbound request goes through the pinned client.
	httpClient, err := trust.NewHTTPClient(guard, opts)
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}
	rc := relay.NewHTTP(cfg.Server.BaseURL, httpClient, cfg.Server.Endpoints, log)

	var events domain.EventSource = rc
	if cfg.Server.Push == "redis" {
		ropts := &redis.Options{Addr: cfg.Server.RedisAddr}
		if mode == trust.ModeEnforce {
			if ropts.TLSConfig, err = trust.TLSConfig(guard, opts); err != nil {
				return nil, fmt.Errorf("redis tls: %w", err)
			}
		} else {
			log.Warn().Str("addr", cfg.Server.RedisAddr).Msg("redis push without TLS, pinning is skipped")
		}
		events = push.NewRedisSource(redis.NewClient(ropts), log)
	}

	identityStore := store.NewIdentityFileStore(cfg.Home)
	limiter := ratelimit.New(cfg.Identity.MaxAttempts, cfg.Identity.Lockout)

	return &Wire{
		Config:   cfg,
		Log:      log,
		Store:    identityStore,
		Identity: identitysvc.New(identityStore, limiter, log),
		Guard:    guard,
		HTTP:     httpClient,
		Relay:    rc,
		Events:   events,
	}, nil
}
