package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"cipherdm/internal/domain"
	"cipherdm/internal/protocol/keyagree"
)

// ErrNoPeer is returned when Keys is called with an empty username.
var ErrNoPeer = errors.New("peer username is required")

// PeerKeyLookup fetches a user's public key (base64 SPKI).
type PeerKeyLookup interface {
	FetchPublicKey(ctx context.Context, username domain.Username) (string, error)
}

// DeriveFunc turns our private key and a peer's encoded public key into
// session keys.
type DeriveFunc func(self domain.X25519Private, peerPublic string) (domain.SessionKeys, error)

// Cache is the session key cache for one local identity.
//
// For every peer the sequence is:
//   - Return the memoised keys if present.
//   - Otherwise join (or start) the single in-flight derivation for the pair.
//   - The derivation fetches the peer key, agrees, derives and stores.
type Cache struct {
	self   domain.Identity
	lookup PeerKeyLookup
	derive DeriveFunc
	log    zerolog.Logger

	group singleflight.Group

	mu   sync.RWMutex
	keys map[string]domain.SessionKeys
}

// Option configures a Cache.
type Option func(*Cache)

// WithDeriveFunc replaces the agreement + derivation step.
func WithDeriveFunc(f DeriveFunc) Option {
	return func(c *Cache) { c.derive = f }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// New returns a Cache for self that resolves peer keys through lookup.
func New(self domain.Identity, lookup PeerKeyLookup, opts ...Option) *Cache {
	c := &Cache{
		self:   self,
		lookup: lookup,
		derive: keyagree.SessionKeys,
		log:    zerolog.Nop(),
		keys:   make(map[string]domain.SessionKeys),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With().Str("component", "session").Logger()
	return c
}

// Keys returns the session keys shared with peer, deriving them on first use.
func (c *Cache) Keys(ctx context.Context, peer domain.Username) (domain.SessionKeys, error) {
	if peer == "" {
		return domain.SessionKeys{}, ErrNoPeer
	}
	k := pairKey(c.self.Username, peer)
	if keys, ok := c.cached(k); ok {
		return keys, nil
	}

	// The flight outlives any single caller: each waiter gives up on its own
	// ctx while the lookup runs detached, bounded by the lookup's own timeout.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(k, func() (any, error) {
		if keys, ok := c.cached(k); ok {
			return keys, nil
		}
		pub, err := c.lookup.FetchPublicKey(flightCtx, peer)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrPeerKeyUnavailable, peer, err)
		}
		keys, err := c.derive(c.self.Private, pub)
		if err != nil {
			return nil, fmt.Errorf("derive keys for %s: %w", peer, err)
		}
		c.mu.Lock()
		c.keys[k] = keys
		c.mu.Unlock()
		c.log.Debug().Str("peer", peer.String()).Msg("session keys derived")
		return keys, nil
	})

	select {
	case <-ctx.Done():
		return domain.SessionKeys{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.log.Warn().Err(res.Err).Str("peer", peer.String()).Bool("shared", res.Shared).Msg("session keys unavailable")
			return domain.SessionKeys{}, res.Err
		}
		return res.Val.(domain.SessionKeys), nil
	}
}

// Forget drops the cached keys for peer, e.g. after the peer re-keyed.
func (c *Cache) Forget(peer domain.Username) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, pairKey(c.self.Username, peer))
}

// Len returns the number of cached pairs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

func (c *Cache) cached(k string) (domain.SessionKeys, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys, ok := c.keys[k]
	return keys, ok
}

// pairKey is order independent so (a, b) and (b, a) share an entry.
func pairKey(a, b domain.Username) string {
	if b < a {
		a, b = b, a
	}
	return a.String() + "\x00" + b.String()
}

// Compile-time assertion that Cache implements domain.SessionKeyService.
var _ domain.SessionKeyService = (*Cache)(nil)
