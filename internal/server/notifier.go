package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"cipherdm/internal/domain"
	"cipherdm/internal/push"
)

// Notifier fans push payloads out to a user's open event streams.
type Notifier interface {
	Publish(ctx context.Context, username domain.Username, ev domain.Event) error
	// Subscribe returns a channel of encoded payloads for username and a
	// function that releases the subscription.
	Subscribe(ctx context.Context, username domain.Username) (<-chan []byte, func(), error)
}

const subscriberBuffer = 32

// Hub is an in-process Notifier. A subscriber that falls behind loses
// payloads instead of blocking publishers.
type Hub struct {
	mu   sync.Mutex
	subs map[domain.Username]map[chan []byte]struct{}
	log  zerolog.Logger
}

// NewHub returns an empty Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs: make(map[domain.Username]map[chan []byte]struct{}),
		log:  log.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) Publish(_ context.Context, username domain.Username, ev domain.Event) error {
	payload, err := push.Encode(ev)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[username] {
		select {
		case ch <- payload:
		default:
			h.log.Warn().Str("username", username.String()).Msg("subscriber full, dropping event")
		}
	}
	return nil
}

func (h *Hub) Subscribe(_ context.Context, username domain.Username) (<-chan []byte, func(), error) {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	if h.subs[username] == nil {
		h.subs[username] = make(map[chan []byte]struct{})
	}
	h.subs[username][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[username], ch)
			if len(h.subs[username]) == 0 {
				delete(h.subs, username)
			}
		})
	}
	return ch, cancel, nil
}

// Subscribers returns the number of open subscriptions for username.
func (h *Hub) Subscribers(username domain.Username) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[username])
}

// RedisNotifier publishes through Redis so that every backend instance can
// deliver to its own subscribers.
type RedisNotifier struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisNotifier returns a Notifier backed by rdb.
func NewRedisNotifier(rdb *redis.Client, log zerolog.Logger) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, log: log.With().Str("component", "notifier.redis").Logger()}
}

func (n *RedisNotifier) Publish(ctx context.Context, username domain.Username, ev domain.Event) error {
	return push.Publish(ctx, n.rdb, username, ev)
}

func (n *RedisNotifier) Subscribe(ctx context.Context, username domain.Username) (<-chan []byte, func(), error) {
	sub := n.rdb.Subscribe(ctx, push.Channel(username))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", push.Channel(username), err)
	}

	out := make(chan []byte, subscriberBuffer)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-done:
				return
			default:
				n.log.Warn().Str("username", username.String()).Msg("subscriber full, dropping event")
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}
	return out, cancel, nil
}

var (
	_ Notifier = (*Hub)(nil)
	_ Notifier = (*RedisNotifier)(nil)
)
