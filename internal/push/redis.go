package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"cipherdm/internal/domain"
)

// Channel returns the Redis pub/sub channel carrying push payloads for username.
func Channel(username domain.Username) string { return "chat:notify:" + username.String() }

// Publish sends a push payload for username.
func Publish(ctx context.Context, rdb *redis.Client, username domain.Username, ev domain.Event) error {
	payload, err := Encode(ev)
	if err != nil {
		return err
	}
	return rdb.Publish(ctx, Channel(username), payload).Err()
}

// RedisSource reads push events directly from Redis pub/sub.
type RedisSource struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisSource returns a RedisSource using rdb.
func NewRedisSource(rdb *redis.Client, log zerolog.Logger) *RedisSource {
	return &RedisSource{rdb: rdb, log: log.With().Str("component", "push.redis").Logger()}
}

// Listen subscribes to username's channel and forwards valid events until
// ctx is done. Invalid payloads are logged and skipped.
func (s *RedisSource) Listen(ctx context.Context, username domain.Username, events chan<- domain.Event, subscribed func()) error {
	sub := s.rdb.Subscribe(ctx, Channel(username))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", Channel(username), err)
	}
	s.log.Info().Str("channel", Channel(username)).Msg("subscribed")
	if subscribed != nil {
		subscribed()
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			ev, err := Decode([]byte(msg.Payload))
			if err != nil {
				s.log.Warn().Err(err).Msg("dropping push payload")
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Compile-time assertion that RedisSource implements domain.EventSource.
var _ domain.EventSource = (*RedisSource)(nil)
