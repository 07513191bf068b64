package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cipherdm/internal/domain"
	chatsvc "cipherdm/internal/services/chat"
	sessionsvc "cipherdm/internal/services/session"
)

// Session is an unlocked identity together with the services built on it.
type Session struct {
	*Wire
	Self  domain.Identity
	Keys  domain.SessionKeyService
	Chats domain.ChatService
}

// Open unlocks the local identity and builds the session key cache and chat
// engine for it. Extra engine options are appended after the configured ones.
func (w *Wire) Open(passphrase string, opts ...chatsvc.Option) (*Session, error) {
	id, err := w.Identity.LoadIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	if w.Config.Username != "" && domain.Username(w.Config.Username) != id.Username {
		return nil, fmt.Errorf("configured username %q does not match identity %q", w.Config.Username, id.Username)
	}

	keys := sessionsvc.New(id, w.Relay, sessionsvc.WithLogger(w.Log))
	engineOpts := append([]chatsvc.Option{
		chatsvc.WithLogger(w.Log),
		chatsvc.WithHistoryLimit(w.Config.Chat.HistoryLimit),
	}, opts...)

	return &Session{
		Wire:  w,
		Self:  id,
		Keys:  keys,
		Chats: chatsvc.New(id.Username, w.Relay, keys, engineOpts...),
	}, nil
}

// Follow subscribes to the session's push events, loads the chat listing
// once the subscription is in place, calls loaded, and then applies events
// until ctx is done or the stream ends. Events published while the listing
// loads wait on the stream.
func (s *Session) Follow(ctx context.Context, loaded func()) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan domain.Event)
	ready := make(chan struct{})
	listenErr := make(chan error, 1)
	go func() {
		defer close(events)
		listenErr <- s.Events.Listen(ctx, s.Self.Username, events, sync.OnceFunc(func() { close(ready) }))
	}()

	select {
	case <-ready:
	case err := <-listenErr:
		if err == nil {
			err = errors.New("stream ended before subscribing")
		}
		return fmt.Errorf("event stream: %w", err)
	}

	if err := s.Chats.Load(ctx); err != nil {
		cancel()
		<-listenErr
		return fmt.Errorf("load chats: %w", err)
	}
	if loaded != nil {
		loaded()
	}

	runErr := s.Chats.Run(ctx, events)
	cancel()
	err := <-listenErr
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("event stream: %w", err)
	}
	return nil
}
