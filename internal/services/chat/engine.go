package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"cipherdm/internal/domain"
	"cipherdm/internal/protocol/etm"
)

// ErrEmptyMessage is returned by Send for empty text.
var ErrEmptyMessage = errors.New("message is empty")

// Relay is the part of the backend client the engine needs.
type Relay interface {
	FetchChats(ctx context.Context, username domain.Username) ([]domain.Chat, error)
	SendDirect(ctx context.Context, chat domain.ChatID, from domain.Username, sealed domain.WireSealed) error
	SendGroup(ctx context.Context, chat domain.ChatID, from domain.Username, text string) error
}

// KeySource resolves the session keys shared with a peer.
type KeySource interface {
	Keys(ctx context.Context, peer domain.Username) (domain.SessionKeys, error)
}

// Engine keeps the local view of every chat.
type Engine struct {
	self   domain.Username
	relay  Relay
	keys   KeySource
	log    zerolog.Logger
	spawn  func(func())
	limit  int
	notify func(domain.ChatID, domain.DisplayMessage)

	mu    sync.Mutex
	chats map[domain.ChatID]*chatState
	order []domain.ChatID

	wg sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler replaces the function used to run decryption tasks. The
// default runs each task on its own goroutine.
func WithScheduler(spawn func(task func())) Option {
	return func(e *Engine) { e.spawn = spawn }
}

// WithHistoryLimit keeps at most n entries per chat, evicting the oldest.
// Zero means unlimited.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) { e.limit = n }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithNotify registers a callback invoked, outside the engine lock, whenever
// a live message becomes displayable.
func WithNotify(fn func(domain.ChatID, domain.DisplayMessage)) Option {
	return func(e *Engine) { e.notify = fn }
}

// New returns an Engine for the local user self.
func New(self domain.Username, relay Relay, keys KeySource, opts ...Option) *Engine {
	e := &Engine{
		self:   self,
		relay:  relay,
		keys:   keys,
		log:    zerolog.Nop(),
		spawn:  func(task func()) { go task() },
		notify: func(domain.ChatID, domain.DisplayMessage) {},
		chats:  make(map[domain.ChatID]*chatState),
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With().Str("component", "chat").Str("self", self.String()).Logger()
	return e
}

// Load fetches all chats and decrypts their history. Per-message crypto
// failures and peer key failures are logged, not returned.
func (e *Engine) Load(ctx context.Context) error {
	chats, err := e.relay.FetchChats(ctx, e.self)
	if err != nil {
		return fmt.Errorf("load chats: %w", err)
	}

	type pendingLoad struct {
		cs   *chatState
		msgs []domain.Message
	}
	loads := make([]pendingLoad, 0, len(chats))
	e.mu.Lock()
	e.chats = make(map[domain.ChatID]*chatState, len(chats))
	e.order = make([]domain.ChatID, 0, len(chats))
	for _, c := range chats {
		if _, dup := e.chats[c.ID]; dup {
			e.log.Warn().Int64("chat_id", int64(c.ID)).Msg("duplicate chat in listing")
			continue
		}
		cs := newChatState(c, e.self)
		e.chats[c.ID] = cs
		e.order = append(e.order, c.ID)
		loads = append(loads, pendingLoad{cs: cs, msgs: c.Messages})
	}
	e.mu.Unlock()

	for _, l := range loads {
		history := e.history(ctx, l.cs, l.msgs)

		e.mu.Lock()
		// live events that raced the load go after the history
		l.cs.entries = append(history, l.cs.entries...)
		l.cs.evict(e.limit)
		if l.cs.inflight > 0 {
			l.cs.state = domain.ChatUpdating
		} else {
			l.cs.state = domain.ChatReady
		}
		e.mu.Unlock()
	}
	e.log.Info().Int("chats", len(loads)).Msg("chats loaded")
	return nil
}

// history turns a chat's stored messages into view entries.
func (e *Engine) history(ctx context.Context, cs *chatState, msgs []domain.Message) []entry {
	out := make([]entry, 0, len(msgs))
	log := e.log.With().Int64("chat_id", int64(cs.id)).Logger()

	if cs.kind == domain.ChatGroup {
		for _, m := range msgs {
			pm, ok := m.(domain.PlaintextMessage)
			if !ok {
				log.Warn().Str("sender", m.MessageSender().String()).Msg("dropping encrypted entry in group chat")
				continue
			}
			out = append(out, entry{msg: pm, text: pm.Content, ready: true})
		}
		return out
	}

	var cipherMsgs []domain.CipherMessage
	for _, m := range msgs {
		cm, ok := m.(domain.CipherMessage)
		if !ok {
			log.Warn().Str("sender", m.MessageSender().String()).Msg("dropping plaintext entry in direct chat")
			continue
		}
		cipherMsgs = append(cipherMsgs, cm)
	}
	if len(cipherMsgs) == 0 {
		return out
	}

	keys, err := e.keys.Keys(ctx, cs.peer)
	if err != nil {
		log.Error().Err(err).Str("peer", cs.peer.String()).Msg("session keys unavailable, history left pending")
		for _, cm := range cipherMsgs {
			out = append(out, entry{msg: cm})
		}
		return out
	}
	for _, cm := range cipherMsgs {
		text, err := open(keys, cm)
		if err != nil {
			logDrop(log, cm, err)
			continue
		}
		out = append(out, entry{msg: cm, text: text, ready: true})
	}
	return out
}

// Ingest applies one push event. Direct messages are appended as pending and
// decrypted asynchronously. A message the chat already holds is ignored, so
// events that overlap the loaded history are harmless.
func (e *Engine) Ingest(ctx context.Context, ev domain.Event) error {
	e.mu.Lock()
	cs, ok := e.chats[ev.EventChat()]
	e.mu.Unlock()
	if !ok {
		var seen bool
		var err error
		if cs, seen, err = e.discover(ctx, ev); err != nil || seen {
			return err
		}
	}

	e.mu.Lock()

	switch ev := ev.(type) {
	case domain.GroupPlainEvent:
		if cs.kind != domain.ChatGroup {
			e.mu.Unlock()
			return fmt.Errorf("%w: plaintext message for direct chat %d", domain.ErrInvalidEvent, cs.id)
		}
		if cs.find(ev.Message) >= 0 {
			e.mu.Unlock()
			return nil
		}
		en := entry{msg: ev.Message, text: ev.Message.Content, ready: true}
		cs.push(en, e.limit)
		e.mu.Unlock()
		e.notify(cs.id, en.display())
		return nil

	case domain.DirectCipherEvent:
		if cs.kind != domain.ChatDirect {
			e.mu.Unlock()
			return fmt.Errorf("%w: encrypted message for group chat %d", domain.ErrInvalidEvent, cs.id)
		}
		if cs.find(ev.Message) >= 0 {
			e.mu.Unlock()
			return nil
		}
		cs.push(entry{msg: ev.Message}, e.limit)
		cs.inflight++
		if cs.state == domain.ChatReady {
			cs.state = domain.ChatUpdating
		}
		e.mu.Unlock()

		e.wg.Add(1)
		msg := ev.Message
		e.spawn(func() {
			defer e.wg.Done()
			e.patch(ctx, cs, msg)
		})
		return nil

	default:
		e.mu.Unlock()
		return fmt.Errorf("%w: %T", domain.ErrInvalidEvent, ev)
	}
}

// discover refetches the chat listing for an event whose chat was created
// after Load and adopts every chat not seen before. seen reports that the
// event's message already arrived with the fetched history.
func (e *Engine) discover(ctx context.Context, ev domain.Event) (cs *chatState, seen bool, err error) {
	id := ev.EventChat()
	chats, err := e.relay.FetchChats(ctx, e.self)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %d: refresh chats: %w", domain.ErrUnknownChat, id, err)
	}
	for _, c := range chats {
		e.mu.Lock()
		_, known := e.chats[c.ID]
		e.mu.Unlock()
		if known {
			continue
		}
		fresh := newChatState(c, e.self)
		history := e.history(ctx, fresh, c.Messages)

		e.mu.Lock()
		if _, known := e.chats[c.ID]; !known {
			fresh.entries = history
			fresh.unread = len(history)
			fresh.evict(e.limit)
			fresh.state = domain.ChatReady
			e.chats[c.ID] = fresh
			e.order = append([]domain.ChatID{c.ID}, e.order...)
			e.log.Info().Int64("chat_id", int64(c.ID)).Msg("new chat discovered")
		}
		e.mu.Unlock()
	}

	e.mu.Lock()
	cs, ok := e.chats[id]
	if !ok {
		e.mu.Unlock()
		e.log.Warn().Int64("chat_id", int64(id)).Msg("event for unknown chat dropped")
		return nil, false, fmt.Errorf("%w: %d", domain.ErrUnknownChat, id)
	}
	i := cs.find(eventMessage(ev))
	var shown domain.DisplayMessage
	ready := i >= 0 && cs.entries[i].ready
	if ready {
		shown = cs.entries[i].display()
	}
	e.mu.Unlock()
	if ready {
		e.notify(id, shown)
	}
	return cs, i >= 0, nil
}

func eventMessage(ev domain.Event) domain.Message {
	switch ev := ev.(type) {
	case domain.DirectCipherEvent:
		return ev.Message
	case domain.GroupPlainEvent:
		return ev.Message
	}
	return nil
}

// patch decrypts m and updates its pending entry.
func (e *Engine) patch(ctx context.Context, cs *chatState, m domain.CipherMessage) {
	keys, err := e.keys.Keys(ctx, cs.peer)
	var text string
	if err == nil {
		text, err = open(keys, m)
	}

	log := e.log.With().Int64("chat_id", int64(cs.id)).Logger()

	e.mu.Lock()
	cs.inflight--
	if cs.inflight == 0 && cs.state == domain.ChatUpdating {
		cs.state = domain.ChatReady
	}
	idx := cs.pending(m.Sender, m.IV)
	if idx < 0 {
		e.mu.Unlock()
		log.Debug().Str("sender", m.Sender.String()).Msg("pending entry gone, nothing to patch")
		return
	}
	switch {
	case err == nil:
		cs.entries[idx].text = text
		cs.entries[idx].ready = true
		dm := cs.entries[idx].display()
		e.mu.Unlock()
		e.notify(cs.id, dm)
	case errors.Is(err, domain.ErrTamperDetected), errors.Is(err, domain.ErrCorruptMessage):
		cs.remove(idx)
		e.mu.Unlock()
		logDrop(log, m, err)
	default:
		e.mu.Unlock()
		log.Error().Err(err).Str("peer", cs.peer.String()).Msg("could not decrypt message, left pending")
	}
}

// Send encrypts (direct) or forwards (group) text to the backend. The local
// history is not touched; the message shows up through the push channel.
func (e *Engine) Send(ctx context.Context, id domain.ChatID, text string) error {
	if text == "" {
		return ErrEmptyMessage
	}
	e.mu.Lock()
	cs, ok := e.chats[id]
	var kind domain.ChatKind
	var peer domain.Username
	if ok {
		kind, peer = cs.kind, cs.peer
	}
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrUnknownChat, id)
	}

	if kind == domain.ChatGroup {
		return e.relay.SendGroup(ctx, id, e.self, text)
	}
	keys, err := e.keys.Keys(ctx, peer)
	if err != nil {
		return err
	}
	sealed, err := etm.Encrypt(keys, []byte(text))
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	return e.relay.SendDirect(ctx, id, e.self, sealed.Encode())
}

// Run feeds events into Ingest until ctx is done or events is closed.
// Rejected events are logged and skipped.
func (e *Engine) Run(ctx context.Context, events <-chan domain.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := e.Ingest(ctx, ev); err != nil {
				e.log.Warn().Err(err).Msg("event rejected")
			}
		}
	}
}

// Wait blocks until every scheduled decryption has finished.
func (e *Engine) Wait() { e.wg.Wait() }

func open(keys domain.SessionKeys, m domain.CipherMessage) (string, error) {
	sealed, err := etm.DecodeWire(domain.WireSealed{IV: m.IV, CT: m.Ciphertext, Tag: m.Tag})
	if err != nil {
		return "", err
	}
	pt, err := etm.Decrypt(keys, sealed)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

func logDrop(log zerolog.Logger, m domain.CipherMessage, err error) {
	log.Warn().Err(err).Str("sender", m.Sender.String()).Str("timestamp", m.Timestamp).
		Msg("dropping message that failed verification")
}

// Compile-time assertion that Engine implements domain.ChatService.
var _ domain.ChatService = (*Engine)(nil)
