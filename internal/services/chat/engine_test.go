package chat_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cipherdm/internal/crypto"
	"cipherdm/internal/domain"
	"cipherdm/internal/protocol/etm"
	"cipherdm/internal/protocol/keyagree"
	"cipherdm/internal/services/chat"
)

const (
	directID domain.ChatID = 1
	groupID  domain.ChatID = 2
)

type sentDirect struct {
	chat   domain.ChatID
	from   domain.Username
	sealed domain.WireSealed
}

type fakeRelay struct {
	mu      sync.Mutex
	chats   []domain.Chat
	direct  []sentDirect
	group   []string
	sendErr error
}

func (r *fakeRelay) FetchChats(ctx context.Context, u domain.Username) ([]domain.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.chats), nil
}

func (r *fakeRelay) addChat(c domain.Chat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats = append(r.chats, c)
}

func (r *fakeRelay) SendDirect(ctx context.Context, id domain.ChatID, from domain.Username, s domain.WireSealed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.direct = append(r.direct, sentDirect{id, from, s})
	return nil
}

func (r *fakeRelay) SendGroup(ctx context.Context, id domain.ChatID, from domain.Username, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.group = append(r.group, text)
	return nil
}

type fakeKeys struct {
	keys  domain.SessionKeys
	err   error
	calls atomic.Int32
}

func (k *fakeKeys) Keys(ctx context.Context, peer domain.Username) (domain.SessionKeys, error) {
	k.calls.Add(1)
	return k.keys, k.err
}

// taskQueue captures scheduled decryption tasks so tests control ordering.
type taskQueue struct {
	mu    sync.Mutex
	tasks []func()
}

func (q *taskQueue) schedule(task func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
}

func (q *taskQueue) run(t *testing.T, i int) {
	t.Helper()
	q.mu.Lock()
	task := q.tasks[i]
	q.mu.Unlock()
	task()
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func pairKeys(t *testing.T) domain.SessionKeys {
	t.Helper()
	alicePriv, _, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatal(err)
	}
	_, bobPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatal(err)
	}
	spki, err := crypto.EncodeSPKI(bobPub)
	if err != nil {
		t.Fatal(err)
	}
	keys, err := keyagree.SessionKeys(alicePriv, spki)
	if err != nil {
		t.Fatal(err)
	}
	return keys
}

func seal(t *testing.T, keys domain.SessionKeys, sender domain.Username, text, ts string) domain.CipherMessage {
	t.Helper()
	s, err := etm.Encrypt(keys, []byte(text))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	w := s.Encode()
	return domain.CipherMessage{Sender: sender, IV: w.IV, Ciphertext: w.CT, Tag: w.Tag, Timestamp: ts}
}

func tamper(t *testing.T, m domain.CipherMessage) domain.CipherMessage {
	t.Helper()
	tag, err := crypto.UnB64(m.Tag)
	if err != nil {
		t.Fatal(err)
	}
	tag[0] ^= 0x01
	m.Tag = crypto.B64(tag)
	return m
}

func baseChats(history ...domain.Message) []domain.Chat {
	return []domain.Chat{
		{ID: directID, Name: "bob", Kind: domain.ChatDirect, Participants: []domain.Username{"alice", "bob"}, Messages: history},
		{ID: groupID, Name: "team", Kind: domain.ChatGroup, Participants: []domain.Username{"alice", "bob", "carol"}},
	}
}

func texts(t *testing.T, e *chat.Engine, id domain.ChatID) []string {
	t.Helper()
	view, err := e.View(id)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	out := make([]string, len(view))
	for i, m := range view {
		if m.Pending {
			out[i] = "<pending>"
		} else {
			out[i] = m.Content
		}
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoadDecryptsHistory(t *testing.T) {
	keys := pairKeys(t)
	history := []domain.Message{
		seal(t, keys, "alice", "hi bob", "2024-01-01 10:00:00"),
		tamper(t, seal(t, keys, "bob", "forged", "2024-01-01 10:00:01")),
		seal(t, keys, "bob", "hi alice", "2024-01-01 10:00:02"),
	}
	chats := baseChats(history...)
	chats[1].Messages = []domain.Message{domain.PlaintextMessage{Sender: "carol", Content: "morning", Timestamp: "t"}}
	relay := &fakeRelay{chats: chats}
	ks := &fakeKeys{keys: keys}

	e := chat.New("alice", relay, ks)
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := texts(t, e, directID); !equal(got, []string{"hi bob", "hi alice"}) {
		t.Fatalf("direct view = %v", got)
	}
	if got := texts(t, e, groupID); !equal(got, []string{"morning"}) {
		t.Fatalf("group view = %v", got)
	}
	if ks.calls.Load() != 1 {
		t.Fatalf("key resolutions = %d, want 1 (direct chat only)", ks.calls.Load())
	}
	for _, s := range e.Chats() {
		if s.State != domain.ChatReady {
			t.Fatalf("chat %d state %v after load", s.ID, s.State)
		}
		if s.Unread != 0 {
			t.Fatalf("history must not count as unread")
		}
	}
	sum := e.Chats()[0]
	if sum.Peer != "bob" || sum.Kind != domain.ChatDirect {
		t.Fatalf("summary %+v", sum)
	}
}

func TestLoadWithUnavailablePeerKeyLeavesPending(t *testing.T) {
	keys := pairKeys(t)
	relay := &fakeRelay{chats: baseChats(seal(t, keys, "bob", "hello", "t"))}
	ks := &fakeKeys{err: domain.ErrPeerKeyUnavailable}

	e := chat.New("alice", relay, ks)
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load must not fail on key errors: %v", err)
	}
	view, err := e.View(directID)
	if err != nil {
		t.Fatal(err)
	}
	if len(view) != 1 || !view[0].Pending || !view[0].Encrypted {
		t.Fatalf("view = %+v", view)
	}
}

func TestOutOfOrderDecryptKeepsArrivalOrder(t *testing.T) {
	keys := pairKeys(t)
	q := &taskQueue{}
	e := chat.New("alice", &fakeRelay{chats: baseChats()}, &fakeKeys{keys: keys}, chat.WithScheduler(q.schedule))
	ctx := context.Background()
	if err := e.Load(ctx); err != nil {
		t.Fatal(err)
	}

	first := seal(t, keys, "bob", "first", "2024-01-01 10:00:00")
	second := seal(t, keys, "bob", "second", "2024-01-01 10:00:01")
	for _, m := range []domain.CipherMessage{first, second} {
		if err := e.Ingest(ctx, domain.DirectCipherEvent{ChatID: directID, Message: m}); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
	if q.len() != 2 {
		t.Fatalf("scheduled %d tasks, want 2", q.len())
	}
	if got := texts(t, e, directID); !equal(got, []string{"<pending>", "<pending>"}) {
		t.Fatalf("before decrypt: %v", got)
	}
	if st, _ := e.State(directID); st != domain.ChatUpdating {
		t.Fatalf("state = %v, want updating", st)
	}

	q.run(t, 1)
	if got := texts(t, e, directID); !equal(got, []string{"<pending>", "second"}) {
		t.Fatalf("after second completes: %v", got)
	}
	if st, _ := e.State(directID); st != domain.ChatUpdating {
		t.Fatalf("state = %v, want updating while a decrypt is in flight", st)
	}

	q.run(t, 0)
	if got := texts(t, e, directID); !equal(got, []string{"first", "second"}) {
		t.Fatalf("after both complete: %v", got)
	}
	if st, _ := e.State(directID); st != domain.ChatReady {
		t.Fatalf("state = %v, want ready", st)
	}
	if s := e.Chats()[0]; s.Unread != 2 {
		t.Fatalf("unread = %d, want 2", s.Unread)
	}
	if err := e.MarkRead(directID); err != nil {
		t.Fatal(err)
	}
	if s := e.Chats()[0]; s.Unread != 0 {
		t.Fatalf("unread after MarkRead = %d", s.Unread)
	}
}

func TestPatchOfEvictedEntryIsNoop(t *testing.T) {
	keys := pairKeys(t)
	q := &taskQueue{}
	e := chat.New("alice", &fakeRelay{chats: baseChats()}, &fakeKeys{keys: keys},
		chat.WithScheduler(q.schedule), chat.WithHistoryLimit(1))
	ctx := context.Background()
	if err := e.Load(ctx); err != nil {
		t.Fatal(err)
	}

	for _, text := range []string{"old", "new"} {
		ev := domain.DirectCipherEvent{ChatID: directID, Message: seal(t, keys, "bob", text, "t")}
		if err := e.Ingest(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}
	q.run(t, 0)
	if got := texts(t, e, directID); !equal(got, []string{"<pending>"}) {
		t.Fatalf("after evicted patch: %v", got)
	}
	q.run(t, 1)
	if got := texts(t, e, directID); !equal(got, []string{"new"}) {
		t.Fatalf("final: %v", got)
	}
}

func TestTamperedLiveMessageRemoved(t *testing.T) {
	keys := pairKeys(t)
	q := &taskQueue{}
	e := chat.New("alice", &fakeRelay{chats: baseChats()}, &fakeKeys{keys: keys}, chat.WithScheduler(q.schedule))
	ctx := context.Background()
	if err := e.Load(ctx); err != nil {
		t.Fatal(err)
	}

	good := seal(t, keys, "bob", "genuine", "t")
	bad := tamper(t, seal(t, keys, "bob", "forged", "t"))
	for _, m := range []domain.CipherMessage{bad, good} {
		if err := e.Ingest(ctx, domain.DirectCipherEvent{ChatID: directID, Message: m}); err != nil {
			t.Fatal(err)
		}
	}
	q.run(t, 0)
	q.run(t, 1)
	if got := texts(t, e, directID); !equal(got, []string{"genuine"}) {
		t.Fatalf("view = %v", got)
	}
	if s := e.Chats()[0]; s.Unread != 1 {
		t.Fatalf("unread = %d, want 1", s.Unread)
	}
}

func TestGroupMessagesNeverUseCodec(t *testing.T) {
	q := &taskQueue{}
	relay := &fakeRelay{chats: baseChats()}
	ks := &fakeKeys{}
	var notified []domain.DisplayMessage
	e := chat.New("alice", relay, ks, chat.WithScheduler(q.schedule),
		chat.WithNotify(func(id domain.ChatID, m domain.DisplayMessage) { notified = append(notified, m) }))
	ctx := context.Background()
	if err := e.Load(ctx); err != nil {
		t.Fatal(err)
	}

	if err := e.Send(ctx, groupID, "hello team"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	ev := domain.GroupPlainEvent{ChatID: groupID, Message: domain.PlaintextMessage{Sender: "carol", Content: "hey", Timestamp: "t"}}
	if err := e.Ingest(ctx, ev); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if ks.calls.Load() != 0 {
		t.Fatalf("group traffic resolved session keys %d times", ks.calls.Load())
	}
	if q.len() != 0 {
		t.Fatal("group message scheduled a decryption")
	}
	if len(relay.group) != 1 || relay.group[0] != "hello team" || len(relay.direct) != 0 {
		t.Fatalf("relay saw group=%v direct=%v", relay.group, relay.direct)
	}
	if got := texts(t, e, groupID); !equal(got, []string{"hey"}) {
		t.Fatalf("group view = %v", got)
	}
	if len(notified) != 1 || notified[0].Encrypted {
		t.Fatalf("notifications = %+v", notified)
	}
}

func TestSendDirectEncryptsWithoutTouchingHistory(t *testing.T) {
	keys := pairKeys(t)
	relay := &fakeRelay{chats: baseChats()}
	e := chat.New("alice", relay, &fakeKeys{keys: keys})
	ctx := context.Background()
	if err := e.Load(ctx); err != nil {
		t.Fatal(err)
	}

	if err := e.Send(ctx, directID, "secret"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(relay.direct) != 1 {
		t.Fatalf("direct sends = %d", len(relay.direct))
	}
	sent := relay.direct[0]
	if sent.chat != directID || sent.from != "alice" {
		t.Fatalf("sent %+v", sent)
	}
	s, err := etm.DecodeWire(sent.sealed)
	if err != nil {
		t.Fatal(err)
	}
	pt, err := etm.Decrypt(keys, s)
	if err != nil || string(pt) != "secret" {
		t.Fatalf("decrypt sent message: %q, %v", pt, err)
	}
	if got := texts(t, e, directID); len(got) != 0 {
		t.Fatalf("send mutated history: %v", got)
	}

	relay.sendErr = errors.New("backend down")
	if err := e.Send(ctx, directID, "again"); err == nil {
		t.Fatal("expected send error")
	}
	if got := texts(t, e, directID); len(got) != 0 {
		t.Fatalf("failed send mutated history: %v", got)
	}
	if err := e.Send(ctx, directID, ""); !errors.Is(err, chat.ErrEmptyMessage) {
		t.Fatalf("want ErrEmptyMessage, got %v", err)
	}
}

func TestRejectsUnknownAndMismatchedEvents(t *testing.T) {
	e := chat.New("alice", &fakeRelay{chats: baseChats()}, &fakeKeys{})
	ctx := context.Background()
	if err := e.Load(ctx); err != nil {
		t.Fatal(err)
	}

	unknown := domain.GroupPlainEvent{ChatID: 99, Message: domain.PlaintextMessage{Sender: "x", Content: "y"}}
	if err := e.Ingest(ctx, unknown); !errors.Is(err, domain.ErrUnknownChat) {
		t.Fatalf("want ErrUnknownChat, got %v", err)
	}
	wrongShape := domain.DirectCipherEvent{ChatID: groupID, Message: domain.CipherMessage{Sender: "bob", IV: "a", Ciphertext: "b", Tag: "c"}}
	if err := e.Ingest(ctx, wrongShape); !errors.Is(err, domain.ErrInvalidEvent) {
		t.Fatalf("want ErrInvalidEvent, got %v", err)
	}
	plainInDirect := domain.GroupPlainEvent{ChatID: directID, Message: domain.PlaintextMessage{Sender: "bob", Content: "leak"}}
	if err := e.Ingest(ctx, plainInDirect); !errors.Is(err, domain.ErrInvalidEvent) {
		t.Fatalf("want ErrInvalidEvent, got %v", err)
	}
	if err := e.Send(ctx, 99, "x"); !errors.Is(err, domain.ErrUnknownChat) {
		t.Fatalf("want ErrUnknownChat, got %v", err)
	}
}

func TestEventForChatCreatedAfterLoad(t *testing.T) {
	keys := pairKeys(t)
	relay := &fakeRelay{chats: baseChats()}
	var shown []string
	e := chat.New("alice", relay, &fakeKeys{keys: keys}, chat.WithScheduler(func(task func()) { task() }),
		chat.WithNotify(func(_ domain.ChatID, m domain.DisplayMessage) { shown = append(shown, m.Content) }))
	ctx := context.Background()
	if err := e.Load(ctx); err != nil {
		t.Fatal(err)
	}

	// The listing already carries the message the event announces.
	first := seal(t, keys, "dave", "welcome", "2024-01-01 10:00:00")
	relay.addChat(domain.Chat{ID: 3, Name: "dave", Kind: domain.ChatDirect,
		Participants: []domain.Username{"alice", "dave"}, Messages: []domain.Message{first}})
	if err := e.Ingest(ctx, domain.DirectCipherEvent{ChatID: 3, Message: first}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got := texts(t, e, 3); !equal(got, []string{"welcome"}) {
		t.Fatalf("view after discovery = %v", got)
	}
	if sums := e.Chats(); len(sums) != 3 || sums[0].ID != 3 || sums[0].Peer != "dave" || sums[0].Unread != 1 {
		t.Fatalf("summaries = %+v", sums)
	}

	// The event is newer than the listing.
	relay.addChat(domain.Chat{ID: 4, Name: "ops", Kind: domain.ChatGroup,
		Participants: []domain.Username{"alice", "erin"}})
	ev := domain.GroupPlainEvent{ChatID: 4, Message: domain.PlaintextMessage{Sender: "erin", Content: "deploying", Timestamp: "t"}}
	if err := e.Ingest(ctx, ev); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got := texts(t, e, 4); !equal(got, []string{"deploying"}) {
		t.Fatalf("view of new group = %v", got)
	}
	if st, _ := e.State(4); st != domain.ChatReady {
		t.Fatalf("state = %v, want ready", st)
	}

	// Later events for the adopted chat take the normal path.
	if err := e.Ingest(ctx, domain.DirectCipherEvent{ChatID: 3, Message: seal(t, keys, "dave", "again", "t")}); err != nil {
		t.Fatal(err)
	}
	if got := texts(t, e, 3); !equal(got, []string{"welcome", "again"}) {
		t.Fatalf("view = %v", got)
	}
	if !equal(shown, []string{"welcome", "deploying", "again"}) {
		t.Fatalf("notified %v", shown)
	}
}

func TestRunWithGoroutines(t *testing.T) {
	keys := pairKeys(t)
	e := chat.New("alice", &fakeRelay{chats: baseChats()}, &fakeKeys{keys: keys})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Load(ctx); err != nil {
		t.Fatal(err)
	}

	events := make(chan domain.Event)
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, events) }()

	want := []string{"one", "two", "three", "four", "five"}
	for _, text := range want {
		events <- domain.DirectCipherEvent{ChatID: directID, Message: seal(t, keys, "bob", text, "t")}
	}
	close(events)
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	e.Wait()

	if got := texts(t, e, directID); !equal(got, want) {
		t.Fatalf("view = %v", got)
	}
	if st, _ := e.State(directID); st != domain.ChatReady {
		t.Fatalf("state = %v", st)
	}
}
