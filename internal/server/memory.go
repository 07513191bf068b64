package server

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"cipherdm/internal/domain"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[domain.Username]string
	chats    map[domain.ChatID]ChatRecord
	messages map[domain.ChatID][]StoredMessage
	nextID   domain.ChatID
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[domain.Username]string),
		chats:    make(map[domain.ChatID]ChatRecord),
		messages: make(map[domain.ChatID][]StoredMessage),
		nextID:   1,
	}
}

func (m *MemoryStore) CreateUser(_ context.Context, username domain.Username, publicKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; ok {
		return fmt.Errorf("user %s: %w", username, ErrExists)
	}
	m.users[username] = publicKey
	return nil
}

func (m *MemoryStore) PublicKey(_ context.Context, username domain.Username) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.users[username]
	if !ok {
		return "", fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	return k, nil
}

func (m *MemoryStore) CreateChat(
	_ context.Context,
	name string,
	kind domain.ChatKind,
	participants []domain.Username,
) (domain.ChatID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range participants {
		if _, ok := m.users[p]; !ok {
			return 0, fmt.Errorf("user %s: %w", p, ErrNotFound)
		}
	}
	id := m.nextID
	m.nextID++
	m.chats[id] = ChatRecord{
		ID:           id,
		Name:         name,
		Kind:         kind,
		Participants: slices.Clone(participants),
		CreatedAt:    time.Now(),
	}
	return id, nil
}

func (m *MemoryStore) Chat(_ context.Context, id domain.ChatID) (ChatRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chats[id]
	if !ok {
		return ChatRecord{}, fmt.Errorf("chat %d: %w", id, ErrNotFound)
	}
	return c, nil
}

func (m *MemoryStore) ChatsFor(_ context.Context, username domain.Username) ([]ChatRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ChatRecord
	for _, c := range m.chats {
		if c.HasParticipant(username) {
			out = append(out, c)
		}
	}
	// ids grow with creation time
	slices.SortFunc(out, func(a, b ChatRecord) int { return int(b.ID - a.ID) })
	return out, nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, msg StoredMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[msg.ChatID]; !ok {
		return fmt.Errorf("chat %d: %w", msg.ChatID, ErrNotFound)
	}
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], msg)
	return nil
}

func (m *MemoryStore) Messages(_ context.Context, id domain.ChatID) ([]StoredMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.messages[id]), nil
}

var _ Store = (*MemoryStore)(nil)
