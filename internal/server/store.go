package server

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"cipherdm/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

// ChatRecord is a chat without its messages.
type ChatRecord struct {
	ID           domain.ChatID
	Name         string
	Kind         domain.ChatKind
	Participants []domain.Username
	CreatedAt    time.Time
}

// HasParticipant reports whether u is a member of the chat.
func (c ChatRecord) HasParticipant(u domain.Username) bool {
	for _, p := range c.Participants {
		if p == u {
			return true
		}
	}
	return false
}

// StoredMessage is one entry of a chat log.
type StoredMessage struct {
	ID     uuid.UUID
	ChatID domain.ChatID
	domain.WireMessage
}

// UserStore keeps registered users and their public keys.
type UserStore interface {
	CreateUser(ctx context.Context, username domain.Username, publicKey string) error
	PublicKey(ctx context.Context, username domain.Username) (string, error)
}

// ChatStore keeps chats, membership and the append-only message log.
type ChatStore interface {
	CreateChat(ctx context.Context, name string, kind domain.ChatKind, participants []domain.Username) (domain.ChatID, error)
	Chat(ctx context.Context, id domain.ChatID) (ChatRecord, error)
	// ChatsFor returns the user's chats, newest first.
	ChatsFor(ctx context.Context, username domain.Username) ([]ChatRecord, error)
	AppendMessage(ctx context.Context, msg StoredMessage) error
	// Messages returns a chat's log in insertion order.
	Messages(ctx context.Context, id domain.ChatID) ([]StoredMessage, error)
}

// Store is everything the backend persists.
type Store interface {
	UserStore
	ChatStore
}
