package interfaces

import (
	"context"

	domaintypes "cipherdm/internal/domain/types"
)

// IdentityService creates, imports, unlocks and inspects your identity.
type IdentityService interface {
	GenerateIdentity(passphrase string, username domaintypes.Username) (
		domaintypes.Identity,
		domaintypes.Fingerprint,
		error,
	)
	ImportIdentity(
		passphrase string,
		username domaintypes.Username,
		privatePKCS8, publicSPKI string,
	) (domaintypes.Identity, domaintypes.Fingerprint, error)
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
}

// SessionKeyService resolves the pairwise session keys shared with a peer.
type SessionKeyService interface {
	Keys(ctx context.Context, peer domaintypes.Username) (domaintypes.SessionKeys, error)
	Forget(peer domaintypes.Username)
}

// ChatService keeps chat histories in sync with the backend and the push
// channel and produces display-ready views.
type ChatService interface {
	Load(ctx context.Context) error
	Ingest(ctx context.Context, ev domaintypes.Event) error
	Send(ctx context.Context, chat domaintypes.ChatID, text string) error
	Run(ctx context.Context, events <-chan domaintypes.Event) error
	Chats() []domaintypes.ChatSummary
	View(chat domaintypes.ChatID) ([]domaintypes.DisplayMessage, error)
	MarkRead(chat domaintypes.ChatID) error
}
