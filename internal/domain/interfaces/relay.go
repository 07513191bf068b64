package interfaces

import (
	"context"

	domaintypes "cipherdm/internal/domain/types"
)

// RelayClient is how we talk to the chat backend, all with context.
type RelayClient interface {
	RegisterPublicKey(ctx context.Context, username domaintypes.Username, publicSPKI string) error
	FetchPublicKey(ctx context.Context, username domaintypes.Username) (string, error)
	FetchChats(ctx context.Context, username domaintypes.Username) ([]domaintypes.Chat, error)
	CreateChat(
		ctx context.Context,
		name string,
		kind domaintypes.ChatKind,
		participants []domaintypes.Username,
	) (domaintypes.ChatID, error)
	SendDirect(
		ctx context.Context,
		chat domaintypes.ChatID,
		from domaintypes.Username,
		sealed domaintypes.WireSealed,
	) error
	SendGroup(
		ctx context.Context,
		chat domaintypes.ChatID,
		from domaintypes.Username,
		text string,
	) error
}

// EventSource delivers push events for a user. Listen blocks until ctx is
// done or the underlying stream fails. subscribed, when non-nil, is called
// once the subscription is in place; no event published after that is missed.
type EventSource interface {
	Listen(ctx context.Context, username domaintypes.Username, events chan<- domaintypes.Event, subscribed func()) error
}
