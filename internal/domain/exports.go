package domain

import (
	interfaces "cipherdm/internal/domain/interfaces"
	types "cipherdm/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Username          = types.Username
	Fingerprint       = types.Fingerprint
	ChatID            = types.ChatID
	ChatKind          = types.ChatKind
	Identity          = types.Identity
	X25519Public      = types.X25519Public
	X25519Private     = types.X25519Private
	SharedSecret      = types.SharedSecret
	SessionKeys       = types.SessionKeys
	Message           = types.Message
	PlaintextMessage  = types.PlaintextMessage
	CipherMessage     = types.CipherMessage
	Chat              = types.Chat
	WireSealed        = types.WireSealed
	WireMessage       = types.WireMessage
	WireChat          = types.WireChat
	WireEvent         = types.WireEvent
	Event             = types.Event
	DirectCipherEvent = types.DirectCipherEvent
	GroupPlainEvent   = types.GroupPlainEvent
	ChatState         = types.ChatState
	DisplayMessage    = types.DisplayMessage
	ChatSummary       = types.ChatSummary
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService   = interfaces.IdentityService
	SessionKeyService = interfaces.SessionKeyService
	ChatService       = interfaces.ChatService
	RelayClient       = interfaces.RelayClient
	EventSource       = interfaces.EventSource
	IdentityStore     = interfaces.IdentityStore
)

const (
	ChatDirect = types.ChatDirect
	ChatGroup  = types.ChatGroup

	ChatLoading  = types.ChatLoading
	ChatReady    = types.ChatReady
	ChatUpdating = types.ChatUpdating
)
