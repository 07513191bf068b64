package types

import "strconv"

// Username represents a backend-registered identity.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// ChatID identifies a chat on the backend.
type ChatID int64

// String returns the decimal form of the chat identifier.
func (id ChatID) String() string { return strconv.FormatInt(int64(id), 10) }

// ChatKind distinguishes encrypted direct chats from plaintext group chats.
// The values match the backend's "type" field.
type ChatKind string

const (
	ChatDirect ChatKind = "private"
	ChatGroup  ChatKind = "group"
)

// Valid reports whether k is a known chat kind.
func (k ChatKind) Valid() bool { return k == ChatDirect || k == ChatGroup }
