package types

// ChatState is the lifecycle state of a chat in the message sync engine.
type ChatState int

const (
	ChatLoading ChatState = iota
	ChatReady
	ChatUpdating
)

func (s ChatState) String() string {
	switch s {
	case ChatLoading:
		return "loading"
	case ChatReady:
		return "ready"
	case ChatUpdating:
		return "updating"
	default:
		return "unknown"
	}
}

// DisplayMessage is a display-ready view of a log entry. Pending is set for
// direct messages that have not been decrypted yet; Content is empty then.
type DisplayMessage struct {
	Sender    Username
	Content   string
	Timestamp string
	Encrypted bool
	Pending   bool
}

// ChatSummary describes a chat for listings.
type ChatSummary struct {
	ID       ChatID
	Name     string
	Kind     ChatKind
	Peer     Username
	State    ChatState
	Unread   int
	Messages int
}
