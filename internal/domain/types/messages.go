package types

// Message is a chat log entry: either a PlaintextMessage or a CipherMessage.
type Message interface {
	MessageSender() Username
	MessageTimestamp() string
	isMessage()
}

// PlaintextMessage is a group chat message. Group chats are not encrypted.
type PlaintextMessage struct {
	Sender    Username
	Content   string
	Timestamp string
}

func (m PlaintextMessage) MessageSender() Username  { return m.Sender }
func (m PlaintextMessage) MessageTimestamp() string { return m.Timestamp }
func (PlaintextMessage) isMessage()                 {}

// CipherMessage is a direct chat message as stored and pushed by the
// backend. IV, Ciphertext and Tag stay base64 encoded; (Sender, IV) is unique
// per message and identifies it while it is being decrypted.
type CipherMessage struct {
	Sender     Username
	IV         string
	Ciphertext string
	Tag        string
	Timestamp  string
}

func (m CipherMessage) MessageSender() Username  { return m.Sender }
func (m CipherMessage) MessageTimestamp() string { return m.Timestamp }
func (CipherMessage) isMessage()                 {}

// Chat is a conversation with its history as loaded from the backend.
type Chat struct {
	ID           ChatID
	Name         string
	Kind         ChatKind
	Participants []Username
	Messages     []Message
}

// WireSealed is the base64 transport form of an encrypted message.
type WireSealed struct {
	IV  string `json:"iv"`
	CT  string `json:"ct"`
	Tag string `json:"tag"`
}
