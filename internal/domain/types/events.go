package types

// Event is a push notification about a new message in a chat. It is either a
// DirectCipherEvent or a GroupPlainEvent.
type Event interface {
	EventChat() ChatID
	isEvent()
}

// DirectCipherEvent carries an encrypted direct chat message.
type DirectCipherEvent struct {
	ChatID  ChatID
	Message CipherMessage
}

func (e DirectCipherEvent) EventChat() ChatID { return e.ChatID }
func (DirectCipherEvent) isEvent()            {}

// GroupPlainEvent carries a plaintext group chat message.
type GroupPlainEvent struct {
	ChatID  ChatID
	Message PlaintextMessage
}

func (e GroupPlainEvent) EventChat() ChatID { return e.ChatID }
func (GroupPlainEvent) isEvent()            {}
