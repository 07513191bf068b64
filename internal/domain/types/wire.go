package types

// WireMessage is a message as it appears in the backend's JSON. Exactly one
// of Content or (IV, CT, Tag) is expected to be set.
type WireMessage struct {
	Sender    Username `json:"sender"`
	Timestamp string   `json:"timestamp"`
	Content   *string  `json:"content,omitempty"`
	IV        *string  `json:"iv,omitempty"`
	CT        *string  `json:"ct,omitempty"`
	Tag       *string  `json:"tag,omitempty"`
}

// WireChat is one element of the chat list returned by the backend.
type WireChat struct {
	ChatID       ChatID        `json:"chat_id"`
	Name         string        `json:"name"`
	Type         ChatKind      `json:"type"`
	Participants []Username    `json:"participants"`
	Messages     []WireMessage `json:"messages"`
}

// WireEvent is the payload of a "new_message" push event.
type WireEvent struct {
	ChatID ChatID `json:"chat_id"`
	WireMessage
}
