package push

import (
	"encoding/json"
	"fmt"

	"cipherdm/internal/domain"
)

// EventName is the SSE event name used for message notifications.
const EventName = "new_message"

// Decode parses a push payload.
func Decode(data []byte) (domain.Event, error) {
	var w domain.WireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}
	return FromWire(w)
}

// FromWire validates a decoded payload and returns the matching event variant.
func FromWire(w domain.WireEvent) (domain.Event, error) {
	if w.ChatID <= 0 {
		return nil, fmt.Errorf("%w: missing chat_id", domain.ErrInvalidEvent)
	}
	msg, err := DecodeMessage(w.WireMessage)
	if err != nil {
		return nil, err
	}
	switch m := msg.(type) {
	case domain.CipherMessage:
		return domain.DirectCipherEvent{ChatID: w.ChatID, Message: m}, nil
	case domain.PlaintextMessage:
		return domain.GroupPlainEvent{ChatID: w.ChatID, Message: m}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected message %T", domain.ErrInvalidEvent, msg)
	}
}

// DecodeMessage converts a wire message into a PlaintextMessage or a
// CipherMessage. It is shared by push payloads and chat history.
func DecodeMessage(w domain.WireMessage) (domain.Message, error) {
	if w.Sender == "" {
		return nil, fmt.Errorf("%w: missing sender", domain.ErrInvalidEvent)
	}
	hasCipher := w.IV != nil || w.CT != nil || w.Tag != nil
	switch {
	case hasCipher && w.Content != nil:
		return nil, fmt.Errorf("%w: both content and ciphertext present", domain.ErrInvalidEvent)
	case hasCipher:
		if empty(w.IV) || empty(w.CT) || empty(w.Tag) {
			return nil, fmt.Errorf("%w: incomplete iv/ct/tag", domain.ErrInvalidEvent)
		}
		return domain.CipherMessage{
			Sender:     w.Sender,
			IV:         *w.IV,
			Ciphertext: *w.CT,
			Tag:        *w.Tag,
			Timestamp:  w.Timestamp,
		}, nil
	case w.Content != nil:
		return domain.PlaintextMessage{Sender: w.Sender, Content: *w.Content, Timestamp: w.Timestamp}, nil
	default:
		return nil, fmt.Errorf("%w: no message body", domain.ErrInvalidEvent)
	}
}

// EncodeMessage is the inverse of DecodeMessage.
func EncodeMessage(m domain.Message) domain.WireMessage {
	w := domain.WireMessage{Sender: m.MessageSender(), Timestamp: m.MessageTimestamp()}
	switch m := m.(type) {
	case domain.CipherMessage:
		w.IV, w.CT, w.Tag = &m.IV, &m.Ciphertext, &m.Tag
	case domain.PlaintextMessage:
		w.Content = &m.Content
	}
	return w
}

// Encode serialises an event into its push payload.
func Encode(ev domain.Event) ([]byte, error) {
	var w domain.WireEvent
	switch ev := ev.(type) {
	case domain.DirectCipherEvent:
		w = domain.WireEvent{ChatID: ev.ChatID, WireMessage: EncodeMessage(ev.Message)}
	case domain.GroupPlainEvent:
		w = domain.WireEvent{ChatID: ev.ChatID, WireMessage: EncodeMessage(ev.Message)}
	default:
		return nil, fmt.Errorf("%w: unexpected event %T", domain.ErrInvalidEvent, ev)
	}
	return json.Marshal(w)
}

func empty(s *string) bool { return s == nil || *s == "" }
