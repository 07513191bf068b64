package chat

import "cipherdm/internal/domain"

type entry struct {
	msg   domain.Message
	text  string
	ready bool
}

func (en entry) display() domain.DisplayMessage {
	_, encrypted := en.msg.(domain.CipherMessage)
	return domain.DisplayMessage{
		Sender:    en.msg.MessageSender(),
		Content:   en.text,
		Timestamp: en.msg.MessageTimestamp(),
		Encrypted: encrypted,
		Pending:   !en.ready,
	}
}

// chatState is guarded by Engine.mu.
type chatState struct {
	id           domain.ChatID
	name         string
	kind         domain.ChatKind
	participants []domain.Username
	peer         domain.Username

	entries  []entry
	state    domain.ChatState
	inflight int
	unread   int
}

func newChatState(c domain.Chat, self domain.Username) *chatState {
	cs := &chatState{
		id:           c.ID,
		name:         c.Name,
		kind:         c.Kind,
		participants: c.Participants,
		state:        domain.ChatLoading,
	}
	if cs.kind == domain.ChatDirect {
		cs.peer = peerOf(c, self)
	}
	return cs
}

// peerOf picks the other participant of a direct chat. A chat with only
// ourselves is a note-to-self; with no participants the backend's display
// name is the peer.
func peerOf(c domain.Chat, self domain.Username) domain.Username {
	for _, p := range c.Participants {
		if p != self {
			return p
		}
	}
	if len(c.Participants) > 0 {
		return self
	}
	return domain.Username(c.Name)
}

func (cs *chatState) push(en entry, limit int) {
	cs.entries = append(cs.entries, en)
	cs.unread++
	cs.evict(limit)
}

func (cs *chatState) evict(limit int) {
	if limit > 0 && len(cs.entries) > limit {
		n := len(cs.entries) - limit
		clear(cs.entries[:n])
		cs.entries = cs.entries[n:]
	}
}

// pending returns the index of the undecrypted entry for (sender, iv), or -1.
func (cs *chatState) pending(sender domain.Username, iv string) int {
	for i, en := range cs.entries {
		if en.ready {
			continue
		}
		if cm, ok := en.msg.(domain.CipherMessage); ok && cm.Sender == sender && cm.IV == iv {
			return i
		}
	}
	return -1
}

// find returns the index of the entry holding m, or -1.
func (cs *chatState) find(m domain.Message) int {
	for i, en := range cs.entries {
		switch want := m.(type) {
		case domain.CipherMessage:
			if got, ok := en.msg.(domain.CipherMessage); ok && got.Sender == want.Sender && got.IV == want.IV {
				return i
			}
		case domain.PlaintextMessage:
			if got, ok := en.msg.(domain.PlaintextMessage); ok && got == want {
				return i
			}
		}
	}
	return -1
}

func (cs *chatState) remove(i int) {
	cs.entries = append(cs.entries[:i], cs.entries[i+1:]...)
	if cs.unread > 0 {
		cs.unread--
	}
}

func (cs *chatState) summary() domain.ChatSummary {
	return domain.ChatSummary{
		ID:       cs.id,
		Name:     cs.name,
		Kind:     cs.kind,
		Peer:     cs.peer,
		State:    cs.state,
		Unread:   cs.unread,
		Messages: len(cs.entries),
	}
}
