package chat

import (
	"fmt"

	"cipherdm/internal/domain"
)

// Chats returns a summary of every chat in backend order.
func (e *Engine) Chats() []domain.ChatSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.ChatSummary, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.chats[id].summary())
	}
	return out
}

// View returns the display-ready messages of a chat in arrival order.
func (e *Engine) View(id domain.ChatID) ([]domain.DisplayMessage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs, ok := e.chats[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownChat, id)
	}
	out := make([]domain.DisplayMessage, len(cs.entries))
	for i, en := range cs.entries {
		out[i] = en.display()
	}
	return out, nil
}

// State returns the lifecycle state of a chat.
func (e *Engine) State(id domain.ChatID) (domain.ChatState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs, ok := e.chats[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", domain.ErrUnknownChat, id)
	}
	return cs.state, nil
}

// MarkRead resets a chat's unread counter.
func (e *Engine) MarkRead(id domain.ChatID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs, ok := e.chats[id]
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrUnknownChat, id)
	}
	cs.unread = 0
	return nil
}
