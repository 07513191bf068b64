package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"cipherdm/internal/crypto"
	"cipherdm/internal/domain"
	"cipherdm/internal/push"
)

type signupRequest struct {
	Username  domain.Username `json:"username"`
	Password  string          `json:"password"`
	PublicKey string          `json:"publicKey"`
}

type addChatRequest struct {
	ChatName  string            `json:"chatName"`
	ChatType  domain.ChatKind   `json:"chatType"`
	Usernames []domain.Username `json:"usernames"`
}

type sendGroupRequest struct {
	ChatID   domain.ChatID   `json:"chatId"`
	Username domain.Username `json:"username"`
	Message  string          `json:"message"`
}

type sendDirectRequest struct {
	ChatID   domain.ChatID   `json:"chatId"`
	Username domain.Username `json:"username"`
	domain.WireSealed
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"msg": "pong"})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.PublicKey == "" {
		writeError(w, http.StatusBadRequest, "Username and public key are required")
		return
	}
	if _, err := crypto.ParseSPKI(req.PublicKey); err != nil {
		writeError(w, http.StatusBadRequest, "Public key is not an X25519 SPKI key")
		return
	}
	err := s.store.CreateUser(r.Context(), req.Username, req.PublicKey)
	if errors.Is(err, ErrExists) {
		writeError(w, http.StatusConflict, "User already exists")
		return
	}
	if err != nil {
		s.internal(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Str("username", req.Username.String()).Msg("user registered")
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"username": req.Username,
		"message":  "User created successfully",
	})
}

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	username := domain.Username(r.URL.Query().Get("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}
	key, err := s.store.PublicKey(r.Context(), username)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": key})
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	username := domain.Username(r.URL.Query().Get("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}
	if _, err := s.store.PublicKey(r.Context(), username); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.internal(w, r, err)
		return
	}
	chats, err := s.store.ChatsFor(r.Context(), username)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	out := make([]domain.WireChat, 0, len(chats))
	for _, c := range chats {
		msgs, err := s.store.Messages(r.Context(), c.ID)
		if err != nil {
			s.internal(w, r, err)
			return
		}
		wc := domain.WireChat{
			ChatID:       c.ID,
			Name:         displayName(c, username),
			Type:         c.Kind,
			Participants: c.Participants,
			Messages:     make([]domain.WireMessage, 0, len(msgs)),
		}
		for _, m := range msgs {
			wc.Messages = append(wc.Messages, m.WireMessage)
		}
		out = append(out, wc)
	}
	writeJSON(w, http.StatusOK, out)
}

// displayName names a direct chat after the other participant.
func displayName(c ChatRecord, viewer domain.Username) string {
	if c.Kind != domain.ChatDirect {
		return c.Name
	}
	for _, p := range c.Participants {
		if p != viewer {
			return p.String()
		}
	}
	return c.Name
}

func (s *Server) handleAddChat(w http.ResponseWriter, r *http.Request) {
	var req addChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	participants := slices.Compact(slices.Sorted(slices.Values(req.Usernames)))
	switch {
	case req.ChatName == "" || len(participants) == 0:
		writeError(w, http.StatusBadRequest, "Chat name and usernames are required")
		return
	case !req.ChatType.Valid():
		writeError(w, http.StatusBadRequest, "Chat type must be private or group")
		return
	case req.ChatType == domain.ChatDirect && len(participants) != 2:
		writeError(w, http.StatusBadRequest, "Private chats need exactly two participants")
		return
	}
	id, err := s.store.CreateChat(r.Context(), req.ChatName, req.ChatType, participants)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "One or more users not found")
		return
	}
	if err != nil {
		s.internal(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Int64("chat_id", int64(id)).Str("type", string(req.ChatType)).Msg("chat created")
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Chat created successfully",
		"chat_id": id,
	})
}

func (s *Server) handleSendGroup(w http.ResponseWriter, r *http.Request) {
	var req sendGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ChatID <= 0 || req.Username == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "chatId, username and message are required")
		return
	}
	c, ok := s.member(w, r, req.ChatID, req.Username, domain.ChatGroup)
	if !ok {
		return
	}
	msg := domain.PlaintextMessage{Sender: req.Username, Content: req.Message, Timestamp: s.timestamp()}
	s.deliver(w, r, c, domain.GroupPlainEvent{ChatID: c.ID, Message: msg})
}

func (s *Server) handleSendDirect(w http.ResponseWriter, r *http.Request) {
	var req sendDirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ChatID <= 0 || req.Username == "" || req.IV == "" || req.CT == "" || req.Tag == "" {
		writeError(w, http.StatusBadRequest, "chatId, username, iv, ct and tag are required")
		return
	}
	c, ok := s.member(w, r, req.ChatID, req.Username, domain.ChatDirect)
	if !ok {
		return
	}
	msg := domain.CipherMessage{
		Sender:     req.Username,
		IV:         req.IV,
		Ciphertext: req.CT,
		Tag:        req.Tag,
		Timestamp:  s.timestamp(),
	}
	s.deliver(w, r, c, domain.DirectCipherEvent{ChatID: c.ID, Message: msg})
}

// member loads a chat and checks that username may post to it with the
// given kind of message. It writes the error response itself.
func (s *Server) member(
	w http.ResponseWriter,
	r *http.Request,
	id domain.ChatID,
	username domain.Username,
	kind domain.ChatKind,
) (ChatRecord, bool) {
	c, err := s.store.Chat(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "Chat not found")
		return ChatRecord{}, false
	}
	if err != nil {
		s.internal(w, r, err)
		return ChatRecord{}, false
	}
	if !c.HasParticipant(username) {
		writeError(w, http.StatusForbidden, "User is not a participant of this chat")
		return ChatRecord{}, false
	}
	if c.Kind != kind {
		writeError(w, http.StatusBadRequest, "Message type does not match chat type")
		return ChatRecord{}, false
	}
	return c, true
}

// deliver stores the message and notifies every participant, the sender
// included. Notification failures are logged; the message is already stored.
func (s *Server) deliver(w http.ResponseWriter, r *http.Request, c ChatRecord, ev domain.Event) {
	var m domain.Message
	switch ev := ev.(type) {
	case domain.DirectCipherEvent:
		m = ev.Message
	case domain.GroupPlainEvent:
		m = ev.Message
	}
	stored := StoredMessage{ID: uuid.New(), ChatID: c.ID, WireMessage: push.EncodeMessage(m)}
	if err := s.store.AppendMessage(r.Context(), stored); err != nil {
		s.internal(w, r, err)
		return
	}
	for _, p := range c.Participants {
		if err := s.notifier.Publish(r.Context(), p, ev); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("username", p.String()).Msg("notify failed")
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) timestamp() string { return s.now().UTC().Format(TimestampLayout) }

func (s *Server) internal(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
