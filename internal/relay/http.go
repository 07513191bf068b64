package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"cipherdm/internal/domain"
	"cipherdm/internal/push"
)

// Endpoints are the backend paths, relative to the base URL.
type Endpoints struct {
	PublicKey  string `mapstructure:"public_key"`
	Chats      string `mapstructure:"chats"`
	SendDirect string `mapstructure:"send_direct"`
	SendGroup  string `mapstructure:"send_group"`
	Signup     string `mapstructure:"signup"`
	AddChat    string `mapstructure:"add_chat"`
	Events     string `mapstructure:"events"`
}

// DefaultEndpoints returns the paths served by the reference backend.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		PublicKey:  "/api/getPublicKey",
		Chats:      "/api/getchats",
		SendDirect: "/api/sendmessagee2ee",
		SendGroup:  "/api/sendmessageplain",
		Signup:     "/api/signup",
		AddChat:    "/api/addchats",
		Events:     "/api/events",
	}
}

// HTTP talks to the backend over HTTP(S).
type HTTP struct {
	Base      string
	HTTP      *http.Client
	Endpoints Endpoints
	log       zerolog.Logger
}

// NewHTTP returns a client for base. A nil client means http.DefaultClient.
func NewHTTP(base string, client *http.Client, eps Endpoints, log zerolog.Logger) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{
		Base:      strings.TrimRight(base, "/"),
		HTTP:      client,
		Endpoints: eps,
		log:       log.With().Str("component", "relay").Logger(),
	}
}

type signupRequest struct {
	Username  domain.Username `json:"username"`
	PublicKey string          `json:"publicKey"`
}

type publicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

type addChatRequest struct {
	ChatName  string            `json:"chatName"`
	ChatType  domain.ChatKind   `json:"chatType"`
	Usernames []domain.Username `json:"usernames"`
}

type addChatResponse struct {
	ChatID domain.ChatID `json:"chat_id"`
}

type sendDirectRequest struct {
	ChatID   domain.ChatID   `json:"chatId"`
	Username domain.Username `json:"username"`
	domain.WireSealed
}

type sendGroupRequest struct {
	ChatID   domain.ChatID   `json:"chatId"`
	Username domain.Username `json:"username"`
	Message  string          `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// RegisterPublicKey publishes our base64 SPKI public key.
func (c *HTTP) RegisterPublicKey(ctx context.Context, username domain.Username, publicSPKI string) error {
	return c.post(ctx, c.Endpoints.Signup, signupRequest{Username: username, PublicKey: publicSPKI}, nil)
}

// FetchPublicKey returns username's base64 SPKI public key.
func (c *HTTP) FetchPublicKey(ctx context.Context, username domain.Username) (string, error) {
	var out publicKeyResponse
	if err := c.getJSON(ctx, c.Endpoints.PublicKey, url.Values{"username": {username.String()}}, &out); err != nil {
		return "", err
	}
	if out.PublicKey == "" {
		return "", fmt.Errorf("no public key registered for %s", username)
	}
	return out.PublicKey, nil
}

// FetchChats returns every chat username participates in, with history.
// Messages that match neither shape are skipped and logged.
func (c *HTTP) FetchChats(ctx context.Context, username domain.Username) ([]domain.Chat, error) {
	var wire []domain.WireChat
	if err := c.getJSON(ctx, c.Endpoints.Chats, url.Values{"username": {username.String()}}, &wire); err != nil {
		return nil, err
	}
	chats := make([]domain.Chat, 0, len(wire))
	for _, wc := range wire {
		chat := domain.Chat{
			ID:           wc.ChatID,
			Name:         wc.Name,
			Kind:         wc.Type,
			Participants: wc.Participants,
			Messages:     make([]domain.Message, 0, len(wc.Messages)),
		}
		for _, wm := range wc.Messages {
			m, err := push.DecodeMessage(wm)
			if err != nil {
				c.log.Warn().Err(err).Int64("chat_id", int64(wc.ChatID)).Msg("skipping malformed history entry")
				continue
			}
			chat.Messages = append(chat.Messages, m)
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

// CreateChat creates a chat and returns its id.
func (c *HTTP) CreateChat(
	ctx context.Context,
	name string,
	kind domain.ChatKind,
	participants []domain.Username,
) (domain.ChatID, error) {
	var out addChatResponse
	req := addChatRequest{ChatName: name, ChatType: kind, Usernames: participants}
	if err := c.post(ctx, c.Endpoints.AddChat, req, &out); err != nil {
		return 0, err
	}
	return out.ChatID, nil
}

// SendDirect posts an encrypted message to a direct chat.
func (c *HTTP) SendDirect(
	ctx context.Context,
	chat domain.ChatID,
	from domain.Username,
	sealed domain.WireSealed,
) error {
	return c.post(ctx, c.Endpoints.SendDirect, sendDirectRequest{ChatID: chat, Username: from, WireSealed: sealed}, nil)
}

// SendGroup posts a plaintext message to a group chat.
func (c *HTTP) SendGroup(ctx context.Context, chat domain.ChatID, from domain.Username, text string) error {
	return c.post(ctx, c.Endpoints.SendGroup, sendGroupRequest{ChatID: chat, Username: from, Message: text}, nil)
}

func (c *HTTP) post(ctx context.Context, path string, in any, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTP) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.Base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *HTTP) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("relay %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError(req, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("relay %s %s: decode: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func statusError(req *http.Request, resp *http.Response) error {
	var e errorResponse
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("relay %s %s: %s: %s", req.Method, req.URL.Path, resp.Status, e.Error)
	}
	return fmt.Errorf("relay %s %s: %s", req.Method, req.URL.Path, resp.Status)
}

// Compile-time assertion that HTTP implements domain.RelayClient.
var _ domain.RelayClient = (*HTTP)(nil)
