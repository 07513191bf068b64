package relay_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cipherdm/internal/domain"
	"cipherdm/internal/relay"
)

func newClient(t *testing.T, h http.Handler) *relay.HTTP {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return relay.NewHTTP(srv.URL+"/", srv.Client(), relay.DefaultEndpoints(), zerolog.Nop())
}

func TestFetchPublicKey(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/getPublicKey" || r.URL.Query().Get("username") != "bob" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"publicKey": "KEY"})
	}))
	got, err := c.FetchPublicKey(context.Background(), "bob")
	if err != nil {
		t.Fatalf("FetchPublicKey: %v", err)
	}
	if got != "KEY" {
		t.Fatalf("got %q", got)
	}
}

func TestErrorMessageSurfaced(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"User not found"}`))
	}))
	_, err := c.FetchPublicKey(context.Background(), "nobody")
	if err == nil || !strings.Contains(err.Error(), "User not found") || !strings.Contains(err.Error(), "404") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestFetchChatsDecodesBothShapes(t *testing.T) {
	body := `[
	  {"chat_id": 2, "name": "bob", "type": "private", "participants": ["alice","bob"],
	   "messages": [
	     {"sender":"bob","iv":"aXY=","ct":"Y3Q=","tag":"dGFn","timestamp":"2024-01-01 00:00:00"},
	     {"sender":"bob","timestamp":"broken"}
	   ]},
	  {"chat_id": 5, "name": "team", "type": "group", "participants": ["alice","bob","carol"],
	   "messages": [{"sender":"carol","content":"hi","timestamp":"2024-01-01 00:00:01"}]}
	]`
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/getchats" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))

	chats, err := c.FetchChats(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FetchChats: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("got %d chats", len(chats))
	}
	if chats[0].Kind != domain.ChatDirect || len(chats[0].Messages) != 1 {
		t.Fatalf("direct chat: %+v", chats[0])
	}
	if _, ok := chats[0].Messages[0].(domain.CipherMessage); !ok {
		t.Fatalf("want CipherMessage, got %T", chats[0].Messages[0])
	}
	if pm, ok := chats[1].Messages[0].(domain.PlaintextMessage); !ok || pm.Content != "hi" {
		t.Fatalf("group message: %#v", chats[1].Messages[0])
	}
}

func TestSendBodies(t *testing.T) {
	got := make(chan map[string]any, 2)
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m map[string]any
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m["_path"] = r.URL.Path
		got <- m
		_, _ = w.Write([]byte(`{"success":true}`))
	}))

	ctx := context.Background()
	if err := c.SendDirect(ctx, 9, "alice", domain.WireSealed{IV: "i", CT: "c", Tag: "t"}); err != nil {
		t.Fatalf("SendDirect: %v", err)
	}
	d := <-got
	if d["_path"] != "/api/sendmessagee2ee" || d["chatId"] != float64(9) || d["iv"] != "i" || d["ct"] != "c" || d["tag"] != "t" || d["username"] != "alice" {
		t.Fatalf("direct body %v", d)
	}
	if _, leaked := d["message"]; leaked {
		t.Fatal("direct body must not carry plaintext")
	}

	if err := c.SendGroup(ctx, 4, "alice", "hello team"); err != nil {
		t.Fatalf("SendGroup: %v", err)
	}
	g := <-got
	if g["_path"] != "/api/sendmessageplain" || g["message"] != "hello team" || g["chatId"] != float64(4) {
		t.Fatalf("group body %v", g)
	}
}

func TestListenStreamsEvents(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events" || r.URL.Query().Get("username") != "alice" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": hello\n\n")
		fmt.Fprint(w, "event: new_message\ndata: {\"chat_id\":1,\"sender\":\"bob\",\"iv\":\"a\",\"ct\":\"b\",\"tag\":\"c\",\"timestamp\":\"t\"}\n\n")
		fmt.Fprint(w, "event: new_message\ndata: {\"chat_id\":1}\n\n")
		fmt.Fprint(w, "event: other\ndata: {}\n\n")
		fmt.Fprint(w, "event: new_message\ndata: {\"chat_id\":2,\"sender\":\"carol\",\"content\":\"yo\",\"timestamp\":\"t\"}\n\n")
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events := make(chan domain.Event, 8)
	_ = c.Listen(ctx, "alice", events, nil)
	close(events)

	var got []domain.Event
	for ev := range events {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(got), got)
	}
	if _, ok := got[0].(domain.DirectCipherEvent); !ok {
		t.Fatalf("first event %T", got[0])
	}
	if g, ok := got[1].(domain.GroupPlainEvent); !ok || g.Message.Content != "yo" {
		t.Fatalf("second event %#v", got[1])
	}
}
