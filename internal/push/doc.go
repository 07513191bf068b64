// Package push turns backend "new_message" notifications into typed events.
//
// A push payload carries a chat id, a sender, a timestamp and exactly one
// message shape: either an encrypted direct message (iv, ct, tag) or a
// plaintext group message (content). Payloads with both shapes, neither, or
// a partial cipher triple are rejected with domain.ErrInvalidEvent.
//
// Events reach the client over Server-Sent Events (see internal/relay) or,
// for clients running next to the backend, straight from Redis pub/sub via
// RedisSource.
package push
