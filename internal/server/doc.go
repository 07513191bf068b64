// Package server is the development chat backend.
//
// It serves the JSON API the client expects (signup, public key lookup, chat
// listing and creation, direct and group sends, ping) and pushes
// "new_message" events to every participant of a chat over Server-Sent
// Events. The backend only ever sees ciphertext for direct chats.
//
// Storage is pluggable: MemoryStore for tests and local runs, PostgresStore
// for anything longer lived. Fan-out is pluggable too: Hub keeps subscribers
// in process, RedisNotifier goes through Redis pub/sub so several backend
// instances can share subscribers.
package server
