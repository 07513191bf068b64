// Package main runs the development chat backend used by cipherdm.
//
// HTTP API
//
//	GET  /api/ping
//	    Liveness check, returns {"msg":"pong"}.
//
//	POST /api/signup {username, publicKey}
//	    Register a user and their base64 SPKI X25519 public key.
//
//	GET  /api/getPublicKey?username=U
//	    Return {"publicKey": ...} for U.
//
//	GET  /api/getchats?username=U
//	    Return U's chats, newest first, each with its full message log.
//	    Direct chats are named after the other participant.
//
//	POST /api/addchats {chatName, chatType, usernames}
//	    Create a "private" (exactly two users) or "group" chat.
//
//	POST /api/sendmessagee2ee {chatId, username, iv, ct, tag}
//	POST /api/sendmessageplain {chatId, username, message}
//	    Append to a direct or group chat and push "new_message" to every
//	    participant.
//
//	GET  /api/events?username=U
//	    Server-Sent Events stream of U's "new_message" events.
//
// Behaviour
//
//   - Storage is in memory by default; backend.store=postgres keeps it in
//     PostgreSQL and migrates the schema at startup.
//   - backend.notifier=redis fans events out through Redis pub/sub so several
//     instances can serve the same users.
//   - TLS is served when backend.tls_cert and backend.tls_key are set.
//
// The backend only ever stores ciphertext for direct chats.
package main
