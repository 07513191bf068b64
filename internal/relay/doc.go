// Package relay provides an HTTP implementation of domain.RelayClient and
// domain.EventSource for the chat backend.
//
// Supported operations include:
//   - Registering our public key (signup).
//   - Fetching a peer's public key.
//   - Fetching all chats with their history.
//   - Creating chats.
//   - Sending encrypted direct messages and plaintext group messages.
//   - Streaming push events over Server-Sent Events.
//
// All requests are JSON over HTTP and accept a context for cancellation and
// deadlines. The *http.Client is supplied by the caller; in production it
// carries the certificate pinning guard from internal/trust. Non-2xx
// statuses are returned as errors with the method, path, status and the
// backend's "error" message when present.
package relay
