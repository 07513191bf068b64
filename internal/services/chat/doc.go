// Package chat is the message sync engine.
//
// It loads every chat with its history once, decrypting direct chat history
// with the pairwise session keys, then applies push events as they arrive.
// A direct message is appended as a pending entry immediately and patched in
// place once decryption finishes; the entry is found again by (sender, iv),
// so completions may land in any order and never reorder the history. If the
// entry is gone by then (evicted by the history limit) the patch is a no-op.
//
// Messages that fail authentication or are malformed are removed from the
// view and logged. A peer key that cannot be fetched leaves entries pending.
//
// Group chats are plaintext and never touch the codec.
package chat
