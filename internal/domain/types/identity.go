package types

// Identity is the long-term X25519 key pair of the local user.
type Identity struct {
	Username Username      `json:"username"`
	Public   X25519Public  `json:"public"`
	Private  X25519Private `json:"private"`
}
