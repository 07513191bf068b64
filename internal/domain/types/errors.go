package types

import "errors"

var (
	ErrInvalidPeerKey            = errors.New("invalid peer public key")
	ErrPeerKeyUnavailable        = errors.New("peer public key unavailable")
	ErrTamperDetected            = errors.New("message authentication failed")
	ErrCorruptMessage            = errors.New("corrupt message")
	ErrCertificatePinningFailure = errors.New("certificate pinning failure")
	ErrNoIdentity                = errors.New("no local identity")
	ErrUnknownChat               = errors.New("unknown chat")
	ErrInvalidEvent              = errors.New("invalid push event")
	ErrTooManyAttempts           = errors.New("too many failed attempts")
)
