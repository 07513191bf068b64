package domain

import types "cipherdm/internal/domain/types"

// Sentinel errors. Callers match them with errors.Is.
var (
	ErrInvalidPeerKey            = types.ErrInvalidPeerKey
	ErrPeerKeyUnavailable        = types.ErrPeerKeyUnavailable
	ErrTamperDetected            = types.ErrTamperDetected
	ErrCorruptMessage            = types.ErrCorruptMessage
	ErrCertificatePinningFailure = types.ErrCertificatePinningFailure
	ErrNoIdentity                = types.ErrNoIdentity
	ErrUnknownChat               = types.ErrUnknownChat
	ErrInvalidEvent              = types.ErrInvalidEvent
	ErrTooManyAttempts           = types.ErrTooManyAttempts
)
