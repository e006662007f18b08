package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrVenueNotConfigured = errors.New("venue not configured")
	ErrOrderTimeout       = errors.New("order timed out")
	ErrOrderRejected      = errors.New("order rejected")
	ErrRecoveryExhausted  = errors.New("recovery retries exhausted")
	ErrWSDisconnect       = errors.New("websocket disconnected")
	ErrRateLimited        = errors.New("rate limited")
)
