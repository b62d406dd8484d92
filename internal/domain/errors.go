package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidOrder = errors.New("invalid order parameters")

	// Stream session lifecycle.
	ErrConnection     = errors.New("connection failed")
	ErrAuthRejected   = errors.New("authentication rejected")
	ErrAuthAmbiguous  = errors.New("authentication response ambiguous")
	ErrSessionClosed  = errors.New("stream session closed")
	ErrAlreadyStarted = errors.New("stream session already started")

	// Frame decoding.
	ErrEmptyEventList       = errors.New("empty event list")
	ErrUnknownEventType     = errors.New("unknown event type")
	ErrMissingDiscriminator = errors.New("missing event type discriminator")
	ErrMalformedFrame       = errors.New("malformed frame")
)

// IsFatalAuth reports whether err is an authentication failure that must not
// be retried.
func IsFatalAuth(err error) bool {
	return errors.Is(err, ErrAuthRejected) || errors.Is(err, ErrAuthAmbiguous)
}
