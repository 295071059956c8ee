package push

import "errors"

var (
	ErrInvalidConfig  = errors.New("push: invalid config")
	ErrInvalidMessage = errors.New("push: invalid message")
	ErrSendFailed     = errors.New("push: failed to send notification")

	// ErrRejected marks provider responses that retrying cannot change,
	// such as a malformed request or credentials the provider refuses.
	ErrRejected = errors.New("push: rejected by provider")

	// ErrNoRecipients is returned when none of the player ids is subscribed.
	ErrNoRecipients = errors.New("push: no subscribed recipients")
)
