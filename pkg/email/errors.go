package email

import "errors"

var (
	ErrFailedToSendEmail = errors.New("email: failed to send email")
	ErrInvalidConfig     = errors.New("email: invalid configuration")
	ErrInvalidParams     = errors.New("email: invalid parameters")
	// ErrRecipientRejected marks sends the provider refused for the
	// recipient itself (inactive or malformed address). Retrying them
	// does not help.
	ErrRecipientRejected = errors.New("email: recipient rejected")
)
