package sessions

import "errors"

var (
	// ErrSessionMissing is returned when no persisted session exists
	ErrSessionMissing = errors.New("session file not found")

	// ErrSessionInvalid is returned when a persisted cookie has expired
	ErrSessionInvalid = errors.New("session invalid")

	// ErrLoginFailed is returned when a step of the interactive login times out
	ErrLoginFailed = errors.New("login failed")
)
