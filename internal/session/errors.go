package session

import "errors"

var (
	ErrSessionNotFound         = errors.New("session_not_found")
	ErrReadOnlyField           = errors.New("read_only_field")
	ErrAuthorizationInProgress = errors.New("authorization_in_progress")
	ErrSessionClosed           = errors.New("session_closed")
)
