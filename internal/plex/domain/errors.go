package domain

import "errors"

var (
	ErrProviderUnavailable    = errors.New("provider_unavailable")
	ErrAuthorizationExpired   = errors.New("authorization_expired")
	ErrAuthorizationTimedOut  = errors.New("authorization_timed_out")
	ErrAuthorizationCancelled = errors.New("authorization_cancelled")
	ErrDiscoveryFailed        = errors.New("discovery_failed")
	ErrMissingClientID        = errors.New("missing_client_id")
)
