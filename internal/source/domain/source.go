package domain

import "context"

type UserMatchingMode string

const (
	UserMatchingIdentifier   UserMatchingMode = "identifier"
	UserMatchingEmailLink    UserMatchingMode = "email_link"
	UserMatchingEmailDeny    UserMatchingMode = "email_deny"
	UserMatchingUsernameLink UserMatchingMode = "username_link"
	UserMatchingUsernameDeny UserMatchingMode = "username_deny"
)

// UserMatchingModes lists every mode in display order.
var UserMatchingModes = []UserMatchingMode{
	UserMatchingIdentifier,
	UserMatchingEmailLink,
	UserMatchingEmailDeny,
	UserMatchingUsernameLink,
	UserMatchingUsernameDeny,
}

func (m UserMatchingMode) Valid() bool {
	switch m {
	case UserMatchingIdentifier, UserMatchingEmailLink, UserMatchingEmailDeny,
		UserMatchingUsernameLink, UserMatchingUsernameDeny:
		return true
	}
	return false
}

// Description is the help text shown next to the mode.
func (m UserMatchingMode) Description() string {
	switch m {
	case UserMatchingIdentifier:
		return "Link users on unique identifier"
	case UserMatchingEmailLink:
		return "Link to a user with identical email address. Can have security implications when a source doesn't validate email addresses"
	case UserMatchingEmailDeny:
		return "Use the user's email address, but deny enrollment when the email address already exists."
	case UserMatchingUsernameLink:
		return "Link to a user with identical username address. Can have security implications when a username is used with another source."
	case UserMatchingUsernameDeny:
		return "Use the user's username, but deny enrollment when the username already exists."
	}
	return ""
}

// Source is a Plex authentication source. Flow references are primary keys
// of backend flows; an empty string means unset.
type Source struct {
	PK                 string           `json:"pk,omitempty"`
	Slug               string           `json:"slug" validate:"required,slug"`
	Name               string           `json:"name" validate:"required"`
	Enabled            bool             `json:"enabled"`
	ClientID           string           `json:"client_id" validate:"required"`
	UserMatchingMode   UserMatchingMode `json:"user_matching_mode" validate:"required,user_matching_mode"`
	AllowFriends       bool             `json:"allow_friends"`
	AllowedServers     []string         `json:"allowed_servers" validate:"required,min=1,dive,required"`
	AuthenticationFlow string           `json:"authentication_flow" validate:"required"`
	EnrollmentFlow     string           `json:"enrollment_flow" validate:"required"`
}

// Gateway persists sources. The token is write-only: it is sent with the
// source but never read back.
type Gateway interface {
	Get(ctx context.Context, slug string) (*Source, error)
	Create(ctx context.Context, src Source, token string) (*Source, error)
	Update(ctx context.Context, slug string, src Source, token string) (*Source, error)
}
