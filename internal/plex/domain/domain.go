package domain

import (
	"context"
	"strings"
	"time"
)

type State string

const (
	StatePending   State = "pending"
	StateCompleted State = "completed"
	StateAbandoned State = "abandoned"
)

// Pin is a pairing code issued by plex.tv for one authorization attempt.
type Pin struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthorizationSession is the in-memory record of one handshake. The
// credential is not part of it; the form session keeps that separately.
type AuthorizationSession struct {
	ClientID         string `json:"client_id"`
	Pin              Pin    `json:"pin"`
	AuthorizationURL string `json:"authorization_url"`
	State            State  `json:"state"`
}

// Resource is an entry of the account's resource list.
type Resource struct {
	ClientIdentifier string `json:"client_identifier"`
	Name             string `json:"name"`
	Provides         string `json:"provides"`
	Owned            bool   `json:"owned"`
}

// IsServer reports whether the resource provides a media server.
func (r Resource) IsServer() bool {
	for _, p := range strings.Split(r.Provides, ",") {
		if strings.TrimSpace(p) == "server" {
			return true
		}
	}
	return false
}

// Provider is the plex.tv API surface used by the handshake and discovery.
type Provider interface {
	CreatePin(ctx context.Context, clientID string) (Pin, error)
	// CheckPin returns an empty token while the pin awaits approval.
	CheckPin(ctx context.Context, clientID string, pinID int64) (string, error)
	Resources(ctx context.Context, clientID, token string) ([]Resource, error)
	AuthorizationURL(clientID string, pin Pin) string
}

// WindowSpec describes the approval window.
type WindowSpec struct {
	Title  string
	Width  int
	Height int
}

// Window is a presented approval window. Closed fires when the user closes
// it; Close is idempotent.
type Window interface {
	Closed() <-chan struct{}
	Close() error
}

// Presenter shows the approval URL to the user.
type Presenter interface {
	Present(ctx context.Context, url string, spec WindowSpec) (Window, error)
}
