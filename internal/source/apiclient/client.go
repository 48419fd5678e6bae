package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/railzwaylabs/plexsource/internal/backend"
	"github.com/railzwaylabs/plexsource/internal/source/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const sourcesPath = "api/v3/sources/plex/"

type sourceWire struct {
	PK                 string   `json:"pk,omitempty"`
	Slug               string   `json:"slug"`
	Name               string   `json:"name"`
	Enabled            bool     `json:"enabled"`
	ClientID           string   `json:"client_id"`
	UserMatchingMode   string   `json:"user_matching_mode"`
	AllowFriends       bool     `json:"allow_friends"`
	AllowedServers     []string `json:"allowed_servers"`
	AuthenticationFlow *string  `json:"authentication_flow"`
	EnrollmentFlow     *string  `json:"enrollment_flow"`
	PlexToken          string   `json:"plex_token,omitempty"`
}

// Client persists sources through the identity backend API.
type Client struct {
	backend *backend.Client
}

func New(b *backend.Client) domain.Gateway {
	return &Client{backend: b}
}

func (c *Client) Get(ctx context.Context, slug string) (*domain.Source, error) {
	return c.send(ctx, http.MethodGet, sourcesPath+url.PathEscape(slug)+"/", nil)
}

func (c *Client) Create(ctx context.Context, src domain.Source, token string) (*domain.Source, error) {
	return c.send(ctx, http.MethodPost, sourcesPath, toWire(src, token))
}

func (c *Client) Update(ctx context.Context, slug string, src domain.Source, token string) (*domain.Source, error) {
	return c.send(ctx, http.MethodPut, sourcesPath+url.PathEscape(slug)+"/", toWire(src, token))
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*domain.Source, error) {
	resp, err := c.backend.Do(ctx, method, path, nil, body)
	if err != nil {
		return nil, errors.Join(domain.ErrPersistenceFailed, err)
	}
	if err := statusError(resp); err != nil {
		return nil, err
	}

	var out sourceWire
	if err := resp.Decode(&out); err != nil {
		return nil, errors.Join(domain.ErrPersistenceFailed, fmt.Errorf("decode source: %w", err))
	}
	return fromWire(out), nil
}

func statusError(resp *backend.Response) error {
	switch {
	case resp.OK():
		return nil
	case resp.Status == http.StatusBadRequest:
		return parseValidation(resp.Body)
	case resp.Status == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.Status == http.StatusConflict:
		return domain.ErrConflict
	default:
		return fmt.Errorf("%w: backend status %d", domain.ErrPersistenceFailed, resp.Status)
	}
}

// parseValidation reads the backend's field -> messages error body. Non
// field errors are kept under their own key.
func parseValidation(body []byte) error {
	verr := &domain.ValidationError{}

	var raw map[string]jsoniter.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) == 0 {
		verr.Add("non_field_errors", "The request was rejected.")
		return verr
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, field := range keys {
		var messages []string
		if err := json.Unmarshal(raw[field], &messages); err == nil {
			for _, m := range messages {
				verr.Add(field, m)
			}
			continue
		}
		var message string
		if err := json.Unmarshal(raw[field], &message); err == nil {
			verr.Add(field, message)
			continue
		}
		verr.Add(field, string(raw[field]))
	}
	return verr
}

func toWire(src domain.Source, token string) sourceWire {
	return sourceWire{
		Slug:               src.Slug,
		Name:               src.Name,
		Enabled:            src.Enabled,
		ClientID:           src.ClientID,
		UserMatchingMode:   string(src.UserMatchingMode),
		AllowFriends:       src.AllowFriends,
		AllowedServers:     append([]string{}, src.AllowedServers...),
		AuthenticationFlow: optional(src.AuthenticationFlow),
		EnrollmentFlow:     optional(src.EnrollmentFlow),
		PlexToken:          token,
	}
}

func fromWire(w sourceWire) *domain.Source {
	src := &domain.Source{
		PK:               w.PK,
		Slug:             w.Slug,
		Name:             w.Name,
		Enabled:          w.Enabled,
		ClientID:         w.ClientID,
		UserMatchingMode: domain.UserMatchingMode(w.UserMatchingMode),
		AllowFriends:     w.AllowFriends,
		AllowedServers:   append([]string{}, w.AllowedServers...),
	}
	if w.AuthenticationFlow != nil {
		src.AuthenticationFlow = *w.AuthenticationFlow
	}
	if w.EnrollmentFlow != nil {
		src.EnrollmentFlow = *w.EnrollmentFlow
	}
	return src
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
