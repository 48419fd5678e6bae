package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/railzwaylabs/plexsource/internal/clock"
	"github.com/railzwaylabs/plexsource/internal/config"
	"github.com/railzwaylabs/plexsource/internal/plex/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var _ domain.Provider = (*Client)(nil)

// Client talks to the plex.tv v2 API.
type Client struct {
	http         *http.Client
	baseURL      string
	appURL       string
	product      string
	version      string
	deviceVendor string
	clock        clock.Clock
	tracer       trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		if clk != nil {
			c.clock = clk
		}
	}
}

func New(cfg config.PlexConfig, opts ...Option) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		http:         &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		appURL:       strings.TrimRight(cfg.AppURL, "/"),
		product:      cfg.Product,
		version:      cfg.Version,
		deviceVendor: cfg.DeviceVendor,
		clock:        clock.SystemClock{},
		tracer:       otel.Tracer("plexsource/plex"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pinResponse struct {
	ID        int64   `json:"id"`
	Code      string  `json:"code"`
	ExpiresAt string  `json:"expiresAt"`
	AuthToken *string `json:"authToken"`
}

type resourceResponse struct {
	Name             string `json:"name"`
	ClientIdentifier string `json:"clientIdentifier"`
	Provides         string `json:"provides"`
	Owned            bool   `json:"owned"`
}

// StatusError is returned for unexpected HTTP statuses.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("plex %s: unexpected status %d", e.Op, e.Status)
}

func (c *Client) CreatePin(ctx context.Context, clientID string) (domain.Pin, error) {
	if strings.TrimSpace(clientID) == "" {
		return domain.Pin{}, domain.ErrMissingClientID
	}

	ctx, span := c.tracer.Start(ctx, "plex.CreatePin")
	defer span.End()

	var resp pinResponse
	status, err := c.do(ctx, http.MethodPost, "/api/v2/pins?strong=true", clientID, "", &resp)
	if err == nil && status != http.StatusOK && status != http.StatusCreated {
		err = &StatusError{Op: "create pin", Status: status}
	}
	if err != nil {
		recordError(span, err)
		return domain.Pin{}, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}

	span.SetAttributes(attribute.Int64("plex.pin_id", resp.ID))
	return domain.Pin{
		ID:        resp.ID,
		Code:      resp.Code,
		ExpiresAt: parseTime(resp.ExpiresAt),
	}, nil
}

func (c *Client) CheckPin(ctx context.Context, clientID string, pinID int64) (string, error) {
	ctx, span := c.tracer.Start(ctx, "plex.CheckPin", trace.WithAttributes(attribute.Int64("plex.pin_id", pinID)))
	defer span.End()

	var resp pinResponse
	status, err := c.do(ctx, http.MethodGet, "/api/v2/pins/"+strconv.FormatInt(pinID, 10), clientID, "", &resp)
	if err != nil {
		recordError(span, err)
		return "", err
	}

	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return "", domain.ErrAuthorizationExpired
	case status != http.StatusOK:
		err := &StatusError{Op: "check pin", Status: status}
		recordError(span, err)
		return "", err
	}

	if resp.AuthToken != nil && *resp.AuthToken != "" {
		return *resp.AuthToken, nil
	}
	if expiresAt := parseTime(resp.ExpiresAt); !expiresAt.IsZero() && !c.clock.Now(ctx).Before(expiresAt) {
		return "", domain.ErrAuthorizationExpired
	}
	return "", nil
}

func (c *Client) Resources(ctx context.Context, clientID, token string) ([]domain.Resource, error) {
	ctx, span := c.tracer.Start(ctx, "plex.Resources")
	defer span.End()

	var resp []resourceResponse
	status, err := c.do(ctx, http.MethodGet, "/api/v2/resources?includeHttps=1", clientID, token, &resp)
	if err == nil && status != http.StatusOK {
		err = &StatusError{Op: "list resources", Status: status}
	}
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	out := make([]domain.Resource, 0, len(resp))
	for _, r := range resp {
		out = append(out, domain.Resource{
			ClientIdentifier: r.ClientIdentifier,
			Name:             r.Name,
			Provides:         r.Provides,
			Owned:            r.Owned,
		})
	}
	span.SetAttributes(attribute.Int("plex.resources", len(out)))
	return out, nil
}

// AuthorizationURL builds the app.plex.tv approval link for a pin.
func (c *Client) AuthorizationURL(clientID string, pin domain.Pin) string {
	q := url.Values{}
	q.Set("clientID", clientID)
	q.Set("code", pin.Code)
	q.Set("context[device][product]", c.product)
	return c.appURL + "/auth#?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, path, clientID, token string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Product", c.product)
	if c.version != "" {
		req.Header.Set("X-Plex-Version", c.version)
	}
	if c.deviceVendor != "" {
		req.Header.Set("X-Plex-Device-Vendor", c.deviceVendor)
	}
	req.Header.Set("X-Plex-Client-Identifier", clientID)
	if token != "" {
		req.Header.Set("X-Plex-Token", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode plex response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
